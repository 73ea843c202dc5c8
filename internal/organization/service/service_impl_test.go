package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/crownlands/tenure/internal/clock"
	organizationdomain "github.com/crownlands/tenure/internal/organization/domain"
	"github.com/crownlands/tenure/internal/providers/ledger"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeLedger struct {
	ledger.Client

	nextID      int64
	createCalls int
	searchCalls int
	registry    []ledger.Organisation
}

func (f *fakeLedger) CreateOrganisation(_ context.Context, name, abn string) (ledger.Organisation, error) {
	f.createCalls++
	f.nextID++
	org := ledger.Organisation{ID: f.nextID, Name: name, ABN: abn}
	f.registry = append(f.registry, org)
	return org, nil
}

func (f *fakeLedger) SearchOrganisations(_ context.Context, _ string) ([]ledger.Organisation, error) {
	f.searchCalls++
	return f.registry, nil
}

func newTestService(t *testing.T, clk clock.Clock) (*Service, *fakeLedger) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&organizationdomain.Organisation{}, &organizationdomain.Delegate{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fl := &fakeLedger{}
	svc := NewService(Params{
		DB:     gdb,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clk,
		Ledger: fl,
	})
	return svc.(*Service), fl
}

func TestCreateOrganisation(t *testing.T) {
	svc, fl := newTestService(t, clock.NewSystem())
	ctx := context.Background()

	org, err := svc.Create(ctx, organizationdomain.CreateOrganisationRequest{
		Name: "Gumtree Holdings Pty Ltd",
		ABN:  "51824753556",
	})
	require.NoError(t, err)
	assert.Equal(t, "Gumtree Holdings Pty Ltd", org.Name)
	assert.Equal(t, int64(1), org.LedgerOrganisationID)
	assert.Equal(t, 1, fl.createCalls)

	_, err = svc.Create(ctx, organizationdomain.CreateOrganisationRequest{
		Name: "Gumtree Holdings Pty Ltd",
		ABN:  "51824753556",
	})
	assert.ErrorIs(t, err, organizationdomain.ErrAlreadyExists)
	assert.Equal(t, 1, fl.createCalls, "duplicate must not reach the ledger registry")
}

func TestCreateOrganisationValidation(t *testing.T) {
	svc, _ := newTestService(t, clock.NewSystem())
	ctx := context.Background()

	_, err := svc.Create(ctx, organizationdomain.CreateOrganisationRequest{Name: "  ", ABN: "51824753556"})
	assert.ErrorIs(t, err, organizationdomain.ErrInvalidName)

	_, err = svc.Create(ctx, organizationdomain.CreateOrganisationRequest{Name: "Short ABN Co", ABN: "1234"})
	assert.ErrorIs(t, err, organizationdomain.ErrInvalidABN)
}

func TestSearchUsesCache(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc, fl := newTestService(t, clk)
	ctx := context.Background()

	_, err := svc.Create(ctx, organizationdomain.CreateOrganisationRequest{
		Name: "Saltbush Grazing Co",
		ABN:  "51824753556",
	})
	require.NoError(t, err)

	first, err := svc.Search(ctx, "saltbush")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, fl.searchCalls)

	// Cached result served without another registry call.
	_, err = svc.Search(ctx, "Saltbush ")
	require.NoError(t, err)
	assert.Equal(t, 1, fl.searchCalls)

	clk.Advance(25 * time.Hour)
	_, err = svc.Search(ctx, "saltbush")
	require.NoError(t, err)
	assert.Equal(t, 2, fl.searchCalls)
}

func TestSearchInvalidatedOnCreate(t *testing.T) {
	svc, fl := newTestService(t, clock.NewSystem())
	ctx := context.Background()

	_, err := svc.Search(ctx, "mulga")
	require.NoError(t, err)
	assert.Equal(t, 1, fl.searchCalls)

	_, err = svc.Create(ctx, organizationdomain.CreateOrganisationRequest{
		Name: "Mulga Station Pty Ltd",
		ABN:  "51824753556",
	})
	require.NoError(t, err)

	results, err := svc.Search(ctx, "mulga")
	require.NoError(t, err)
	assert.Equal(t, 2, fl.searchCalls)
	require.Len(t, results, 1)
	assert.Equal(t, "Mulga Station Pty Ltd", results[0].Name)
}

func TestDelegates(t *testing.T) {
	svc, _ := newTestService(t, clock.NewSystem())
	ctx := context.Background()

	org, err := svc.Create(ctx, organizationdomain.CreateOrganisationRequest{
		Name: "Brigalow Pastoral Co",
		ABN:  "51824753556",
	})
	require.NoError(t, err)

	err = svc.AddDelegate(ctx, org.ID, 42, organizationdomain.DelegateRole("owner"))
	assert.ErrorIs(t, err, organizationdomain.ErrInvalidRole)

	require.NoError(t, svc.AddDelegate(ctx, org.ID, 42, organizationdomain.DelegateRoleAdmin))
	// Re-adding the same user is a no-op, not an error.
	require.NoError(t, svc.AddDelegate(ctx, org.ID, 42, organizationdomain.DelegateRoleAdmin))

	ok, err := svc.IsDelegate(ctx, org.ID, 42)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.IsDelegate(ctx, org.ID, 99)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.RemoveDelegate(ctx, org.ID, 42))
	err = svc.RemoveDelegate(ctx, org.ID, 42)
	assert.ErrorIs(t, err, organizationdomain.ErrDelegateNotFound)

	ok, err = svc.IsDelegate(ctx, org.ID, 42)
	require.NoError(t, err)
	assert.False(t, ok)
}
