package identity

import (
	"context"
	"testing"
	"time"

	"github.com/crownlands/tenure/internal/clock"
	"github.com/crownlands/tenure/internal/providers/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClient struct {
	ledger.Client

	calls int
	users map[int64]ledger.EmailUser
}

func (f *fakeClient) RetrieveEmailUser(ctx context.Context, id int64) (ledger.EmailUser, error) {
	f.calls++
	user, ok := f.users[id]
	if !ok {
		return ledger.EmailUser{}, ledger.ErrUserNotFound
	}
	return user, nil
}

func TestRetrieveEmailUserCaches(t *testing.T) {
	client := &fakeClient{users: map[int64]ledger.EmailUser{
		7: {ID: 7, Email: "holder@example.com"},
	}}
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := NewService(Params{Client: client, Clock: clk, Log: zap.NewNop()})

	first, err := svc.RetrieveEmailUser(context.Background(), 7)
	require.NoError(t, err)
	second, err := svc.RetrieveEmailUser(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, client.calls)

	clk.Advance(6 * time.Minute)
	_, err = svc.RetrieveEmailUser(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls)
}

func TestRetrieveEmailUserMissingIsFatal(t *testing.T) {
	client := &fakeClient{users: map[int64]ledger.EmailUser{}}
	svc := NewService(Params{
		Client: client,
		Clock:  clock.NewFakeClock(time.Unix(0, 0)),
		Log:    zap.NewNop(),
	})

	_, err := svc.RetrieveEmailUser(context.Background(), 99)
	assert.ErrorIs(t, err, ledger.ErrUserNotFound)
}
