package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	approvaldomain "github.com/crownlands/tenure/internal/approval/domain"
	approvalservice "github.com/crownlands/tenure/internal/approval/service"
	auditdomain "github.com/crownlands/tenure/internal/audit/domain"
	auditservice "github.com/crownlands/tenure/internal/audit/service"
	"github.com/crownlands/tenure/internal/clock"
	compliancedomain "github.com/crownlands/tenure/internal/compliance/domain"
	complianceservice "github.com/crownlands/tenure/internal/compliance/service"
	competitivedomain "github.com/crownlands/tenure/internal/competitiveprocess/domain"
	"github.com/crownlands/tenure/internal/config"
	"github.com/crownlands/tenure/internal/observability/metrics"
	organizationdomain "github.com/crownlands/tenure/internal/organization/domain"
	proposaldomain "github.com/crownlands/tenure/internal/proposal/domain"
	proposalservice "github.com/crownlands/tenure/internal/proposal/service"
	"github.com/crownlands/tenure/internal/providers/email"
	"github.com/crownlands/tenure/internal/providers/ledger"
	"github.com/crownlands/tenure/internal/providers/pdf"
	"github.com/crownlands/tenure/internal/sequence"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []email.Message
}

func (n *recordingNotifier) Send(_ context.Context, msg email.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

func (n *recordingNotifier) byKind(kind email.Kind) []email.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []email.Message
	for _, m := range n.messages {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

type staticIdentity struct {
	users map[int64]ledger.EmailUser
}

func (s *staticIdentity) RetrieveEmailUser(_ context.Context, id int64) (ledger.EmailUser, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return ledger.EmailUser{}, ledger.ErrUserNotFound
}

func (s *staticIdentity) RetrieveSystemSender(_ context.Context) (ledger.EmailUser, error) {
	return ledger.EmailUser{Email: "noreply@lands.example"}, nil
}

func (s *staticIdentity) Invalidate(int64) {}

type staticOrgs struct {
	organizationdomain.Service

	orgs map[snowflake.ID]organizationdomain.Organisation
}

func (s *staticOrgs) GetByID(_ context.Context, id snowflake.ID) (organizationdomain.Organisation, error) {
	if o, ok := s.orgs[id]; ok {
		return o, nil
	}
	return organizationdomain.Organisation{}, organizationdomain.ErrNotFound
}

const winnerPersonID = int64(500)

type fixture struct {
	svc       *Service
	proposals proposaldomain.Service
	db        *gorm.DB
	notifier  *recordingNotifier
	node      *snowflake.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&competitivedomain.CompetitiveProcess{},
		&competitivedomain.Party{},
		&proposaldomain.Proposal{},
		&proposaldomain.Referral{},
		&approvaldomain.Approval{},
		&approvaldomain.Requirement{},
		&compliancedomain.Compliance{},
		&compliancedomain.Referral{},
		&auditdomain.ActionLog{},
		&sequence.LodgementSequence{},
	))

	node, err := snowflake.NewNode(5)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2030, time.February, 10, 9, 0, 0, 0, time.UTC))
	notifier := &recordingNotifier{}
	invoicing := config.NewStaticInvoicingConfigHolder(config.DefaultInvoicingConfig())
	issuer := sequence.NewIssuer()
	audit := auditservice.NewService(auditservice.Params{DB: gdb, Log: zap.NewNop(), GenID: node})
	ident := &staticIdentity{users: map[int64]ledger.EmailUser{
		winnerPersonID: {ID: winnerPersonID, Email: "winner@example.org", FirstName: "Alex"},
	}}
	orgs := &staticOrgs{orgs: map[snowflake.ID]organizationdomain.Organisation{}}

	approvals := approvalservice.NewService(approvalservice.Params{
		DB: gdb, Log: zap.NewNop(), GenID: node, Issuer: issuer, Invoicing: invoicing,
	})
	compliances := complianceservice.NewService(complianceservice.Params{
		DB: gdb, Log: zap.NewNop(), GenID: node, Clock: clk, Issuer: issuer,
		Invoicing: invoicing, Audit: audit, Identity: ident, Organizations: orgs,
		Notifier: notifier, Metrics: metrics.NewProvider(),
	})
	proposals := proposalservice.NewService(proposalservice.Params{
		DB: gdb, Log: zap.NewNop(), GenID: node, Clock: clk, Issuer: issuer,
		Invoicing: invoicing, Audit: audit, Identity: ident, Organizations: orgs,
		Approvals: approvals, Compliances: compliances,
		Notifier: notifier, PDF: pdf.NoOpProvider{}, Metrics: metrics.NewProvider(),
	})
	svc := NewService(Params{
		DB: gdb, Log: zap.NewNop(), GenID: node, Clock: clk, Issuer: issuer,
		Invoicing: invoicing, Audit: audit, Identity: ident, Organizations: orgs,
		Proposals: proposals, Notifier: notifier, Metrics: metrics.NewProvider(),
	})
	return &fixture{svc: svc.(*Service), proposals: proposals, db: gdb, notifier: notifier, node: node}
}

func (f *fixture) newProcessWithWinner(t *testing.T) (competitivedomain.CompetitiveProcess, competitivedomain.Party) {
	t.Helper()
	ctx := context.Background()

	process, err := f.svc.Create(ctx, competitivedomain.CreateProcessRequest{
		DetailsText: "lease over lot 7, parish of Wallaroo",
		Geometry:    datatypes.JSON(`{"type":"Polygon","coordinates":[]}`),
	})
	require.NoError(t, err)

	person := snowflake.ID(winnerPersonID)
	party, err := f.svc.AddParty(ctx, process.ID, competitivedomain.AddPartyRequest{PersonID: &person})
	require.NoError(t, err)
	require.NoError(t, f.svc.SetWinner(ctx, process.ID, party.ID))
	return process, party
}

func TestCreateAssignsLodgementNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, competitivedomain.CreateProcessRequest{})
	require.NoError(t, err)
	assert.Equal(t, "CP0000001", first.LodgementNumber)
	assert.Equal(t, competitivedomain.StatusInProgress, first.Status)

	second, err := f.svc.Create(ctx, competitivedomain.CreateProcessRequest{})
	require.NoError(t, err)
	assert.Equal(t, "CP0000002", second.LodgementNumber)
}

func TestAddPartyValidatesSubject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	process, err := f.svc.Create(ctx, competitivedomain.CreateProcessRequest{})
	require.NoError(t, err)

	_, err = f.svc.AddParty(ctx, process.ID, competitivedomain.AddPartyRequest{})
	assert.ErrorIs(t, err, competitivedomain.ErrInvalidParty)

	person := f.node.Generate()
	org := f.node.Generate()
	_, err = f.svc.AddParty(ctx, process.ID, competitivedomain.AddPartyRequest{PersonID: &person, OrgID: &org})
	assert.ErrorIs(t, err, competitivedomain.ErrInvalidParty)
}

func TestCompleteWithWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	process, party := f.newProcessWithWinner(t)

	completed, err := f.svc.Complete(ctx, process.ID)
	require.NoError(t, err)
	assert.Equal(t, competitivedomain.StatusCompletedApplication, completed.Status)
	require.NotNil(t, completed.GeneratedProposalID)

	generated, err := f.proposals.GetByID(ctx, *completed.GeneratedProposalID)
	require.NoError(t, err)
	require.NotNil(t, generated.IndApplicantID)
	assert.Equal(t, *party.PersonID, *generated.IndApplicantID)
	require.NotNil(t, generated.OriginatingCompetitiveProcessID)
	assert.Equal(t, process.ID, *generated.OriginatingCompetitiveProcessID)
	require.NotNil(t, generated.LodgementNumber)
	assert.Equal(t, "A0000001", *generated.LodgementNumber)

	// Geometry deep-copied, not shared.
	assert.JSONEq(t, string(completed.Geometry), string(generated.Geometry))

	// Exactly one proposal, and the winner was told.
	var count int64
	require.NoError(t, f.db.Model(&proposaldomain.Proposal{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	msgs := f.notifier.byKind(email.KindWinnerNotification)
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"winner@example.org"}, msgs[0].To)

	// Completed processes cannot complete again.
	_, err = f.svc.Complete(ctx, process.ID)
	assert.ErrorIs(t, err, competitivedomain.ErrNotInProgress)
}

func TestCompleteWithoutWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	process, err := f.svc.Create(ctx, competitivedomain.CreateProcessRequest{})
	require.NoError(t, err)

	completed, err := f.svc.Complete(ctx, process.ID)
	require.NoError(t, err)
	assert.Equal(t, competitivedomain.StatusCompletedDeclined, completed.Status)
	assert.Nil(t, completed.GeneratedProposalID)

	var count int64
	require.NoError(t, f.db.Model(&proposaldomain.Proposal{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, f.notifier.byKind(email.KindWinnerNotification))
}

func TestUnlockRestoresInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	process, _ := f.newProcessWithWinner(t)

	completed, err := f.svc.Complete(ctx, process.ID)
	require.NoError(t, err)
	generatedID := *completed.GeneratedProposalID

	unlocked, err := f.svc.Unlock(ctx, process.ID)
	require.NoError(t, err)
	assert.Equal(t, competitivedomain.StatusInProgress, unlocked.Status)
	assert.Nil(t, unlocked.WinnerID)
	assert.Nil(t, unlocked.GeneratedProposalID)
	assert.Empty(t, unlocked.DetailsText)

	generated, err := f.proposals.GetByID(ctx, generatedID)
	require.NoError(t, err)
	assert.Equal(t, proposaldomain.StatusDiscarded, generated.ProcessingStatus)
}

func TestUnlockRefusedWhenGeneratedApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	process, _ := f.newProcessWithWinner(t)

	completed, err := f.svc.Complete(ctx, process.ID)
	require.NoError(t, err)
	generatedID := *completed.GeneratedProposalID

	// Walk the generated proposal to approval.
	require.NoError(t, f.proposals.SwitchStatus(ctx, generatedID, proposaldomain.StatusWithApprover))
	_, err = f.proposals.Approve(ctx, generatedID, proposaldomain.ApproveProposalRequest{
		StartDate:  time.Date(2030, time.July, 1, 0, 0, 0, 0, time.UTC),
		ExpiryDate: time.Date(2031, time.June, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	_, err = f.svc.Unlock(ctx, process.ID)
	assert.ErrorIs(t, err, competitivedomain.ErrGeneratedApproved)

	// Atomic no-op: nothing changed.
	got, err := f.svc.GetByID(ctx, process.ID)
	require.NoError(t, err)
	assert.Equal(t, competitivedomain.StatusCompletedApplication, got.Status)
	require.NotNil(t, got.WinnerID)
	require.NotNil(t, got.GeneratedProposalID)

	generated, err := f.proposals.GetByID(ctx, generatedID)
	require.NoError(t, err)
	assert.Equal(t, proposaldomain.StatusApprovedApplication, generated.ProcessingStatus)
}

func TestUnlockToleratesDiscardedProposal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	process, _ := f.newProcessWithWinner(t)

	completed, err := f.svc.Complete(ctx, process.ID)
	require.NoError(t, err)
	generatedID := *completed.GeneratedProposalID

	// Someone else discards the generated proposal first.
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		return f.proposals.DiscardGenerated(ctx, tx, generatedID)
	}))

	unlocked, err := f.svc.Unlock(ctx, process.ID)
	require.NoError(t, err)
	assert.Equal(t, competitivedomain.StatusInProgress, unlocked.Status)
}

func TestUnlockToleratesMissingProposal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	process, _ := f.newProcessWithWinner(t)

	completed, err := f.svc.Complete(ctx, process.ID)
	require.NoError(t, err)

	// The row vanished entirely (manual cleanup, migration mishap).
	require.NoError(t, f.db.Delete(&proposaldomain.Proposal{}, "id = ?", *completed.GeneratedProposalID).Error)

	unlocked, err := f.svc.Unlock(ctx, process.ID)
	require.NoError(t, err)
	assert.Equal(t, competitivedomain.StatusInProgress, unlocked.Status)
	assert.Nil(t, unlocked.WinnerID)
}

func TestUnlockRequiresCompletedState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	process, err := f.svc.Create(ctx, competitivedomain.CreateProcessRequest{})
	require.NoError(t, err)

	_, err = f.svc.Unlock(ctx, process.ID)
	assert.ErrorIs(t, err, competitivedomain.ErrNotCompleted)
}

func TestDiscard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	process, err := f.svc.Create(ctx, competitivedomain.CreateProcessRequest{})
	require.NoError(t, err)
	require.NoError(t, f.svc.Discard(ctx, process.ID))

	got, err := f.svc.GetByID(ctx, process.ID)
	require.NoError(t, err)
	assert.Equal(t, competitivedomain.StatusDiscarded, got.Status)

	// Discarded processes accept no parties.
	person := f.node.Generate()
	_, err = f.svc.AddParty(ctx, process.ID, competitivedomain.AddPartyRequest{PersonID: &person})
	assert.ErrorIs(t, err, competitivedomain.ErrNotInProgress)
}

func TestSetWinnerGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	process, party := f.newProcessWithWinner(t)

	other, err := f.svc.Create(ctx, competitivedomain.CreateProcessRequest{})
	require.NoError(t, err)

	// A party from another process is rejected.
	err = f.svc.SetWinner(ctx, other.ID, party.ID)
	assert.ErrorIs(t, err, competitivedomain.ErrPartyNotFound)

	_, err = f.svc.Complete(ctx, process.ID)
	require.NoError(t, err)
	err = f.svc.SetWinner(ctx, process.ID, party.ID)
	assert.ErrorIs(t, err, competitivedomain.ErrNotInProgress)
}
