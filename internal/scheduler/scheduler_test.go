package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/crownlands/tenure/internal/audit/domain"
	auditservice "github.com/crownlands/tenure/internal/audit/service"
	"github.com/crownlands/tenure/internal/clock"
	compliancedomain "github.com/crownlands/tenure/internal/compliance/domain"
	complianceservice "github.com/crownlands/tenure/internal/compliance/service"
	"github.com/crownlands/tenure/internal/config"
	invoicingdomain "github.com/crownlands/tenure/internal/invoicing/domain"
	invoicingservice "github.com/crownlands/tenure/internal/invoicing/service"
	"github.com/crownlands/tenure/internal/observability/metrics"
	organizationdomain "github.com/crownlands/tenure/internal/organization/domain"
	"github.com/crownlands/tenure/internal/providers/email"
	"github.com/crownlands/tenure/internal/providers/ledger"
	"github.com/crownlands/tenure/internal/sequence"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
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

type idleLedger struct {
	ledger.Client
}

const holderUserID = int64(700)

type fixture struct {
	sched    *Scheduler
	db       *gorm.DB
	clk      *clock.FakeClock
	notifier *recordingNotifier
	node     *snowflake.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&compliancedomain.Compliance{},
		&compliancedomain.Referral{},
		&invoicingdomain.Invoice{},
		&invoicingdomain.InvoiceTransaction{},
		&auditdomain.ActionLog{},
		&sequence.LodgementSequence{},
	))

	node, err := snowflake.NewNode(6)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2030, time.May, 1, 8, 0, 0, 0, time.UTC))
	notifier := &recordingNotifier{}
	invoicing := config.NewStaticInvoicingConfigHolder(config.DefaultInvoicingConfig())
	issuer := sequence.NewIssuer()
	audit := auditservice.NewService(auditservice.Params{DB: gdb, Log: zap.NewNop(), GenID: node})
	ident := &staticIdentity{users: map[int64]ledger.EmailUser{
		holderUserID: {ID: holderUserID, Email: "holder@example.org", FirstName: "Sam"},
	}}
	orgs := &staticOrgs{orgs: map[snowflake.ID]organizationdomain.Organisation{}}

	compliances := complianceservice.NewService(complianceservice.Params{
		DB: gdb, Log: zap.NewNop(), GenID: node, Clock: clk, Issuer: issuer,
		Invoicing: invoicing, Audit: audit, Identity: ident, Organizations: orgs,
		Notifier: notifier, Metrics: metrics.NewProvider(),
	})
	invoices := invoicingservice.NewService(invoicingservice.Params{
		DB: gdb, Log: zap.NewNop(), GenID: node, Clock: clk, Issuer: issuer,
		Invoicing: invoicing, Audit: audit, Ledger: idleLedger{}, Metrics: metrics.NewProvider(),
	})

	sched, err := New(Params{
		Log: zap.NewNop(), Clock: clk, Compliances: compliances, Invoices: invoices,
		Identity: ident, Organizations: orgs, Notifier: notifier,
		Metrics: metrics.NewProvider(),
		Config:  Config{AdminEmail: "ops@lands.example"},
	})
	require.NoError(t, err)
	return &fixture{sched: sched, db: gdb, clk: clk, notifier: notifier, node: node}
}

func (f *fixture) seedCompliance(t *testing.T, lodgement string, holder int64, status compliancedomain.ProcessingStatus, due time.Time) compliancedomain.Compliance {
	t.Helper()
	ind := snowflake.ID(holder)
	c := compliancedomain.Compliance{
		ID:               f.node.Generate(),
		LodgementNumber:  lodgement,
		ApprovalID:       f.node.Generate(),
		RequirementID:    f.node.Generate(),
		HolderIndID:      &ind,
		Text:             "annual land condition report",
		DueDate:          due,
		ProcessingStatus: status,
		CustomerStatus:   compliancedomain.CustomerStatusFor(status),
	}
	require.NoError(t, f.db.Create(&c).Error)
	return c
}

func (f *fixture) seedInvoice(t *testing.T, lodgement string, holder int64, due time.Time) invoicingdomain.Invoice {
	t.Helper()
	ind := snowflake.ID(holder)
	issued := due.AddDate(0, 0, -30)
	inv := invoicingdomain.Invoice{
		ID:              f.node.Generate(),
		LodgementNumber: lodgement,
		ApprovalID:      f.node.Generate(),
		HolderIndID:     &ind,
		Status:          invoicingdomain.InvoiceStatusUnpaid,
		Amount:          decimal.NewFromInt(1500),
		IssuedAt:        &issued,
		DueAt:           &due,
	}
	require.NoError(t, f.db.Create(&inv).Error)
	return inv
}

func (f *fixture) compliance(t *testing.T, id snowflake.ID) compliancedomain.Compliance {
	t.Helper()
	var c compliancedomain.Compliance
	require.NoError(t, f.db.First(&c, "id = ?", id).Error)
	return c
}

func TestRolloverMarksDueWithinWindow(t *testing.T) {
	f := newFixture(t)
	now := f.clk.Now()

	soon := f.seedCompliance(t, "C0000001", holderUserID, compliancedomain.ProcessingStatusFuture, now.AddDate(0, 0, 10))
	far := f.seedCompliance(t, "C0000002", holderUserID, compliancedomain.ProcessingStatusFuture, now.AddDate(0, 6, 0))

	require.NoError(t, f.sched.RunOnce(context.Background()))

	assert.Equal(t, compliancedomain.ProcessingStatusDue, f.compliance(t, soon.ID).ProcessingStatus)
	assert.Equal(t, compliancedomain.ProcessingStatusFuture, f.compliance(t, far.ID).ProcessingStatus)
}

func TestReminderSentOnceInsideLeadWindow(t *testing.T) {
	f := newFixture(t)
	now := f.clk.Now()

	c := f.seedCompliance(t, "C0000001", holderUserID, compliancedomain.ProcessingStatusDue, now.AddDate(0, 0, 5))

	require.NoError(t, f.sched.RunOnce(context.Background()))

	msgs := f.notifier.byKind(email.KindComplianceReminder)
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"holder@example.org"}, msgs[0].To)
	assert.Equal(t, "C0000001", msgs[0].Context["lodgement_number"])
	require.NotNil(t, f.compliance(t, c.ID).ReminderSentAt)

	// A second run must not repeat the reminder.
	require.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Len(t, f.notifier.byKind(email.KindComplianceReminder), 1)
}

func TestOverdueNoticeAfterDueDate(t *testing.T) {
	f := newFixture(t)
	now := f.clk.Now()

	c := f.seedCompliance(t, "C0000001", holderUserID, compliancedomain.ProcessingStatusDue, now.AddDate(0, 0, 5))
	f.clk.Advance(6 * 24 * time.Hour)

	require.NoError(t, f.sched.RunOnce(context.Background()))

	require.Len(t, f.notifier.byKind(email.KindComplianceOverdue), 1)
	require.NotNil(t, f.compliance(t, c.ID).OverdueSentAt)

	require.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Len(t, f.notifier.byKind(email.KindComplianceOverdue), 1)
}

func TestInvoiceReminder(t *testing.T) {
	f := newFixture(t)
	now := f.clk.Now()

	inv := f.seedInvoice(t, "I0000001", holderUserID, now.AddDate(0, 0, 3))

	require.NoError(t, f.sched.RunOnce(context.Background()))

	msgs := f.notifier.byKind(email.KindInvoiceDueReminder)
	require.Len(t, msgs, 1)
	assert.Equal(t, "I0000001", msgs[0].Context["lodgement_number"])
	assert.Equal(t, "1500.00", msgs[0].Context["amount"])

	var got invoicingdomain.Invoice
	require.NoError(t, f.db.First(&got, "id = ?", inv.ID).Error)
	require.NotNil(t, got.ReminderSentAt)
}

func TestRecordFailureDoesNotStallBatch(t *testing.T) {
	f := newFixture(t)
	now := f.clk.Now()

	// The first holder is unknown to the identity service; its reminder
	// fails while the second record is still processed.
	broken := f.seedCompliance(t, "C0000001", 999, compliancedomain.ProcessingStatusDue, now.AddDate(0, 0, 5))
	healthy := f.seedCompliance(t, "C0000002", holderUserID, compliancedomain.ProcessingStatusDue, now.AddDate(0, 0, 5))

	require.NoError(t, f.sched.RunOnce(context.Background()))

	msgs := f.notifier.byKind(email.KindComplianceReminder)
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"holder@example.org"}, msgs[0].To)
	assert.Nil(t, f.compliance(t, broken.ID).ReminderSentAt)
	require.NotNil(t, f.compliance(t, healthy.ID).ReminderSentAt)

	summaries := f.notifier.byKind(email.KindJobFailureSummary)
	require.Len(t, summaries, 1)
	assert.Equal(t, []string{"ops@lands.example"}, summaries[0].To)
	assert.Equal(t, 1, summaries[0].Context["count"])
}

func TestDisabledJobSkipped(t *testing.T) {
	f := newFixture(t)
	f.sched.cfg.EnabledJobs = []string{"compliance_rollover"}
	now := f.clk.Now()

	f.seedCompliance(t, "C0000001", holderUserID, compliancedomain.ProcessingStatusDue, now.AddDate(0, 0, 5))

	require.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Empty(t, f.notifier.byKind(email.KindComplianceReminder))
}
