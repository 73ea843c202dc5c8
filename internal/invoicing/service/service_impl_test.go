package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/crownlands/tenure/internal/audit/domain"
	auditservice "github.com/crownlands/tenure/internal/audit/service"
	"github.com/crownlands/tenure/internal/clock"
	"github.com/crownlands/tenure/internal/config"
	invoicingdomain "github.com/crownlands/tenure/internal/invoicing/domain"
	"github.com/crownlands/tenure/internal/observability/metrics"
	"github.com/crownlands/tenure/internal/providers/ledger"
	"github.com/crownlands/tenure/internal/sequence"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeLedger struct {
	ledger.Client

	raised   []ledger.InvoiceRequest
	raiseErr error
}

func (f *fakeLedger) GenerateInvoice(_ context.Context, req ledger.InvoiceRequest) error {
	if f.raiseErr != nil {
		return f.raiseErr
	}
	f.raised = append(f.raised, req)
	return nil
}

func (f *fakeLedger) GeneratePaymentSession(_ context.Context, invoiceNumber, returnURL string) (ledger.PaymentSession, error) {
	return ledger.PaymentSession{
		SessionID:  "sess-1",
		PaymentURL: "https://pay.example/" + invoiceNumber,
	}, nil
}

type fixture struct {
	svc    *Service
	clk    *clock.FakeClock
	ledger *fakeLedger
	node   *snowflake.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&invoicingdomain.Invoice{},
		&invoicingdomain.InvoiceTransaction{},
		&auditdomain.ActionLog{},
		&sequence.LodgementSequence{},
	))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2030, time.July, 10, 9, 0, 0, 0, time.UTC))
	fl := &fakeLedger{}
	svc := NewService(Params{
		DB:        gdb,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Issuer:    sequence.NewIssuer(),
		Invoicing: config.NewStaticInvoicingConfigHolder(config.DefaultInvoicingConfig()),
		Audit:     auditservice.NewService(auditservice.Params{DB: gdb, Log: zap.NewNop(), GenID: node}),
		Ledger:    fl,
		Metrics:   metrics.NewProvider(),
	})
	return &fixture{svc: svc.(*Service), clk: clk, ledger: fl, node: node}
}

func (f *fixture) createInvoice(t *testing.T, amount string) invoicingdomain.Invoice {
	t.Helper()
	holder := f.node.Generate()
	inv, err := f.svc.Create(context.Background(), invoicingdomain.CreateInvoiceRequest{
		ApprovalID:  f.node.Generate(),
		HolderIndID: &holder,
		Amount:      decimal.RequireFromString(amount),
		Description: "annual rent",
		OracleCode:  "RENT-001",
	})
	require.NoError(t, err)
	return inv
}

func TestCreateInvoice(t *testing.T) {
	f := newFixture(t)

	inv := f.createInvoice(t, "1250.00")
	assert.Equal(t, "I0000001", inv.LodgementNumber)
	assert.Equal(t, invoicingdomain.InvoiceStatusPendingUpload, inv.Status)
	assert.Nil(t, inv.IssuedAt)
	assert.Nil(t, inv.DueAt)

	second := f.createInvoice(t, "99.95")
	assert.Equal(t, "I0000002", second.LodgementNumber)
}

func TestCreateInvoiceValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	holder := f.node.Generate()

	_, err := f.svc.Create(ctx, invoicingdomain.CreateInvoiceRequest{
		ApprovalID: f.node.Generate(),
		Amount:     decimal.RequireFromString("10.00"),
	})
	assert.ErrorIs(t, err, invoicingdomain.ErrInvalidHolder)

	_, err = f.svc.Create(ctx, invoicingdomain.CreateInvoiceRequest{
		ApprovalID:  f.node.Generate(),
		HolderIndID: &holder,
		Amount:      decimal.Zero,
	})
	assert.ErrorIs(t, err, invoicingdomain.ErrInvalidAmount)
}

func TestUploadOracleInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.createInvoice(t, "1250.00")

	got, err := f.svc.UploadOracleInvoice(ctx, inv.ID, "ORA-77001")
	require.NoError(t, err)
	assert.Equal(t, invoicingdomain.InvoiceStatusUnpaid, got.Status)
	assert.Equal(t, "ORA-77001", got.OracleInvoiceNumber)
	require.NotNil(t, got.IssuedAt)
	require.NotNil(t, got.DueAt)
	assert.True(t, got.IssuedAt.Equal(f.clk.Now()))
	assert.True(t, got.DueAt.Equal(f.clk.Now().AddDate(0, 0, 30)))

	// Opening credit posted for the full amount, balance owing.
	balance, err := f.svc.BalanceOf(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("1250.00")))

	// Raised with the external ledger.
	require.Len(t, f.ledger.raised, 1)
	assert.Equal(t, "1250.00", f.ledger.raised[0].Amount)

	_, err = f.svc.UploadOracleInvoice(ctx, inv.ID, "ORA-77002")
	assert.ErrorIs(t, err, invoicingdomain.ErrInvalidTransition)

	_, err = f.svc.UploadOracleInvoice(ctx, f.createInvoice(t, "5.00").ID, "  ")
	assert.ErrorIs(t, err, invoicingdomain.ErrMissingOracleRef)
}

func TestPaymentFlipsPaidAtExactlyZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.createInvoice(t, "1000.00")
	_, err := f.svc.UploadOracleInvoice(ctx, inv.ID, "ORA-1")
	require.NoError(t, err)

	// Partial payment leaves it unpaid.
	got, err := f.svc.RecordTransaction(ctx, inv.ID, decimal.RequireFromString("400.00"), decimal.Zero, "part payment")
	require.NoError(t, err)
	assert.Equal(t, invoicingdomain.InvoiceStatusUnpaid, got.Status)

	balance, err := f.svc.BalanceOf(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("600.00")))

	// Overpayment also leaves it unpaid: balance is negative, not zero.
	got, err = f.svc.RecordTransaction(ctx, inv.ID, decimal.RequireFromString("700.00"), decimal.Zero, "overpayment")
	require.NoError(t, err)
	assert.Equal(t, invoicingdomain.InvoiceStatusUnpaid, got.Status)

	// Refund credit brings the balance to exactly zero: paid.
	got, err = f.svc.RecordTransaction(ctx, inv.ID, decimal.Zero, decimal.RequireFromString("100.00"), "refund overpayment")
	require.NoError(t, err)
	assert.Equal(t, invoicingdomain.InvoiceStatusPaid, got.Status)

	// A further charge reopens it.
	got, err = f.svc.RecordTransaction(ctx, inv.ID, decimal.Zero, decimal.RequireFromString("50.00"), "late fee")
	require.NoError(t, err)
	assert.Equal(t, invoicingdomain.InvoiceStatusUnpaid, got.Status)
}

func TestRecordTransactionGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.createInvoice(t, "100.00")

	// No transactions before the oracle upload.
	_, err := f.svc.RecordTransaction(ctx, inv.ID, decimal.RequireFromString("100.00"), decimal.Zero, "too early")
	assert.ErrorIs(t, err, invoicingdomain.ErrInvalidTransition)

	_, err = f.svc.UploadOracleInvoice(ctx, inv.ID, "ORA-1")
	require.NoError(t, err)

	_, err = f.svc.RecordTransaction(ctx, inv.ID, decimal.Zero, decimal.Zero, "empty")
	assert.ErrorIs(t, err, invoicingdomain.ErrInvalidTransaction)

	_, err = f.svc.RecordTransaction(ctx, inv.ID, decimal.RequireFromString("-5.00"), decimal.Zero, "negative")
	assert.ErrorIs(t, err, invoicingdomain.ErrInvalidTransaction)
}

func TestVoidAndDiscard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.createInvoice(t, "10.00")
	assert.ErrorIs(t, f.svc.Void(ctx, pending.ID), invoicingdomain.ErrInvalidTransition)
	require.NoError(t, f.svc.Discard(ctx, pending.ID))

	unpaid := f.createInvoice(t, "10.00")
	_, err := f.svc.UploadOracleInvoice(ctx, unpaid.ID, "ORA-9")
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.Discard(ctx, unpaid.ID), invoicingdomain.ErrInvalidTransition)
	require.NoError(t, f.svc.Void(ctx, unpaid.ID))

	got, err := f.svc.GetByID(ctx, unpaid.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicingdomain.InvoiceStatusVoid, got.Status)
}

func TestPaymentSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.createInvoice(t, "10.00")

	_, err := f.svc.PaymentSession(ctx, inv.ID, "https://portal.example/return")
	assert.ErrorIs(t, err, invoicingdomain.ErrInvalidTransition)

	_, err = f.svc.UploadOracleInvoice(ctx, inv.ID, "ORA-5")
	require.NoError(t, err)

	url, err := f.svc.PaymentSession(ctx, inv.ID, "https://portal.example/return")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/ORA-5", url)
}

func TestInvoiceReminderSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.createInvoice(t, "10.00")
	_, err := f.svc.UploadOracleInvoice(ctx, inv.ID, "ORA-2")
	require.NoError(t, err)

	// Term is 30 days, reminder lead 7: nothing in scope yet.
	due, err := f.svc.ListDueForReminder(ctx)
	require.NoError(t, err)
	assert.Empty(t, due)

	f.clk.Advance(25 * 24 * time.Hour)
	due, err = f.svc.ListDueForReminder(ctx)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, inv.ID, due[0].ID)

	require.NoError(t, f.svc.MarkReminderSent(ctx, inv.ID))
	due, err = f.svc.ListDueForReminder(ctx)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestRecalculateCPI(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.invoicing = config.NewStaticInvoicingConfigHolder(config.InvoicingConfig{
		CPIPercentages: map[string]float64{
			"2031-2032": 2.5,
			"2032-2033": 3.0,
		},
	})

	inv := f.createInvoice(t, "1000.00")
	// Pin creation into the clock's financial year; gorm stamps wall time.
	require.NoError(t, f.svc.db.Model(&invoicingdomain.Invoice{}).
		Where("id = ?", inv.ID).Update("created_at", f.clk.Now()).Error)

	// Same financial year: no uplift applies.
	got, err := f.svc.RecalculateCPI(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000.00", got.Amount.StringFixed(2))

	// Two completed financial years compound 2.5% then 3.0%.
	f.clk.Advance(752 * 24 * time.Hour)
	got, err = f.svc.RecalculateCPI(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "1055.75", got.Amount.StringFixed(2))

	// Once raised, the amount is fixed.
	_, err = f.svc.UploadOracleInvoice(ctx, inv.ID, "ORA-CPI")
	require.NoError(t, err)
	_, err = f.svc.RecalculateCPI(ctx, inv.ID)
	assert.ErrorIs(t, err, invoicingdomain.ErrInvalidTransition)
}

func TestApplyCPI(t *testing.T) {
	percentages := map[string]float64{
		"2029-2030": 3.5,
		"2030-2031": 2.0,
	}
	base := decimal.RequireFromString("1000.00")

	adjusted := invoicingdomain.ApplyCPI(base, percentages, []string{"2029-2030", "2030-2031"})
	assert.Equal(t, "1055.70", adjusted.StringFixed(2))

	// Unconfigured years leave the amount unchanged.
	same := invoicingdomain.ApplyCPI(base, percentages, []string{"2040-2041"})
	assert.True(t, same.Equal(base))
}
