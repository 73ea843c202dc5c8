package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/crownlands/tenure/internal/audit/domain"
	"github.com/crownlands/tenure/internal/clock"
	"github.com/crownlands/tenure/internal/config"
	invoicingdomain "github.com/crownlands/tenure/internal/invoicing/domain"
	"github.com/crownlands/tenure/internal/invoicing/period"
	"github.com/crownlands/tenure/internal/observability/metrics"
	"github.com/crownlands/tenure/internal/providers/ledger"
	"github.com/crownlands/tenure/internal/sequence"
	"github.com/crownlands/tenure/pkg/db/option"
	"github.com/crownlands/tenure/pkg/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Issuer    *sequence.Issuer
	Invoicing *config.InvoicingConfigHolder
	Audit     auditdomain.Service
	Ledger    ledger.Client
	Metrics   *metrics.Provider
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	issuer    *sequence.Issuer
	invoicing *config.InvoicingConfigHolder
	audit     auditdomain.Service
	ledger    ledger.Client
	metrics   *metrics.Provider

	invoicerepo     repository.Repository[invoicingdomain.Invoice]
	transactionrepo repository.Repository[invoicingdomain.InvoiceTransaction]
}

func NewService(p Params) invoicingdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("invoicing.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		issuer:    p.Issuer,
		invoicing: p.Invoicing,
		audit:     p.Audit,
		ledger:    p.Ledger,
		metrics:   p.Metrics,

		invoicerepo:     repository.ProvideStore[invoicingdomain.Invoice](p.DB),
		transactionrepo: repository.ProvideStore[invoicingdomain.InvoiceTransaction](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req invoicingdomain.CreateInvoiceRequest) (invoicingdomain.Invoice, error) {
	if (req.HolderOrgID == nil) == (req.HolderIndID == nil) {
		return invoicingdomain.Invoice{}, invoicingdomain.ErrInvalidHolder
	}
	if !req.Amount.IsPositive() {
		return invoicingdomain.Invoice{}, invoicingdomain.ErrInvalidAmount
	}

	var invoice invoicingdomain.Invoice
	err := s.db.Transaction(func(tx *gorm.DB) error {
		prefix := s.invoicing.Get().LodgementPrefixes["invoice"]
		lodgement, err := s.issuer.Next(ctx, tx, "invoice", prefix)
		if err != nil {
			return err
		}
		invoice = invoicingdomain.Invoice{
			ID:              s.genID.Generate(),
			LodgementNumber: lodgement,
			ApprovalID:      req.ApprovalID,
			HolderOrgID:     req.HolderOrgID,
			HolderIndID:     req.HolderIndID,
			Status:          invoicingdomain.InvoiceStatusPendingUpload,
			Amount:          req.Amount.Round(2),
			Description:     req.Description,
			OracleCode:      req.OracleCode,
		}
		return s.invoicerepo.WithTrx(tx).Create(ctx, &invoice)
	})
	if err != nil {
		return invoicingdomain.Invoice{}, err
	}
	s.auditLog(ctx, invoice.ID, "invoice_created", map[string]any{
		"lodgement_number": invoice.LodgementNumber,
		"amount":           invoice.Amount.String(),
	})
	return invoice, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (invoicingdomain.Invoice, error) {
	invoice, err := s.invoicerepo.FindOne(ctx, &invoicingdomain.Invoice{ID: id})
	if err != nil {
		return invoicingdomain.Invoice{}, err
	}
	if invoice == nil {
		return invoicingdomain.Invoice{}, invoicingdomain.ErrNotFound
	}
	return *invoice, nil
}

func (s *Service) List(ctx context.Context, req invoicingdomain.ListInvoiceRequest) ([]invoicingdomain.Invoice, error) {
	query := invoicingdomain.Invoice{}
	if req.ApprovalID != nil {
		query.ApprovalID = *req.ApprovalID
	}
	if req.HolderOrgID != nil {
		query.HolderOrgID = req.HolderOrgID
	}
	if req.HolderIndID != nil {
		query.HolderIndID = req.HolderIndID
	}
	if req.Status != nil {
		query.Status = *req.Status
	}
	opts := []option.QueryOption{}
	if req.Limit > 0 {
		opts = append(opts, option.WithLimit(req.Limit), option.WithOffset(req.Offset))
	}
	found, err := s.invoicerepo.Find(ctx, &query, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]invoicingdomain.Invoice, 0, len(found))
	for _, inv := range found {
		out = append(out, *inv)
	}
	return out, nil
}

func (s *Service) ListTransactions(ctx context.Context, invoiceID snowflake.ID) ([]invoicingdomain.InvoiceTransaction, error) {
	found, err := s.transactionrepo.Find(ctx, &invoicingdomain.InvoiceTransaction{InvoiceID: invoiceID})
	if err != nil {
		return nil, err
	}
	out := make([]invoicingdomain.InvoiceTransaction, 0, len(found))
	for _, t := range found {
		out = append(out, *t)
	}
	return out, nil
}

func (s *Service) BalanceOf(ctx context.Context, invoiceID snowflake.ID) (decimal.Decimal, error) {
	txs, err := s.ListTransactions(ctx, invoiceID)
	if err != nil {
		return decimal.Zero, err
	}
	return invoicingdomain.Balance(txs), nil
}

func (s *Service) UploadOracleInvoice(ctx context.Context, id snowflake.ID, oracleInvoiceNumber string) (invoicingdomain.Invoice, error) {
	if strings.TrimSpace(oracleInvoiceNumber) == "" {
		return invoicingdomain.Invoice{}, invoicingdomain.ErrMissingOracleRef
	}
	invoice, err := s.GetByID(ctx, id)
	if err != nil {
		return invoicingdomain.Invoice{}, err
	}
	if invoice.Status != invoicingdomain.InvoiceStatusPendingUpload {
		return invoicingdomain.Invoice{}, invoicingdomain.ErrInvalidTransition
	}

	now := s.clock.Now()
	due := now.AddDate(0, 0, s.invoicing.Get().PaymentTermDays)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.invoicerepo.WithTrx(tx).Update(ctx, invoice.ID.String(), map[string]any{
			"status":                invoicingdomain.InvoiceStatusUnpaid,
			"oracle_invoice_number": oracleInvoiceNumber,
			"issued_at":             now,
			"due_at":                due,
		}); err != nil {
			return err
		}
		// Opening credit: the full amount owing.
		opening := invoicingdomain.InvoiceTransaction{
			ID:        s.genID.Generate(),
			InvoiceID: invoice.ID,
			Credit:    invoice.Amount,
			Note:      "invoice raised",
		}
		return s.transactionrepo.WithTrx(tx).Create(ctx, &opening)
	})
	if err != nil {
		return invoicingdomain.Invoice{}, err
	}
	s.metrics.IncTransition("invoice", string(invoicingdomain.InvoiceStatusPendingUpload), string(invoicingdomain.InvoiceStatusUnpaid))

	if err := s.ledger.GenerateInvoice(ctx, ledger.InvoiceRequest{
		InvoiceNumber: oracleInvoiceNumber,
		OracleCode:    invoice.OracleCode,
		Description:   invoice.Description,
		Amount:        invoice.Amount.StringFixed(2),
		DueDate:       due.Format(time.DateOnly),
	}); err != nil {
		// The local state is already committed. The ledger raise is
		// retried out of band; the failure is surfaced so the operator
		// knows to retry.
		s.log.Error("ledger invoice raise failed",
			zap.String("oracle_invoice_number", oracleInvoiceNumber), zap.Error(err))
		return invoicingdomain.Invoice{}, err
	}

	s.auditLog(ctx, invoice.ID, "invoice_uploaded", map[string]any{
		"oracle_invoice_number": oracleInvoiceNumber,
		"due_at":                due.Format(time.DateOnly),
	})
	return s.GetByID(ctx, id)
}

func (s *Service) RecordTransaction(ctx context.Context, invoiceID snowflake.ID, debit, credit decimal.Decimal, note string) (invoicingdomain.Invoice, error) {
	if debit.IsNegative() || credit.IsNegative() || (debit.IsZero() && credit.IsZero()) {
		return invoicingdomain.Invoice{}, invoicingdomain.ErrInvalidTransaction
	}
	invoice, err := s.GetByID(ctx, invoiceID)
	if err != nil {
		return invoicingdomain.Invoice{}, err
	}
	if invoice.Status != invoicingdomain.InvoiceStatusUnpaid && invoice.Status != invoicingdomain.InvoiceStatusPaid {
		return invoicingdomain.Invoice{}, invoicingdomain.ErrInvalidTransition
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		line := invoicingdomain.InvoiceTransaction{
			ID:        s.genID.Generate(),
			InvoiceID: invoice.ID,
			Debit:     debit.Round(2),
			Credit:    credit.Round(2),
			Note:      note,
		}
		if err := s.transactionrepo.WithTrx(tx).Create(ctx, &line); err != nil {
			return err
		}

		var txs []invoicingdomain.InvoiceTransaction
		if err := tx.WithContext(ctx).Where("invoice_id = ?", invoice.ID).Find(&txs).Error; err != nil {
			return err
		}
		balance := invoicingdomain.Balance(txs)

		// Paid exactly at zero; an overpayment or short payment leaves the
		// invoice where it was.
		target := invoice.Status
		if balance.IsZero() {
			target = invoicingdomain.InvoiceStatusPaid
		} else if invoice.Status == invoicingdomain.InvoiceStatusPaid {
			target = invoicingdomain.InvoiceStatusUnpaid
		}
		if target == invoice.Status {
			return nil
		}
		if err := s.invoicerepo.WithTrx(tx).Update(ctx, invoice.ID.String(), map[string]any{"status": target}); err != nil {
			return err
		}
		s.metrics.IncTransition("invoice", string(invoice.Status), string(target))
		return nil
	})
	if err != nil {
		return invoicingdomain.Invoice{}, err
	}

	s.auditLog(ctx, invoice.ID, "invoice_transaction_recorded", map[string]any{
		"debit":  debit.StringFixed(2),
		"credit": credit.StringFixed(2),
		"note":   note,
	})
	return s.GetByID(ctx, invoiceID)
}

func (s *Service) Void(ctx context.Context, id snowflake.ID) error {
	return s.transition(ctx, id, invoicingdomain.InvoiceStatusVoid,
		invoicingdomain.InvoiceStatusUnpaid)
}

func (s *Service) Discard(ctx context.Context, id snowflake.ID) error {
	return s.transition(ctx, id, invoicingdomain.InvoiceStatusDiscarded,
		invoicingdomain.InvoiceStatusPendingUpload)
}

func (s *Service) transition(ctx context.Context, id snowflake.ID, target invoicingdomain.InvoiceStatus, allowed ...invoicingdomain.InvoiceStatus) error {
	invoice, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	permitted := false
	for _, from := range allowed {
		if invoice.Status == from {
			permitted = true
			break
		}
	}
	if !permitted {
		return invoicingdomain.ErrInvalidTransition
	}
	if err := s.invoicerepo.Update(ctx, invoice.ID.String(), map[string]any{"status": target}); err != nil {
		return err
	}
	s.metrics.IncTransition("invoice", string(invoice.Status), string(target))
	s.auditLog(ctx, invoice.ID, "invoice_"+string(target), nil)
	return nil
}

// RecalculateCPI uplifts a pending invoice created in an earlier financial
// year. The creation year itself carries no uplift; each completed year
// after it compounds the configured percentage.
func (s *Service) RecalculateCPI(ctx context.Context, id snowflake.ID) (invoicingdomain.Invoice, error) {
	invoice, err := s.GetByID(ctx, id)
	if err != nil {
		return invoicingdomain.Invoice{}, err
	}
	if invoice.Status != invoicingdomain.InvoiceStatusPendingUpload {
		return invoicingdomain.Invoice{}, invoicingdomain.ErrInvalidTransition
	}

	years := period.FinancialYearsIn(invoice.CreatedAt, s.clock.Now())
	if len(years) > 0 {
		years = years[1:]
	}
	adjusted := invoicingdomain.ApplyCPI(invoice.Amount, s.invoicing.Get().CPIPercentages, years)
	if adjusted.Equal(invoice.Amount) {
		return invoice, nil
	}

	if err := s.invoicerepo.Update(ctx, invoice.ID.String(), map[string]any{"amount": adjusted}); err != nil {
		return invoicingdomain.Invoice{}, err
	}
	s.auditLog(ctx, invoice.ID, "invoice_cpi_recalculated", map[string]any{
		"previous_amount": invoice.Amount.StringFixed(2),
		"amount":          adjusted.StringFixed(2),
		"years":           years,
	})
	return s.GetByID(ctx, id)
}

func (s *Service) PaymentSession(ctx context.Context, id snowflake.ID, returnURL string) (string, error) {
	invoice, err := s.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if invoice.Status != invoicingdomain.InvoiceStatusUnpaid {
		return "", invoicingdomain.ErrInvalidTransition
	}
	session, err := s.ledger.GeneratePaymentSession(ctx, invoice.OracleInvoiceNumber, returnURL)
	if err != nil {
		return "", err
	}
	return session.PaymentURL, nil
}

// ListDueForReminder returns unpaid invoices inside the reminder window
// without a sent reminder.
func (s *Service) ListDueForReminder(ctx context.Context) ([]invoicingdomain.Invoice, error) {
	now := s.clock.Now()
	lead := time.Duration(s.invoicing.Get().InvoiceReminderDays) * 24 * time.Hour
	var out []invoicingdomain.Invoice
	err := s.db.WithContext(ctx).
		Where("status = ? AND reminder_sent_at IS NULL AND due_at IS NOT NULL AND due_at > ? AND due_at <= ?",
			invoicingdomain.InvoiceStatusUnpaid, now, now.Add(lead)).
		Find(&out).Error
	return out, err
}

func (s *Service) MarkReminderSent(ctx context.Context, id snowflake.ID) error {
	return s.invoicerepo.Update(ctx, id.String(), map[string]any{"reminder_sent_at": s.clock.Now()})
}

func (s *Service) auditLog(ctx context.Context, id snowflake.ID, what string, detail map[string]any) {
	if err := s.audit.Log(ctx, "invoice", id.String(), what, detail); err != nil {
		s.log.Warn("action log write failed", zap.String("what", what), zap.Error(err))
	}
}
