package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type CreateInvoiceRequest struct {
	ApprovalID  snowflake.ID
	HolderOrgID *snowflake.ID
	HolderIndID *snowflake.ID
	Amount      decimal.Decimal
	Description string
	OracleCode  string
}

type ListInvoiceRequest struct {
	ApprovalID  *snowflake.ID
	HolderOrgID *snowflake.ID
	HolderIndID *snowflake.ID
	Status      *InvoiceStatus
	Limit       int
	Offset      int
}

type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (Invoice, error)
	GetByID(ctx context.Context, id snowflake.ID) (Invoice, error)
	List(ctx context.Context, req ListInvoiceRequest) ([]Invoice, error)
	ListTransactions(ctx context.Context, invoiceID snowflake.ID) ([]InvoiceTransaction, error)
	BalanceOf(ctx context.Context, invoiceID snowflake.ID) (decimal.Decimal, error)

	// UploadOracleInvoice moves the invoice to unpaid: stamps issue and due
	// dates, posts the opening credit and raises the invoice with the
	// external ledger.
	UploadOracleInvoice(ctx context.Context, id snowflake.ID, oracleInvoiceNumber string) (Invoice, error)
	// RecordTransaction posts a ledger line and flips the invoice to paid
	// when the balance lands on exactly zero.
	RecordTransaction(ctx context.Context, invoiceID snowflake.ID, debit, credit decimal.Decimal, note string) (Invoice, error)
	Void(ctx context.Context, id snowflake.ID) error
	Discard(ctx context.Context, id snowflake.ID) error
	PaymentSession(ctx context.Context, id snowflake.ID, returnURL string) (string, error)
	// RecalculateCPI compounds the configured CPI percentage for each
	// financial year elapsed since the invoice was raised onto its amount.
	// Only invoices still awaiting the oracle upload can be recalculated.
	RecalculateCPI(ctx context.Context, id snowflake.ID) (Invoice, error)

	// Scheduler surface.
	ListDueForReminder(ctx context.Context) ([]Invoice, error)
	MarkReminderSent(ctx context.Context, id snowflake.ID) error
}

var (
	ErrNotFound           = errors.New("invoice_not_found")
	ErrInvalidAmount      = errors.New("invalid_invoice_amount")
	ErrInvalidHolder      = errors.New("invalid_invoice_holder")
	ErrInvalidTransition  = errors.New("invalid_invoice_transition")
	ErrInvalidTransaction = errors.New("invalid_invoice_transaction")
	ErrMissingOracleRef   = errors.New("missing_oracle_invoice_number")
)
