// Package domain contains invoice and ledger-transaction models. Amounts
// use decimal arithmetic; float money never enters the database.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusPendingUpload InvoiceStatus = "pending_upload_oracle_invoice"
	InvoiceStatusUnpaid        InvoiceStatus = "unpaid"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusVoid          InvoiceStatus = "void"
	InvoiceStatusDiscarded     InvoiceStatus = "discarded"
)

type Invoice struct {
	ID                  snowflake.ID    `gorm:"primaryKey" json:"id"`
	LodgementNumber     string          `gorm:"type:text;not null;uniqueIndex:ux_invoices_lodgement" json:"lodgement_number"`
	ApprovalID          snowflake.ID    `gorm:"not null;index" json:"approval_id"`
	HolderOrgID         *snowflake.ID   `gorm:"index" json:"holder_org_id,omitempty"`
	HolderIndID         *snowflake.ID   `gorm:"index" json:"holder_ind_id,omitempty"`
	Status              InvoiceStatus   `gorm:"type:text;not null;index" json:"status"`
	Amount              decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	Description         string          `gorm:"type:text" json:"description"`
	OracleCode          string          `gorm:"type:text" json:"oracle_code"`
	OracleInvoiceNumber string          `gorm:"type:text" json:"oracle_invoice_number"`
	IssuedAt            *time.Time      `json:"issued_at,omitempty"`
	DueAt               *time.Time      `json:"due_at,omitempty"`
	ReminderSentAt      *time.Time      `json:"reminder_sent_at,omitempty"`
	CreatedAt           time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceTransaction is one ledger line against an invoice. Raising the
// invoice posts the amount owing as a credit; every payment posts a debit.
// The balance is sum(credit) minus sum(debit), so a fully paid invoice
// balances to exactly zero.
type InvoiceTransaction struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	Debit     decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"debit"`
	Credit    decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"credit"`
	Note      string          `gorm:"type:text" json:"note"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (InvoiceTransaction) TableName() string { return "invoice_transactions" }

// Balance sums transactions as credit minus debit.
func Balance(txs []InvoiceTransaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		total = total.Add(t.Credit).Sub(t.Debit)
	}
	return total
}
