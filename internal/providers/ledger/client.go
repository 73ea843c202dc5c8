// Package ledger talks to the external ledger service: identity records,
// the organisation registry, oracle invoice generation and payment sessions.
package ledger

import (
	"context"
	"errors"
)

// EmailUser is an identity record held by the ledger service.
type EmailUser struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Title     string `json:"title"`
	Phone     string `json:"phone_number"`
}

// Organisation is an organisation record held by the ledger registry.
type Organisation struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	ABN     string `json:"abn"`
	Email   string `json:"email"`
	Phone   string `json:"phone_number"`
	Address string `json:"address"`
}

// InvoiceRequest asks the ledger service to raise an invoice.
type InvoiceRequest struct {
	InvoiceNumber string `json:"invoice_number"`
	OracleCode    string `json:"oracle_code"`
	Description   string `json:"description"`
	Amount        string `json:"amount"`
	DueDate       string `json:"due_date"`
}

// PaymentSession is a checkout handle for an invoice.
type PaymentSession struct {
	SessionID  string `json:"session_id"`
	PaymentURL string `json:"payment_url"`
}

var (
	ErrUserNotFound         = errors.New("ledger_user_not_found")
	ErrOrganisationNotFound = errors.New("ledger_organisation_not_found")
	ErrUnavailable          = errors.New("ledger_service_unavailable")
)

// Client is the surface the workflow services consume. Lookup failures are
// fatal for the record being processed; the workflow never fabricates a
// placeholder user.
type Client interface {
	RetrieveEmailUser(ctx context.Context, id int64) (EmailUser, error)
	RetrieveSystemSender(ctx context.Context) (EmailUser, error)
	CreateOrganisation(ctx context.Context, name, abn string) (Organisation, error)
	SearchOrganisations(ctx context.Context, query string) ([]Organisation, error)
	RetrieveOrganisation(ctx context.Context, id int64) (Organisation, error)
	GenerateInvoice(ctx context.Context, req InvoiceRequest) error
	GeneratePaymentSession(ctx context.Context, invoiceNumber, returnURL string) (PaymentSession, error)
}
