// Package pdf produces the documents attached to workflow notifications:
// approval letters, invoice summaries and compliance notices.
package pdf

import (
	"context"
)

type ApprovalLetterData struct {
	ApprovalNumber  string
	ProposalNumber  string
	HolderName      string
	HolderAddress   string
	StartDate       string
	ExpiryDate      string
	Conditions      []string
	IssuingOfficer  string
	IssuedDate      string
}

type InvoiceSummaryData struct {
	InvoiceNumber  string
	OracleNumber   string
	ApprovalNumber string
	HolderName     string
	IssueDate      string
	DueDate        string
	Amount         string
	Period         string
}

type ComplianceNoticeData struct {
	ComplianceNumber string
	ApprovalNumber   string
	HolderName       string
	DueDate          string
	Requirement      string
}

// Provider renders documents as opaque byte blobs.
type Provider interface {
	ApprovalLetter(ctx context.Context, data ApprovalLetterData) ([]byte, error)
	InvoiceSummary(ctx context.Context, data InvoiceSummaryData) ([]byte, error)
	ComplianceNotice(ctx context.Context, data ComplianceNoticeData) ([]byte, error)
}

// NoOpProvider renders nothing, used in tests.
type NoOpProvider struct{}

func (NoOpProvider) ApprovalLetter(ctx context.Context, data ApprovalLetterData) ([]byte, error) {
	return nil, nil
}

func (NoOpProvider) InvoiceSummary(ctx context.Context, data InvoiceSummaryData) ([]byte, error) {
	return nil, nil
}

func (NoOpProvider) ComplianceNotice(ctx context.Context, data ComplianceNoticeData) ([]byte, error) {
	return nil, nil
}
