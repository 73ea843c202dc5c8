// Package email sends workflow notifications. One template-driven notifier
// covers every notification kind; business logic never waits on delivery.
package email

import (
	"context"
	"errors"
)

// Kind identifies a notification template.
type Kind string

const (
	KindProposalSubmitted  Kind = "proposal_submitted"
	KindProposalApproved   Kind = "proposal_approved"
	KindProposalDeclined   Kind = "proposal_declined"
	KindAmendmentRequested Kind = "amendment_requested"
	KindReferralSent       Kind = "referral_sent"
	KindReferralReminder   Kind = "referral_reminder"
	KindReferralRecalled   Kind = "referral_recalled"
	KindReferralsCompleted Kind = "referrals_completed"
	KindWinnerNotification Kind = "winner_notification"
	KindComplianceReminder Kind = "compliance_due_reminder"
	KindComplianceOverdue  Kind = "compliance_overdue"
	KindComplianceAccepted Kind = "compliance_accepted"
	KindInvoiceDueReminder Kind = "invoice_due_reminder"
	KindJobFailureSummary  Kind = "job_failure_summary"
)

// Attachment is an opaque file produced elsewhere (PDF letters, invoices).
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is one outbound notification.
type Message struct {
	To          []string
	Cc          []string
	Bcc         []string
	Kind        Kind
	Context     map[string]any
	Attachments []Attachment
}

// Notifier dispatches notifications. Implementations log failures; callers
// treat dispatch as fire-and-forget for business correctness.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

var (
	ErrNoRecipients = errors.New("no_recipients")
	ErrUnknownKind  = errors.New("unknown_notification_kind")
)

// NoOpNotifier drops every message, used when SMTP is not configured.
type NoOpNotifier struct{}

func (NoOpNotifier) Send(ctx context.Context, msg Message) error { return nil }
