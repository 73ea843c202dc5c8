package email

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// senderContexts mirrors the context each workflow sender supplies for its
// notification kind.
var senderContexts = map[Kind]map[string]any{
	KindProposalSubmitted:  {"lodgement_number": "A0000001"},
	KindProposalApproved:   {"lodgement_number": "A0000001", "approval_number": "L0000001", "expiry_date": "2032-06-30"},
	KindProposalDeclined:   {"lodgement_number": "A0000001", "reason": "insufficient detail"},
	KindAmendmentRequested: {"lodgement_number": "A0000001", "message": "boundary map missing"},
	KindReferralSent:       {"lodgement_number": "A0000001", "first_name": "Dana"},
	KindReferralReminder:   {"lodgement_number": "A0000001", "first_name": "Dana"},
	KindReferralRecalled:   {"lodgement_number": "A0000001"},
	KindReferralsCompleted: {"lodgement_number": "A0000001", "first_name": "Dana"},
	KindWinnerNotification: {"name": "Dana Park", "process_number": "CP0000001", "lodgement_number": "A0000002"},
	KindComplianceReminder: {"name": "Dana Park", "lodgement_number": "C0000001", "due_date": "2030-09-30"},
	KindComplianceOverdue:  {"name": "Dana Park", "lodgement_number": "C0000001", "due_date": "2030-09-30"},
	KindComplianceAccepted: {"lodgement_number": "C0000001"},
	KindInvoiceDueReminder: {"name": "Dana Park", "lodgement_number": "I0000001", "amount": "1500.00", "due_date": "2030-09-30"},
	KindJobFailureSummary:  {"run_at": "2030-05-01T08:00:00Z", "count": 2, "failures": []string{"compliance_reminders C0000001: user not found", "invoice_reminders I0000002: timeout"}},
}

func TestSubjectsRenderFromSenderContexts(t *testing.T) {
	for kind, tmpl := range subjects {
		data, ok := senderContexts[kind]
		require.True(t, ok, "no sender context for kind %s", kind)

		subject, err := renderString(tmpl, data)
		require.NoError(t, err, kind)
		assert.NotContains(t, subject, "<no value>", kind)
	}
}

func TestBodiesRenderFromSenderContexts(t *testing.T) {
	n, err := NewSMTP(Config{Host: "localhost", Port: 25, From: "noreply@lands.example"})
	require.NoError(t, err)

	for kind, data := range senderContexts {
		var body bytes.Buffer
		require.NoError(t, n.templates.ExecuteTemplate(&body, string(kind)+".html", data), kind)
		assert.NotContains(t, body.String(), "<no value>", kind)
	}
}

func TestFailureSummarySubjectCarriesCount(t *testing.T) {
	subject, err := renderString(subjects[KindJobFailureSummary], senderContexts[KindJobFailureSummary])
	require.NoError(t, err)
	assert.Contains(t, subject, "2")
}
