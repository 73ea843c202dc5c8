package domain

import "fmt"

// ProcessingStatus is the workflow status of a proposal.
type ProcessingStatus string

const (
	StatusDraft                    ProcessingStatus = "draft"
	StatusAmendmentRequired        ProcessingStatus = "amendment_required"
	StatusWithAssessor             ProcessingStatus = "with_assessor"
	StatusWithAssessorConditions   ProcessingStatus = "with_assessor_conditions"
	StatusWithApprover             ProcessingStatus = "with_approver"
	StatusWithReferral             ProcessingStatus = "with_referral"
	StatusApprovedApplication      ProcessingStatus = "approved_application"
	StatusApprovedEditingInvoicing ProcessingStatus = "approved_editing_invoicing"
	StatusApproved                 ProcessingStatus = "approved"
	StatusDeclined                 ProcessingStatus = "declined"
	StatusDiscarded                ProcessingStatus = "discarded"
)

// transitions is the full status machine. Every status mutation goes
// through CanTransition; the API layer never writes the column directly.
var transitions = map[ProcessingStatus][]ProcessingStatus{
	StatusDraft:                  {StatusWithAssessor, StatusDiscarded},
	StatusAmendmentRequired:      {StatusWithAssessor},
	StatusWithAssessor:           {StatusWithAssessorConditions, StatusWithApprover, StatusWithReferral, StatusAmendmentRequired, StatusDeclined},
	StatusWithAssessorConditions: {StatusWithAssessor, StatusWithApprover, StatusAmendmentRequired, StatusDeclined},
	StatusWithApprover:           {StatusWithAssessor, StatusWithAssessorConditions, StatusApprovedApplication, StatusDeclined},
	StatusWithReferral:           {StatusWithAssessor},
	StatusApprovedApplication:    {StatusApprovedEditingInvoicing},
	StatusApprovedEditingInvoicing: {StatusApproved},
	StatusApproved:  {},
	StatusDeclined:  {},
	StatusDiscarded: {},
}

// switchable is the subset of targets an assessor may jump to directly via
// the switch-status operation. Everything else requires its dedicated
// workflow method.
var switchable = map[ProcessingStatus]bool{
	StatusWithAssessor:           true,
	StatusWithAssessorConditions: true,
	StatusWithApprover:           true,
}

func init() {
	// Every transition target must itself be a known status with an entry
	// in the table; a typo here is a programming error, not a runtime
	// condition.
	for from, targets := range transitions {
		for _, to := range targets {
			if _, ok := transitions[to]; !ok {
				panic(fmt.Sprintf("proposal: transition %s -> %s names an unknown status", from, to))
			}
		}
	}
	for target := range switchable {
		if _, ok := transitions[target]; !ok {
			panic(fmt.Sprintf("proposal: switchable status %s is unknown", target))
		}
	}
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to ProcessingStatus) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Switchable reports whether a status is a legal switch-status target.
func Switchable(to ProcessingStatus) bool {
	return switchable[to]
}

// ApprovedStates lists the statuses that count as approved for guards such
// as competitive-process unlock.
func ApprovedStates() []ProcessingStatus {
	return []ProcessingStatus{StatusApprovedApplication, StatusApprovedEditingInvoicing, StatusApproved}
}

// IsApproved reports whether the status is any approved stage.
func IsApproved(s ProcessingStatus) bool {
	for _, a := range ApprovedStates() {
		if s == a {
			return true
		}
	}
	return false
}
