// Package domain contains compliance models and the status mapping shown to
// approval holders.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ProcessingStatus is the internal workflow status of a compliance.
type ProcessingStatus string

const (
	ProcessingStatusFuture       ProcessingStatus = "future"
	ProcessingStatusDue          ProcessingStatus = "due"
	ProcessingStatusWithAssessor ProcessingStatus = "with_assessor"
	ProcessingStatusWithReferral ProcessingStatus = "with_referral"
	ProcessingStatusApproved     ProcessingStatus = "approved"
	ProcessingStatusDiscarded    ProcessingStatus = "discarded"
)

// CustomerStatus is the status shown to the approval holder.
type CustomerStatus string

const (
	CustomerStatusFuture       CustomerStatus = "future"
	CustomerStatusDue          CustomerStatus = "due"
	CustomerStatusWithAssessor CustomerStatus = "with_assessor"
	CustomerStatusApproved     CustomerStatus = "approved"
	CustomerStatusDiscarded    CustomerStatus = "discarded"
)

// CustomerStatusFor is the single mapping from processing to customer
// status. The holder only ever sees "under review" while a referral is out,
// so with_referral maps to with_assessor. Both columns are always written
// through this function.
func CustomerStatusFor(p ProcessingStatus) CustomerStatus {
	switch p {
	case ProcessingStatusFuture:
		return CustomerStatusFuture
	case ProcessingStatusDue:
		return CustomerStatusDue
	case ProcessingStatusWithAssessor, ProcessingStatusWithReferral:
		return CustomerStatusWithAssessor
	case ProcessingStatusApproved:
		return CustomerStatusApproved
	case ProcessingStatusDiscarded:
		return CustomerStatusDiscarded
	}
	return CustomerStatus(p)
}

type Compliance struct {
	ID               snowflake.ID     `gorm:"primaryKey" json:"id"`
	LodgementNumber  string           `gorm:"type:text;not null;uniqueIndex:ux_compliances_lodgement" json:"lodgement_number"`
	ApprovalID       snowflake.ID     `gorm:"not null;index" json:"approval_id"`
	RequirementID    snowflake.ID     `gorm:"not null;index" json:"requirement_id"`
	HolderOrgID      *snowflake.ID    `gorm:"index" json:"holder_org_id,omitempty"`
	HolderIndID      *snowflake.ID    `gorm:"index" json:"holder_ind_id,omitempty"`
	Text             string           `gorm:"type:text;not null" json:"text"`
	DueDate          time.Time        `gorm:"not null;index" json:"due_date"`
	ProcessingStatus ProcessingStatus `gorm:"type:text;not null;index" json:"processing_status"`
	CustomerStatus   CustomerStatus   `gorm:"type:text;not null" json:"customer_status"`
	SubmittedAt      *time.Time       `json:"submitted_at,omitempty"`
	ReminderSentAt   *time.Time       `json:"reminder_sent_at,omitempty"`
	OverdueSentAt    *time.Time       `json:"overdue_sent_at,omitempty"`
	CreatedAt        time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Compliance) TableName() string { return "compliances" }

// DueForReminder reports whether a due-soon reminder should go out: the
// compliance is still open, inside the lead window, and no reminder has
// been sent yet.
func DueForReminder(c Compliance, now time.Time, lead time.Duration) bool {
	switch c.ProcessingStatus {
	case ProcessingStatusFuture, ProcessingStatusDue:
	default:
		return false
	}
	if c.ReminderSentAt != nil {
		return false
	}
	return !now.Before(c.DueDate.Add(-lead)) && now.Before(c.DueDate)
}

// Overdue reports whether an overdue notice should go out.
func Overdue(c Compliance, now time.Time) bool {
	switch c.ProcessingStatus {
	case ProcessingStatusFuture, ProcessingStatusDue:
	default:
		return false
	}
	if c.OverdueSentAt != nil {
		return false
	}
	return now.After(c.DueDate)
}

type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusCompleted ReferralStatus = "completed"
	ReferralStatusRecalled  ReferralStatus = "recalled"
)

// Referral is a request for advice from another officer while a compliance
// is under assessment.
type Referral struct {
	ID           snowflake.ID   `gorm:"primaryKey" json:"id"`
	ComplianceID snowflake.ID   `gorm:"not null;index" json:"compliance_id"`
	ReferralID   int64          `gorm:"not null;index" json:"referral_id"`
	Status       ReferralStatus `gorm:"type:text;not null;default:'pending'" json:"status"`
	Comments     string         `gorm:"type:text" json:"comments"`
	SentAt       time.Time      `gorm:"not null" json:"sent_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// TableName sets the database table name.
func (Referral) TableName() string { return "compliance_referrals" }
