// Package domain contains approval and requirement models. An approval is
// the licence or lease instrument issued when a proposal is approved; its
// requirements drive generated compliances.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/crownlands/tenure/internal/invoicing/period"
)

type ApprovalStatus string

const (
	ApprovalStatusCurrent     ApprovalStatus = "current"
	ApprovalStatusExpired     ApprovalStatus = "expired"
	ApprovalStatusSurrendered ApprovalStatus = "surrendered"
	ApprovalStatusCancelled   ApprovalStatus = "cancelled"
)

type Approval struct {
	ID              snowflake.ID   `gorm:"primaryKey" json:"id"`
	LodgementNumber string         `gorm:"type:text;not null;uniqueIndex:ux_approvals_lodgement" json:"lodgement_number"`
	ProposalID      snowflake.ID   `gorm:"not null;index" json:"proposal_id"`
	HolderOrgID     *snowflake.ID  `gorm:"index" json:"holder_org_id,omitempty"`
	HolderIndID     *snowflake.ID  `gorm:"index" json:"holder_ind_id,omitempty"`
	Status          ApprovalStatus `gorm:"type:text;not null;default:'current'" json:"status"`
	StartDate       time.Time      `gorm:"not null" json:"start_date"`
	ExpiryDate      time.Time      `gorm:"not null" json:"expiry_date"`
	CreatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Approval) TableName() string { return "approvals" }

// Requirement is a condition attached to an approval. Recurring
// requirements spawn one compliance per due period over the approval term.
type Requirement struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	ApprovalID snowflake.ID      `gorm:"not null;index" json:"approval_id"`
	Text       string            `gorm:"type:text;not null" json:"text"`
	DueDate    *time.Time        `json:"due_date,omitempty"`
	Recurrence *period.Frequency `gorm:"type:text" json:"recurrence,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Requirement) TableName() string { return "approval_requirements" }

// DueDates expands the requirement over the approval term: a one-off
// requirement yields its single due date, a recurring one yields a due date
// per period from the approval start to its expiry.
func (r Requirement) DueDates(a Approval) ([]time.Time, error) {
	if r.Recurrence == nil {
		if r.DueDate == nil {
			return nil, nil
		}
		return []time.Time{*r.DueDate}, nil
	}
	return period.Schedule(a.StartDate, a.ExpiryDate, *r.Recurrence)
}
