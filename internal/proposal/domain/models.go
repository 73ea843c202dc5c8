// Package domain contains the proposal model, its processing status
// machine and the referral sub-entities.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Proposal struct {
	ID                              snowflake.ID     `gorm:"primaryKey" json:"id"`
	LodgementNumber                 *string          `gorm:"type:text;uniqueIndex:ux_proposals_lodgement" json:"lodgement_number,omitempty"`
	ProcessingStatus                ProcessingStatus `gorm:"type:text;not null;index" json:"processing_status"`
	OrgApplicantID                  *snowflake.ID    `gorm:"index" json:"org_applicant_id,omitempty"`
	IndApplicantID                  *snowflake.ID    `gorm:"index" json:"ind_applicant_id,omitempty"`
	SubmitterID                     int64            `gorm:"not null" json:"submitter_id"`
	AssignedOfficerID               *int64           `gorm:"index" json:"assigned_officer_id,omitempty"`
	ApproverID                      *int64           `json:"approver_id,omitempty"`
	Details                         string           `gorm:"type:text" json:"details"`
	Geometry                        datatypes.JSON   `json:"geometry,omitempty"`
	OriginatingCompetitiveProcessID *snowflake.ID    `gorm:"index" json:"originating_competitive_process_id,omitempty"`
	LodgedAt                        *time.Time       `json:"lodged_at,omitempty"`
	CreatedAt                       time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt                       time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Proposal) TableName() string { return "proposals" }

// HasOneApplicant reports the applicant invariant: exactly one of the
// organisation or individual applicant is set.
func (p Proposal) HasOneApplicant() bool {
	return (p.OrgApplicantID == nil) != (p.IndApplicantID == nil)
}

type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusCompleted ReferralStatus = "completed"
	ReferralStatusRecalled  ReferralStatus = "recalled"
)

// Referral is a request for advice from another reviewer while a proposal
// is under assessment.
type Referral struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	ProposalID  snowflake.ID   `gorm:"not null;index" json:"proposal_id"`
	ReferralID  int64          `gorm:"not null;index" json:"referral_id"`
	Status      ReferralStatus `gorm:"type:text;not null;default:'pending'" json:"status"`
	Comments    string         `gorm:"type:text" json:"comments"`
	SentAt      time.Time      `gorm:"not null" json:"sent_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// TableName sets the database table name.
func (Referral) TableName() string { return "proposal_referrals" }
