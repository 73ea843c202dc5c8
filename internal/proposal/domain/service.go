package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	approvaldomain "github.com/crownlands/tenure/internal/approval/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CreateProposalRequest struct {
	OrgApplicantID *snowflake.ID
	IndApplicantID *snowflake.ID
	SubmitterID    int64
	Details        string
	Geometry       datatypes.JSON
}

// GeneratedProposalRequest creates a proposal on behalf of a competitive
// process winner, inside the caller's transaction.
type GeneratedProposalRequest struct {
	CreateProposalRequest
	OriginatingCompetitiveProcessID snowflake.ID
}

type ApproveProposalRequest struct {
	StartDate    time.Time
	ExpiryDate   time.Time
	Requirements []approvaldomain.RequirementInput
}

type ListProposalRequest struct {
	Status         *ProcessingStatus
	OrgApplicantID *snowflake.ID
	IndApplicantID *snowflake.ID
	Limit          int
	Offset         int
}

type Service interface {
	Create(ctx context.Context, req CreateProposalRequest) (Proposal, error)
	CreateGenerated(ctx context.Context, tx *gorm.DB, req GeneratedProposalRequest) (Proposal, error)
	GetByID(ctx context.Context, id snowflake.ID) (Proposal, error)
	List(ctx context.Context, req ListProposalRequest) ([]Proposal, error)

	Submit(ctx context.Context, id snowflake.ID) (Proposal, error)
	AssignOfficer(ctx context.Context, id snowflake.ID, officerID int64) error
	UnassignOfficer(ctx context.Context, id snowflake.ID) error
	SwitchStatus(ctx context.Context, id snowflake.ID, target ProcessingStatus) error
	RequestAmendment(ctx context.Context, id snowflake.ID, message string) error
	Resubmit(ctx context.Context, id snowflake.ID) error
	Approve(ctx context.Context, id snowflake.ID, req ApproveProposalRequest) (approvaldomain.Approval, error)
	Decline(ctx context.Context, id snowflake.ID, reason string) error
	BeginInvoicing(ctx context.Context, id snowflake.ID) error
	FinalizeInvoicing(ctx context.Context, id snowflake.ID) error
	Discard(ctx context.Context, id snowflake.ID) error
	// DiscardGenerated discards inside the caller's transaction, used by
	// competitive-process unlock.
	DiscardGenerated(ctx context.Context, tx *gorm.DB, id snowflake.ID) error

	SendReferral(ctx context.Context, proposalID snowflake.ID, referralUserID int64) error
	RemindReferral(ctx context.Context, referralID snowflake.ID) error
	RecallReferral(ctx context.Context, referralID snowflake.ID) error
	CompleteReferral(ctx context.Context, referralID snowflake.ID, comments string) error
}

var (
	ErrNotFound          = errors.New("proposal_not_found")
	ErrInvalidApplicant  = errors.New("invalid_proposal_applicant")
	ErrInvalidTransition = errors.New("invalid_proposal_transition")
	ErrNotSwitchable     = errors.New("status_not_switchable")
	ErrReferralNotFound  = errors.New("proposal_referral_not_found")
	ErrReferralNotOpen   = errors.New("proposal_referral_not_open")
	ErrNoAssignedOfficer = errors.New("no_assigned_officer")
)
