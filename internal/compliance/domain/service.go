package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	approvaldomain "github.com/crownlands/tenure/internal/approval/domain"
	"gorm.io/gorm"
)

type ListComplianceRequest struct {
	ApprovalID  *snowflake.ID
	HolderOrgID *snowflake.ID
	HolderIndID *snowflake.ID
	Status      *ProcessingStatus
	Limit       int
	Offset      int
}

type Service interface {
	// GenerateForApproval runs inside the caller's transaction: one
	// compliance per requirement due date over the approval term.
	GenerateForApproval(ctx context.Context, tx *gorm.DB, approval approvaldomain.Approval, requirements []approvaldomain.Requirement) ([]Compliance, error)
	GetByID(ctx context.Context, id snowflake.ID) (Compliance, error)
	List(ctx context.Context, req ListComplianceRequest) ([]Compliance, error)
	Submit(ctx context.Context, id snowflake.ID, text string) error
	Accept(ctx context.Context, id snowflake.ID) error
	RequestAmendment(ctx context.Context, id snowflake.ID, message string) error
	Discard(ctx context.Context, id snowflake.ID) error

	SendReferral(ctx context.Context, complianceID snowflake.ID, referralUserID int64) error
	RemindReferral(ctx context.Context, referralID snowflake.ID) error
	RecallReferral(ctx context.Context, referralID snowflake.ID) error
	CompleteReferral(ctx context.Context, referralID snowflake.ID, comments string) error

	// Scheduler surface. List methods select candidates; each record is
	// then processed and marked in its own transaction.
	ListForRollover(ctx context.Context) ([]Compliance, error)
	MarkDue(ctx context.Context, id snowflake.ID) error
	ListDueForReminder(ctx context.Context) ([]Compliance, error)
	MarkReminderSent(ctx context.Context, id snowflake.ID) error
	ListOverdue(ctx context.Context) ([]Compliance, error)
	MarkOverdueSent(ctx context.Context, id snowflake.ID) error
}

var (
	ErrNotFound          = errors.New("compliance_not_found")
	ErrReferralNotFound  = errors.New("compliance_referral_not_found")
	ErrInvalidTransition = errors.New("invalid_compliance_transition")
	ErrReferralNotOpen   = errors.New("compliance_referral_not_open")
	ErrEmptySubmission   = errors.New("empty_compliance_submission")
)
