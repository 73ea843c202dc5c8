package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type RequirementInput struct {
	Text       string  `json:"text"`
	DueDate    *string `json:"due_date,omitempty"`
	Recurrence *string `json:"recurrence,omitempty"`
}

type IssueApprovalRequest struct {
	ProposalID   snowflake.ID
	HolderOrgID  *snowflake.ID
	HolderIndID  *snowflake.ID
	StartDate    time.Time
	ExpiryDate   time.Time
	Requirements []RequirementInput
}

type Service interface {
	// Issue runs inside the caller's transaction so approval creation and
	// the proposal transition commit or roll back together.
	Issue(ctx context.Context, tx *gorm.DB, req IssueApprovalRequest) (Approval, []Requirement, error)
	GetByID(ctx context.Context, id snowflake.ID) (Approval, error)
	ListByHolder(ctx context.Context, orgID, indID *snowflake.ID) ([]Approval, error)
	ListRequirements(ctx context.Context, approvalID snowflake.ID) ([]Requirement, error)
	Surrender(ctx context.Context, id snowflake.ID) error
	Cancel(ctx context.Context, id snowflake.ID) error
}

var (
	ErrNotFound          = errors.New("approval_not_found")
	ErrInvalidHolder     = errors.New("invalid_approval_holder")
	ErrInvalidTerm       = errors.New("invalid_approval_term")
	ErrInvalidTransition = errors.New("invalid_approval_transition")
)
