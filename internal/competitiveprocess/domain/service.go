package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type CreateProcessRequest struct {
	DetailsText string
	Geometry    datatypes.JSON
}

type AddPartyRequest struct {
	PersonID *snowflake.ID
	OrgID    *snowflake.ID
}

type Service interface {
	Create(ctx context.Context, req CreateProcessRequest) (CompetitiveProcess, error)
	GetByID(ctx context.Context, id snowflake.ID) (CompetitiveProcess, error)
	List(ctx context.Context, status *Status, limit, offset int) ([]CompetitiveProcess, error)
	AddParty(ctx context.Context, processID snowflake.ID, req AddPartyRequest) (Party, error)
	ListParties(ctx context.Context, processID snowflake.ID) ([]Party, error)
	SetWinner(ctx context.Context, processID, partyID snowflake.ID) error
	Complete(ctx context.Context, processID snowflake.ID) (CompetitiveProcess, error)
	Discard(ctx context.Context, processID snowflake.ID) error
	Unlock(ctx context.Context, processID snowflake.ID) (CompetitiveProcess, error)
}

var (
	ErrNotFound          = errors.New("competitive_process_not_found")
	ErrPartyNotFound     = errors.New("party_not_found")
	ErrInvalidParty      = errors.New("invalid_party")
	ErrNotInProgress     = errors.New("competitive_process_not_in_progress")
	ErrNotCompleted      = errors.New("competitive_process_not_completed")
	ErrGeneratedApproved = errors.New("generated_proposal_already_approved")
	ErrInvalidTransition = errors.New("invalid_competitive_process_transition")
)
