package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateOrganisationRequest struct {
	Name string `json:"name"`
	ABN  string `json:"abn"`
}

type Service interface {
	Create(ctx context.Context, req CreateOrganisationRequest) (Organisation, error)
	Search(ctx context.Context, query string) ([]Organisation, error)
	GetByID(ctx context.Context, id snowflake.ID) (Organisation, error)
	GetByLedgerID(ctx context.Context, ledgerID int64) (Organisation, error)
	AddDelegate(ctx context.Context, orgID snowflake.ID, userID int64, role DelegateRole) error
	RemoveDelegate(ctx context.Context, orgID snowflake.ID, userID int64) error
	IsDelegate(ctx context.Context, orgID snowflake.ID, userID int64) (bool, error)
}

var (
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidABN       = errors.New("invalid_abn")
	ErrInvalidRole      = errors.New("invalid_role")
	ErrAlreadyExists    = errors.New("organisation_already_exists")
	ErrNotFound         = errors.New("organisation_not_found")
	ErrDelegateNotFound = errors.New("delegate_not_found")
)
