package domain

import (
	"context"
	"errors"
)

type ListActionLogRequest struct {
	TargetType string
	TargetID   string
	Limit      int
}

type Service interface {
	Log(ctx context.Context, targetType, targetID, what string, detail map[string]any) error
	List(ctx context.Context, req ListActionLogRequest) ([]ActionLog, error)
}

var (
	ErrInvalidAction = errors.New("invalid_action")
	ErrInvalidTarget = errors.New("invalid_target")
)
