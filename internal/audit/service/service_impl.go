package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/crownlands/tenure/internal/audit/domain"
	"github.com/crownlands/tenure/internal/observability/obsctx"
	"github.com/crownlands/tenure/pkg/db/option"
	"github.com/crownlands/tenure/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  repository.Repository[auditdomain.ActionLog]
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  repository.ProvideStore[auditdomain.ActionLog](p.DB),
	}
}

func (s *Service) Log(ctx context.Context, targetType, targetID, what string, detail map[string]any) error {
	what = strings.TrimSpace(what)
	if what == "" {
		return auditdomain.ErrInvalidAction
	}
	targetType = strings.TrimSpace(targetType)
	targetID = strings.TrimSpace(targetID)
	if targetType == "" || targetID == "" {
		return auditdomain.ErrInvalidTarget
	}

	actorType, actorID := obsctx.ActorFromContext(ctx)
	if actorType == "" {
		actorType = "system"
	}

	payload := datatypes.JSONMap{}
	for key, value := range detail {
		if key == "" {
			continue
		}
		payload[key] = value
	}
	if requestID := obsctx.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}

	entry := auditdomain.ActionLog{
		ID:         s.genID.Generate(),
		TargetType: targetType,
		TargetID:   targetID,
		ActorType:  actorType,
		ActorID:    actorID,
		What:       what,
		Detail:     payload,
	}

	if err := s.repo.Create(ctx, &entry); err != nil {
		// The action log must never fail the workflow it records.
		s.log.Error("action log write failed",
			zap.String("target_type", targetType),
			zap.String("target_id", targetID),
			zap.String("what", what),
			zap.Error(err),
		)
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListActionLogRequest) ([]auditdomain.ActionLog, error) {
	filter := &auditdomain.ActionLog{
		TargetType: strings.TrimSpace(req.TargetType),
		TargetID:   strings.TrimSpace(req.TargetID),
	}
	if filter.TargetType == "" || filter.TargetID == "" {
		return nil, auditdomain.ErrInvalidTarget
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}

	items, err := s.repo.Find(ctx, filter,
		option.WithSortBy(option.QuerySortBy{Field: "created_at", Desc: true, Allow: map[string]bool{"created_at": true}}),
		option.WithLimit(limit),
	)
	if err != nil {
		return nil, err
	}

	logs := make([]auditdomain.ActionLog, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}
	return logs, nil
}
