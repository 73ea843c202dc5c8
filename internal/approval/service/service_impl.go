package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	approvaldomain "github.com/crownlands/tenure/internal/approval/domain"
	"github.com/crownlands/tenure/internal/config"
	"github.com/crownlands/tenure/internal/invoicing/period"
	"github.com/crownlands/tenure/internal/sequence"
	"github.com/crownlands/tenure/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Issuer    *sequence.Issuer
	Invoicing *config.InvoicingConfigHolder
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	issuer    *sequence.Issuer
	invoicing *config.InvoicingConfigHolder

	approvalrepo    repository.Repository[approvaldomain.Approval]
	requirementrepo repository.Repository[approvaldomain.Requirement]
}

func NewService(p Params) approvaldomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("approval.service"),
		genID:     p.GenID,
		issuer:    p.Issuer,
		invoicing: p.Invoicing,

		approvalrepo:    repository.ProvideStore[approvaldomain.Approval](p.DB),
		requirementrepo: repository.ProvideStore[approvaldomain.Requirement](p.DB),
	}
}

func (s *Service) Issue(ctx context.Context, tx *gorm.DB, req approvaldomain.IssueApprovalRequest) (approvaldomain.Approval, []approvaldomain.Requirement, error) {
	if (req.HolderOrgID == nil) == (req.HolderIndID == nil) {
		return approvaldomain.Approval{}, nil, approvaldomain.ErrInvalidHolder
	}
	if !req.ExpiryDate.After(req.StartDate) {
		return approvaldomain.Approval{}, nil, approvaldomain.ErrInvalidTerm
	}

	prefix := s.invoicing.Get().LodgementPrefixes["approval"]
	lodgement, err := s.issuer.Next(ctx, tx, "approval", prefix)
	if err != nil {
		return approvaldomain.Approval{}, nil, err
	}

	approval := approvaldomain.Approval{
		ID:              s.genID.Generate(),
		LodgementNumber: lodgement,
		ProposalID:      req.ProposalID,
		HolderOrgID:     req.HolderOrgID,
		HolderIndID:     req.HolderIndID,
		Status:          approvaldomain.ApprovalStatusCurrent,
		StartDate:       req.StartDate,
		ExpiryDate:      req.ExpiryDate,
	}
	if err := s.approvalrepo.WithTrx(tx).Create(ctx, &approval); err != nil {
		return approvaldomain.Approval{}, nil, err
	}

	requirements := make([]*approvaldomain.Requirement, 0, len(req.Requirements))
	for _, in := range req.Requirements {
		r := approvaldomain.Requirement{
			ID:         s.genID.Generate(),
			ApprovalID: approval.ID,
			Text:       in.Text,
		}
		if in.DueDate != nil {
			due, err := time.Parse(time.DateOnly, *in.DueDate)
			if err != nil {
				return approvaldomain.Approval{}, nil, err
			}
			r.DueDate = &due
		}
		if in.Recurrence != nil {
			freq := period.Frequency(*in.Recurrence)
			switch freq {
			case period.FrequencyAnnual, period.FrequencyQuarterly, period.FrequencyMonthly:
			default:
				return approvaldomain.Approval{}, nil, period.ErrInvalidFrequency
			}
			r.Recurrence = &freq
		}
		requirements = append(requirements, &r)
	}
	if len(requirements) > 0 {
		if err := s.requirementrepo.WithTrx(tx).BatchCreate(ctx, requirements); err != nil {
			return approvaldomain.Approval{}, nil, err
		}
	}

	out := make([]approvaldomain.Requirement, 0, len(requirements))
	for _, r := range requirements {
		out = append(out, *r)
	}
	s.log.Info("approval issued",
		zap.String("lodgement_number", approval.LodgementNumber),
		zap.Int64("proposal_id", int64(approval.ProposalID)),
		zap.Int("requirements", len(out)))
	return approval, out, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (approvaldomain.Approval, error) {
	approval, err := s.approvalrepo.FindOne(ctx, &approvaldomain.Approval{ID: id})
	if err != nil {
		return approvaldomain.Approval{}, err
	}
	if approval == nil {
		return approvaldomain.Approval{}, approvaldomain.ErrNotFound
	}
	return *approval, nil
}

func (s *Service) ListByHolder(ctx context.Context, orgID, indID *snowflake.ID) ([]approvaldomain.Approval, error) {
	query := approvaldomain.Approval{}
	if orgID != nil {
		query.HolderOrgID = orgID
	}
	if indID != nil {
		query.HolderIndID = indID
	}
	found, err := s.approvalrepo.Find(ctx, &query)
	if err != nil {
		return nil, err
	}
	out := make([]approvaldomain.Approval, 0, len(found))
	for _, a := range found {
		out = append(out, *a)
	}
	return out, nil
}

func (s *Service) ListRequirements(ctx context.Context, approvalID snowflake.ID) ([]approvaldomain.Requirement, error) {
	found, err := s.requirementrepo.Find(ctx, &approvaldomain.Requirement{ApprovalID: approvalID})
	if err != nil {
		return nil, err
	}
	out := make([]approvaldomain.Requirement, 0, len(found))
	for _, r := range found {
		out = append(out, *r)
	}
	return out, nil
}

func (s *Service) Surrender(ctx context.Context, id snowflake.ID) error {
	return s.transition(ctx, id, approvaldomain.ApprovalStatusSurrendered)
}

func (s *Service) Cancel(ctx context.Context, id snowflake.ID) error {
	return s.transition(ctx, id, approvaldomain.ApprovalStatusCancelled)
}

func (s *Service) transition(ctx context.Context, id snowflake.ID, target approvaldomain.ApprovalStatus) error {
	approval, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if approval.Status != approvaldomain.ApprovalStatusCurrent {
		return approvaldomain.ErrInvalidTransition
	}
	return s.approvalrepo.Update(ctx, approval.ID.String(), map[string]any{"status": target})
}
