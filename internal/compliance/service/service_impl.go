package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	approvaldomain "github.com/crownlands/tenure/internal/approval/domain"
	auditdomain "github.com/crownlands/tenure/internal/audit/domain"
	"github.com/crownlands/tenure/internal/clock"
	compliancedomain "github.com/crownlands/tenure/internal/compliance/domain"
	"github.com/crownlands/tenure/internal/config"
	"github.com/crownlands/tenure/internal/identity"
	"github.com/crownlands/tenure/internal/observability/metrics"
	organizationdomain "github.com/crownlands/tenure/internal/organization/domain"
	"github.com/crownlands/tenure/internal/providers/email"
	"github.com/crownlands/tenure/internal/sequence"
	"github.com/crownlands/tenure/pkg/db/option"
	"github.com/crownlands/tenure/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Issuer        *sequence.Issuer
	Invoicing     *config.InvoicingConfigHolder
	Audit         auditdomain.Service
	Identity      identity.Service
	Organizations organizationdomain.Service
	Notifier      email.Notifier
	Metrics       *metrics.Provider
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	issuer        *sequence.Issuer
	invoicing     *config.InvoicingConfigHolder
	audit         auditdomain.Service
	identity      identity.Service
	organizations organizationdomain.Service
	notifier      email.Notifier
	metrics       *metrics.Provider

	compliancerepo repository.Repository[compliancedomain.Compliance]
	referralrepo   repository.Repository[compliancedomain.Referral]
}

func NewService(p Params) compliancedomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("compliance.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		issuer:        p.Issuer,
		invoicing:     p.Invoicing,
		audit:         p.Audit,
		identity:      p.Identity,
		organizations: p.Organizations,
		notifier:      p.Notifier,
		metrics:       p.Metrics,

		compliancerepo: repository.ProvideStore[compliancedomain.Compliance](p.DB),
		referralrepo:   repository.ProvideStore[compliancedomain.Referral](p.DB),
	}
}

func (s *Service) GenerateForApproval(ctx context.Context, tx *gorm.DB, approval approvaldomain.Approval, requirements []approvaldomain.Requirement) ([]compliancedomain.Compliance, error) {
	now := s.clock.Now()
	prefix := s.invoicing.Get().LodgementPrefixes["compliance"]

	var generated []compliancedomain.Compliance
	for _, req := range requirements {
		dueDates, err := req.DueDates(approval)
		if err != nil {
			return nil, err
		}
		for _, due := range dueDates {
			lodgement, err := s.issuer.Next(ctx, tx, "compliance", prefix)
			if err != nil {
				return nil, err
			}
			status := compliancedomain.ProcessingStatusFuture
			if !due.After(now) {
				status = compliancedomain.ProcessingStatusDue
			}
			c := compliancedomain.Compliance{
				ID:               s.genID.Generate(),
				LodgementNumber:  lodgement,
				ApprovalID:       approval.ID,
				RequirementID:    req.ID,
				HolderOrgID:      approval.HolderOrgID,
				HolderIndID:      approval.HolderIndID,
				Text:             req.Text,
				DueDate:          due,
				ProcessingStatus: status,
				CustomerStatus:   compliancedomain.CustomerStatusFor(status),
			}
			if err := s.compliancerepo.WithTrx(tx).Create(ctx, &c); err != nil {
				return nil, err
			}
			generated = append(generated, c)
		}
	}
	return generated, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (compliancedomain.Compliance, error) {
	c, err := s.compliancerepo.FindOne(ctx, &compliancedomain.Compliance{ID: id})
	if err != nil {
		return compliancedomain.Compliance{}, err
	}
	if c == nil {
		return compliancedomain.Compliance{}, compliancedomain.ErrNotFound
	}
	return *c, nil
}

func (s *Service) List(ctx context.Context, req compliancedomain.ListComplianceRequest) ([]compliancedomain.Compliance, error) {
	query := compliancedomain.Compliance{}
	if req.ApprovalID != nil {
		query.ApprovalID = *req.ApprovalID
	}
	if req.HolderOrgID != nil {
		query.HolderOrgID = req.HolderOrgID
	}
	if req.HolderIndID != nil {
		query.HolderIndID = req.HolderIndID
	}
	if req.Status != nil {
		query.ProcessingStatus = *req.Status
	}

	opts := []option.QueryOption{}
	if req.Limit > 0 {
		opts = append(opts, option.WithLimit(req.Limit), option.WithOffset(req.Offset))
	}
	found, err := s.compliancerepo.Find(ctx, &query, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]compliancedomain.Compliance, 0, len(found))
	for _, c := range found {
		out = append(out, *c)
	}
	return out, nil
}

func (s *Service) Submit(ctx context.Context, id snowflake.ID, text string) error {
	if strings.TrimSpace(text) == "" {
		return compliancedomain.ErrEmptySubmission
	}
	c, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c.ProcessingStatus != compliancedomain.ProcessingStatusDue {
		return compliancedomain.ErrInvalidTransition
	}
	now := s.clock.Now()
	if err := s.applyStatus(ctx, s.db, &c, compliancedomain.ProcessingStatusWithAssessor, map[string]any{
		"text":         text,
		"submitted_at": now,
	}); err != nil {
		return err
	}
	s.auditLog(ctx, c.ID, "compliance_submitted", map[string]any{"lodgement_number": c.LodgementNumber})
	return nil
}

func (s *Service) Accept(ctx context.Context, id snowflake.ID) error {
	c, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	switch c.ProcessingStatus {
	case compliancedomain.ProcessingStatusWithAssessor, compliancedomain.ProcessingStatusWithReferral:
	default:
		return compliancedomain.ErrInvalidTransition
	}
	if err := s.applyStatus(ctx, s.db, &c, compliancedomain.ProcessingStatusApproved, nil); err != nil {
		return err
	}
	s.auditLog(ctx, c.ID, "compliance_accepted", map[string]any{"lodgement_number": c.LodgementNumber})
	s.notifyHolder(ctx, c, email.KindComplianceAccepted, map[string]any{
		"lodgement_number": c.LodgementNumber,
	})
	return nil
}

func (s *Service) RequestAmendment(ctx context.Context, id snowflake.ID, message string) error {
	c, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c.ProcessingStatus != compliancedomain.ProcessingStatusWithAssessor {
		return compliancedomain.ErrInvalidTransition
	}
	if err := s.applyStatus(ctx, s.db, &c, compliancedomain.ProcessingStatusDue, map[string]any{
		"submitted_at": nil,
	}); err != nil {
		return err
	}
	s.auditLog(ctx, c.ID, "compliance_amendment_requested", map[string]any{"message": message})
	s.notifyHolder(ctx, c, email.KindAmendmentRequested, map[string]any{
		"lodgement_number": c.LodgementNumber,
		"message":          message,
	})
	return nil
}

func (s *Service) Discard(ctx context.Context, id snowflake.ID) error {
	c, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c.ProcessingStatus == compliancedomain.ProcessingStatusApproved {
		return compliancedomain.ErrInvalidTransition
	}
	if err := s.applyStatus(ctx, s.db, &c, compliancedomain.ProcessingStatusDiscarded, nil); err != nil {
		return err
	}
	s.auditLog(ctx, c.ID, "compliance_discarded", nil)
	return nil
}

// applyStatus writes both status columns together so the customer view can
// never drift from the processing state.
func (s *Service) applyStatus(ctx context.Context, tx *gorm.DB, c *compliancedomain.Compliance, target compliancedomain.ProcessingStatus, extra map[string]any) error {
	updates := map[string]any{
		"processing_status": target,
		"customer_status":   compliancedomain.CustomerStatusFor(target),
	}
	for k, v := range extra {
		updates[k] = v
	}
	if err := s.compliancerepo.WithTrx(tx).Update(ctx, c.ID.String(), updates); err != nil {
		return err
	}
	s.metrics.IncTransition("compliance", string(c.ProcessingStatus), string(target))
	c.ProcessingStatus = target
	c.CustomerStatus = compliancedomain.CustomerStatusFor(target)
	return nil
}

func (s *Service) auditLog(ctx context.Context, id snowflake.ID, what string, detail map[string]any) {
	if err := s.audit.Log(ctx, "compliance", id.String(), what, detail); err != nil {
		s.log.Warn("action log write failed", zap.String("what", what), zap.Error(err))
	}
}

// notifyHolder emails whichever party holds the approval. Send failures are
// logged, never surfaced to the workflow caller.
func (s *Service) notifyHolder(ctx context.Context, c compliancedomain.Compliance, kind email.Kind, fields map[string]any) {
	to, err := s.holderEmail(ctx, c)
	if err != nil || to == "" {
		s.log.Warn("holder email unresolved, notification skipped",
			zap.String("lodgement_number", c.LodgementNumber), zap.Error(err))
		return
	}
	if err := s.notifier.Send(ctx, email.Message{
		To:      []string{to},
		Kind:    kind,
		Context: fields,
	}); err != nil {
		s.log.Warn("notification send failed",
			zap.String("kind", string(kind)),
			zap.String("lodgement_number", c.LodgementNumber),
			zap.Error(err))
	}
}

func (s *Service) holderEmail(ctx context.Context, c compliancedomain.Compliance) (string, error) {
	if c.HolderOrgID != nil {
		org, err := s.organizations.GetByID(ctx, *c.HolderOrgID)
		if err != nil {
			return "", err
		}
		return org.Email, nil
	}
	if c.HolderIndID != nil {
		user, err := s.identity.RetrieveEmailUser(ctx, int64(*c.HolderIndID))
		if err != nil {
			return "", err
		}
		return user.Email, nil
	}
	return "", nil
}
