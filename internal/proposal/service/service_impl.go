package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	approvaldomain "github.com/crownlands/tenure/internal/approval/domain"
	auditdomain "github.com/crownlands/tenure/internal/audit/domain"
	"github.com/crownlands/tenure/internal/clock"
	compliancedomain "github.com/crownlands/tenure/internal/compliance/domain"
	"github.com/crownlands/tenure/internal/config"
	"github.com/crownlands/tenure/internal/identity"
	"github.com/crownlands/tenure/internal/observability/metrics"
	organizationdomain "github.com/crownlands/tenure/internal/organization/domain"
	proposaldomain "github.com/crownlands/tenure/internal/proposal/domain"
	"github.com/crownlands/tenure/internal/providers/email"
	"github.com/crownlands/tenure/internal/providers/pdf"
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
	Approvals     approvaldomain.Service
	Compliances   compliancedomain.Service
	Notifier      email.Notifier
	PDF           pdf.Provider
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
	approvals     approvaldomain.Service
	compliances   compliancedomain.Service
	notifier      email.Notifier
	pdf           pdf.Provider
	metrics       *metrics.Provider

	proposalrepo repository.Repository[proposaldomain.Proposal]
	referralrepo repository.Repository[proposaldomain.Referral]
}

func NewService(p Params) proposaldomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("proposal.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		issuer:        p.Issuer,
		invoicing:     p.Invoicing,
		audit:         p.Audit,
		identity:      p.Identity,
		organizations: p.Organizations,
		approvals:     p.Approvals,
		compliances:   p.Compliances,
		notifier:      p.Notifier,
		pdf:           p.PDF,
		metrics:       p.Metrics,

		proposalrepo: repository.ProvideStore[proposaldomain.Proposal](p.DB),
		referralrepo: repository.ProvideStore[proposaldomain.Referral](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req proposaldomain.CreateProposalRequest) (proposaldomain.Proposal, error) {
	proposal := proposaldomain.Proposal{
		ID:               s.genID.Generate(),
		ProcessingStatus: proposaldomain.StatusDraft,
		OrgApplicantID:   req.OrgApplicantID,
		IndApplicantID:   req.IndApplicantID,
		SubmitterID:      req.SubmitterID,
		Details:          req.Details,
		Geometry:         req.Geometry,
	}
	if !proposal.HasOneApplicant() {
		return proposaldomain.Proposal{}, proposaldomain.ErrInvalidApplicant
	}
	if err := s.proposalrepo.Create(ctx, &proposal); err != nil {
		return proposaldomain.Proposal{}, err
	}
	s.auditLog(ctx, proposal.ID, "proposal_created", nil)
	return proposal, nil
}

// CreateGenerated builds the winner's proposal during competitive-process
// completion. It lodges immediately: the lodgement number is issued in the
// caller's transaction so completion and numbering commit together.
func (s *Service) CreateGenerated(ctx context.Context, tx *gorm.DB, req proposaldomain.GeneratedProposalRequest) (proposaldomain.Proposal, error) {
	originating := req.OriginatingCompetitiveProcessID
	now := s.clock.Now()
	proposal := proposaldomain.Proposal{
		ID:                              s.genID.Generate(),
		ProcessingStatus:                proposaldomain.StatusWithAssessor,
		OrgApplicantID:                  req.OrgApplicantID,
		IndApplicantID:                  req.IndApplicantID,
		SubmitterID:                     req.SubmitterID,
		Details:                         req.Details,
		Geometry:                        req.Geometry,
		OriginatingCompetitiveProcessID: &originating,
		LodgedAt:                        &now,
	}
	if !proposal.HasOneApplicant() {
		return proposaldomain.Proposal{}, proposaldomain.ErrInvalidApplicant
	}

	lodgement, err := s.issuer.Next(ctx, tx, "proposal", s.invoicing.Get().LodgementPrefixes["proposal"])
	if err != nil {
		return proposaldomain.Proposal{}, err
	}
	proposal.LodgementNumber = &lodgement

	if err := s.proposalrepo.WithTrx(tx).Create(ctx, &proposal); err != nil {
		return proposaldomain.Proposal{}, err
	}
	s.auditLog(ctx, proposal.ID, "proposal_generated", map[string]any{
		"competitive_process_id": originating.String(),
		"lodgement_number":       lodgement,
	})
	return proposal, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (proposaldomain.Proposal, error) {
	proposal, err := s.proposalrepo.FindOne(ctx, &proposaldomain.Proposal{ID: id})
	if err != nil {
		return proposaldomain.Proposal{}, err
	}
	if proposal == nil {
		return proposaldomain.Proposal{}, proposaldomain.ErrNotFound
	}
	return *proposal, nil
}

func (s *Service) List(ctx context.Context, req proposaldomain.ListProposalRequest) ([]proposaldomain.Proposal, error) {
	query := proposaldomain.Proposal{}
	if req.Status != nil {
		query.ProcessingStatus = *req.Status
	}
	if req.OrgApplicantID != nil {
		query.OrgApplicantID = req.OrgApplicantID
	}
	if req.IndApplicantID != nil {
		query.IndApplicantID = req.IndApplicantID
	}
	opts := []option.QueryOption{}
	if req.Limit > 0 {
		opts = append(opts, option.WithLimit(req.Limit), option.WithOffset(req.Offset))
	}
	found, err := s.proposalrepo.Find(ctx, &query, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]proposaldomain.Proposal, 0, len(found))
	for _, p := range found {
		out = append(out, *p)
	}
	return out, nil
}

func (s *Service) Submit(ctx context.Context, id snowflake.ID) (proposaldomain.Proposal, error) {
	now := s.clock.Now()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// The draft check happens under a row lock so that concurrent
		// submits cannot both pass it and each consume a lodgement number.
		locked, err := s.proposalrepo.WithTrx(tx).FindOne(ctx, &proposaldomain.Proposal{ID: id}, option.WithLockForUpdate())
		if err != nil {
			return err
		}
		if locked == nil {
			return proposaldomain.ErrNotFound
		}
		proposal := *locked
		if proposal.ProcessingStatus != proposaldomain.StatusDraft {
			return proposaldomain.ErrInvalidTransition
		}

		updates := map[string]any{"lodged_at": now}
		if proposal.LodgementNumber == nil {
			lodgement, err := s.issuer.Next(ctx, tx, "proposal", s.invoicing.Get().LodgementPrefixes["proposal"])
			if err != nil {
				return err
			}
			updates["lodgement_number"] = lodgement
		}
		return s.applyStatus(ctx, tx, &proposal, proposaldomain.StatusWithAssessor, updates)
	})
	if err != nil {
		return proposaldomain.Proposal{}, err
	}

	proposal, err := s.GetByID(ctx, id)
	if err != nil {
		return proposaldomain.Proposal{}, err
	}
	s.auditLog(ctx, proposal.ID, "proposal_submitted", map[string]any{
		"lodgement_number": deref(proposal.LodgementNumber),
	})
	s.notifySubmitter(ctx, proposal, email.KindProposalSubmitted, map[string]any{
		"lodgement_number": deref(proposal.LodgementNumber),
	}, nil)
	return proposal, nil
}

func (s *Service) AssignOfficer(ctx context.Context, id snowflake.ID, officerID int64) error {
	proposal, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.identity.RetrieveEmailUser(ctx, officerID); err != nil {
		return err
	}
	if err := s.proposalrepo.Update(ctx, proposal.ID.String(), map[string]any{"assigned_officer_id": officerID}); err != nil {
		return err
	}
	s.auditLog(ctx, proposal.ID, "officer_assigned", map[string]any{"officer_id": officerID})
	return nil
}

func (s *Service) UnassignOfficer(ctx context.Context, id snowflake.ID) error {
	proposal, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.proposalrepo.Update(ctx, proposal.ID.String(), map[string]any{"assigned_officer_id": nil}); err != nil {
		return err
	}
	s.auditLog(ctx, proposal.ID, "officer_unassigned", nil)
	return nil
}

func (s *Service) SwitchStatus(ctx context.Context, id snowflake.ID, target proposaldomain.ProcessingStatus) error {
	if !proposaldomain.Switchable(target) {
		return proposaldomain.ErrNotSwitchable
	}
	proposal, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.applyStatus(ctx, s.db, &proposal, target, nil); err != nil {
		return err
	}
	s.auditLog(ctx, proposal.ID, "status_switched", map[string]any{"target": string(target)})
	return nil
}

func (s *Service) RequestAmendment(ctx context.Context, id snowflake.ID, message string) error {
	proposal, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.applyStatus(ctx, s.db, &proposal, proposaldomain.StatusAmendmentRequired, nil); err != nil {
		return err
	}
	s.auditLog(ctx, proposal.ID, "amendment_requested", map[string]any{"message": message})
	s.notifyApplicant(ctx, proposal, email.KindAmendmentRequested, map[string]any{
		"lodgement_number": deref(proposal.LodgementNumber),
		"message":          message,
	}, nil)
	return nil
}

func (s *Service) Resubmit(ctx context.Context, id snowflake.ID) error {
	proposal, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if proposal.ProcessingStatus != proposaldomain.StatusAmendmentRequired {
		return proposaldomain.ErrInvalidTransition
	}
	if err := s.applyStatus(ctx, s.db, &proposal, proposaldomain.StatusWithAssessor, nil); err != nil {
		return err
	}
	s.auditLog(ctx, proposal.ID, "proposal_resubmitted", nil)
	return nil
}

func (s *Service) Approve(ctx context.Context, id snowflake.ID, req proposaldomain.ApproveProposalRequest) (approvaldomain.Approval, error) {
	proposal, err := s.GetByID(ctx, id)
	if err != nil {
		return approvaldomain.Approval{}, err
	}
	if proposal.ProcessingStatus != proposaldomain.StatusWithApprover {
		return approvaldomain.Approval{}, proposaldomain.ErrInvalidTransition
	}

	var (
		approval     approvaldomain.Approval
		requirements []approvaldomain.Requirement
	)
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.applyStatus(ctx, tx, &proposal, proposaldomain.StatusApprovedApplication, nil); err != nil {
			return err
		}
		approval, requirements, err = s.approvals.Issue(ctx, tx, approvaldomain.IssueApprovalRequest{
			ProposalID:   proposal.ID,
			HolderOrgID:  proposal.OrgApplicantID,
			HolderIndID:  proposal.IndApplicantID,
			StartDate:    req.StartDate,
			ExpiryDate:   req.ExpiryDate,
			Requirements: req.Requirements,
		})
		if err != nil {
			return err
		}
		_, err = s.compliances.GenerateForApproval(ctx, tx, approval, requirements)
		return err
	})
	if err != nil {
		return approvaldomain.Approval{}, err
	}

	s.auditLog(ctx, proposal.ID, "proposal_approved", map[string]any{
		"approval_number": approval.LodgementNumber,
	})

	letter := s.approvalLetter(ctx, proposal, approval, requirements)
	s.notifyApplicant(ctx, proposal, email.KindProposalApproved, map[string]any{
		"lodgement_number": deref(proposal.LodgementNumber),
		"approval_number":  approval.LodgementNumber,
		"expiry_date":      approval.ExpiryDate.Format(time.DateOnly),
	}, letter)
	return approval, nil
}

func (s *Service) Decline(ctx context.Context, id snowflake.ID, reason string) error {
	proposal, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.applyStatus(ctx, s.db, &proposal, proposaldomain.StatusDeclined, nil); err != nil {
		return err
	}
	s.auditLog(ctx, proposal.ID, "proposal_declined", map[string]any{"reason": reason})
	s.notifyApplicant(ctx, proposal, email.KindProposalDeclined, map[string]any{
		"lodgement_number": deref(proposal.LodgementNumber),
		"reason":           reason,
	}, nil)
	return nil
}

func (s *Service) BeginInvoicing(ctx context.Context, id snowflake.ID) error {
	return s.simpleTransition(ctx, id, proposaldomain.StatusApprovedEditingInvoicing, "invoicing_editing_started")
}

func (s *Service) FinalizeInvoicing(ctx context.Context, id snowflake.ID) error {
	return s.simpleTransition(ctx, id, proposaldomain.StatusApproved, "invoicing_finalized")
}

func (s *Service) Discard(ctx context.Context, id snowflake.ID) error {
	proposal, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if proposal.ProcessingStatus != proposaldomain.StatusDraft {
		return proposaldomain.ErrInvalidTransition
	}
	if err := s.applyStatus(ctx, s.db, &proposal, proposaldomain.StatusDiscarded, nil); err != nil {
		return err
	}
	s.auditLog(ctx, proposal.ID, "proposal_discarded", nil)
	return nil
}

// DiscardGenerated bypasses the draft-only guard: a competitive-process
// unlock discards the winner's lodged proposal regardless of where it sits,
// short of approval, which the caller has already checked.
func (s *Service) DiscardGenerated(ctx context.Context, tx *gorm.DB, id snowflake.ID) error {
	proposal, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if proposaldomain.IsApproved(proposal.ProcessingStatus) {
		return proposaldomain.ErrInvalidTransition
	}
	if err := s.proposalrepo.WithTrx(tx).Update(ctx, proposal.ID.String(), map[string]any{
		"processing_status": proposaldomain.StatusDiscarded,
	}); err != nil {
		return err
	}
	s.metrics.IncTransition("proposal", string(proposal.ProcessingStatus), string(proposaldomain.StatusDiscarded))
	s.auditLog(ctx, proposal.ID, "proposal_discarded", map[string]any{"cause": "competitive_process_unlock"})
	return nil
}

func (s *Service) simpleTransition(ctx context.Context, id snowflake.ID, target proposaldomain.ProcessingStatus, what string) error {
	proposal, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.applyStatus(ctx, s.db, &proposal, target, nil); err != nil {
		return err
	}
	s.auditLog(ctx, proposal.ID, what, nil)
	return nil
}

// applyStatus validates the move against the transition table and writes
// the status plus any extra columns.
func (s *Service) applyStatus(ctx context.Context, tx *gorm.DB, proposal *proposaldomain.Proposal, target proposaldomain.ProcessingStatus, extra map[string]any) error {
	if !proposaldomain.CanTransition(proposal.ProcessingStatus, target) {
		return proposaldomain.ErrInvalidTransition
	}
	updates := map[string]any{"processing_status": target}
	for k, v := range extra {
		updates[k] = v
	}
	if err := s.proposalrepo.WithTrx(tx).Update(ctx, proposal.ID.String(), updates); err != nil {
		return err
	}
	s.metrics.IncTransition("proposal", string(proposal.ProcessingStatus), string(target))
	proposal.ProcessingStatus = target
	return nil
}

func (s *Service) approvalLetter(ctx context.Context, proposal proposaldomain.Proposal, approval approvaldomain.Approval, requirements []approvaldomain.Requirement) []email.Attachment {
	conditions := make([]string, 0, len(requirements))
	for _, r := range requirements {
		conditions = append(conditions, r.Text)
	}
	holderName, _ := s.applicantName(ctx, proposal)
	data := pdf.ApprovalLetterData{
		ApprovalNumber: approval.LodgementNumber,
		ProposalNumber: deref(proposal.LodgementNumber),
		HolderName:     holderName,
		StartDate:      approval.StartDate.Format(time.DateOnly),
		ExpiryDate:     approval.ExpiryDate.Format(time.DateOnly),
		Conditions:     conditions,
		IssuedDate:     s.clock.Now().Format(time.DateOnly),
	}
	blob, err := s.pdf.ApprovalLetter(ctx, data)
	if err != nil || len(blob) == 0 {
		if err != nil {
			s.log.Warn("approval letter render failed", zap.Error(err))
		}
		return nil
	}
	return []email.Attachment{{
		Filename:    "approval-" + approval.LodgementNumber + ".pdf",
		ContentType: "application/pdf",
		Data:        blob,
	}}
}

func (s *Service) notifySubmitter(ctx context.Context, proposal proposaldomain.Proposal, kind email.Kind, fields map[string]any, attachments []email.Attachment) {
	user, err := s.identity.RetrieveEmailUser(ctx, proposal.SubmitterID)
	if err != nil {
		s.log.Warn("submitter lookup failed, notification skipped", zap.Error(err))
		return
	}
	s.send(ctx, user.Email, kind, fields, attachments)
}

func (s *Service) notifyApplicant(ctx context.Context, proposal proposaldomain.Proposal, kind email.Kind, fields map[string]any, attachments []email.Attachment) {
	to, err := s.applicantEmail(ctx, proposal)
	if err != nil || to == "" {
		s.log.Warn("applicant email unresolved, notification skipped", zap.Error(err))
		return
	}
	s.send(ctx, to, kind, fields, attachments)
}

func (s *Service) send(ctx context.Context, to string, kind email.Kind, fields map[string]any, attachments []email.Attachment) {
	if err := s.notifier.Send(ctx, email.Message{
		To:          []string{to},
		Kind:        kind,
		Context:     fields,
		Attachments: attachments,
	}); err != nil {
		s.log.Warn("notification send failed", zap.String("kind", string(kind)), zap.Error(err))
	}
}

func (s *Service) applicantEmail(ctx context.Context, proposal proposaldomain.Proposal) (string, error) {
	if proposal.OrgApplicantID != nil {
		org, err := s.organizations.GetByID(ctx, *proposal.OrgApplicantID)
		if err != nil {
			return "", err
		}
		return org.Email, nil
	}
	if proposal.IndApplicantID != nil {
		user, err := s.identity.RetrieveEmailUser(ctx, int64(*proposal.IndApplicantID))
		if err != nil {
			return "", err
		}
		return user.Email, nil
	}
	return "", nil
}

func (s *Service) applicantName(ctx context.Context, proposal proposaldomain.Proposal) (string, error) {
	if proposal.OrgApplicantID != nil {
		org, err := s.organizations.GetByID(ctx, *proposal.OrgApplicantID)
		if err != nil {
			return "", err
		}
		return org.Name, nil
	}
	if proposal.IndApplicantID != nil {
		user, err := s.identity.RetrieveEmailUser(ctx, int64(*proposal.IndApplicantID))
		if err != nil {
			return "", err
		}
		return user.FirstName + " " + user.LastName, nil
	}
	return "", nil
}

func (s *Service) auditLog(ctx context.Context, id snowflake.ID, what string, detail map[string]any) {
	if err := s.audit.Log(ctx, "proposal", id.String(), what, detail); err != nil {
		s.log.Warn("action log write failed", zap.String("what", what), zap.Error(err))
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
