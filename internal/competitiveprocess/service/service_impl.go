package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/crownlands/tenure/internal/audit/domain"
	"github.com/crownlands/tenure/internal/clock"
	competitivedomain "github.com/crownlands/tenure/internal/competitiveprocess/domain"
	"github.com/crownlands/tenure/internal/config"
	"github.com/crownlands/tenure/internal/identity"
	"github.com/crownlands/tenure/internal/observability/metrics"
	organizationdomain "github.com/crownlands/tenure/internal/organization/domain"
	proposaldomain "github.com/crownlands/tenure/internal/proposal/domain"
	"github.com/crownlands/tenure/internal/providers/email"
	"github.com/crownlands/tenure/internal/sequence"
	"github.com/crownlands/tenure/pkg/db/option"
	"github.com/crownlands/tenure/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
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
	Proposals     proposaldomain.Service
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
	proposals     proposaldomain.Service
	notifier      email.Notifier
	metrics       *metrics.Provider

	processrepo repository.Repository[competitivedomain.CompetitiveProcess]
	partyrepo   repository.Repository[competitivedomain.Party]
}

func NewService(p Params) competitivedomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("competitiveprocess.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		issuer:        p.Issuer,
		invoicing:     p.Invoicing,
		audit:         p.Audit,
		identity:      p.Identity,
		organizations: p.Organizations,
		proposals:     p.Proposals,
		notifier:      p.Notifier,
		metrics:       p.Metrics,

		processrepo: repository.ProvideStore[competitivedomain.CompetitiveProcess](p.DB),
		partyrepo:   repository.ProvideStore[competitivedomain.Party](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req competitivedomain.CreateProcessRequest) (competitivedomain.CompetitiveProcess, error) {
	var process competitivedomain.CompetitiveProcess
	err := s.db.Transaction(func(tx *gorm.DB) error {
		prefix := s.invoicing.Get().LodgementPrefixes["competitive_process"]
		lodgement, err := s.issuer.Next(ctx, tx, "competitive_process", prefix)
		if err != nil {
			return err
		}
		process = competitivedomain.CompetitiveProcess{
			ID:              s.genID.Generate(),
			LodgementNumber: lodgement,
			Status:          competitivedomain.StatusInProgress,
			DetailsText:     req.DetailsText,
			Geometry:        req.Geometry,
		}
		return s.processrepo.WithTrx(tx).Create(ctx, &process)
	})
	if err != nil {
		return competitivedomain.CompetitiveProcess{}, err
	}
	s.auditLog(ctx, process.ID, "competitive_process_created", map[string]any{
		"lodgement_number": process.LodgementNumber,
	})
	return process, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (competitivedomain.CompetitiveProcess, error) {
	process, err := s.processrepo.FindOne(ctx, &competitivedomain.CompetitiveProcess{ID: id})
	if err != nil {
		return competitivedomain.CompetitiveProcess{}, err
	}
	if process == nil {
		return competitivedomain.CompetitiveProcess{}, competitivedomain.ErrNotFound
	}
	return *process, nil
}

func (s *Service) List(ctx context.Context, status *competitivedomain.Status, limit, offset int) ([]competitivedomain.CompetitiveProcess, error) {
	query := competitivedomain.CompetitiveProcess{}
	if status != nil {
		query.Status = *status
	}
	opts := []option.QueryOption{}
	if limit > 0 {
		opts = append(opts, option.WithLimit(limit), option.WithOffset(offset))
	}
	found, err := s.processrepo.Find(ctx, &query, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]competitivedomain.CompetitiveProcess, 0, len(found))
	for _, p := range found {
		out = append(out, *p)
	}
	return out, nil
}

func (s *Service) AddParty(ctx context.Context, processID snowflake.ID, req competitivedomain.AddPartyRequest) (competitivedomain.Party, error) {
	if (req.PersonID == nil) == (req.OrgID == nil) {
		return competitivedomain.Party{}, competitivedomain.ErrInvalidParty
	}
	process, err := s.GetByID(ctx, processID)
	if err != nil {
		return competitivedomain.Party{}, err
	}
	if process.Status != competitivedomain.StatusInProgress {
		return competitivedomain.Party{}, competitivedomain.ErrNotInProgress
	}

	party := competitivedomain.Party{
		ID:                   s.genID.Generate(),
		CompetitiveProcessID: process.ID,
		PersonID:             req.PersonID,
		OrgID:                req.OrgID,
		InvitedAt:            s.clock.Now(),
	}
	if err := s.partyrepo.Create(ctx, &party); err != nil {
		return competitivedomain.Party{}, err
	}
	s.auditLog(ctx, process.ID, "party_added", map[string]any{"party_id": party.ID.String()})
	return party, nil
}

func (s *Service) ListParties(ctx context.Context, processID snowflake.ID) ([]competitivedomain.Party, error) {
	found, err := s.partyrepo.Find(ctx, &competitivedomain.Party{CompetitiveProcessID: processID})
	if err != nil {
		return nil, err
	}
	out := make([]competitivedomain.Party, 0, len(found))
	for _, p := range found {
		out = append(out, *p)
	}
	return out, nil
}

// SetWinner wraps the read-modify-write in one transaction with a row lock
// so two concurrent selections cannot both land.
func (s *Service) SetWinner(ctx context.Context, processID, partyID snowflake.ID) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		process, err := s.lockProcess(ctx, tx, processID)
		if err != nil {
			return err
		}
		if process.Status != competitivedomain.StatusInProgress {
			return competitivedomain.ErrNotInProgress
		}
		party, err := s.partyrepo.WithTrx(tx).FindOne(ctx, &competitivedomain.Party{ID: partyID})
		if err != nil {
			return err
		}
		if party == nil || party.CompetitiveProcessID != process.ID {
			return competitivedomain.ErrPartyNotFound
		}
		return s.processrepo.WithTrx(tx).Update(ctx, process.ID.String(), map[string]any{"winner_id": partyID})
	})
	if err != nil {
		return err
	}
	s.auditLog(ctx, processID, "winner_selected", map[string]any{"party_id": partyID.String()})
	return nil
}

// Complete closes the process. With a winner it generates that party's
// proposal in the same transaction; without one it simply declines.
func (s *Service) Complete(ctx context.Context, processID snowflake.ID) (competitivedomain.CompetitiveProcess, error) {
	var (
		winner   *competitivedomain.Party
		proposal proposaldomain.Proposal
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		process, err := s.lockProcess(ctx, tx, processID)
		if err != nil {
			return err
		}
		if process.Status != competitivedomain.StatusInProgress {
			return competitivedomain.ErrNotInProgress
		}

		if process.WinnerID == nil {
			return s.applyStatus(ctx, tx, process, competitivedomain.StatusCompletedDeclined, nil)
		}

		winner, err = s.partyrepo.WithTrx(tx).FindOne(ctx, &competitivedomain.Party{ID: *process.WinnerID})
		if err != nil {
			return err
		}
		if winner == nil {
			return competitivedomain.ErrPartyNotFound
		}

		proposal, err = s.proposals.CreateGenerated(ctx, tx, proposaldomain.GeneratedProposalRequest{
			CreateProposalRequest: proposaldomain.CreateProposalRequest{
				OrgApplicantID: winner.OrgID,
				IndApplicantID: winner.PersonID,
				SubmitterID:    submitterFor(*winner),
				Details:        process.DetailsText,
				Geometry:       copyGeometry(process.Geometry),
			},
			OriginatingCompetitiveProcessID: process.ID,
		})
		if err != nil {
			return err
		}
		return s.applyStatus(ctx, tx, process, competitivedomain.StatusCompletedApplication, map[string]any{
			"generated_proposal_id": proposal.ID,
		})
	})
	if err != nil {
		return competitivedomain.CompetitiveProcess{}, err
	}

	process, err := s.GetByID(ctx, processID)
	if err != nil {
		return competitivedomain.CompetitiveProcess{}, err
	}

	if winner != nil {
		s.auditLog(ctx, process.ID, "competitive_process_completed", map[string]any{
			"generated_proposal_id": proposal.ID.String(),
		})
		s.notifyWinner(ctx, process, *winner, proposal)
	} else {
		s.auditLog(ctx, process.ID, "competitive_process_declined", nil)
	}
	return process, nil
}

func (s *Service) Discard(ctx context.Context, processID snowflake.ID) error {
	process, err := s.GetByID(ctx, processID)
	if err != nil {
		return err
	}
	if err := s.applyStatus(ctx, s.db, &process, competitivedomain.StatusDiscarded, nil); err != nil {
		return err
	}
	s.auditLog(ctx, process.ID, "competitive_process_discarded", nil)
	return nil
}

// Unlock reopens a completed process. The generated proposal is discarded
// unless it has already been approved, in which case the whole unlock is
// refused and nothing changes.
func (s *Service) Unlock(ctx context.Context, processID snowflake.ID) (competitivedomain.CompetitiveProcess, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		process, err := s.lockProcess(ctx, tx, processID)
		if err != nil {
			return err
		}
		if !process.Status.Completed() {
			return competitivedomain.ErrNotCompleted
		}

		if process.GeneratedProposalID != nil {
			generated, err := s.proposals.GetByID(ctx, *process.GeneratedProposalID)
			switch {
			case errors.Is(err, proposaldomain.ErrNotFound):
				// Tolerated: someone else already removed it. The unlock
				// still proceeds, just without a proposal to discard.
				s.log.Warn("generated proposal missing during unlock",
					zap.String("competitive_process_id", process.ID.String()),
					zap.String("generated_proposal_id", process.GeneratedProposalID.String()))
			case err != nil:
				return err
			case proposaldomain.IsApproved(generated.ProcessingStatus):
				return competitivedomain.ErrGeneratedApproved
			case generated.ProcessingStatus == proposaldomain.StatusDiscarded:
				s.log.Warn("generated proposal already discarded during unlock",
					zap.String("competitive_process_id", process.ID.String()),
					zap.String("generated_proposal_id", generated.ID.String()))
			default:
				if err := s.proposals.DiscardGenerated(ctx, tx, generated.ID); err != nil {
					return err
				}
			}
		}

		return s.applyStatus(ctx, tx, process, competitivedomain.StatusInProgress, map[string]any{
			"winner_id":             nil,
			"generated_proposal_id": nil,
			"details_text":          "",
			"documents_json":        nil,
		})
	})
	if err != nil {
		return competitivedomain.CompetitiveProcess{}, err
	}
	s.auditLog(ctx, processID, "competitive_process_unlocked", nil)
	return s.GetByID(ctx, processID)
}

func (s *Service) lockProcess(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*competitivedomain.CompetitiveProcess, error) {
	process, err := s.processrepo.WithTrx(tx).FindOne(ctx,
		&competitivedomain.CompetitiveProcess{ID: id}, option.WithLockForUpdate())
	if err != nil {
		return nil, err
	}
	if process == nil {
		return nil, competitivedomain.ErrNotFound
	}
	return process, nil
}

func (s *Service) applyStatus(ctx context.Context, tx *gorm.DB, process *competitivedomain.CompetitiveProcess, target competitivedomain.Status, extra map[string]any) error {
	updates := map[string]any{"status": target}
	for k, v := range extra {
		updates[k] = v
	}
	if err := s.processrepo.WithTrx(tx).Update(ctx, process.ID.String(), updates); err != nil {
		return err
	}
	s.metrics.IncTransition("competitive_process", string(process.Status), string(target))
	process.Status = target
	return nil
}

func (s *Service) notifyWinner(ctx context.Context, process competitivedomain.CompetitiveProcess, winner competitivedomain.Party, proposal proposaldomain.Proposal) {
	var to, name string
	if winner.OrgID != nil {
		org, err := s.organizations.GetByID(ctx, *winner.OrgID)
		if err != nil {
			s.log.Warn("winner organisation lookup failed, notification skipped", zap.Error(err))
			return
		}
		to, name = org.Email, org.Name
	} else if winner.PersonID != nil {
		user, err := s.identity.RetrieveEmailUser(ctx, int64(*winner.PersonID))
		if err != nil {
			s.log.Warn("winner lookup failed, notification skipped", zap.Error(err))
			return
		}
		to, name = user.Email, user.FirstName
	}
	if to == "" {
		return
	}

	lodgement := ""
	if proposal.LodgementNumber != nil {
		lodgement = *proposal.LodgementNumber
	}
	if err := s.notifier.Send(ctx, email.Message{
		To:   []string{to},
		Kind: email.KindWinnerNotification,
		Context: map[string]any{
			"name":             name,
			"process_number":   process.LodgementNumber,
			"lodgement_number": lodgement,
		},
	}); err != nil {
		s.log.Warn("winner notification failed", zap.Error(err))
	}
}

func (s *Service) auditLog(ctx context.Context, id snowflake.ID, what string, detail map[string]any) {
	if err := s.audit.Log(ctx, "competitive_process", id.String(), what, detail); err != nil {
		s.log.Warn("action log write failed", zap.String("what", what), zap.Error(err))
	}
}

// submitterFor picks the identity the generated proposal is lodged under.
// Organisation winners are lodged by the system actor (zero) until a
// delegate claims it.
func submitterFor(p competitivedomain.Party) int64 {
	if p.PersonID != nil {
		return int64(*p.PersonID)
	}
	return 0
}

// copyGeometry deep-copies the geometry blob so later edits on the
// proposal never mutate the source process record.
func copyGeometry(src datatypes.JSON) datatypes.JSON {
	if len(src) == 0 {
		return nil
	}
	dst := make(datatypes.JSON, len(src))
	copy(dst, src)
	return dst
}
