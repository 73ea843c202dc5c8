package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	proposaldomain "github.com/crownlands/tenure/internal/proposal/domain"
	"github.com/crownlands/tenure/internal/providers/email"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) SendReferral(ctx context.Context, proposalID snowflake.ID, referralUserID int64) error {
	proposal, err := s.GetByID(ctx, proposalID)
	if err != nil {
		return err
	}
	switch proposal.ProcessingStatus {
	case proposaldomain.StatusWithAssessor, proposaldomain.StatusWithReferral:
	default:
		return proposaldomain.ErrInvalidTransition
	}

	user, err := s.identity.RetrieveEmailUser(ctx, referralUserID)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		referral := proposaldomain.Referral{
			ID:         s.genID.Generate(),
			ProposalID: proposal.ID,
			ReferralID: referralUserID,
			Status:     proposaldomain.ReferralStatusPending,
			SentAt:     s.clock.Now(),
		}
		if err := s.referralrepo.WithTrx(tx).Create(ctx, &referral); err != nil {
			return err
		}
		if proposal.ProcessingStatus != proposaldomain.StatusWithReferral {
			return s.applyStatus(ctx, tx, &proposal, proposaldomain.StatusWithReferral, nil)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.auditLog(ctx, proposal.ID, "referral_sent", map[string]any{"referral_user_id": referralUserID})
	s.send(ctx, user.Email, email.KindReferralSent, map[string]any{
		"lodgement_number": deref(proposal.LodgementNumber),
		"first_name":       user.FirstName,
	}, nil)
	return nil
}

func (s *Service) RemindReferral(ctx context.Context, referralID snowflake.ID) error {
	referral, proposal, err := s.openReferral(ctx, referralID)
	if err != nil {
		return err
	}
	user, err := s.identity.RetrieveEmailUser(ctx, referral.ReferralID)
	if err != nil {
		return err
	}
	s.auditLog(ctx, proposal.ID, "referral_reminded", map[string]any{"referral_user_id": referral.ReferralID})
	return s.notifier.Send(ctx, email.Message{
		To:   []string{user.Email},
		Kind: email.KindReferralReminder,
		Context: map[string]any{
			"lodgement_number": deref(proposal.LodgementNumber),
			"first_name":       user.FirstName,
		},
	})
}

func (s *Service) RecallReferral(ctx context.Context, referralID snowflake.ID) error {
	referral, proposal, err := s.openReferral(ctx, referralID)
	if err != nil {
		return err
	}
	if err := s.closeReferral(ctx, referral, proposal, proposaldomain.ReferralStatusRecalled, ""); err != nil {
		return err
	}
	s.auditLog(ctx, proposal.ID, "referral_recalled", map[string]any{"referral_user_id": referral.ReferralID})
	if user, err := s.identity.RetrieveEmailUser(ctx, referral.ReferralID); err == nil {
		s.send(ctx, user.Email, email.KindReferralRecalled, map[string]any{
			"lodgement_number": deref(proposal.LodgementNumber),
		}, nil)
	}
	return nil
}

func (s *Service) CompleteReferral(ctx context.Context, referralID snowflake.ID, comments string) error {
	referral, proposal, err := s.openReferral(ctx, referralID)
	if err != nil {
		return err
	}
	if err := s.closeReferral(ctx, referral, proposal, proposaldomain.ReferralStatusCompleted, comments); err != nil {
		return err
	}
	s.auditLog(ctx, proposal.ID, "referral_completed", map[string]any{
		"referral_user_id": referral.ReferralID,
		"comments":         comments,
	})
	return nil
}

func (s *Service) openReferral(ctx context.Context, referralID snowflake.ID) (proposaldomain.Referral, proposaldomain.Proposal, error) {
	referral, err := s.referralrepo.FindOne(ctx, &proposaldomain.Referral{ID: referralID})
	if err != nil {
		return proposaldomain.Referral{}, proposaldomain.Proposal{}, err
	}
	if referral == nil {
		return proposaldomain.Referral{}, proposaldomain.Proposal{}, proposaldomain.ErrReferralNotFound
	}
	if referral.Status != proposaldomain.ReferralStatusPending {
		return proposaldomain.Referral{}, proposaldomain.Proposal{}, proposaldomain.ErrReferralNotOpen
	}
	proposal, err := s.GetByID(ctx, referral.ProposalID)
	if err != nil {
		return proposaldomain.Referral{}, proposaldomain.Proposal{}, err
	}
	return *referral, proposal, nil
}

// closeReferral resolves one referral; closing the last pending one returns
// the proposal to the assessor and tells them all advice is in.
func (s *Service) closeReferral(ctx context.Context, referral proposaldomain.Referral, proposal proposaldomain.Proposal, target proposaldomain.ReferralStatus, comments string) error {
	var lastClosed bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"status":       target,
			"completed_at": s.clock.Now(),
		}
		if comments != "" {
			updates["comments"] = comments
		}
		if err := s.referralrepo.WithTrx(tx).Update(ctx, referral.ID.String(), updates); err != nil {
			return err
		}

		var pending int64
		if err := tx.WithContext(ctx).
			Model(&proposaldomain.Referral{}).
			Where("proposal_id = ? AND status = ? AND id <> ?", proposal.ID, proposaldomain.ReferralStatusPending, referral.ID).
			Count(&pending).Error; err != nil {
			return err
		}
		if pending > 0 {
			return nil
		}
		lastClosed = true
		return s.applyStatus(ctx, tx, &proposal, proposaldomain.StatusWithAssessor, nil)
	})
	if err != nil {
		return err
	}

	if lastClosed && target == proposaldomain.ReferralStatusCompleted {
		s.notifyAssessor(ctx, proposal)
	}
	return nil
}

// notifyAssessor tells the assigned officer every referral has come back.
func (s *Service) notifyAssessor(ctx context.Context, proposal proposaldomain.Proposal) {
	if proposal.AssignedOfficerID == nil {
		s.log.Warn("referrals completed but no officer assigned",
			zap.String("lodgement_number", deref(proposal.LodgementNumber)))
		return
	}
	officer, err := s.identity.RetrieveEmailUser(ctx, *proposal.AssignedOfficerID)
	if err != nil {
		s.log.Warn("assessor lookup failed, notification skipped", zap.Error(err))
		return
	}
	s.send(ctx, officer.Email, email.KindReferralsCompleted, map[string]any{
		"lodgement_number": deref(proposal.LodgementNumber),
		"first_name":       officer.FirstName,
	}, nil)
}
