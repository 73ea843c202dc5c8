package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	compliancedomain "github.com/crownlands/tenure/internal/compliance/domain"
	"github.com/crownlands/tenure/internal/providers/email"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) SendReferral(ctx context.Context, complianceID snowflake.ID, referralUserID int64) error {
	c, err := s.GetByID(ctx, complianceID)
	if err != nil {
		return err
	}
	switch c.ProcessingStatus {
	case compliancedomain.ProcessingStatusWithAssessor, compliancedomain.ProcessingStatusWithReferral:
	default:
		return compliancedomain.ErrInvalidTransition
	}

	user, err := s.identity.RetrieveEmailUser(ctx, referralUserID)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		referral := compliancedomain.Referral{
			ID:           s.genID.Generate(),
			ComplianceID: c.ID,
			ReferralID:   referralUserID,
			Status:       compliancedomain.ReferralStatusPending,
			SentAt:       s.clock.Now(),
		}
		if err := s.referralrepo.WithTrx(tx).Create(ctx, &referral); err != nil {
			return err
		}
		if c.ProcessingStatus != compliancedomain.ProcessingStatusWithReferral {
			return s.applyStatus(ctx, tx, &c, compliancedomain.ProcessingStatusWithReferral, nil)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.auditLog(ctx, c.ID, "compliance_referral_sent", map[string]any{"referral_user_id": referralUserID})
	if err := s.notifier.Send(ctx, email.Message{
		To:   []string{user.Email},
		Kind: email.KindReferralSent,
		Context: map[string]any{
			"lodgement_number": c.LodgementNumber,
			"first_name":       user.FirstName,
		},
	}); err != nil {
		s.log.Warn("referral notification failed", zap.Error(err))
	}
	return nil
}

func (s *Service) RemindReferral(ctx context.Context, referralID snowflake.ID) error {
	referral, c, err := s.openReferral(ctx, referralID)
	if err != nil {
		return err
	}
	user, err := s.identity.RetrieveEmailUser(ctx, referral.ReferralID)
	if err != nil {
		return err
	}
	s.auditLog(ctx, c.ID, "compliance_referral_reminded", map[string]any{"referral_user_id": referral.ReferralID})
	return s.notifier.Send(ctx, email.Message{
		To:   []string{user.Email},
		Kind: email.KindReferralReminder,
		Context: map[string]any{
			"lodgement_number": c.LodgementNumber,
			"first_name":       user.FirstName,
		},
	})
}

func (s *Service) RecallReferral(ctx context.Context, referralID snowflake.ID) error {
	referral, c, err := s.openReferral(ctx, referralID)
	if err != nil {
		return err
	}
	if err := s.closeReferral(ctx, referral, c, compliancedomain.ReferralStatusRecalled, ""); err != nil {
		return err
	}
	s.auditLog(ctx, c.ID, "compliance_referral_recalled", map[string]any{"referral_user_id": referral.ReferralID})
	if user, err := s.identity.RetrieveEmailUser(ctx, referral.ReferralID); err == nil {
		if err := s.notifier.Send(ctx, email.Message{
			To:      []string{user.Email},
			Kind:    email.KindReferralRecalled,
			Context: map[string]any{"lodgement_number": c.LodgementNumber},
		}); err != nil {
			s.log.Warn("referral recall notification failed", zap.Error(err))
		}
	}
	return nil
}

func (s *Service) CompleteReferral(ctx context.Context, referralID snowflake.ID, comments string) error {
	referral, c, err := s.openReferral(ctx, referralID)
	if err != nil {
		return err
	}
	if err := s.closeReferral(ctx, referral, c, compliancedomain.ReferralStatusCompleted, comments); err != nil {
		return err
	}
	s.auditLog(ctx, c.ID, "compliance_referral_completed", map[string]any{
		"referral_user_id": referral.ReferralID,
		"comments":         comments,
	})
	return nil
}

func (s *Service) openReferral(ctx context.Context, referralID snowflake.ID) (compliancedomain.Referral, compliancedomain.Compliance, error) {
	referral, err := s.referralrepo.FindOne(ctx, &compliancedomain.Referral{ID: referralID})
	if err != nil {
		return compliancedomain.Referral{}, compliancedomain.Compliance{}, err
	}
	if referral == nil {
		return compliancedomain.Referral{}, compliancedomain.Compliance{}, compliancedomain.ErrReferralNotFound
	}
	if referral.Status != compliancedomain.ReferralStatusPending {
		return compliancedomain.Referral{}, compliancedomain.Compliance{}, compliancedomain.ErrReferralNotOpen
	}
	c, err := s.GetByID(ctx, referral.ComplianceID)
	if err != nil {
		return compliancedomain.Referral{}, compliancedomain.Compliance{}, err
	}
	return *referral, c, nil
}

// closeReferral resolves one referral and, when it was the last pending one,
// returns the compliance to the assessor.
func (s *Service) closeReferral(ctx context.Context, referral compliancedomain.Referral, c compliancedomain.Compliance, target compliancedomain.ReferralStatus, comments string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		updates := map[string]any{
			"status":       target,
			"completed_at": now,
		}
		if comments != "" {
			updates["comments"] = comments
		}
		if err := s.referralrepo.WithTrx(tx).Update(ctx, referral.ID.String(), updates); err != nil {
			return err
		}

		var pending int64
		if err := tx.WithContext(ctx).
			Model(&compliancedomain.Referral{}).
			Where("compliance_id = ? AND status = ? AND id <> ?", c.ID, compliancedomain.ReferralStatusPending, referral.ID).
			Count(&pending).Error; err != nil {
			return err
		}
		if pending > 0 {
			return nil
		}
		return s.applyStatus(ctx, tx, &c, compliancedomain.ProcessingStatusWithAssessor, nil)
	})
}
