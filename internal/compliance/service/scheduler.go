package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	compliancedomain "github.com/crownlands/tenure/internal/compliance/domain"
)

// ListForRollover returns future compliances whose due window has opened.
func (s *Service) ListForRollover(ctx context.Context) ([]compliancedomain.Compliance, error) {
	lead := s.reminderLead()
	var out []compliancedomain.Compliance
	err := s.db.WithContext(ctx).
		Where("processing_status = ? AND due_date <= ?", compliancedomain.ProcessingStatusFuture, s.clock.Now().Add(lead)).
		Find(&out).Error
	return out, err
}

func (s *Service) MarkDue(ctx context.Context, id snowflake.ID) error {
	c, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c.ProcessingStatus != compliancedomain.ProcessingStatusFuture {
		return compliancedomain.ErrInvalidTransition
	}
	return s.applyStatus(ctx, s.db, &c, compliancedomain.ProcessingStatusDue, nil)
}

// ListDueForReminder returns open compliances inside the reminder lead
// window that have not been reminded yet.
func (s *Service) ListDueForReminder(ctx context.Context) ([]compliancedomain.Compliance, error) {
	now := s.clock.Now()
	lead := s.reminderLead()
	var candidates []compliancedomain.Compliance
	err := s.db.WithContext(ctx).
		Where("processing_status IN ? AND reminder_sent_at IS NULL AND due_date > ? AND due_date <= ?",
			[]compliancedomain.ProcessingStatus{compliancedomain.ProcessingStatusFuture, compliancedomain.ProcessingStatusDue},
			now, now.Add(lead)).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	out := candidates[:0]
	for _, c := range candidates {
		if compliancedomain.DueForReminder(c, now, lead) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Service) MarkReminderSent(ctx context.Context, id snowflake.ID) error {
	return s.compliancerepo.Update(ctx, id.String(), map[string]any{"reminder_sent_at": s.clock.Now()})
}

// ListOverdue returns open compliances past their due date without an
// overdue notice.
func (s *Service) ListOverdue(ctx context.Context) ([]compliancedomain.Compliance, error) {
	now := s.clock.Now()
	var candidates []compliancedomain.Compliance
	err := s.db.WithContext(ctx).
		Where("processing_status IN ? AND overdue_sent_at IS NULL AND due_date < ?",
			[]compliancedomain.ProcessingStatus{compliancedomain.ProcessingStatusFuture, compliancedomain.ProcessingStatusDue},
			now).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	out := candidates[:0]
	for _, c := range candidates {
		if compliancedomain.Overdue(c, now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Service) MarkOverdueSent(ctx context.Context, id snowflake.ID) error {
	return s.compliancerepo.Update(ctx, id.String(), map[string]any{"overdue_sent_at": s.clock.Now()})
}

func (s *Service) reminderLead() time.Duration {
	return time.Duration(s.invoicing.Get().ComplianceReminderDays) * 24 * time.Hour
}
