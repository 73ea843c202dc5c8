package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/crownlands/tenure/internal/clock"
	compliancedomain "github.com/crownlands/tenure/internal/compliance/domain"
	"github.com/crownlands/tenure/internal/identity"
	invoicingdomain "github.com/crownlands/tenure/internal/invoicing/domain"
	"github.com/crownlands/tenure/internal/observability/metrics"
	organizationdomain "github.com/crownlands/tenure/internal/organization/domain"
	"github.com/crownlands/tenure/internal/providers/email"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler misconfigured")

type Params struct {
	fx.In

	Log           *zap.Logger
	Clock         clock.Clock
	Compliances   compliancedomain.Service
	Invoices      invoicingdomain.Service
	Identity      identity.Service
	Organizations organizationdomain.Service
	Notifier      email.Notifier
	Metrics       *metrics.Provider
	Locker        *Locker `optional:"true"`
	Config        Config  `optional:"true"`
}

type Scheduler struct {
	log           *zap.Logger
	cfg           Config
	clock         clock.Clock
	compliances   compliancedomain.Service
	invoices      invoicingdomain.Service
	identity      identity.Service
	organizations organizationdomain.Service
	notifier      email.Notifier
	metrics       *metrics.Provider
	locker        *Locker
}

// recordFailure is one record the job could not process. The run keeps
// going; failures are rolled up into a single summary at the end.
type recordFailure struct {
	Job      string
	RecordID string
	Err      error
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Compliances == nil || p.Invoices == nil || p.Identity == nil || p.Organizations == nil || p.Notifier == nil || p.Metrics == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:           p.Log.Named("scheduler"),
		cfg:           p.Config.withDefaults(),
		clock:         p.Clock,
		compliances:   p.Compliances,
		invoices:      p.Invoices,
		identity:      p.Identity,
		organizations: p.Organizations,
		notifier:      p.Notifier,
		metrics:       p.Metrics,
		locker:        p.Locker,
	}, nil
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var (
		err      error
		failures []recordFailure
	)

	jobs := []struct {
		Name string
		Run  func(context.Context) []recordFailure
	}{
		{"compliance_rollover", s.ComplianceRolloverJob},
		{"compliance_reminders", s.ComplianceReminderJob},
		{"compliance_overdue", s.ComplianceOverdueJob},
		{"invoice_reminders", s.InvoiceReminderJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		jobFailures, jobErr := s.runJob(parent, job.Name, job.Run)
		failures = append(failures, jobFailures...)
		err = errors.Join(err, jobErr)
	}

	if len(failures) > 0 {
		s.sendFailureSummary(parent, failures)
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runJob wraps a job with the distributed lock, a timeout, and metrics.
// Losing the lock race is not an error; another instance has the job.
func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) []recordFailure) ([]recordFailure, error) {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	key := "tenure:jobs:" + name
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		s.metrics.IncJobError(name)
		return nil, fmt.Errorf("%s: acquire lock: %w", name, err)
	}
	if !ok {
		s.log.Debug("job locked by another instance", zap.String("job", name))
		return nil, nil
	}
	defer func() {
		if err := s.locker.Release(parent, key, token); err != nil {
			s.log.Warn("lock release failed", zap.String("job", name), zap.Error(err))
		}
	}()

	log := s.log.With(
		zap.String("job", name),
		zap.String("run_id", uuid.NewString()),
	)
	start := s.clock.Now()
	s.metrics.IncJobRun(name)
	log.Info("job started")

	failures := fn(ctx)

	s.metrics.ObserveJobDuration(name, time.Since(start))
	if ctxErr := ctx.Err(); ctxErr != nil {
		s.metrics.IncJobError(name)
		log.Warn("job timed out", zap.Duration("timeout", s.cfg.JobTimeout))
		return failures, nil
	}
	for range failures {
		s.metrics.IncRecordFailure(name)
	}
	log.Info("job finished", zap.Int("failures", len(failures)))
	return failures, nil
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// ComplianceRolloverJob flips future compliances whose window has opened
// to due. Each record is handled independently so one bad row cannot
// stall the rest of the batch.
func (s *Scheduler) ComplianceRolloverJob(ctx context.Context) []recordFailure {
	rows, err := s.compliances.ListForRollover(ctx)
	if err != nil {
		return []recordFailure{{Job: "compliance_rollover", Err: err}}
	}
	var failures []recordFailure
	for _, c := range rows {
		if ctx.Err() != nil {
			break
		}
		if err := s.compliances.MarkDue(ctx, c.ID); err != nil {
			failures = append(failures, recordFailure{Job: "compliance_rollover", RecordID: c.LodgementNumber, Err: err})
		}
	}
	return failures
}

func (s *Scheduler) ComplianceReminderJob(ctx context.Context) []recordFailure {
	rows, err := s.compliances.ListDueForReminder(ctx)
	if err != nil {
		return []recordFailure{{Job: "compliance_reminders", Err: err}}
	}
	var failures []recordFailure
	for _, c := range rows {
		if ctx.Err() != nil {
			break
		}
		if err := s.remindCompliance(ctx, c, email.KindComplianceReminder); err != nil {
			failures = append(failures, recordFailure{Job: "compliance_reminders", RecordID: c.LodgementNumber, Err: err})
			continue
		}
		if err := s.compliances.MarkReminderSent(ctx, c.ID); err != nil {
			failures = append(failures, recordFailure{Job: "compliance_reminders", RecordID: c.LodgementNumber, Err: err})
		}
	}
	return failures
}

func (s *Scheduler) ComplianceOverdueJob(ctx context.Context) []recordFailure {
	rows, err := s.compliances.ListOverdue(ctx)
	if err != nil {
		return []recordFailure{{Job: "compliance_overdue", Err: err}}
	}
	var failures []recordFailure
	for _, c := range rows {
		if ctx.Err() != nil {
			break
		}
		if err := s.remindCompliance(ctx, c, email.KindComplianceOverdue); err != nil {
			failures = append(failures, recordFailure{Job: "compliance_overdue", RecordID: c.LodgementNumber, Err: err})
			continue
		}
		if err := s.compliances.MarkOverdueSent(ctx, c.ID); err != nil {
			failures = append(failures, recordFailure{Job: "compliance_overdue", RecordID: c.LodgementNumber, Err: err})
		}
	}
	return failures
}

func (s *Scheduler) InvoiceReminderJob(ctx context.Context) []recordFailure {
	rows, err := s.invoices.ListDueForReminder(ctx)
	if err != nil {
		return []recordFailure{{Job: "invoice_reminders", Err: err}}
	}
	var failures []recordFailure
	for _, inv := range rows {
		if ctx.Err() != nil {
			break
		}
		if err := s.remindInvoice(ctx, inv); err != nil {
			failures = append(failures, recordFailure{Job: "invoice_reminders", RecordID: inv.LodgementNumber, Err: err})
			continue
		}
		if err := s.invoices.MarkReminderSent(ctx, inv.ID); err != nil {
			failures = append(failures, recordFailure{Job: "invoice_reminders", RecordID: inv.LodgementNumber, Err: err})
		}
	}
	return failures
}

func (s *Scheduler) remindCompliance(ctx context.Context, c compliancedomain.Compliance, kind email.Kind) error {
	to, name, err := s.holderContact(ctx, c.HolderOrgID, c.HolderIndID)
	if err != nil {
		return err
	}
	return s.notifier.Send(ctx, email.Message{
		To:   []string{to},
		Kind: kind,
		Context: map[string]any{
			"name":             name,
			"lodgement_number": c.LodgementNumber,
			"due_date":         c.DueDate.Format(time.DateOnly),
		},
	})
}

func (s *Scheduler) remindInvoice(ctx context.Context, inv invoicingdomain.Invoice) error {
	to, name, err := s.holderContact(ctx, inv.HolderOrgID, inv.HolderIndID)
	if err != nil {
		return err
	}
	fields := map[string]any{
		"name":             name,
		"lodgement_number": inv.LodgementNumber,
		"amount":           inv.Amount.StringFixed(2),
	}
	if inv.DueAt != nil {
		fields["due_date"] = inv.DueAt.Format(time.DateOnly)
	}
	return s.notifier.Send(ctx, email.Message{
		To:      []string{to},
		Kind:    email.KindInvoiceDueReminder,
		Context: fields,
	})
}

func (s *Scheduler) holderContact(ctx context.Context, orgID, indID *snowflake.ID) (string, string, error) {
	switch {
	case orgID != nil:
		org, err := s.organizations.GetByID(ctx, *orgID)
		if err != nil {
			return "", "", err
		}
		return org.Email, org.Name, nil
	case indID != nil:
		user, err := s.identity.RetrieveEmailUser(ctx, int64(*indID))
		if err != nil {
			return "", "", err
		}
		return user.Email, user.FirstName, nil
	}
	return "", "", errors.New("record has no holder")
}

// sendFailureSummary rolls all record failures from the run into one
// email so operators get a single digest instead of a page per record.
func (s *Scheduler) sendFailureSummary(ctx context.Context, failures []recordFailure) {
	to := s.cfg.AdminEmail
	if to == "" {
		sender, err := s.identity.RetrieveSystemSender(ctx)
		if err != nil {
			s.log.Warn("failure summary recipient unavailable", zap.Error(err))
			return
		}
		to = sender.Email
	}

	lines := make([]string, 0, len(failures))
	for _, f := range failures {
		lines = append(lines, fmt.Sprintf("%s %s: %v", f.Job, f.RecordID, f.Err))
	}
	if err := s.notifier.Send(ctx, email.Message{
		To:   []string{to},
		Kind: email.KindJobFailureSummary,
		Context: map[string]any{
			"run_at":   s.clock.Now().Format(time.RFC3339),
			"count":    len(failures),
			"failures": lines,
		},
	}); err != nil {
		s.log.Warn("failure summary send failed", zap.Error(err))
	}
}
