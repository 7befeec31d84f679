// Package scheduler runs the calendar email campaigns.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hongminglow/ekonzims-be/internal/campaign"
	"github.com/hongminglow/ekonzims-be/internal/email"
)

// Cron specs, in the server's local time.
const (
	NewsletterSpec = "0 9 1 * *"
	EcoReportSpec  = "0 18 28-31 * *"
	ReorderSpec    = "0 9 * * 1"
	InactiveSpec   = "0 10 * * 1"
	ReminderSpec   = "0 10 * * *"
)

// Monthly newsletter content used by the scheduled run.
var (
	defaultPromotions = []email.Promotion{
		{Title: "20% sur les produits de nettoyage", Description: "Valable tout le mois"},
		{Title: "Livraison gratuite", Description: "Dès 50€ d'achat"},
	}
	defaultNewProducts = []email.Product{
		{Name: "Savon naturel", Price: "8.50"},
		{Name: "Brosse écologique", Price: "12.99"},
	}
)

type Scheduler struct {
	cron      *cron.Cron
	campaigns *campaign.Runner
	logger    *zap.Logger
	now       func() time.Time
	ctx       context.Context
	cancel    context.CancelFunc
}

func New(campaigns *campaign.Runner, logger *zap.Logger) *Scheduler {
	cl := cronLogger{logger: logger.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:      cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		campaigns: campaigns,
		logger:    logger,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Register adds every job to the cron table.
func (s *Scheduler) Register() error {
	jobs := []struct {
		spec string
		name string
		run  func(context.Context)
	}{
		{NewsletterSpec, "newsletter", func(ctx context.Context) { _, _ = s.RunNewsletter(ctx) }},
		{EcoReportSpec, "eco_report", func(ctx context.Context) { _, _, _ = s.RunEcoReports(ctx) }},
		{ReorderSpec, "reorder_suggestion", func(ctx context.Context) { _, _ = s.RunReorderSuggestions(ctx) }},
		{InactiveSpec, "inactive_user_offer", func(ctx context.Context) { _, _ = s.RunInactiveUserOffers(ctx) }},
		{ReminderSpec, "service_reminder", func(ctx context.Context) { _, _ = s.RunServiceReminders(ctx) }},
	}
	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.spec, func() { job.run(s.ctx) }); err != nil {
			return fmt.Errorf("schedule %s: %w", job.name, err)
		}
		s.logger.Info("scheduled job", zap.String("job", job.name), zap.String("spec", job.spec))
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs, cancels running ones and waits for them until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

func (s *Scheduler) RunNewsletter(ctx context.Context) (campaign.Report, error) {
	report, err := s.campaigns.Newsletter(ctx, defaultPromotions, defaultNewProducts)
	if err != nil {
		s.logger.Error("newsletter job", zap.Error(err))
	}
	return report, err
}

// RunEcoReports only sends on the last day of the month; ran reports whether it did.
func (s *Scheduler) RunEcoReports(ctx context.Context) (report campaign.Report, ran bool, err error) {
	now := s.now()
	if !lastDayOfMonth(now) {
		return campaign.Report{}, false, nil
	}
	report, err = s.campaigns.EcoReports(ctx, campaign.MonthYear(now))
	if err != nil {
		s.logger.Error("eco report job", zap.Error(err))
	}
	return report, true, err
}

func (s *Scheduler) RunReorderSuggestions(ctx context.Context) (campaign.Report, error) {
	report, err := s.campaigns.ReorderSuggestions(ctx)
	if err != nil {
		s.logger.Error("reorder suggestion job", zap.Error(err))
	}
	return report, err
}

func (s *Scheduler) RunInactiveUserOffers(ctx context.Context) (campaign.Report, error) {
	report, err := s.campaigns.InactiveUserOffers(ctx)
	if err != nil {
		s.logger.Error("inactive user offer job", zap.Error(err))
	}
	return report, err
}

// RunServiceReminders reminds customers of tomorrow's bookings.
func (s *Scheduler) RunServiceReminders(ctx context.Context) (campaign.Report, error) {
	report, err := s.campaigns.ServiceReminders(ctx)
	if err != nil {
		s.logger.Error("service reminder job", zap.Error(err))
	}
	return report, err
}

func lastDayOfMonth(t time.Time) bool {
	return t.AddDate(0, 0, 1).Day() == 1
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
