package worker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"kharcha/internal/core"
	applog "kharcha/internal/log"
	"kharcha/internal/services"
)

// BatchForecaster regenerates a month's forecast for every user.
type BatchForecaster interface {
	GenerateAll(ctx context.Context, target core.Month, concurrency int) (services.BatchResult, error)
	DefaultTarget() core.Month
}

// SessionCleaner drops expired sessions.
type SessionCleaner interface {
	CleanupSessions(ctx context.Context) (int64, error)
}

// Scheduler runs the periodic forecast and housekeeping jobs.
type Scheduler struct {
	cron        *cron.Cron
	forecasts   BatchForecaster
	concurrency int
	logger      *applog.Logger
	ctx         context.Context
}

// NewScheduler registers the forecast job on spec, a six-field cron
// expression with seconds.
func NewScheduler(spec string, forecasts BatchForecaster, concurrency int, logger *applog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	s := &Scheduler{
		cron:        cron.New(cron.WithSeconds()),
		forecasts:   forecasts,
		concurrency: concurrency,
		logger:      logger.WithComponent(applog.ComponentScheduler),
		ctx:         context.Background(),
	}
	if _, err := s.cron.AddFunc(spec, s.forecastTask); err != nil {
		return nil, fmt.Errorf("register forecast task: %w", err)
	}
	return s, nil
}

// AddSessionCleanup registers an hourly expired-session sweep.
func (s *Scheduler) AddSessionCleanup(cleaner SessionCleaner) error {
	_, err := s.cron.AddFunc("@hourly", func() {
		if _, err := cleaner.CleanupSessions(s.ctx); err != nil {
			s.logger.Error("Session cleanup failed", applog.FieldError, err)
		}
	})
	if err != nil {
		return fmt.Errorf("register session cleanup: %w", err)
	}
	return nil
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Run starts the jobs and blocks until ctx is done, then waits for running
// jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	s.logger.InfoContext(ctx, "Scheduler started", "jobs", s.Entries())

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
	return nil
}

// RunNow executes the forecast job immediately.
func (s *Scheduler) RunNow(ctx context.Context) (services.BatchResult, error) {
	target := s.forecasts.DefaultTarget()
	res, err := s.forecasts.GenerateAll(ctx, target, s.concurrency)
	if err != nil {
		return res, fmt.Errorf("generate forecasts for %s: %w", target, err)
	}
	s.logger.InfoContext(ctx, "Scheduled forecasts complete",
		applog.FieldMonth, target.String(),
		"generated", res.Generated,
		"skipped", res.Skipped,
		"failed", res.Failed)
	return res, nil
}

func (s *Scheduler) forecastTask() {
	if _, err := s.RunNow(s.ctx); err != nil {
		s.logger.Error("Scheduled forecast run failed", applog.FieldError, err)
	}
}
