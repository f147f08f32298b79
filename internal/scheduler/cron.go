package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amaumene/seenarr/internal/config"
	"github.com/amaumene/seenarr/internal/engine"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Engine is the part of the reconciliation engine driven by the scheduler
type Engine interface {
	Resync(ctx context.Context, force bool) (engine.Result, error)
	Sweep(ctx context.Context) (engine.SweepResult, error)
	RunIntentWorker(ctx context.Context)
	Status() engine.Status
}

// Exporter writes the backup document
type Exporter interface {
	Export(ctx context.Context) error
}

// Scheduler manages scheduled tasks
type Scheduler struct {
	cron     *cron.Cron
	engine   Engine
	exporter Exporter
	cfg      *config.Config
	logger   *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a new scheduler; exporter may be nil when backups are disabled
func NewScheduler(eng Engine, exporter Exporter, cfg *config.Config, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		engine:   eng,
		exporter: exporter,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start registers the jobs and starts the background workers
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("Starting scheduler")

	// Periodic resync, debounced by the engine
	if _, err := s.cron.AddFunc(s.cfg.ResyncCron, func() {
		s.runResync(false)
	}); err != nil {
		return fmt.Errorf("failed to add resync job: %w", err)
	}

	// Migration sweep
	if _, err := s.cron.AddFunc(s.cfg.SweepCron, func() {
		s.runSweep()
	}); err != nil {
		return fmt.Errorf("failed to add sweep job: %w", err)
	}

	if s.exporter != nil {
		if _, err := s.cron.AddFunc(s.cfg.BackupCron, func() {
			s.runBackup()
		}); err != nil {
			return fmt.Errorf("failed to add backup job: %w", err)
		}
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.engine.RunIntentWorker(s.ctx)
	}()

	// Cold start: resync once when a session is already configured, then the first sweep
	go func() {
		defer s.wg.Done()
		if s.engine.Status().HasSession {
			s.runResync(true)
		}

		select {
		case <-s.ctx.Done():
			return
		case <-time.After(s.cfg.SweepDelay):
			s.runSweep()
		}
	}()

	s.logger.Info("Scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

func (s *Scheduler) jobContext() context.Context {
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

// runResync executes the resync job
func (s *Scheduler) runResync(force bool) {
	s.logger.Debug("Running scheduled resync")

	result, err := s.engine.Resync(s.jobContext(), force)
	switch {
	case errors.Is(err, engine.ErrNoSession):
		s.logger.Debug("No remote session, resync skipped")
	case err != nil:
		s.logger.WithError(err).Error("Resync job failed")
	case result.Skipped:
		s.logger.Debug("Resync job skipped")
	default:
		s.logger.Info("Resync job completed successfully")
	}
}

// runSweep executes the migration sweep
func (s *Scheduler) runSweep() {
	s.logger.Debug("Running scheduled sweep")

	result, err := s.engine.Sweep(s.jobContext())
	if err != nil {
		s.logger.WithError(err).Error("Sweep job failed")
		return
	}
	if result.Checked > 0 {
		s.logger.WithFields(logrus.Fields{
			"checked":  result.Checked,
			"migrated": result.Migrated,
		}).Info("Sweep job completed")
	}
}

// runBackup executes the backup job
func (s *Scheduler) runBackup() {
	s.logger.Info("Running scheduled backup")

	if err := s.exporter.Export(s.jobContext()); err != nil {
		s.logger.WithError(err).Error("Backup job failed")
	}
}
