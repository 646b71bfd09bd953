package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/lazypower/mnemo/internal/config"
)

// StartScheduler runs Maintain on the given cron expression. An empty
// expression leaves scheduling disabled.
func (e *Engine) StartScheduler(expr string) error {
	if expr == "" {
		return nil
	}
	if err := config.ValidateCron(expr); err != nil {
		return err
	}

	e.schedMu.Lock()
	defer e.schedMu.Unlock()
	if e.scheduler != nil {
		return fmt.Errorf("scheduler already running")
	}

	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.CronJob(expr, false),
		gocron.NewTask(func() {
			// failures are logged inside Maintain
			e.Maintain(context.Background())
		}),
		gocron.WithName(MaintenanceOperation),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		s.Shutdown()
		return fmt.Errorf("register maintenance job: %w", err)
	}
	s.Start()
	e.scheduler = s

	e.log.WithField("cron", expr).Info("maintenance scheduled")
	return nil
}

// Stop shuts down the scheduler. Safe to call when none is running.
func (e *Engine) Stop() {
	e.schedMu.Lock()
	defer e.schedMu.Unlock()
	if e.scheduler == nil {
		return
	}
	if err := e.scheduler.Shutdown(); err != nil {
		e.log.WithError(err).Warn("scheduler shutdown")
	}
	e.scheduler = nil
}

// NextMaintenance reports when the scheduled pass runs next.
func (e *Engine) NextMaintenance() (time.Time, bool) {
	e.schedMu.Lock()
	defer e.schedMu.Unlock()
	if e.scheduler == nil {
		return time.Time{}, false
	}
	for _, j := range e.scheduler.Jobs() {
		if next, err := j.NextRun(); err == nil {
			return next, true
		}
	}
	return time.Time{}, false
}
