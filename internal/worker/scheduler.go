package worker

import (
	"context"
	"log/slog"
	"os"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps a cron.Cron configured for seconds-granularity
// expressions, the shape the settlement and reclaim schedules use so a
// "every 15 minutes" cadence doesn't have to land on the hour.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

func NewScheduler() *Scheduler {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cronLogger)))
	return &Scheduler{cron: c, logger: logger}
}

// AddFunc registers fn under schedule, logging success or failure so a
// typo'd cron expression is visible at startup instead of a silently
// missing job.
func (s *Scheduler) AddFunc(schedule, name string, fn func()) error {
	if _, err := s.cron.AddFunc(schedule, fn); err != nil {
		s.logger.Error("failed to schedule job", "job", name, "schedule", schedule, "error", err)
		return err
	}
	s.logger.Info("scheduled job", "job", name, "schedule", schedule)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop returns a context that's done once every running job has
// finished, the same drain-before-exit contract cron.Cron.Stop exposes.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
