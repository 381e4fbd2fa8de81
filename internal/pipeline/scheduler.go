package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleParser accepts standard five-field cron expressions.
var ScheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Scheduler fires registered runners on cron schedules in UTC.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	logger = logger.With("component", "scheduler")
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithParser(ScheduleParser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
	}
}

// Add schedules runner on spec. An empty spec leaves the stage manual-only
// and marks it inactive.
func (s *Scheduler) Add(ctx context.Context, spec string, runner *Runner) error {
	if spec == "" {
		runner.Deactivate()
		s.logger.Info("stage has no schedule", "stage", runner.Name())
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() {
		if _, err := runner.Run(ctx); err != nil && !errors.Is(err, ErrAlreadyRunning) {
			s.logger.Debug("scheduled run returned error", "stage", runner.Name(), "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", runner.Name(), spec, err)
	}
	s.logger.Info("stage scheduled", "stage", runner.Name(), "schedule", spec)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for in-flight runs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
