// Package pipeline runs the background stages (discovery, market refresh,
// security and quality scans) with per-stage health, metrics, tracing and
// operator alerts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/apfl99/DexSwipe-Backend/internal/alert"
	"github.com/apfl99/DexSwipe-Backend/internal/metrics"
	"github.com/apfl99/DexSwipe-Backend/internal/pipeline/worker"
	"github.com/apfl99/DexSwipe-Backend/internal/tracing"
)

// ErrAlreadyRunning is returned when a stage is triggered while a previous
// invocation of the same stage has not finished.
var ErrAlreadyRunning = errors.New("stage already running")

// Stage is one invocation-bounded unit of background work.
type Stage interface {
	Name() string
	Run(ctx context.Context) (worker.Stats, error)
}

const (
	resultSuccess = "success"
	resultStopped = "stopped"
	resultError   = "error"
	resultSkipped = "skipped"
)

// Runner wraps a Stage with an overlap guard, a run timeout, health
// tracking and alerting.
type Runner struct {
	stage   Stage
	health  *StageHealth
	alerter alert.Alerter
	timeout time.Duration
	running sync.Mutex
	logger  *slog.Logger
}

type RunnerOption func(*Runner)

func WithAlerter(a alert.Alerter) RunnerOption {
	return func(r *Runner) { r.alerter = a }
}

// WithRunTimeout bounds a single invocation. Zero means no bound.
func WithRunTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.timeout = d }
}

func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

func WithHealthClock(nowFn func() time.Time) RunnerOption {
	return func(r *Runner) { r.health = NewStageHealth(r.stage.Name(), nowFn) }
}

func NewRunner(stage Stage, opts ...RunnerOption) *Runner {
	r := &Runner{
		stage:   stage,
		health:  NewStageHealth(stage.Name(), nil),
		alerter: &alert.NoopAlerter{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "pipeline", "stage", stage.Name())
	metrics.PipelineHealthStatus.WithLabelValues(stage.Name()).Set(HealthStatusUnknown.gaugeValue())
	return r
}

func (r *Runner) Name() string { return r.stage.Name() }

func (r *Runner) Health() *StageHealth { return r.health }

// Deactivate marks the stage INACTIVE, e.g. when it has no schedule.
func (r *Runner) Deactivate() {
	r.health.SetStatus(HealthStatusInactive)
	metrics.PipelineHealthStatus.WithLabelValues(r.Name()).Set(HealthStatusInactive.gaugeValue())
}

// Run executes one invocation. Overlapping calls return ErrAlreadyRunning
// without touching health.
func (r *Runner) Run(ctx context.Context) (stats worker.Stats, err error) {
	name := r.Name()
	if !r.running.TryLock() {
		metrics.PipelineRunsTotal.WithLabelValues(name, resultSkipped).Inc()
		r.logger.Info("stage run skipped, previous run still in progress")
		return worker.Stats{}, ErrAlreadyRunning
	}
	defer r.running.Unlock()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	ctx, span := tracing.Start(ctx, "pipeline."+name, attribute.String("stage", name))
	start := time.Now()
	defer func() {
		took := time.Since(start)
		span.SetAttributes(
			attribute.Int("jobs.claimed", stats.Claimed),
			attribute.Int("jobs.succeeded", stats.Succeeded),
			attribute.Int("jobs.failed", stats.Failed),
		)
		tracing.End(span, err)
		metrics.PipelineRunDuration.WithLabelValues(name).Observe(took.Seconds())
		r.record(ctx, stats, err, took)
	}()

	return r.invoke(ctx)
}

// invoke runs the stage, turning a panic into an error.
func (r *Runner) invoke(ctx context.Context) (stats worker.Stats, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("stage %s panic: %v\n%s", r.Name(), p, debug.Stack())
		}
	}()
	return r.stage.Run(ctx)
}

func (r *Runner) record(ctx context.Context, stats worker.Stats, err error, took time.Duration) {
	name := r.Name()
	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues(name, resultError).Inc()
		transitioned := r.health.RecordFailure(err, took)
		failures := r.health.ConsecutiveFailures()
		metrics.PipelineConsecutiveFailures.WithLabelValues(name).Set(float64(failures))
		metrics.PipelineHealthStatus.WithLabelValues(name).Set(HealthStatus(r.health.Snapshot().Status).gaugeValue())
		r.logger.Error("stage run failed",
			"error", err,
			"consecutive_failures", failures,
			"claimed", stats.Claimed,
			"duration_ms", took.Milliseconds(),
		)
		if transitioned {
			r.sendAlert(ctx, alert.Alert{
				Type:    alert.AlertTypeUnhealthy,
				Stage:   name,
				Title:   fmt.Sprintf("Stage %s is unhealthy", name),
				Message: err.Error(),
				Fields:  map[string]string{"consecutive_failures": fmt.Sprint(failures)},
			})
		}
		return
	}

	result := resultSuccess
	if stats.Stopped != "" {
		result = resultStopped
	}
	metrics.PipelineRunsTotal.WithLabelValues(name, result).Inc()
	recovered := r.health.RecordSuccess(took)
	metrics.PipelineConsecutiveFailures.WithLabelValues(name).Set(0)
	metrics.PipelineHealthStatus.WithLabelValues(name).Set(HealthStatusHealthy.gaugeValue())
	r.logger.Info("stage run completed",
		"claimed", stats.Claimed,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"suppressed", stats.Suppressed,
		"deferred", stats.Deferred,
		"enqueued", stats.Enqueued,
		"stopped", stats.Stopped,
		"duration_ms", took.Milliseconds(),
	)
	if recovered {
		r.sendAlert(ctx, alert.Alert{
			Type:    alert.AlertTypeRecovery,
			Stage:   name,
			Title:   fmt.Sprintf("Stage %s recovered", name),
			Message: "stage run succeeded after repeated failures",
		})
	}
}

func (r *Runner) sendAlert(ctx context.Context, a alert.Alert) {
	// The run context may already be cancelled by the timeout.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := r.alerter.Send(sendCtx, a); err != nil {
		r.logger.Warn("send stage alert", "type", a.Type, "error", err)
	}
}
