package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apfl99/DexSwipe-Backend/internal/alert"
	"github.com/apfl99/DexSwipe-Backend/internal/pipeline/worker"
)

type fakeStage struct {
	name    string
	mu      sync.Mutex
	results []error
	calls   int
	stats   worker.Stats
	block   chan struct{}
	started chan struct{}
	panics  bool
}

func (f *fakeStage) Name() string { return f.name }

func (f *fakeStage) Run(ctx context.Context) (worker.Stats, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return worker.Stats{}, ctx.Err()
		}
	}
	if f.panics {
		panic("boom")
	}
	if call < len(f.results) && f.results[call] != nil {
		return f.stats, f.results[call]
	}
	return f.stats, nil
}

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (r *recordingAlerter) Send(_ context.Context, a alert.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

func (r *recordingAlerter) types() []alert.AlertType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]alert.AlertType, 0, len(r.alerts))
	for _, a := range r.alerts {
		out = append(out, a.Type)
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunner_SuccessMarksHealthy(t *testing.T) {
	stage := &fakeStage{name: "market", stats: worker.Stats{Claimed: 3, Succeeded: 3}}
	r := NewRunner(stage, WithRunnerLogger(discardLogger()))

	stats, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Succeeded)
	assert.Equal(t, string(HealthStatusHealthy), r.Health().Snapshot().Status)
}

func TestRunner_UnhealthyAndRecoveryAlerts(t *testing.T) {
	boom := errors.New("provider down")
	results := make([]error, DefaultUnhealthyThreshold)
	for i := range results {
		results[i] = boom
	}
	stage := &fakeStage{name: "security", results: results}
	alerter := &recordingAlerter{}
	r := NewRunner(stage, WithAlerter(alerter), WithRunnerLogger(discardLogger()))

	for i := 0; i < DefaultUnhealthyThreshold; i++ {
		_, err := r.Run(context.Background())
		require.ErrorIs(t, err, boom)
	}
	assert.Equal(t, string(HealthStatusUnhealthy), r.Health().Snapshot().Status)
	assert.Equal(t, []alert.AlertType{alert.AlertTypeUnhealthy}, alerter.types())

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []alert.AlertType{alert.AlertTypeUnhealthy, alert.AlertTypeRecovery}, alerter.types())
	assert.Equal(t, 0, r.Health().ConsecutiveFailures())
}

func TestRunner_OverlappingRunIsSkipped(t *testing.T) {
	stage := &fakeStage{name: "quality", block: make(chan struct{}), started: make(chan struct{}, 1)}
	r := NewRunner(stage, WithRunnerLogger(discardLogger()))

	done := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background())
		done <- err
	}()
	<-stage.started

	_, err := r.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(stage.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, stage.calls)
}

func TestRunner_TimeoutCancelsStage(t *testing.T) {
	stage := &fakeStage{name: "market", block: make(chan struct{})}
	r := NewRunner(stage, WithRunTimeout(20*time.Millisecond), WithRunnerLogger(discardLogger()))

	_, err := r.Run(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, r.Health().ConsecutiveFailures())
}

func TestRunner_PanicBecomesError(t *testing.T) {
	stage := &fakeStage{name: "discovery", panics: true}
	r := NewRunner(stage, WithRunnerLogger(discardLogger()))

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage discovery panic: boom")
	assert.Equal(t, "discovery", r.Health().Snapshot().Stage)
}

func TestRunner_StoppedRunIsHealthy(t *testing.T) {
	stage := &fakeStage{name: "security", stats: worker.Stats{Deferred: 4, Stopped: "cu_budget_exhausted"}}
	r := NewRunner(stage, WithRunnerLogger(discardLogger()))

	stats, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cu_budget_exhausted", stats.Stopped)
	assert.Equal(t, string(HealthStatusHealthy), r.Health().Snapshot().Status)
}

func TestScheduler_EmptySpecDeactivates(t *testing.T) {
	s := NewScheduler(discardLogger())
	r := NewRunner(&fakeStage{name: "quality"}, WithRunnerLogger(discardLogger()))

	require.NoError(t, s.Add(context.Background(), "", r))
	assert.Equal(t, string(HealthStatusInactive), r.Health().Snapshot().Status)
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := NewScheduler(discardLogger())
	r := NewRunner(&fakeStage{name: "market"}, WithRunnerLogger(discardLogger()))

	err := s.Add(context.Background(), "every two minutes", r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule market")
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(discardLogger())
	r := NewRunner(&fakeStage{name: "market"}, WithRunnerLogger(discardLogger()))
	require.NoError(t, s.Add(context.Background(), "*/2 * * * *", r))

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestScheduleParser_DefaultSchedules(t *testing.T) {
	from := time.Date(2026, 5, 1, 12, 1, 0, 0, time.UTC)
	tests := []struct {
		spec string
		next time.Time
	}{
		{"*/5 * * * *", time.Date(2026, 5, 1, 12, 5, 0, 0, time.UTC)},
		{"*/2 * * * *", time.Date(2026, 5, 1, 12, 2, 0, 0, time.UTC)},
		{"*/30 * * * *", time.Date(2026, 5, 1, 12, 30, 0, 0, time.UTC)},
		{"15 * * * *", time.Date(2026, 5, 1, 12, 15, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		sched, err := ScheduleParser.Parse(tt.spec)
		require.NoError(t, err, tt.spec)
		assert.Equal(t, tt.next, sched.Next(from), tt.spec)
	}
}
