package pipeline

import (
	"sync"
	"time"
)

// HealthStatus represents the health state of a stage.
type HealthStatus string

const (
	HealthStatusUnknown   HealthStatus = "UNKNOWN"
	HealthStatusHealthy   HealthStatus = "HEALTHY"
	HealthStatusUnhealthy HealthStatus = "UNHEALTHY"
	HealthStatusInactive  HealthStatus = "INACTIVE"

	// DefaultUnhealthyThreshold is the number of consecutive failed runs
	// before a stage is considered unhealthy.
	DefaultUnhealthyThreshold = 3
)

// gaugeValue is the health_status metric encoding.
func (s HealthStatus) gaugeValue() float64 {
	switch s {
	case HealthStatusHealthy:
		return 1
	case HealthStatusUnhealthy:
		return 2
	case HealthStatusInactive:
		return 3
	default:
		return 0
	}
}

// StageHealth tracks the health of one stage across invocations.
type StageHealth struct {
	mu                  sync.RWMutex
	stage               string
	status              HealthStatus
	consecutiveFailures int
	unhealthyThreshold  int
	lastSuccessAt       *time.Time
	lastFailureAt       *time.Time
	lastError           string
	lastDuration        time.Duration
	nowFn               func() time.Time
}

func NewStageHealth(stage string, nowFn func() time.Time) *StageHealth {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &StageHealth{
		stage:              stage,
		status:             HealthStatusUnknown,
		unhealthyThreshold: DefaultUnhealthyThreshold,
		nowFn:              nowFn,
	}
}

func (h *StageHealth) SetStatus(status HealthStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = status
}

// RecordSuccess records a successful run and reports whether it recovered
// the stage from an unhealthy state.
func (h *StageHealth) RecordSuccess(took time.Duration) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.nowFn()
	wasUnhealthy := h.status == HealthStatusUnhealthy
	h.consecutiveFailures = 0
	h.lastSuccessAt = &now
	h.lastDuration = took
	h.lastError = ""
	h.status = HealthStatusHealthy
	return wasUnhealthy
}

// RecordFailure records a failed run. It returns true if the stage
// transitioned to unhealthy on this call.
func (h *StageHealth) RecordFailure(err error, took time.Duration) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.nowFn()
	h.consecutiveFailures++
	h.lastFailureAt = &now
	h.lastDuration = took
	if err != nil {
		h.lastError = err.Error()
	}
	if h.consecutiveFailures >= h.unhealthyThreshold && h.status != HealthStatusUnhealthy {
		h.status = HealthStatusUnhealthy
		return true
	}
	return false
}

func (h *StageHealth) ConsecutiveFailures() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.consecutiveFailures
}

// Snapshot returns the current health state.
func (h *StageHealth) Snapshot() HealthSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HealthSnapshot{
		Stage:               h.stage,
		Status:              string(h.status),
		ConsecutiveFailures: h.consecutiveFailures,
		LastSuccessAt:       h.lastSuccessAt,
		LastFailureAt:       h.lastFailureAt,
		LastError:           h.lastError,
		LastDurationMs:      h.lastDuration.Milliseconds(),
	}
}

// HealthSnapshot is a point-in-time view of stage health (JSON-safe).
type HealthSnapshot struct {
	Stage               string     `json:"stage"`
	Status              string     `json:"status"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
	LastDurationMs      int64      `json:"last_duration_ms"`
}
