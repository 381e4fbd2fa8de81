package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while a provider is being shed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// Breaker stops calls to a provider after consecutive failures and lets a
// probe through once the open timeout has passed.
type Breaker struct {
	mu               sync.Mutex
	state            State
	failureCount     int
	successCount     int
	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
	openedAt         time.Time
	nowFn            func() time.Time
	onStateChange    func(from, to State)
	countsAsFailure  func(error) bool
}

type Config struct {
	FailureThreshold int           // default 5
	SuccessThreshold int           // probes needed to close from half-open, default 2
	OpenTimeout      time.Duration // default 30s
	OnStateChange    func(from, to State)
	// CountsAsFailure filters errors passed to Do. Nil counts every error.
	CountsAsFailure func(error) bool
	Now             func() time.Time
}

func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		openTimeout:      cfg.OpenTimeout,
		nowFn:            cfg.Now,
		onStateChange:    cfg.OnStateChange,
		countsAsFailure:  cfg.CountsAsFailure,
	}
}

// Allow returns ErrCircuitOpen while the breaker is open.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpen()
	if b.state == StateOpen {
		return ErrCircuitOpen
	}
	return nil
}

// Do runs fn when allowed and records its outcome.
func (b *Breaker) Do(fn func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn()
	switch {
	case err == nil:
		b.RecordSuccess()
	case b.countsAsFailure == nil || b.countsAsFailure(err):
		b.RecordFailure()
	default:
		// the provider answered; only the request was bad
		b.RecordSuccess()
	}
	return err
}

func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
	if b.state == StateHalfOpen {
		b.successCount++
		if b.successCount >= b.successThreshold {
			b.setState(StateClosed)
		}
	}
}

func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount++
	b.successCount = 0
	switch {
	case b.state == StateHalfOpen:
		b.open()
	case b.state == StateClosed && b.failureCount >= b.failureThreshold:
		b.open()
	}
}

func (b *Breaker) GetState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpen()
	return b.state
}

func (b *Breaker) open() {
	b.openedAt = b.nowFn()
	b.setState(StateOpen)
}

func (b *Breaker) maybeHalfOpen() {
	if b.state == StateOpen && b.nowFn().Sub(b.openedAt) >= b.openTimeout {
		b.setState(StateHalfOpen)
	}
}

func (b *Breaker) setState(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.successCount = 0
	if to == StateClosed {
		b.failureCount = 0
	}
	if b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
