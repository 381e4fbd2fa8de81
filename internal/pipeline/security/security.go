// Package security is the token-security scan stage. It spends the CU
// budget on GoPlus scans for queued tokens whose cached verdict is stale.
package security

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/apfl99/DexSwipe-Backend/internal/alert"
	"github.com/apfl99/DexSwipe-Backend/internal/budget"
	"github.com/apfl99/DexSwipe-Backend/internal/circuitbreaker"
	"github.com/apfl99/DexSwipe-Backend/internal/config"
	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
	"github.com/apfl99/DexSwipe-Backend/internal/metrics"
	"github.com/apfl99/DexSwipe-Backend/internal/pipeline/worker"
	"github.com/apfl99/DexSwipe-Backend/internal/queue"
	"github.com/apfl99/DexSwipe-Backend/internal/store"
)

// ReasonCircuitOpen is written to last_error of jobs deferred while the
// provider breaker is open.
const ReasonCircuitOpen = "provider_circuit_open"

// minRescan keeps a fresh-cache job from being re-leased immediately.
const minRescan = time.Minute

type Scanner interface {
	TokenSecurity(ctx context.Context, chain model.Chain, address string) (model.SecurityEntry, error)
}

type Cache interface {
	GetSecurity(ctx context.Context, keys []model.TokenKey) (map[model.TokenKey]model.SecurityEntry, error)
	PutSecurity(ctx context.Context, entry model.SecurityEntry) (store.PutResult, error)
	SecurityFresh(e model.SecurityEntry) bool
}

type Config struct {
	Plan      config.PlanConfig
	Costs     budget.CostTable
	Limits    worker.Limits
	Deferral  time.Duration
	MaxChains int
}

type Stage struct {
	cfg     Config
	queue   *queue.Queue
	cache   Cache
	scanner Scanner
	chains  *model.ChainRegistry
	daily   store.DailyUsageRepository
	alerter alert.Alerter
	nowFn   func() time.Time
	logger  *slog.Logger
}

type Option func(*Stage)

func WithDailyCounter(d store.DailyUsageRepository) Option {
	return func(s *Stage) { s.daily = d }
}

func WithAlerter(a alert.Alerter) Option {
	return func(s *Stage) { s.alerter = a }
}

func WithClock(nowFn func() time.Time) Option {
	return func(s *Stage) { s.nowFn = nowFn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Stage) { s.logger = logger }
}

func New(cfg Config, q *queue.Queue, cache Cache, scanner Scanner, chains *model.ChainRegistry, opts ...Option) *Stage {
	if cfg.Deferral <= 0 {
		cfg.Deferral = budget.DefaultDeferral
	}
	s := &Stage{
		cfg:     cfg,
		queue:   q,
		cache:   cache,
		scanner: scanner,
		chains:  chains,
		alerter: &alert.NoopAlerter{},
		nowFn:   time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "security_stage")
	return s
}

func (s *Stage) Name() string {
	return string(model.StageSecurity)
}

// Run drains up to the invocation cap of security jobs. A fresh governor
// is built per run, so the CU ledger starts at zero every time.
func (s *Stage) Run(ctx context.Context) (worker.Stats, error) {
	gov := budget.NewGovernor(model.StageSecurity, s.cfg.Plan, s.cfg.Costs, s.chains,
		budget.WithDailyCounter(s.daily),
		budget.WithDeferral(s.cfg.Deferral),
		budget.WithClock(s.nowFn),
		budget.WithLogger(s.logger),
	)
	tally := &worker.Tally{}

	err := worker.Drain(ctx, s.queue, s.cfg.Limits, tally, func(ctx context.Context, jobs []model.Job) error {
		keys := make([]model.TokenKey, len(jobs))
		for i, j := range jobs {
			keys[i] = j.Key()
		}
		cached, err := s.cache.GetSecurity(ctx, keys)
		if err != nil {
			return fmt.Errorf("load cached security: %w", err)
		}
		err = worker.PerChain(ctx, jobs, s.cfg.MaxChains, func(ctx context.Context, id model.ChainID, jobs []model.Job) error {
			chain, _ := s.chains.Lookup(id)
			for _, job := range jobs {
				outcome, err := s.process(ctx, gov, tally, chain, job, cached)
				if err != nil {
					return err
				}
				tally.Record(outcome)
			}
			return nil
		})
		if v, stopped := gov.Stopped(); stopped {
			tally.Stop(v.Reason)
		}
		return err
	})

	stats := tally.Stats()
	if v, stopped := gov.Stopped(); stopped {
		s.alertBudget(ctx, v, stats, gov.Ledger())
	}
	return stats, err
}

func (s *Stage) process(ctx context.Context, gov *budget.Governor, tally *worker.Tally, chain model.Chain, job model.Job, cached map[model.TokenKey]model.SecurityEntry) (string, error) {
	if !chain.SecuritySupported() {
		return queue.OutcomeSuppressed, s.queue.Suppress(ctx, job, queue.ClassUnsupportedChain, "")
	}
	if e, ok := cached[job.Key()]; ok {
		if e.AlwaysDeny {
			return queue.OutcomeSuppressed, s.queue.Suppress(ctx, job, queue.ClassAlwaysDeny, denyDetail(e))
		}
		if s.cache.SecurityFresh(e) {
			return queue.OutcomeSucceeded, s.queue.Succeed(ctx, job, s.remainingTTL(e))
		}
	}

	v, err := gov.Admit(ctx, job)
	if err != nil {
		return "", err
	}
	if !v.Allowed {
		metrics.BudgetDeferredJobsTotal.WithLabelValues(s.Name(), v.Reason).Inc()
		return queue.OutcomeDeferred, s.queue.Defer(ctx, job, v.RetryAt, v.Reason)
	}

	entry, err := s.scanner.TokenSecurity(ctx, chain, job.TokenAddress)
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		gov.Ledger().Refund(v.Cost)
		if !tally.Stopped() {
			s.alertCircuit(ctx, chain)
		}
		tally.Stop(ReasonCircuitOpen)
		return queue.OutcomeDeferred, s.queue.Defer(ctx, job, s.nowFn().Add(s.cfg.Deferral), ReasonCircuitOpen)
	}
	if err != nil {
		return worker.Fail(ctx, s.queue, job, err)
	}

	res, err := s.cache.PutSecurity(ctx, entry)
	if err != nil {
		if ferr := s.queue.Fail(ctx, job, err); ferr != nil {
			s.logger.Warn("fail job after cache write error", "chain", job.ChainID, "token_address", job.TokenAddress, "error", ferr)
		}
		return "", fmt.Errorf("store security scan %s: %w", job.Key(), err)
	}
	if entry.AlwaysDeny || res.Outcome == store.PutKeptDeny {
		return queue.OutcomeSuppressed, s.queue.Suppress(ctx, job, queue.ClassAlwaysDeny, denyDetail(entry))
	}
	if entry.Limited {
		// stored so the feed reports limited checks, retried on the stage backoff
		return worker.Fail(ctx, s.queue, job, fmt.Errorf("limited security scan: %s", entry.LimitReason))
	}
	return queue.OutcomeSucceeded, s.queue.Succeed(ctx, job, s.cfg.Plan.CacheTTL())
}

func (s *Stage) remainingTTL(e model.SecurityEntry) time.Duration {
	left := s.cfg.Plan.CacheTTL() - s.nowFn().Sub(e.ScannedAt)
	return max(left, minRescan)
}

func denyDetail(e model.SecurityEntry) string {
	if len(e.DenyReasons) == 0 {
		return ""
	}
	return string(queue.ClassAlwaysDeny) + ": " + strings.Join(e.DenyReasons, ",")
}

func (s *Stage) alertBudget(ctx context.Context, v budget.Verdict, stats worker.Stats, ledger *budget.Ledger) {
	err := s.alerter.Send(ctx, alert.Alert{
		Type:    alert.AlertTypeBudgetExhausted,
		Stage:   s.Name(),
		Subject: v.Reason,
		Title:   "Security scans stopped by budget",
		Message: fmt.Sprintf("%d jobs deferred until %s", stats.Deferred, v.RetryAt.UTC().Format(time.RFC3339)),
		Fields: map[string]string{
			"reason":    v.Reason,
			"cu_used":   fmt.Sprint(ledger.Used()),
			"cu_budget": fmt.Sprint(ledger.Limit()),
			"scanned":   fmt.Sprint(stats.Succeeded + stats.Suppressed),
		},
	})
	if err != nil {
		s.logger.Warn("send budget alert", "error", err)
	}
}

func (s *Stage) alertCircuit(ctx context.Context, chain model.Chain) {
	err := s.alerter.Send(ctx, alert.Alert{
		Type:    alert.AlertTypeCircuitOpen,
		Chain:   string(chain.ID),
		Stage:   s.Name(),
		Subject: "goplus",
		Title:   "GoPlus circuit breaker open",
		Message: "security scans deferred until the provider recovers",
	})
	if err != nil {
		s.logger.Warn("send circuit alert", "error", err)
	}
}
