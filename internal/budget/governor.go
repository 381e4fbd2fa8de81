package budget

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/apfl99/DexSwipe-Backend/internal/config"
	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
	"github.com/apfl99/DexSwipe-Backend/internal/metrics"
	"github.com/apfl99/DexSwipe-Backend/internal/store"
)

// Stop reasons, written to last_error of deferred jobs.
const (
	ReasonBudgetExhausted = "cu_budget_exhausted"
	ReasonDailyCapReached = "daily_scan_cap_reached"
)

// DefaultDeferral is how long budget-deferred jobs wait.
const DefaultDeferral = 10 * time.Minute

// Verdict is the governor's answer for one job.
type Verdict struct {
	Allowed bool
	Cost    uint
	// Reason and RetryAt are set when Allowed is false.
	Reason  string
	RetryAt time.Time
}

// Governor gates provider calls of one run on the CU budget and the daily
// scan cap. Once it refuses a job it refuses every later job of the run.
type Governor struct {
	stage    model.Stage
	costs    CostTable
	chains   *model.ChainRegistry
	ledger   *Ledger
	daily    store.DailyUsageRepository
	dailyMax *uint
	deferral time.Duration
	nowFn    func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	stopped *Verdict
}

type Option func(*Governor)

// WithDailyCounter enables the daily cap. A nil cap in the plan disables it
// regardless.
func WithDailyCounter(daily store.DailyUsageRepository) Option {
	return func(g *Governor) { g.daily = daily }
}

func WithDeferral(d time.Duration) Option {
	return func(g *Governor) {
		if d > 0 {
			g.deferral = d
		}
	}
}

func WithClock(nowFn func() time.Time) Option {
	return func(g *Governor) { g.nowFn = nowFn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Governor) { g.logger = logger }
}

// NewGovernor builds a governor with a fresh ledger for one run.
func NewGovernor(stage model.Stage, plan config.PlanConfig, costs CostTable, chains *model.ChainRegistry, opts ...Option) *Governor {
	if costs == nil {
		costs = DefaultCostTable()
	}
	g := &Governor{
		stage:    stage,
		costs:    costs,
		chains:   chains,
		ledger:   NewLedger(plan.CUBudgetPerRun),
		dailyMax: plan.DailyMaxScans,
		deferral: DefaultDeferral,
		nowFn:    time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "budget_governor", "stage", string(stage))
	return g
}

// EstimateCost prices a job by its chain family.
func (g *Governor) EstimateCost(job model.Job) uint {
	chain, _ := g.chains.Lookup(job.ChainID)
	return g.costs.Cost(chain.Family)
}

func (g *Governor) Ledger() *Ledger {
	return g.ledger
}

// Admit charges the job's cost and counts it against the daily cap, or
// returns a refusal that stops the rest of the run.
func (g *Governor) Admit(ctx context.Context, job model.Job) (Verdict, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stopped != nil {
		return *g.stopped, nil
	}

	cost := g.EstimateCost(job)
	if !g.ledger.TryCharge(cost) {
		return g.stop(ReasonBudgetExhausted, cost), nil
	}

	if g.daily != nil && g.dailyMax != nil {
		now := g.nowFn()
		ok, err := g.daily.Reserve(ctx, now, *g.dailyMax)
		if err != nil {
			g.ledger.Refund(cost)
			return Verdict{}, fmt.Errorf("reserve daily scan: %w", err)
		}
		if !ok {
			g.ledger.Refund(cost)
			return g.stop(ReasonDailyCapReached, cost), nil
		}
	}

	chain, _ := g.chains.Lookup(job.ChainID)
	metrics.BudgetCUSpentTotal.WithLabelValues(string(g.stage), string(chain.Family)).Add(float64(cost))
	return Verdict{Allowed: true, Cost: cost}, nil
}

// Stopped returns the refusal that ended the run, if any.
func (g *Governor) Stopped() (Verdict, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped == nil {
		return Verdict{}, false
	}
	return *g.stopped, true
}

func (g *Governor) stop(reason string, cost uint) Verdict {
	now := g.nowFn()
	v := Verdict{Cost: cost, Reason: reason}
	switch reason {
	case ReasonDailyCapReached:
		v.RetryAt = NextUTCMidnight(now)
	default:
		v.RetryAt = now.Add(g.deferral)
	}
	g.stopped = &v
	metrics.BudgetStopsTotal.WithLabelValues(string(g.stage), reason).Inc()
	g.logger.Info("run stopped by governor",
		"reason", reason,
		"cu_used", g.ledger.Used(),
		"cu_budget", g.ledger.Limit(),
		"retry_at", v.RetryAt,
	)
	return v
}

// NextUTCMidnight returns the start of the UTC day after t.
func NextUTCMidnight(t time.Time) time.Time {
	return store.DayKey(t).Add(24 * time.Hour)
}
