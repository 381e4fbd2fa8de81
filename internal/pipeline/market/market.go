// Package market is the market refresh stage. It re-reads queued tokens from
// DexScreener in chunks of 30 per chain, stores the best-pair snapshot, and
// feeds tokens that pass the liquidity and volume gates to the scan stages.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/apfl99/DexSwipe-Backend/internal/config"
	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
	"github.com/apfl99/DexSwipe-Backend/internal/pipeline/worker"
	"github.com/apfl99/DexSwipe-Backend/internal/provider/dexscreener"
	"github.com/apfl99/DexSwipe-Backend/internal/queue"
	"github.com/apfl99/DexSwipe-Backend/internal/store"
)

const (
	DefaultBatchSize = 60
	DefaultMaxJobs   = 120

	RescanAfter       = 30 * time.Minute
	NoPairRescanAfter = 6 * time.Hour
	InactivityCutoff  = 24 * time.Hour
	NoteNoPairFound   = "no_pair_found"
)

type Source interface {
	Tokens(ctx context.Context, chain model.ChainID, addresses []string) ([]dexscreener.Pair, error)
}

type Config struct {
	Plan      config.PlanConfig
	Limits    worker.Limits
	MaxChains int
}

// Stage refreshes market snapshots and distributes scan work.
type Stage struct {
	cfg      Config
	queue    *queue.Queue
	security *queue.Queue
	quality  *queue.Queue
	tokens   store.TokenRepository
	source   Source
	chains   *model.ChainRegistry
	nowFn    func() time.Time
	logger   *slog.Logger
}

type Queues struct {
	Market   *queue.Queue
	Security *queue.Queue
	Quality  *queue.Queue
}

func New(cfg Config, queues Queues, tokens store.TokenRepository, source Source, chains *model.ChainRegistry, logger *slog.Logger) *Stage {
	if cfg.Limits.BatchSize <= 0 {
		cfg.Limits.BatchSize = DefaultBatchSize
	}
	if cfg.Limits.MaxJobs <= 0 {
		cfg.Limits.MaxJobs = DefaultMaxJobs
	}
	return &Stage{
		cfg:      cfg,
		queue:    queues.Market,
		security: queues.Security,
		quality:  queues.Quality,
		tokens:   tokens,
		source:   source,
		chains:   chains,
		nowFn:    queues.Market.Now,
		logger:   logger.With("component", "market_stage"),
	}
}

func (s *Stage) Name() string {
	return string(model.StageMarket)
}

func (s *Stage) Run(ctx context.Context) (worker.Stats, error) {
	tally := &worker.Tally{}
	err := worker.Drain(ctx, s.queue, s.cfg.Limits, tally, func(ctx context.Context, jobs []model.Job) error {
		return worker.PerChain(ctx, jobs, s.cfg.MaxChains, func(ctx context.Context, chain model.ChainID, jobs []model.Job) error {
			for start := 0; start < len(jobs); start += dexscreener.MaxAddressesPerCall {
				end := min(start+dexscreener.MaxAddressesPerCall, len(jobs))
				if err := s.processChunk(ctx, chain, jobs[start:end], tally); err != nil {
					return err
				}
			}
			return nil
		})
	})
	return tally.Stats(), err
}

// processChunk handles up to 30 jobs of one chain with a single provider
// call. A provider failure fails every job of the chunk.
func (s *Stage) processChunk(ctx context.Context, chainID model.ChainID, jobs []model.Job, tally *worker.Tally) error {
	chain, _ := s.chains.Lookup(chainID)
	addrs := make([]string, len(jobs))
	keys := make([]model.TokenKey, len(jobs))
	for i, j := range jobs {
		addrs[i] = j.TokenAddress
		keys[i] = j.Key()
	}

	pairs, err := s.source.Tokens(ctx, chainID, addrs)
	if err != nil {
		return s.failAll(ctx, jobs, err, tally)
	}
	prev, err := s.tokens.GetSnapshots(ctx, keys)
	if err != nil {
		return s.failAll(ctx, jobs, fmt.Errorf("load snapshots: %w", err), tally)
	}

	now := s.nowFn()
	type verdict struct {
		job      model.Job
		found    bool
		inactive bool
		gated    bool
	}
	verdicts := make([]verdict, len(jobs))
	snaps := make([]model.TokenSnapshot, 0, len(jobs))
	for i, job := range jobs {
		v := verdict{job: job}
		last := prev[job.Key()]
		best, ok := dexscreener.BestPair(pairs, job.TokenAddress)
		if ok {
			snap := dexscreener.Snapshot(chainID, job.TokenAddress, best, now).CarryActivity(last)
			snaps = append(snaps, snap)
			v.found = true
			v.gated = s.passesGates(snap)
			last = snap
		}
		v.inactive = last.InactiveFor(InactivityCutoff, job.CreatedAt, now)
		verdicts[i] = v
	}

	if len(snaps) > 0 {
		if err := s.tokens.UpsertSnapshots(ctx, snaps); err != nil {
			if ferr := s.failAll(ctx, jobs, err, tally); ferr != nil {
				return ferr
			}
			return fmt.Errorf("store %s snapshots: %w", chainID, err)
		}
	}

	var toSecurity, toQuality []model.TokenKey
	for _, v := range verdicts {
		var (
			outcome string
			err     error
		)
		switch {
		case v.inactive:
			outcome = queue.OutcomeSuppressed
			err = s.queue.Suppress(ctx, v.job, queue.ClassInactive, "")
		case !v.found:
			outcome = queue.OutcomeSucceeded
			err = s.queue.SucceedWithNote(ctx, v.job, NoPairRescanAfter, NoteNoPairFound)
		default:
			outcome = queue.OutcomeSucceeded
			err = s.queue.Succeed(ctx, v.job, RescanAfter)
			if v.gated {
				toQuality = append(toQuality, v.job.Key())
				if chain.SecuritySupported() {
					toSecurity = append(toSecurity, v.job.Key())
				}
			}
		}
		if err != nil {
			return err
		}
		tally.Record(outcome)
	}

	if _, err := s.security.Enqueue(ctx, toSecurity...); err != nil {
		return err
	}
	if _, err := s.quality.Enqueue(ctx, toQuality...); err != nil {
		return err
	}
	return nil
}

func (s *Stage) passesGates(snap model.TokenSnapshot) bool {
	liq, vol := 0.0, 0.0
	if snap.LiquidityUSD != nil {
		liq = *snap.LiquidityUSD
	}
	if snap.Volume24h != nil {
		vol = *snap.Volume24h
	}
	return liq >= s.cfg.Plan.ScanMinLiquidityUSD && vol >= s.cfg.Plan.ScanMinVolume24hUSD
}

func (s *Stage) failAll(ctx context.Context, jobs []model.Job, cause error, tally *worker.Tally) error {
	s.logger.Warn("market chunk failed", "chain", jobs[0].ChainID, "jobs", len(jobs), "error", cause)
	for _, job := range jobs {
		outcome, err := worker.Fail(ctx, s.queue, job, cause)
		if err != nil {
			return err
		}
		tally.Record(outcome)
	}
	return nil
}
