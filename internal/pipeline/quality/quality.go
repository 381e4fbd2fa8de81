// Package quality is the quality scan stage: phishing and dApp checks for a
// token's website, plus rugpull detection on EVM chains.
package quality

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
	"github.com/apfl99/DexSwipe-Backend/internal/pipeline/worker"
	"github.com/apfl99/DexSwipe-Backend/internal/queue"
	"github.com/apfl99/DexSwipe-Backend/internal/store"
)

const (
	DefaultBatchSize   = 20
	DefaultMaxJobs     = 30
	DefaultRescanAfter = 24 * time.Hour
)

type Checker interface {
	Rugpull(ctx context.Context, chain model.Chain, address string) (model.RugpullEntry, error)
	URLRisk(ctx context.Context, site string) (model.URLRiskEntry, error)
}

type Cache interface {
	GetRugpull(ctx context.Context, keys []model.TokenKey) (map[model.TokenKey]model.RugpullEntry, error)
	PutRugpull(ctx context.Context, entry model.RugpullEntry) error
	RugpullFresh(e model.RugpullEntry) bool
	GetURLRisk(ctx context.Context, urls []string) (map[string]model.URLRiskEntry, error)
	PutURLRisk(ctx context.Context, entry model.URLRiskEntry) error
	URLRiskFresh(e model.URLRiskEntry) bool
}

type Config struct {
	Limits      worker.Limits
	RescanAfter time.Duration
	MaxChains   int
}

type Stage struct {
	cfg     Config
	queue   *queue.Queue
	tokens  store.TokenRepository
	cache   Cache
	checker Checker
	chains  *model.ChainRegistry
	logger  *slog.Logger
}

func New(cfg Config, q *queue.Queue, tokens store.TokenRepository, cache Cache, checker Checker, chains *model.ChainRegistry, logger *slog.Logger) *Stage {
	if cfg.Limits.BatchSize <= 0 {
		cfg.Limits.BatchSize = DefaultBatchSize
	}
	if cfg.Limits.MaxJobs <= 0 {
		cfg.Limits.MaxJobs = DefaultMaxJobs
	}
	if cfg.RescanAfter <= 0 {
		cfg.RescanAfter = DefaultRescanAfter
	}
	return &Stage{
		cfg:     cfg,
		queue:   q,
		tokens:  tokens,
		cache:   cache,
		checker: checker,
		chains:  chains,
		logger:  logger.With("component", "quality_stage"),
	}
}

func (s *Stage) Name() string {
	return string(model.StageQuality)
}

func (s *Stage) Run(ctx context.Context) (worker.Stats, error) {
	tally := &worker.Tally{}
	err := worker.Drain(ctx, s.queue, s.cfg.Limits, tally, func(ctx context.Context, jobs []model.Job) error {
		keys := make([]model.TokenKey, len(jobs))
		for i, j := range jobs {
			keys[i] = j.Key()
		}
		snaps, err := s.tokens.GetSnapshots(ctx, keys)
		if err != nil {
			return fmt.Errorf("load token snapshots: %w", err)
		}
		return worker.PerChain(ctx, jobs, s.cfg.MaxChains, func(ctx context.Context, id model.ChainID, jobs []model.Job) error {
			chain, _ := s.chains.Lookup(id)
			for _, job := range jobs {
				outcome, err := s.process(ctx, chain, job, strings.TrimSpace(snaps[job.Key()].WebsiteURL))
				if err != nil {
					return err
				}
				tally.Record(outcome)
			}
			return nil
		})
	})
	return tally.Stats(), err
}

func (s *Stage) process(ctx context.Context, chain model.Chain, job model.Job, website string) (string, error) {
	if err := s.checkURL(ctx, website); err != nil {
		return worker.Fail(ctx, s.queue, job, err)
	}
	if chain.RugpullSupported() {
		if err := s.checkRugpull(ctx, chain, job); err != nil {
			return worker.Fail(ctx, s.queue, job, err)
		}
	}
	return queue.OutcomeSucceeded, s.queue.Succeed(ctx, job, s.cfg.RescanAfter)
}

func (s *Stage) checkURL(ctx context.Context, site string) error {
	if site == "" {
		return nil
	}
	cached, err := s.cache.GetURLRisk(ctx, []string{site})
	if err != nil {
		return err
	}
	if e, ok := cached[site]; ok && s.cache.URLRiskFresh(e) {
		return nil
	}
	entry, err := s.checker.URLRisk(ctx, site)
	if err != nil {
		return err
	}
	return s.cache.PutURLRisk(ctx, entry)
}

func (s *Stage) checkRugpull(ctx context.Context, chain model.Chain, job model.Job) error {
	cached, err := s.cache.GetRugpull(ctx, []model.TokenKey{job.Key()})
	if err != nil {
		return err
	}
	if e, ok := cached[job.Key()]; ok && s.cache.RugpullFresh(e) {
		return nil
	}
	entry, err := s.checker.Rugpull(ctx, chain, job.TokenAddress)
	if err != nil {
		return err
	}
	if entry.IsRugpullRisk != nil && *entry.IsRugpullRisk {
		s.logger.Info("rugpull risk flagged", "chain", chain.ID, "token_address", job.TokenAddress, "risk_level", entry.RiskLevel)
	}
	return s.cache.PutRugpull(ctx, entry)
}
