// Package discovery pulls newly listed tokens from the DexScreener discovery
// endpoints and enqueues them for a market refresh.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
	"github.com/apfl99/DexSwipe-Backend/internal/metrics"
	"github.com/apfl99/DexSwipe-Backend/internal/pipeline/worker"
	"github.com/apfl99/DexSwipe-Backend/internal/provider/dexscreener"
	"github.com/apfl99/DexSwipe-Backend/internal/queue"
	"github.com/apfl99/DexSwipe-Backend/internal/store"
)

const (
	DefaultCap = 120

	TierPrimary   = "primary"
	TierSecondary = "secondary"
	TierSkip      = "skip"
	TierAll       = "all"

	ReasonNotRotationMinute = "not_rotation_minute"
)

var (
	PrimaryChains   = []model.ChainID{model.ChainSolana, model.ChainBase}
	SecondaryChains = []model.ChainID{model.ChainSui, model.ChainTron}
)

// Rotation picks the chain tier for a scheduled run. Primary chains run on
// minutes divisible by 10, secondary chains five minutes later, and every
// other minute is skipped.
func Rotation(now time.Time) (string, []model.ChainID) {
	switch now.UTC().Minute() % 10 {
	case 0:
		return TierPrimary, PrimaryChains
	case 5:
		return TierSecondary, SecondaryChains
	default:
		return TierSkip, nil
	}
}

// Lister is the DexScreener discovery surface.
type Lister interface {
	LatestProfiles(ctx context.Context) ([]dexscreener.Listing, error)
	LatestBoosts(ctx context.Context) ([]dexscreener.Listing, error)
	TopBoosts(ctx context.Context) ([]dexscreener.Listing, error)
	Takeovers(ctx context.Context) ([]dexscreener.Listing, error)
	Search(ctx context.Context, query string) ([]dexscreener.Pair, error)
}

type Config struct {
	Cap     int
	Sources []string
	// Rotate restricts each run to the tier of the current minute. When
	// false every registered chain is accepted.
	Rotate bool
	// SearchQueries feed the search source. Configuring any query adds the
	// source when it is not listed.
	SearchQueries []string
}

type Stage struct {
	cfg    Config
	queue  *queue.Queue
	runs   store.IngestionRunRepository
	lister Lister
	chains *model.ChainRegistry
	nowFn  func() time.Time
	logger *slog.Logger
}

func New(cfg Config, market *queue.Queue, runs store.IngestionRunRepository, lister Lister, chains *model.ChainRegistry, logger *slog.Logger) *Stage {
	if cfg.Cap <= 0 {
		cfg.Cap = DefaultCap
	}
	if len(cfg.Sources) == 0 {
		cfg.Sources = []string{model.SourceProfiles}
	}
	if len(cfg.SearchQueries) > 0 && !slices.Contains(cfg.Sources, model.SourceSearch) {
		cfg.Sources = append(slices.Clone(cfg.Sources), model.SourceSearch)
	}
	return &Stage{
		cfg:    cfg,
		queue:  market,
		runs:   runs,
		lister: lister,
		chains: chains,
		nowFn:  market.Now,
		logger: logger.With("component", "discovery_stage"),
	}
}

func (s *Stage) Name() string {
	return "discovery"
}

// fetchResult is one source's listings and its ingestion run.
type fetchResult struct {
	run      *model.IngestionRun
	listings []dexscreener.Listing
	err      error
}

func (s *Stage) Run(ctx context.Context) (worker.Stats, error) {
	var stats worker.Stats
	allowed, tier := s.allowedChains()
	if tier == TierSkip {
		stats.Stopped = ReasonNotRotationMinute
		return stats, nil
	}
	chainList := make([]model.ChainID, 0, len(allowed))
	for id := range allowed {
		chainList = append(chainList, id)
	}
	sort.Slice(chainList, func(a, b int) bool { return chainList[a] < chainList[b] })

	results := make([]fetchResult, len(s.cfg.Sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, source := range s.cfg.Sources {
		run := &model.IngestionRun{
			Source:    source,
			Status:    model.IngestionRunning,
			Chains:    chainList,
			StartedAt: s.nowFn(),
		}
		if err := s.runs.StartRun(ctx, run); err != nil {
			return stats, fmt.Errorf("start %s ingestion run: %w", source, err)
		}
		results[i].run = run
		g.Go(func() error {
			results[i].listings, results[i].err = s.fetch(gctx, source)
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[model.TokenKey]bool)
	perSource := make([][]model.TokenKey, len(results))
	failed := 0
	for i, r := range results {
		if r.err != nil {
			failed++
			continue
		}
		r.run.Fetched = len(r.listings)
		stats.Fetched += len(r.listings)
		for _, l := range r.listings {
			if len(seen) >= s.cfg.Cap {
				break
			}
			id := model.ChainID(strings.TrimSpace(l.ChainID))
			addr := strings.TrimSpace(l.TokenAddress)
			if addr == "" || !allowed[id] {
				continue
			}
			key := s.chains.Key(id, addr)
			if seen[key] {
				continue
			}
			seen[key] = true
			perSource[i] = append(perSource[i], key)
		}
	}

	var enqueueErr error
	for i, r := range results {
		cause := r.err
		if cause == nil {
			cause = enqueueErr
		}
		if cause == nil {
			res, err := s.queue.Enqueue(ctx, perSource[i]...)
			if err != nil {
				enqueueErr = fmt.Errorf("enqueue %s tokens: %w", r.run.Source, err)
				cause = enqueueErr
			} else {
				r.run.Enqueued = res.Inserted
				stats.Enqueued += res.Inserted
				metrics.DiscoveredTokensTotal.WithLabelValues(r.run.Source).Add(float64(res.Inserted))
			}
		}
		s.finish(ctx, r.run, cause)
	}

	s.logger.Info("discovery completed",
		"tier", tier,
		"sources", len(results),
		"failed_sources", failed,
		"fetched", stats.Fetched,
		"unique", len(seen),
		"enqueued", stats.Enqueued,
	)
	if enqueueErr != nil {
		return stats, enqueueErr
	}
	if len(results) > 0 && failed == len(results) {
		return stats, fmt.Errorf("all %d discovery sources failed: %w", failed, results[0].err)
	}
	return stats, nil
}

func (s *Stage) allowedChains() (map[model.ChainID]bool, string) {
	allowed := make(map[model.ChainID]bool)
	if !s.cfg.Rotate {
		for _, c := range s.chains.All() {
			allowed[c.ID] = true
		}
		return allowed, TierAll
	}
	tier, ids := Rotation(s.nowFn())
	for _, id := range ids {
		allowed[id] = true
	}
	return allowed, tier
}

func (s *Stage) fetch(ctx context.Context, source string) ([]dexscreener.Listing, error) {
	switch source {
	case model.SourceProfiles:
		return s.lister.LatestProfiles(ctx)
	case model.SourceBoostsNew:
		return s.lister.LatestBoosts(ctx)
	case model.SourceBoostsTop:
		return s.lister.TopBoosts(ctx)
	case model.SourceTakeovers:
		return s.lister.Takeovers(ctx)
	case model.SourceSearch:
		return s.search(ctx)
	default:
		return nil, fmt.Errorf("unknown discovery source %q", source)
	}
}

// search maps the base token of every matched pair to a listing. Queries
// run in order and the first failure fails the source.
func (s *Stage) search(ctx context.Context) ([]dexscreener.Listing, error) {
	var out []dexscreener.Listing
	for _, q := range s.cfg.SearchQueries {
		pairs, err := s.lister.Search(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, p := range pairs {
			out = append(out, dexscreener.Listing{
				ChainID:      p.ChainID,
				TokenAddress: p.BaseToken.Address,
				URL:          p.URL,
			})
		}
	}
	return out, nil
}

func (s *Stage) finish(ctx context.Context, run *model.IngestionRun, cause error) {
	finished := s.nowFn()
	run.FinishedAt = &finished
	run.Status = model.IngestionSucceeded
	if cause != nil {
		msg := cause.Error()
		run.Status = model.IngestionFailed
		run.Error = &msg
		s.logger.Warn("discovery source failed", "source", run.Source, "error", cause)
	}
	if err := s.runs.FinishRun(ctx, run); err != nil {
		s.logger.Warn("finish ingestion run", "source", run.Source, "run_id", run.ID, "error", err)
	}
}
