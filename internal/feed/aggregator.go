package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/apfl99/DexSwipe-Backend/internal/config"
	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
	"github.com/apfl99/DexSwipe-Backend/internal/metrics"
	"github.com/apfl99/DexSwipe-Backend/internal/provider/dexscreener"
	"github.com/apfl99/DexSwipe-Backend/internal/risk"
	"github.com/apfl99/DexSwipe-Backend/internal/store"
	"github.com/apfl99/DexSwipe-Backend/internal/tracing"
)

const (
	DefaultLimit         = 30
	MaxLimit             = 100
	DefaultWishlistLimit = 100
	MaxWishlistLimit     = 200

	DefaultLatencyCeiling = 1500 * time.Millisecond
	DefaultStaleAfter     = 5 * time.Minute
)

// MarketSource fetches live pairs for up to 30 addresses on one chain.
type MarketSource interface {
	Tokens(ctx context.Context, chain model.ChainID, addresses []string) ([]dexscreener.Pair, error)
}

// RiskReader reads cached risk evidence.
type RiskReader interface {
	GetSecurity(ctx context.Context, keys []model.TokenKey) (map[model.TokenKey]model.SecurityEntry, error)
	GetRugpull(ctx context.Context, keys []model.TokenKey) (map[model.TokenKey]model.RugpullEntry, error)
	GetURLRisk(ctx context.Context, urls []string) (map[string]model.URLRiskEntry, error)
}

type Deps struct {
	Feed     store.FeedRepository
	Tokens   store.TokenRepository
	Wishlist store.WishlistRepository
	Risk     RiskReader
	// Jobs is optional; when set, verbose rows carry queue state.
	Jobs store.JobQueueRepository
	// Market is optional; nil disables live refresh.
	Market MarketSource
	Chains *model.ChainRegistry
}

type Settings struct {
	LatencyCeiling time.Duration
	StaleAfter     time.Duration
}

// Aggregator serves the ranked feed and the wishlist view.
type Aggregator struct {
	deps     Deps
	plan     config.PlanConfig
	settings Settings
	nowFn    func() time.Time
	logger   *slog.Logger
}

func NewAggregator(deps Deps, plan config.PlanConfig, settings Settings, logger *slog.Logger) *Aggregator {
	if settings.LatencyCeiling <= 0 {
		settings.LatencyCeiling = DefaultLatencyCeiling
	}
	if settings.StaleAfter <= 0 {
		settings.StaleAfter = DefaultStaleAfter
	}
	return &Aggregator{
		deps:     deps,
		plan:     plan,
		settings: settings,
		nowFn:    time.Now,
		logger:   logger.With("component", "feed"),
	}
}

// Request is one feed page request.
type Request struct {
	ClientID     string
	Cursor       *time.Time
	Limit        int
	Filter       model.FeedFilter
	IncludeRisky bool
}

// Row is one scored feed entry; both response shapes derive from it.
type Row struct {
	Candidate model.FeedCandidate
	Score     model.ScoreResult
	IsSurging bool
}

type RefreshStats struct {
	Requested int `json:"requested"`
	Updated   int `json:"updated"`
}

type Page struct {
	Rows       []Row
	Limit      int
	Cursor     *time.Time
	NextCursor *time.Time
	Refreshed  RefreshStats
}

// ClampLimit applies the default and bounds to a requested page size.
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// Feed returns the next page of unseen tokens for a client and marks the
// returned tokens as seen.
func (a *Aggregator) Feed(ctx context.Context, req Request) (Page, error) {
	ctx, span := tracing.Start(ctx, "feed.page", attribute.String("client_id", req.ClientID))
	page, err := a.feed(ctx, req)
	tracing.End(span, err)
	return page, err
}

func (a *Aggregator) feed(ctx context.Context, req Request) (Page, error) {
	limit := ClampLimit(req.Limit, DefaultLimit, MaxLimit)
	filter := req.Filter
	if filter.MinLiquidityUSD <= 0 {
		filter.MinLiquidityUSD = a.plan.MinLiquidityUSD
	}
	if filter.MinVolume24hUSD <= 0 {
		filter.MinVolume24hUSD = a.plan.MinVolume24hUSD
	}

	snaps, err := a.deps.Feed.NextPage(ctx, store.FeedQuery{
		ClientID: req.ClientID,
		Cursor:   req.Cursor,
		Filter:   filter,
		Limit:    limit,
	})
	if err != nil {
		return Page{}, fmt.Errorf("load feed page: %w", err)
	}
	page := Page{Limit: limit, Cursor: req.Cursor}
	if len(snaps) == 0 {
		return page, nil
	}
	// The cursor is taken before refresh moves updated_at.
	next := snaps[len(snaps)-1].UpdatedAt
	page.NextCursor = &next

	if a.plan.AllowLiveFetchInRequestPath {
		now := a.nowFn()
		var stale []model.TokenKey
		for _, s := range snaps {
			if a.isStale(s.UpdatedAt, now) {
				stale = append(stale, s.Key())
			}
		}
		fresh, stats := a.refresh(ctx, stale, snapshotIndex(snaps))
		page.Refreshed = stats
		// refreshed values are checked against the filter again
		kept := snaps[:0]
		for _, s := range snaps {
			if r, ok := fresh[s.Key()]; ok {
				s = r
			}
			if filter.Matches(s) {
				kept = append(kept, s)
			}
		}
		snaps = kept
		if len(snaps) == 0 {
			return page, nil
		}
	}

	rows, err := a.score(ctx, snaps)
	if err != nil {
		return Page{}, err
	}

	returned := make([]model.TokenKey, 0, len(rows))
	for _, r := range rows {
		metrics.FeedChecksState.WithLabelValues(string(r.Score.ChecksState)).Inc()
		if r.Score.IsSecurityRisk && !req.IncludeRisky {
			continue
		}
		page.Rows = append(page.Rows, r)
		returned = append(returned, r.Candidate.Snapshot.Key())
	}

	if len(returned) > 0 {
		if err := a.deps.Feed.MarkSeen(ctx, req.ClientID, returned, a.nowFn().UTC()); err != nil {
			return Page{}, fmt.Errorf("mark seen: %w", err)
		}
	}
	return page, nil
}

// score joins cached evidence onto snapshots and runs the risk engine.
func (a *Aggregator) score(ctx context.Context, snaps []model.TokenSnapshot) ([]Row, error) {
	keys := make([]model.TokenKey, len(snaps))
	urlSet := make(map[string]struct{})
	for i, s := range snaps {
		keys[i] = s.Key()
		if u := strings.TrimSpace(s.WebsiteURL); u != "" {
			urlSet[u] = struct{}{}
		}
	}
	urls := make([]string, 0, len(urlSet))
	for u := range urlSet {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	security, err := a.deps.Risk.GetSecurity(ctx, keys)
	if err != nil {
		return nil, err
	}
	rugpull, err := a.deps.Risk.GetRugpull(ctx, keys)
	if err != nil {
		return nil, err
	}
	urlRisk := map[string]model.URLRiskEntry{}
	if len(urls) > 0 {
		if urlRisk, err = a.deps.Risk.GetURLRisk(ctx, urls); err != nil {
			return nil, err
		}
	}
	var secJobs, qualJobs map[model.TokenKey]model.Job
	if a.deps.Jobs != nil {
		if secJobs, err = a.deps.Jobs.GetJobs(ctx, model.StageSecurity, keys); err != nil {
			return nil, fmt.Errorf("load security jobs: %w", err)
		}
		if qualJobs, err = a.deps.Jobs.GetJobs(ctx, model.StageQuality, keys); err != nil {
			return nil, fmt.Errorf("load quality jobs: %w", err)
		}
	}

	rows := make([]Row, len(snaps))
	for i, s := range snaps {
		c := model.FeedCandidate{Snapshot: s, RankedAt: s.UpdatedAt}
		if e, ok := security[keys[i]]; ok {
			c.Security = &e
		}
		if e, ok := rugpull[keys[i]]; ok {
			c.Rugpull = &e
		}
		if e, ok := urlRisk[strings.TrimSpace(s.WebsiteURL)]; ok {
			c.URLRisk = &e
		}
		if j, ok := secJobs[keys[i]]; ok {
			c.SecurityJob = &j
		}
		if j, ok := qualJobs[keys[i]]; ok {
			c.QualityJob = &j
		}
		rows[i] = Row{
			Candidate: c,
			Score:     a.Score(c),
			IsSurging: IsSurging(s.PriceChange5m, s.PriceChange15m, s.PriceChange1h),
		}
	}
	return rows, nil
}

// Score evaluates one candidate against its chain record.
func (a *Aggregator) Score(c model.FeedCandidate) model.ScoreResult {
	chain, _ := a.deps.Chains.Lookup(c.Snapshot.ChainID)
	return risk.Score(risk.Input{
		Chain:    chain,
		Security: c.Security,
		Rugpull:  c.Rugpull,
		URLRisk:  c.URLRisk,
	})
}

// refresh re-fetches market data for keys, one goroutine per chain, and
// gives up at the latency ceiling. Whatever arrived in time is stored and
// returned; failures are logged and leave stored data in place.
func (a *Aggregator) refresh(ctx context.Context, keys []model.TokenKey, prev map[model.TokenKey]model.TokenSnapshot) (map[model.TokenKey]model.TokenSnapshot, RefreshStats) {
	stats := RefreshStats{Requested: len(keys)}
	if a.deps.Market == nil || len(keys) == 0 {
		return nil, stats
	}

	byChain := make(map[model.ChainID][]string)
	for _, k := range keys {
		byChain[k.ChainID] = append(byChain[k.ChainID], k.TokenAddress)
	}

	rctx, cancel := context.WithTimeout(ctx, a.settings.LatencyCeiling)
	defer cancel()

	var (
		mu  sync.Mutex
		out = make(map[model.TokenKey]model.TokenSnapshot)
	)
	g, gctx := errgroup.WithContext(rctx)
	for chain, addrs := range byChain {
		g.Go(func() error {
			for _, chunk := range dexscreener.Chunk(addrs, dexscreener.MaxAddressesPerCall) {
				pairs, err := a.deps.Market.Tokens(gctx, chain, chunk)
				if err != nil {
					if gctx.Err() == nil {
						a.logger.Warn("live market refresh failed", "chain", chain, "error", err)
					}
					return nil
				}
				now := a.nowFn()
				mu.Lock()
				for _, addr := range chunk {
					best, ok := dexscreener.BestPair(pairs, addr)
					if !ok {
						continue
					}
					key := model.TokenKey{ChainID: chain, TokenAddress: addr}
					out[key] = dexscreener.Snapshot(chain, addr, best, now).CarryActivity(prev[key])
				}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	if errors.Is(rctx.Err(), context.DeadlineExceeded) {
		metrics.FeedRefreshTimeouts.Inc()
		a.logger.Debug("live refresh hit latency ceiling", "ceiling", a.settings.LatencyCeiling, "refreshed", len(out))
	}
	if len(out) == 0 {
		return out, stats
	}

	snaps := make([]model.TokenSnapshot, 0, len(out))
	for _, s := range out {
		snaps = append(snaps, s)
	}
	if err := a.deps.Tokens.UpsertSnapshots(ctx, snaps); err != nil {
		a.logger.Warn("store refreshed snapshots", "error", err)
		return out, stats
	}
	stats.Updated = len(out)
	return out, stats
}

func snapshotIndex(snaps []model.TokenSnapshot) map[model.TokenKey]model.TokenSnapshot {
	out := make(map[model.TokenKey]model.TokenSnapshot, len(snaps))
	for _, s := range snaps {
		out[s.Key()] = s
	}
	return out
}
