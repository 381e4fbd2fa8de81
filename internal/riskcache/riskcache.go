package riskcache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/apfl99/DexSwipe-Backend/internal/alert"
	"github.com/apfl99/DexSwipe-Backend/internal/cache"
	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
	"github.com/apfl99/DexSwipe-Backend/internal/metrics"
	"github.com/apfl99/DexSwipe-Backend/internal/store"
)

// Signal domains, used as metric labels.
const (
	DomainSecurity = "security"
	DomainRugpull  = "rugpull"
	DomainURLRisk  = "url_risk"
)

// IsFresh reports whether an entry scanned at scannedAt is younger than ttl.
func IsFresh(scannedAt time.Time, ttl time.Duration, now time.Time) bool {
	if scannedAt.IsZero() {
		return false
	}
	return now.Sub(scannedAt) < ttl
}

type TTLs struct {
	Security time.Duration
	Rugpull  time.Duration
	URLRisk  time.Duration
}

// Repos groups the persistent cache tables.
type Repos struct {
	Security store.SecurityCacheRepository
	Rugpull  store.RugpullCacheRepository
	URLRisk  store.URLRiskCacheRepository
}

// Store fronts the persistent risk caches. Security reads go through an
// optional in-process LRU that every write invalidates.
type Store struct {
	repos   Repos
	ttls    TTLs
	local   cache.Cache[model.TokenKey, model.SecurityEntry]
	alerter alert.Alerter
	nowFn   func() time.Time
	logger  *slog.Logger
}

type Option func(*Store)

// WithLocalCache enables the read-through LRU for security entries.
func WithLocalCache(c cache.Cache[model.TokenKey, model.SecurityEntry]) Option {
	return func(s *Store) {
		if c == nil {
			return
		}
		c.OnEvict(func(model.TokenKey) { metrics.CacheLocalEvictions.Inc() })
		s.local = c
	}
}

// WithAlerter sends an alert the first time a token becomes always-deny.
func WithAlerter(a alert.Alerter) Option {
	return func(s *Store) { s.alerter = a }
}

func WithClock(nowFn func() time.Time) Option {
	return func(s *Store) { s.nowFn = nowFn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func New(repos Repos, ttls TTLs, opts ...Option) *Store {
	s := &Store{
		repos:  repos,
		ttls:   ttls,
		nowFn:  time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "riskcache")
	return s
}

func (s *Store) TTLs() TTLs {
	return s.ttls
}

// SecurityFresh reports whether e can stand in for a new scan. Limited
// entries never do.
func (s *Store) SecurityFresh(e model.SecurityEntry) bool {
	if e.Limited {
		return false
	}
	return IsFresh(e.ScannedAt, s.ttls.Security, s.nowFn())
}

func (s *Store) RugpullFresh(e model.RugpullEntry) bool {
	return IsFresh(e.ScannedAt, s.ttls.Rugpull, s.nowFn())
}

func (s *Store) URLRiskFresh(e model.URLRiskEntry) bool {
	return IsFresh(e.ScannedAt, s.ttls.URLRisk, s.nowFn())
}

// localLifetime keeps a local copy no longer than the entry stays fresh.
// Always-deny verdicts are permanent and limited scans are never kept.
func (s *Store) localLifetime(e model.SecurityEntry) time.Duration {
	switch {
	case e.AlwaysDeny:
		return s.ttls.Security
	case e.Limited:
		return 0
	}
	return s.ttls.Security - s.nowFn().Sub(e.ScannedAt)
}

// GetSecurity returns stored entries for keys, fresh or not.
func (s *Store) GetSecurity(ctx context.Context, keys []model.TokenKey) (map[model.TokenKey]model.SecurityEntry, error) {
	out := make(map[model.TokenKey]model.SecurityEntry, len(keys))
	misses := keys
	if s.local != nil {
		misses = make([]model.TokenKey, 0, len(keys))
		for _, k := range keys {
			if e, ok := s.local.Get(k); ok {
				out[k] = e
				metrics.CacheLocalHits.Inc()
				continue
			}
			metrics.CacheLocalMisses.Inc()
			misses = append(misses, k)
		}
	}

	if len(misses) > 0 {
		found, err := s.repos.Security.GetSecurity(ctx, misses)
		if err != nil {
			return nil, fmt.Errorf("get security cache: %w", err)
		}
		for k, e := range found {
			out[k] = e
			if s.local != nil {
				s.local.PutFor(k, e, s.localLifetime(e))
			}
		}
	}

	for _, k := range keys {
		e, ok := out[k]
		metrics.CacheLookupsTotal.WithLabelValues(DomainSecurity, s.lookupResult(ok, ok && s.SecurityFresh(e))).Inc()
	}
	return out, nil
}

// PutSecurity stores a scan. The repository enforces scam permanence: a
// stored always-deny entry keeps its verdict and only its scanned_at moves.
func (s *Store) PutSecurity(ctx context.Context, entry model.SecurityEntry) (store.PutResult, error) {
	res, err := s.repos.Security.PutSecurity(ctx, entry)
	if s.local != nil {
		s.local.Remove(entry.Key())
	}
	if err != nil {
		return store.PutResult{}, fmt.Errorf("put security cache %s: %w", entry.Key(), err)
	}
	metrics.CachePutsTotal.WithLabelValues(DomainSecurity, res.Outcome.String()).Inc()

	if res.NewlyDenied {
		metrics.ScamTokensDetected.WithLabelValues(string(entry.ChainID)).Inc()
		s.logger.Warn("token marked always-deny",
			"chain", entry.ChainID,
			"token_address", entry.TokenAddress,
			"reasons", entry.DenyReasons,
		)
		if s.alerter != nil {
			a := alert.Alert{
				Type:    alert.AlertTypeScamToken,
				Chain:   string(entry.ChainID),
				Stage:   string(model.StageSecurity),
				Subject: entry.TokenAddress,
				Title:   "Token marked always-deny",
				Message: strings.Join(entry.DenyReasons, ", "),
				Fields:  map[string]string{"token_address": entry.TokenAddress},
			}
			if err := s.alerter.Send(ctx, a); err != nil {
				s.logger.Warn("send scam alert", "error", err)
			}
		}
	}
	return res, nil
}

func (s *Store) GetRugpull(ctx context.Context, keys []model.TokenKey) (map[model.TokenKey]model.RugpullEntry, error) {
	out, err := s.repos.Rugpull.GetRugpull(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("get rugpull cache: %w", err)
	}
	for _, k := range keys {
		e, ok := out[k]
		metrics.CacheLookupsTotal.WithLabelValues(DomainRugpull, s.lookupResult(ok, ok && s.RugpullFresh(e))).Inc()
	}
	return out, nil
}

func (s *Store) PutRugpull(ctx context.Context, entry model.RugpullEntry) error {
	if err := s.repos.Rugpull.PutRugpull(ctx, entry); err != nil {
		return fmt.Errorf("put rugpull cache %s: %w", entry.Key(), err)
	}
	metrics.CachePutsTotal.WithLabelValues(DomainRugpull, store.PutWritten.String()).Inc()
	return nil
}

func (s *Store) GetURLRisk(ctx context.Context, urls []string) (map[string]model.URLRiskEntry, error) {
	out, err := s.repos.URLRisk.GetURLRisk(ctx, urls)
	if err != nil {
		return nil, fmt.Errorf("get url risk cache: %w", err)
	}
	for _, u := range urls {
		e, ok := out[u]
		metrics.CacheLookupsTotal.WithLabelValues(DomainURLRisk, s.lookupResult(ok, ok && s.URLRiskFresh(e))).Inc()
	}
	return out, nil
}

func (s *Store) PutURLRisk(ctx context.Context, entry model.URLRiskEntry) error {
	if err := s.repos.URLRisk.PutURLRisk(ctx, entry); err != nil {
		return fmt.Errorf("put url risk cache %s: %w", entry.URL, err)
	}
	metrics.CachePutsTotal.WithLabelValues(DomainURLRisk, store.PutWritten.String()).Inc()
	return nil
}

func (s *Store) lookupResult(found, fresh bool) string {
	switch {
	case !found:
		return "miss"
	case fresh:
		return "fresh"
	default:
		return "stale"
	}
}
