// Package api serves the client feed, the wishlist view, operational
// endpoints and the cron-secret protected manual stage trigger.
package api

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/apfl99/DexSwipe-Backend/internal/config"
	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
	"github.com/apfl99/DexSwipe-Backend/internal/feed"
	"github.com/apfl99/DexSwipe-Backend/internal/metrics"
	"github.com/apfl99/DexSwipe-Backend/internal/pipeline"
	"github.com/apfl99/DexSwipe-Backend/internal/pipeline/worker"
	"github.com/apfl99/DexSwipe-Backend/internal/store"
)

const (
	HeaderClientID   = "X-Client-Id"
	HeaderCronSecret = "X-Cron-Secret"
	HeaderNextCursor = "X-Next-Cursor"

	routeFeed     = "feed"
	routeWishlist = "wishlist"

	checkTimeout = 2 * time.Second
)

// FeedService produces feed pages and wishlist views.
type FeedService interface {
	Feed(ctx context.Context, req feed.Request) (feed.Page, error)
	Wishlist(ctx context.Context, clientID string, limit int) (feed.WishlistView, error)
}

// StageRunner runs one pipeline stage on demand. In production this is
// satisfied by *pipeline.Registry.
type StageRunner interface {
	Run(ctx context.Context, stage string) (worker.Stats, error)
}

// HealthProvider returns per-stage health snapshots.
type HealthProvider interface {
	Health() []pipeline.HealthSnapshot
}

// CheckFunc probes one backing dependency.
type CheckFunc func(ctx context.Context) error

type namedCheck struct {
	name string
	fn   CheckFunc
}

// Server wires the HTTP routes to the feed aggregator and the pipeline.
type Server struct {
	feed       FeedService
	plan       config.PlanConfig
	stages     StageRunner
	health     HealthProvider
	checks     []namedCheck
	usage      store.DailyUsageRepository
	cronSecret string
	limiter    *RateLimitMiddleware
	nowFn      func() time.Time
	logger     *slog.Logger
}

type ServerOption func(*Server)

func WithStageRunner(r StageRunner) ServerOption {
	return func(s *Server) { s.stages = r }
}

func WithHealthProvider(hp HealthProvider) ServerOption {
	return func(s *Server) { s.health = hp }
}

// WithCheck adds a dependency probe to /healthz. A failing probe turns the
// response into 503.
func WithCheck(name string, fn CheckFunc) ServerOption {
	return func(s *Server) { s.checks = append(s.checks, namedCheck{name: name, fn: fn}) }
}

// WithDailyUsage exposes today's scan count on /v1/plan.
func WithDailyUsage(u store.DailyUsageRepository) ServerOption {
	return func(s *Server) { s.usage = u }
}

// WithCronSecret enables the manual trigger route. An empty secret leaves it
// unregistered.
func WithCronSecret(secret string) ServerOption {
	return func(s *Server) { s.cronSecret = secret }
}

func WithRateLimiter(rl *RateLimitMiddleware) ServerOption {
	return func(s *Server) { s.limiter = rl }
}

func NewServer(feedSvc FeedService, plan config.PlanConfig, logger *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		feed:   feedSvc,
		plan:   plan,
		nowFn:  time.Now,
		logger: logger.With("component", "api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the full route table with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/feed", s.handleFeed)
	mux.HandleFunc("GET /v1/wishlist", s.handleWishlist)
	mux.HandleFunc("GET /v1/plan", s.handlePlan)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	if s.cronSecret != "" && s.stages != nil {
		mux.HandleFunc("POST /internal/v1/run/{stage}", s.handleRun)
	}

	var h http.Handler = mux
	if s.limiter != nil {
		h = s.limiter.Wrap(h)
	}
	return AuditMiddleware(s.logger, h)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	clientID, ok := requireClientID(w, r)
	if !ok {
		observe(routeFeed, http.StatusBadRequest, start)
		return
	}

	q := r.URL.Query()
	req := feed.Request{
		ClientID: clientID,
		Cursor:   feed.ParseCursor(q.Get("cursor")),
		Limit:    queryInt(q.Get("limit")),
		Filter: model.FeedFilter{
			Chains:          parseChains(q.Get("chains")),
			MinLiquidityUSD: queryFloat(q.Get("min_liquidity_usd")),
			MinVolume24hUSD: queryFloat(q.Get("min_volume_24h")),
			MinFDV:          queryFloat(q.Get("min_fdv")),
		},
		IncludeRisky: queryBool(q.Get("include_risky")),
	}

	page, err := s.feed.Feed(r.Context(), req)
	if err != nil {
		status := s.storeError(w, routeFeed, err)
		observe(routeFeed, status, start)
		return
	}

	if strings.EqualFold(q.Get("format"), "min") {
		if next := feed.FormatCursor(page.NextCursor); next != "" {
			w.Header().Set(HeaderNextCursor, next)
		}
		writeJSON(w, http.StatusOK, feed.Minimal(page))
	} else {
		writeJSON(w, http.StatusOK, feed.Verbose(page))
	}
	observe(routeFeed, http.StatusOK, start)
}

func (s *Server) handleWishlist(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	clientID, ok := requireClientID(w, r)
	if !ok {
		observe(routeWishlist, http.StatusBadRequest, start)
		return
	}

	view, err := s.feed.Wishlist(r.Context(), clientID, queryInt(r.URL.Query().Get("limit")))
	if err != nil {
		status := s.storeError(w, routeWishlist, err)
		observe(routeWishlist, status, start)
		return
	}
	writeJSON(w, http.StatusOK, feed.Wishlist(view))
	observe(routeWishlist, http.StatusOK, start)
}

type planResponse struct {
	Plan           config.PlanConfig `json:"plan"`
	DailyScansUsed *uint             `json:"daily_scans_used,omitempty"`
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	resp := planResponse{Plan: s.plan}
	if s.usage != nil {
		n, err := s.usage.Count(r.Context(), s.nowFn())
		if err != nil {
			s.logger.Warn("daily usage unavailable", "error", err)
		} else {
			resp.DailyScansUsed = &n
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status string                    `json:"status"`
	Checks map[string]string         `json:"checks"`
	Stages []pipeline.HealthSnapshot `json:"stages"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "ok",
		Checks: make(map[string]string, len(s.checks)),
		Stages: []pipeline.HealthSnapshot{},
	}
	status := http.StatusOK

	for _, c := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.fn(ctx)
		cancel()
		if err != nil {
			resp.Checks[c.name] = err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[c.name] = "ok"
	}

	if s.health != nil {
		resp.Stages = s.health.Health()
		for _, st := range resp.Stages {
			if st.Status == string(pipeline.HealthStatusUnhealthy) && status == http.StatusOK {
				resp.Status = "degraded"
			}
		}
	}
	writeJSON(w, status, resp)
}

type runResponse struct {
	Stage string       `json:"stage"`
	Stats worker.Stats `json:"stats"`
	Error string       `json:"error,omitempty"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	given := r.Header.Get(HeaderCronSecret)
	if given == "" || subtle.ConstantTimeCompare([]byte(given), []byte(s.cronSecret)) != 1 {
		writeError(w, http.StatusUnauthorized, "invalid cron secret")
		return
	}

	stage := r.PathValue("stage")
	// The run outlives a dropped caller connection.
	stats, err := s.stages.Run(context.WithoutCancel(r.Context()), stage)
	switch {
	case errors.Is(err, pipeline.ErrUnknownStage):
		writeError(w, http.StatusNotFound, "unknown stage")
	case errors.Is(err, pipeline.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, "stage already running")
	case err != nil:
		s.logger.Error("manual stage run failed", "stage", stage, "error", err)
		writeJSON(w, http.StatusInternalServerError, runResponse{Stage: stage, Stats: stats, Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, runResponse{Stage: stage, Stats: stats})
	}
}

// storeError writes 503 for unreachable storage and 500 for anything else.
func (s *Server) storeError(w http.ResponseWriter, route string, err error) int {
	status := http.StatusInternalServerError
	if isUnavailable(err) {
		status = http.StatusServiceUnavailable
	}
	s.logger.Error("request failed", "route", route, "status", status, "error", err)
	writeError(w, status, http.StatusText(status))
	return status
}

func isUnavailable(err error) bool {
	if errors.Is(err, store.ErrStoreUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func requireClientID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(HeaderClientID))
	if id == "" {
		writeError(w, http.StatusBadRequest, "X-Client-Id header required")
		return "", false
	}
	return id, true
}

func observe(route string, status int, start time.Time) {
	metrics.FeedRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	metrics.FeedRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}

// parseChains reads a comma separated allow-list.
func parseChains(raw string) []model.ChainID {
	var out []model.ChainID
	for _, part := range strings.Split(raw, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, model.ChainID(part))
		}
	}
	return out
}

// queryInt returns 0 for missing or invalid input so callers apply defaults.
func queryInt(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}

func queryFloat(raw string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

func queryBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
