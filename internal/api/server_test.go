package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apfl99/DexSwipe-Backend/internal/config"
	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
	"github.com/apfl99/DexSwipe-Backend/internal/feed"
	"github.com/apfl99/DexSwipe-Backend/internal/pipeline"
	"github.com/apfl99/DexSwipe-Backend/internal/pipeline/worker"
	"github.com/apfl99/DexSwipe-Backend/internal/store"
)

type fakeFeed struct {
	page     feed.Page
	view     feed.WishlistView
	err      error
	gotReq   feed.Request
	gotLimit int
}

func (f *fakeFeed) Feed(_ context.Context, req feed.Request) (feed.Page, error) {
	f.gotReq = req
	return f.page, f.err
}

func (f *fakeFeed) Wishlist(_ context.Context, clientID string, limit int) (feed.WishlistView, error) {
	f.gotLimit = limit
	return f.view, f.err
}

type fakeStages struct {
	stats worker.Stats
	err   error
	got   string
}

func (f *fakeStages) Run(_ context.Context, stage string) (worker.Stats, error) {
	f.got = stage
	return f.stats, f.err
}

type fakeHealth []pipeline.HealthSnapshot

func (f fakeHealth) Health() []pipeline.HealthSnapshot { return f }

type fixedUsage uint

func (u fixedUsage) Reserve(context.Context, time.Time, uint) (bool, error) { return true, nil }
func (u fixedUsage) Count(context.Context, time.Time) (uint, error)         { return uint(u), nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func samplePage() feed.Page {
	next := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	score := 80
	return feed.Page{
		Limit:      30,
		NextCursor: &next,
		Rows: []feed.Row{{
			Candidate: model.FeedCandidate{Snapshot: model.TokenSnapshot{
				ChainID:      model.ChainBase,
				TokenAddress: "0xa",
				Symbol:       "TKN",
				PriceUSD:     model.Float(1.25),
				UpdatedAt:    next,
			}},
			Score: model.ScoreResult{
				SafetyScore: &score,
				RiskFactors: []string{"Proxy Contract"},
				ChecksState: model.ChecksComplete,
			},
			IsSurging: true,
		}},
	}
}

func TestFeed_RequiresClientID(t *testing.T) {
	for _, path := range []string{"/v1/feed", "/v1/wishlist"} {
		t.Run(path, func(t *testing.T) {
			s := NewServer(&fakeFeed{}, config.PlanConfig{}, discardLogger())
			rec := serve(t, s, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "X-Client-Id")
		})
	}
}

func TestFeed_ParsesQuery(t *testing.T) {
	ff := &fakeFeed{page: samplePage()}
	s := NewServer(ff, config.PlanConfig{}, discardLogger())

	req := httptest.NewRequest(http.MethodGet,
		"/v1/feed?cursor=2026-05-01T10:00:00Z&limit=15&chains=Base,+solana,&min_liquidity_usd=2500&min_volume_24h=abc&min_fdv=-1&include_risky=true", nil)
	req.Header.Set(HeaderClientID, "device-1")
	rec := serve(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	got := ff.gotReq
	assert.Equal(t, "device-1", got.ClientID)
	require.NotNil(t, got.Cursor)
	assert.True(t, got.Cursor.Equal(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, 15, got.Limit)
	assert.Equal(t, []model.ChainID{model.ChainBase, model.ChainSolana}, got.Filter.Chains)
	assert.Equal(t, 2500.0, got.Filter.MinLiquidityUSD)
	assert.Zero(t, got.Filter.MinVolume24hUSD, "invalid input falls back to the plan default")
	assert.Zero(t, got.Filter.MinFDV)
	assert.True(t, got.IncludeRisky)
}

func TestFeed_VerboseShape(t *testing.T) {
	s := NewServer(&fakeFeed{page: samplePage()}, config.PlanConfig{}, discardLogger())
	req := httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
	req.Header.Set(HeaderClientID, "device-1")
	rec := serve(t, s, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(HeaderNextCursor))
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))

	var body feed.VerboseResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Tokens, 1)
	assert.Equal(t, "base:0xa", body.Tokens[0].TokenID)
	assert.True(t, body.Tokens[0].IsSurging)
	require.NotNil(t, body.NextCursor)
	assert.Equal(t, "2026-05-01T12:00:00Z", *body.NextCursor)
}

func TestFeed_MinimalShapeCarriesCursorHeader(t *testing.T) {
	s := NewServer(&fakeFeed{page: samplePage()}, config.PlanConfig{}, discardLogger())
	req := httptest.NewRequest(http.MethodGet, "/v1/feed?format=min", nil)
	req.Header.Set(HeaderClientID, "device-1")
	rec := serve(t, s, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2026-05-01T12:00:00Z", rec.Header().Get(HeaderNextCursor))

	var items []feed.MinimalItem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&items))
	require.Len(t, items, 1)
	assert.Equal(t, "base:0xa", items[0].ID)
	require.NotNil(t, items[0].SafetyScore)
	assert.Equal(t, 80, *items[0].SafetyScore)
}

func TestFeed_StorageErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unavailable", fmt.Errorf("load feed page: %w", store.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{"deadline", fmt.Errorf("load feed page: %w", context.DeadlineExceeded), http.StatusServiceUnavailable},
		{"other", errors.New("pq: syntax error"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(&fakeFeed{err: tt.err}, config.PlanConfig{}, discardLogger())
			req := httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
			req.Header.Set(HeaderClientID, "device-1")
			rec := serve(t, s, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestWishlist_PassesLimit(t *testing.T) {
	ff := &fakeFeed{view: feed.WishlistView{Limit: 50, Rows: []feed.WishlistRow{}}}
	s := NewServer(ff, config.PlanConfig{}, discardLogger())
	req := httptest.NewRequest(http.MethodGet, "/v1/wishlist?limit=50", nil)
	req.Header.Set(HeaderClientID, "device-1")
	rec := serve(t, s, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, ff.gotLimit)
	var body feed.WishlistResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 50, body.Limit)
	assert.Empty(t, body.Items)
}

func TestPlan(t *testing.T) {
	t.Setenv("GOPLUS_PLAN_TIER", "free")
	t.Setenv("GOPLUS_CU_BUDGET_PER_RUN", "")
	plan := config.LoadPlan()
	s := NewServer(&fakeFeed{}, plan, discardLogger(), WithDailyUsage(fixedUsage(12)))
	rec := serve(t, s, httptest.NewRequest(http.MethodGet, "/v1/plan", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Plan           config.PlanConfig `json:"plan"`
		DailyScansUsed *uint             `json:"daily_scans_used"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, config.TierFree, body.Plan.Tier)
	assert.Equal(t, uint(100), body.Plan.CUBudgetPerRun)
	require.NotNil(t, body.DailyScansUsed)
	assert.Equal(t, uint(12), *body.DailyScansUsed)
}

func TestHealth(t *testing.T) {
	stages := fakeHealth{
		{Stage: "market", Status: string(pipeline.HealthStatusHealthy)},
		{Stage: "security", Status: string(pipeline.HealthStatusUnhealthy)},
	}

	t.Run("degraded stage stays 200", func(t *testing.T) {
		s := NewServer(&fakeFeed{}, config.PlanConfig{}, discardLogger(),
			WithHealthProvider(stages),
			WithCheck("postgres", func(context.Context) error { return nil }),
		)
		rec := serve(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body healthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "degraded", body.Status)
		assert.Equal(t, "ok", body.Checks["postgres"])
		assert.Len(t, body.Stages, 2)
	})

	t.Run("failing check is 503", func(t *testing.T) {
		s := NewServer(&fakeFeed{}, config.PlanConfig{}, discardLogger(),
			WithCheck("postgres", func(context.Context) error { return errors.New("connection refused") }),
		)
		rec := serve(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body healthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "unavailable", body.Status)
		assert.Equal(t, "connection refused", body.Checks["postgres"])
	})
}

func TestMetricsRoute(t *testing.T) {
	s := NewServer(&fakeFeed{}, config.PlanConfig{}, discardLogger())
	rec := serve(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRun(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		err    error
		want   int
	}{
		{"missing secret", "", nil, http.StatusUnauthorized},
		{"wrong secret", "nope", nil, http.StatusUnauthorized},
		{"ok", "s3cret", nil, http.StatusOK},
		{"overlapping run", "s3cret", pipeline.ErrAlreadyRunning, http.StatusConflict},
		{"unknown stage", "s3cret", fmt.Errorf("%w: bogus", pipeline.ErrUnknownStage), http.StatusNotFound},
		{"stage error", "s3cret", errors.New("claim jobs: boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stages := &fakeStages{stats: worker.Stats{Claimed: 3, Succeeded: 3}, err: tt.err}
			s := NewServer(&fakeFeed{}, config.PlanConfig{}, discardLogger(),
				WithStageRunner(stages),
				WithCronSecret("s3cret"),
			)
			req := httptest.NewRequest(http.MethodPost, "/internal/v1/run/security", nil)
			if tt.secret != "" {
				req.Header.Set(HeaderCronSecret, tt.secret)
			}
			rec := serve(t, s, req)
			assert.Equal(t, tt.want, rec.Code)

			if tt.want == http.StatusOK {
				assert.Equal(t, "security", stages.got)
				var body runResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, 3, body.Stats.Succeeded)
			}
		})
	}
}

func TestRun_DisabledWithoutSecret(t *testing.T) {
	s := NewServer(&fakeFeed{}, config.PlanConfig{}, discardLogger(), WithStageRunner(&fakeStages{}))
	req := httptest.NewRequest(http.MethodPost, "/internal/v1/run/security", nil)
	req.Header.Set(HeaderCronSecret, "")
	rec := serve(t, s, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParseChains(t *testing.T) {
	assert.Nil(t, parseChains(""))
	assert.Equal(t, []model.ChainID{"sui", "tron"}, parseChains(" SUI ,,tron"))
}

func TestQueryFloat(t *testing.T) {
	assert.Equal(t, 12.5, queryFloat("12.5"))
	assert.Zero(t, queryFloat("NaN"))
	assert.Zero(t, queryFloat("+Inf"))
	assert.Zero(t, queryFloat("-3"))
}
