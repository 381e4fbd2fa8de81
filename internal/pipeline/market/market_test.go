package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/apfl99/DexSwipe-Backend/internal/config"
	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
	"github.com/apfl99/DexSwipe-Backend/internal/pipeline/worker"
	"github.com/apfl99/DexSwipe-Backend/internal/provider/dexscreener"
	"github.com/apfl99/DexSwipe-Backend/internal/queue"
	"github.com/apfl99/DexSwipe-Backend/internal/store"
	"github.com/apfl99/DexSwipe-Backend/internal/store/memory"
	storemocks "github.com/apfl99/DexSwipe-Backend/internal/store/mocks"
)

var (
	t0         = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	testChains = model.NewChainRegistry([]model.Chain{
		{ID: model.ChainBase, Family: model.FamilyEVM, GoPlusMode: model.GoPlusModeEVM, GoPlusChainID: "8453"},
		{ID: model.ChainSolana, Family: model.FamilySolana, GoPlusMode: model.GoPlusModeSolana},
		{ID: model.ChainSui, Family: model.FamilySui, GoPlusMode: model.GoPlusModeNone},
	})
	testPlan = config.PlanConfig{ScanMinLiquidityUSD: 10_000, ScanMinVolume24hUSD: 5_000}
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakeSource struct {
	mu    sync.Mutex
	pairs map[model.ChainID][]dexscreener.Pair
	calls [][]string
	err   error
}

func (f *fakeSource) Tokens(_ context.Context, chain model.ChainID, addrs []string) ([]dexscreener.Pair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), addrs...))
	if f.err != nil {
		return nil, f.err
	}
	return f.pairs[chain], nil
}

func pair(t *testing.T, chain model.ChainID, addr string, liq, vol float64) dexscreener.Pair {
	t.Helper()
	raw := fmt.Sprintf(`{
		"chainId": %q,
		"pairAddress": "pair-%s",
		"baseToken": {"address": %q, "symbol": "TKN"},
		"quoteToken": {"address": "quote", "symbol": "USDC"},
		"priceUsd": "1.5",
		"liquidity": {"usd": %g},
		"volume": {"h24": %g},
		"info": {"websites": [{"url": "https://%s.example"}]}
	}`, chain, addr, addr, liq, vol, addr)
	var p dexscreener.Pair
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return p
}

type fixture struct {
	st     *memory.Store
	clock  *clock
	queues Queues
	source *fakeSource
}

func newFixture() *fixture {
	c := &clock{now: t0}
	st := memory.New()
	return &fixture{
		st:    st,
		clock: c,
		queues: Queues{
			Market:   queue.New(st, model.StageMarket, queue.WithClock(c.Now)),
			Security: queue.New(st, model.StageSecurity, queue.WithClock(c.Now)),
			Quality:  queue.New(st, model.StageQuality, queue.WithClock(c.Now)),
		},
		source: &fakeSource{pairs: map[model.ChainID][]dexscreener.Pair{}},
	}
}

func (f *fixture) stage(tokens store.TokenRepository) *Stage {
	if tokens == nil {
		tokens = f.st
	}
	cfg := Config{Plan: testPlan, Limits: worker.Limits{BatchSize: DefaultBatchSize, MaxJobs: DefaultMaxJobs}}
	return New(cfg, f.queues, tokens, f.source, testChains, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (f *fixture) enqueue(t *testing.T, keys ...model.TokenKey) {
	t.Helper()
	_, err := f.queues.Market.Enqueue(context.Background(), keys...)
	require.NoError(t, err)
}

func (f *fixture) job(t *testing.T, stage model.Stage, k model.TokenKey) (model.Job, bool) {
	t.Helper()
	jobs, err := f.st.GetJobs(context.Background(), stage, []model.TokenKey{k})
	require.NoError(t, err)
	j, ok := jobs[k]
	return j, ok
}

func key(chain model.ChainID, addr string) model.TokenKey {
	return model.TokenKey{ChainID: chain, TokenAddress: addr}
}

func TestRun_GatesAndDistributesScans(t *testing.T) {
	f := newFixture()
	f.source.pairs[model.ChainBase] = []dexscreener.Pair{
		pair(t, model.ChainBase, "0xgood", 50_000, 100_000),
		pair(t, model.ChainBase, "0xthin", 100, 100_000),
	}
	f.source.pairs[model.ChainSolana] = []dexscreener.Pair{pair(t, model.ChainSolana, "SoLgood", 80_000, 60_000)}
	f.source.pairs[model.ChainSui] = []dexscreener.Pair{pair(t, model.ChainSui, "0xsui", 80_000, 60_000)}

	good, thin := key(model.ChainBase, "0xgood"), key(model.ChainBase, "0xthin")
	sol, sui := key(model.ChainSolana, "SoLgood"), key(model.ChainSui, "0xsui")
	f.enqueue(t, good, thin, sol, sui)

	stats, err := f.stage(nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, worker.Stats{Claimed: 4, Succeeded: 4}, stats)

	for _, k := range []model.TokenKey{good, thin, sol, sui} {
		j, ok := f.job(t, model.StageMarket, k)
		require.True(t, ok)
		assert.Equal(t, model.JobStatusCompleted, j.Status, k.String())
		assert.Equal(t, t0.Add(RescanAfter), j.NextRunAt, k.String())
	}

	for _, tc := range []struct {
		key      model.TokenKey
		security bool
		quality  bool
	}{
		{good, true, true},
		{thin, false, false},
		{sol, true, true},
		{sui, false, true},
	} {
		_, inSecurity := f.job(t, model.StageSecurity, tc.key)
		_, inQuality := f.job(t, model.StageQuality, tc.key)
		assert.Equal(t, tc.security, inSecurity, "security %s", tc.key)
		assert.Equal(t, tc.quality, inQuality, "quality %s", tc.key)
	}

	snaps, err := f.st.GetSnapshots(context.Background(), []model.TokenKey{good})
	require.NoError(t, err)
	require.Contains(t, snaps, good)
	assert.Equal(t, 50_000.0, *snaps[good].LiquidityUSD)
	assert.Equal(t, "https://0xgood.example", snaps[good].WebsiteURL)
	require.NotNil(t, snaps[good].LastActivityAt)
}

func TestRun_NoPairFound(t *testing.T) {
	f := newFixture()
	k := key(model.ChainSolana, "SoLnone")
	f.enqueue(t, k)

	stats, err := f.stage(nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Succeeded)

	j, _ := f.job(t, model.StageMarket, k)
	require.NotNil(t, j.LastError)
	assert.Equal(t, NoteNoPairFound, *j.LastError)
	assert.Equal(t, t0.Add(NoPairRescanAfter), j.NextRunAt)
	_, queued := f.job(t, model.StageSecurity, k)
	assert.False(t, queued)
}

func TestRun_InactiveTokenSuppressed(t *testing.T) {
	f := newFixture()
	k := key(model.ChainSolana, "SoLdead")
	f.enqueue(t, k)
	f.clock.Set(t0.Add(25 * time.Hour))

	stats, err := f.stage(nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Suppressed)

	j, _ := f.job(t, model.StageMarket, k)
	require.NotNil(t, j.LastError)
	assert.Equal(t, string(queue.ClassInactive), *j.LastError)
	assert.Equal(t, t0.Add(25*time.Hour).Add(queue.SuppressFor), j.NextRunAt)
}

func TestRun_RecentActivityIsCarried(t *testing.T) {
	f := newFixture()
	k := key(model.ChainSolana, "SoLquiet")
	lastActive := t0.Add(20 * time.Hour)
	require.NoError(t, f.st.UpsertSnapshots(context.Background(), []model.TokenSnapshot{{
		ChainID:        model.ChainSolana,
		TokenAddress:   "SoLquiet",
		UpdatedAt:      lastActive,
		LastActivityAt: &lastActive,
	}}))
	f.enqueue(t, k)
	now := t0.Add(30 * time.Hour)
	f.clock.Set(now)
	f.source.pairs[model.ChainSolana] = []dexscreener.Pair{pair(t, model.ChainSolana, "SoLquiet", 20_000, 0)}

	stats, err := f.stage(nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Succeeded, "active 10h ago is not inactive even though the job is 30h old")

	snaps, err := f.st.GetSnapshots(context.Background(), []model.TokenKey{k})
	require.NoError(t, err)
	require.NotNil(t, snaps[k].LastActivityAt)
	assert.Equal(t, lastActive, *snaps[k].LastActivityAt)
	assert.Equal(t, now, snaps[k].UpdatedAt)
	_, queued := f.job(t, model.StageQuality, k)
	assert.False(t, queued, "zero volume fails the scan gate")
}

func TestRun_ChunksProviderCalls(t *testing.T) {
	f := newFixture()
	for i := 0; i < 45; i++ {
		f.enqueue(t, key(model.ChainSolana, fmt.Sprintf("SoL%02d", i)))
	}

	stats, err := f.stage(nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 45, stats.Claimed)
	require.Len(t, f.source.calls, 2)
	assert.Len(t, f.source.calls[0], dexscreener.MaxAddressesPerCall)
	assert.Len(t, f.source.calls[1], 15)
}

func TestRun_ProviderErrorFailsChunk(t *testing.T) {
	f := newFixture()
	f.source.err = errors.New("dexscreener: http status 503")
	a, b := key(model.ChainBase, "0xa"), key(model.ChainBase, "0xb")
	f.enqueue(t, a, b)

	stats, err := f.stage(nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Failed)

	for _, k := range []model.TokenKey{a, b} {
		j, _ := f.job(t, model.StageMarket, k)
		assert.Equal(t, model.JobStatusFailed, j.Status)
		assert.Equal(t, uint(1), j.Attempts)
	}
}

func TestRun_SnapshotStoreErrorAbortsRun(t *testing.T) {
	f := newFixture()
	f.source.pairs[model.ChainBase] = []dexscreener.Pair{pair(t, model.ChainBase, "0xa", 50_000, 100_000)}
	k := key(model.ChainBase, "0xa")
	f.enqueue(t, k)

	ctrl := gomock.NewController(t)
	tokens := storemocks.NewMockTokenRepository(ctrl)
	tokens.EXPECT().GetSnapshots(gomock.Any(), []model.TokenKey{k}).Return(map[model.TokenKey]model.TokenSnapshot{}, nil)
	tokens.EXPECT().UpsertSnapshots(gomock.Any(), gomock.Len(1)).Return(errors.New("connection refused"))

	_, err := f.stage(tokens).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store base snapshots")

	j, _ := f.job(t, model.StageMarket, k)
	assert.Equal(t, model.JobStatusFailed, j.Status)
	_, queued := f.job(t, model.StageSecurity, k)
	assert.False(t, queued)
}
