package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
	"github.com/apfl99/DexSwipe-Backend/internal/store"
)

func f64(v float64) *float64 { return &v }

func TestReserve_StopsAtLimitPerUTCDay(t *testing.T) {
	s := New()
	ctx := context.Background()
	day := time.Date(2026, 5, 1, 23, 30, 0, 0, time.UTC)

	ok, err := s.Reserve(ctx, day, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = s.Reserve(ctx, day.Add(-time.Hour), 2)
	assert.True(t, ok)
	ok, _ = s.Reserve(ctx, day, 2)
	assert.False(t, ok)

	n, err := s.Count(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, uint(2), n)

	ok, _ = s.Reserve(ctx, day.Add(time.Hour), 2)
	assert.True(t, ok, "next UTC day starts a fresh counter")

	ok, _ = s.Reserve(ctx, day, 0)
	assert.False(t, ok)
}

func TestEnqueue_SkipsExistingKeys(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	keys := []model.TokenKey{
		{ChainID: "solana", TokenAddress: "A"},
		{ChainID: "base", TokenAddress: "0xb"},
	}

	n, err := s.Enqueue(ctx, model.StageMarket, keys, now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.Enqueue(ctx, model.StageMarket, keys[:1], now.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.Enqueue(ctx, model.StageSecurity, keys[:1], now)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "stages keep separate queues")
}

func TestNextPage_FiltersSeenAndThresholds(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertSnapshots(ctx, []model.TokenSnapshot{
		{ChainID: "solana", TokenAddress: "new", LiquidityUSD: f64(50_000), UpdatedAt: base},
		{ChainID: "solana", TokenAddress: "old", LiquidityUSD: f64(50_000), UpdatedAt: base.Add(-time.Hour)},
		{ChainID: "base", TokenAddress: "thin", LiquidityUSD: f64(10), UpdatedAt: base.Add(-time.Minute)},
		{ChainID: "base", TokenAddress: "blank", UpdatedAt: base.Add(-2 * time.Minute)},
	}))

	rows, err := s.NextPage(ctx, store.FeedQuery{
		ClientID: "c1",
		Filter:   model.FeedFilter{MinLiquidityUSD: 1000},
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "new", rows[0].TokenAddress)
	assert.Equal(t, "old", rows[1].TokenAddress)

	require.NoError(t, s.MarkSeen(ctx, "c1", []model.TokenKey{rows[0].Key()}, base))
	rows, err = s.NextPage(ctx, store.FeedQuery{ClientID: "c1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "thin", rows[0].TokenAddress)

	cursor := base.Add(-time.Minute)
	rows, err = s.NextPage(ctx, store.FeedQuery{
		ClientID: "c2",
		Cursor:   &cursor,
		Filter:   model.FeedFilter{Chains: []model.ChainID{"base"}},
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "blank", rows[0].TokenAddress)
}

func TestUpsertSnapshots_CarriesLastActivity(t *testing.T) {
	s := New()
	ctx := context.Background()
	active := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	key := model.TokenKey{ChainID: "solana", TokenAddress: "A"}

	require.NoError(t, s.UpsertSnapshots(ctx, []model.TokenSnapshot{{ChainID: key.ChainID, TokenAddress: key.TokenAddress, LastActivityAt: &active}}))
	require.NoError(t, s.UpsertSnapshots(ctx, []model.TokenSnapshot{{ChainID: key.ChainID, TokenAddress: key.TokenAddress}}))

	got, err := s.GetSnapshots(ctx, []model.TokenKey{key})
	require.NoError(t, err)
	require.NotNil(t, got[key].LastActivityAt)
	assert.True(t, got[key].LastActivityAt.Equal(active))
}

func TestPutRugpull_KeepsNewerEntry(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	key := model.TokenKey{ChainID: "base", TokenAddress: "0xa"}

	require.NoError(t, s.PutRugpull(ctx, model.RugpullEntry{ChainID: key.ChainID, TokenAddress: key.TokenAddress, ScannedAt: now}))
	require.NoError(t, s.PutRugpull(ctx, model.RugpullEntry{ChainID: key.ChainID, TokenAddress: key.TokenAddress, ScannedAt: now.Add(-time.Hour)}))

	got, err := s.GetRugpull(ctx, []model.TokenKey{key})
	require.NoError(t, err)
	assert.True(t, got[key].ScannedAt.Equal(now))
}

func TestWishlist_NewestFirstWithLimit(t *testing.T) {
	s := New()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		s.AddWishlist(model.WishlistItem{
			ClientID:     "c1",
			ChainID:      "solana",
			TokenAddress: string(rune('a' + i)),
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		})
	}

	items, err := s.ListWishlist(context.Background(), "c1", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "c", items[0].TokenAddress)
	assert.Equal(t, "b", items[1].TokenAddress)

	items, err = s.ListWishlist(context.Background(), "other", 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestAccessToken_RoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()
	exp := time.Date(2026, 5, 1, 1, 0, 0, 0, time.UTC)

	_, _, ok, err := s.GetToken(ctx, "goplus")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetToken(ctx, "goplus", "tok", exp))
	tok, got, ok, err := s.GetToken(ctx, "goplus")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", tok)
	assert.True(t, got.Equal(exp))
}

func TestRuns_OrderedByStart(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	second := &model.IngestionRun{StartedAt: base.Add(time.Minute)}
	first := &model.IngestionRun{StartedAt: base}
	require.NoError(t, s.StartRun(ctx, second))
	require.NoError(t, s.StartRun(ctx, first))
	assert.NotEqual(t, second.ID, first.ID)

	runs := s.Runs()
	require.Len(t, runs, 2)
	assert.Equal(t, first.ID, runs[0].ID)
}
