package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
	"github.com/apfl99/DexSwipe-Backend/internal/store"
)

var tokenRowColumns = []string{
	"chain_id", "token_address", "symbol", "name", "pair_address", "dex_id", "url",
	"price_usd", "liquidity_usd", "volume_24h", "fdv", "market_cap",
	"price_change_5m", "price_change_15m", "price_change_1h", "price_change_24h",
	"buys_24h", "sells_24h", "pair_created_at", "logo_url", "website_url",
	"last_activity_at", "updated_at",
}

func tokenRow(chain, addr string, liq interface{}, activity interface{}, updated time.Time) []interface{} {
	return []interface{}{
		chain, addr, "TKN", "Token", "pair-" + addr, "raydium", "https://dexscreener.com/x",
		1.5, liq, 20_000.0, nil, nil,
		nil, nil, 2.5, -1.0,
		int64(10), int64(4), nil, "", "https://tkn.example",
		activity, updated,
	}
}

func TestTokenRepo_UpsertSnapshots(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepo(db)

	snaps := []model.TokenSnapshot{
		{ChainID: model.ChainBase, TokenAddress: "0xa", LiquidityUSD: model.Float(1000), UpdatedAt: testNow},
		{ChainID: model.ChainSolana, TokenAddress: "Mint1", UpdatedAt: testNow},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO tokens .* COALESCE\\(EXCLUDED.last_activity_at, tokens.last_activity_at\\)")
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.UpsertSnapshots(context.Background(), snaps))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_UpsertSnapshotsRollsBack(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO tokens").ExpectExec().WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := NewTokenRepo(db).UpsertSnapshots(context.Background(), []model.TokenSnapshot{
		{ChainID: model.ChainBase, TokenAddress: "0xa", UpdatedAt: testNow},
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "upsert snapshot base:0xa")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_GetSnapshots(t *testing.T) {
	db, mock := newMockDB(t)
	key := model.TokenKey{ChainID: model.ChainBase, TokenAddress: "0xa"}

	mock.ExpectQuery("SELECT .* FROM tokens").
		WillReturnRows(sqlmock.NewRows(tokenRowColumns).AddRow(tokenRow("base", "0xa", 5000.0, testNow, testNow)...))

	got, err := NewTokenRepo(db).GetSnapshots(context.Background(), []model.TokenKey{key})
	require.NoError(t, err)
	require.Contains(t, got, key)
	s := got[key]
	assert.Equal(t, 5000.0, *s.LiquidityUSD)
	assert.Nil(t, s.FDV)
	require.NotNil(t, s.Buys24h)
	assert.Equal(t, int64(10), *s.Buys24h)
	require.NotNil(t, s.LastActivityAt)
	assert.Equal(t, "https://tkn.example", s.WebsiteURL)
}

func TestTokenRepo_NextPageBuildsFilters(t *testing.T) {
	db, mock := newMockDB(t)
	cursor := testNow.Add(-time.Minute)

	mock.ExpectQuery(`NOT EXISTS .* AND t\.chain_id = ANY\(\$2\) AND t\.updated_at < \$3 AND t\.liquidity_usd >= \$4 AND t\.fdv >= \$5 ORDER BY t\.updated_at DESC, t\.chain_id, t\.token_address LIMIT \$6`).
		WithArgs("client-1", sqlmock.AnyArg(), cursor, 10_000.0, 1e6, 30).
		WillReturnRows(sqlmock.NewRows(tokenRowColumns).
			AddRow(tokenRow("base", "0xa", 50_000.0, nil, testNow.Add(-2*time.Minute))...).
			AddRow(tokenRow("solana", "Mint1", 20_000.0, nil, testNow.Add(-3*time.Minute))...))

	page, err := NewTokenRepo(db).NextPage(context.Background(), store.FeedQuery{
		ClientID: "client-1",
		Cursor:   &cursor,
		Filter: model.FeedFilter{
			Chains:          []model.ChainID{model.ChainBase, model.ChainSolana},
			MinLiquidityUSD: 10_000,
			MinFDV:          1e6,
		},
		Limit: 30,
	})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "0xa", page[0].TokenAddress)
	assert.Nil(t, page[0].LastActivityAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_NextPageWithoutFilters(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`FROM tokens t WHERE NOT EXISTS \(.*\) ORDER BY`).
		WithArgs("client-1").
		WillReturnRows(sqlmock.NewRows(tokenRowColumns))

	page, err := NewTokenRepo(db).NextPage(context.Background(), store.FeedQuery{ClientID: "client-1"})
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_MarkSeen(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepo(db)

	mock.ExpectExec("INSERT INTO seen_tokens .* ON CONFLICT .* DO NOTHING").
		WithArgs("client-1", sqlmock.AnyArg(), sqlmock.AnyArg(), testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkSeen(context.Background(), "client-1", []model.TokenKey{{ChainID: model.ChainBase, TokenAddress: "0xa"}}, testNow))
	require.NoError(t, repo.MarkSeen(context.Background(), "client-1", nil, testNow))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_ListWishlist(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("SELECT .* FROM wishlist WHERE client_id = \\$1 ORDER BY created_at DESC LIMIT \\$2").
		WithArgs("client-1", 100).
		WillReturnRows(sqlmock.NewRows([]string{"client_id", "chain_id", "token_address", "created_at", "captured_price", "captured_at"}).
			AddRow("client-1", "base", "0xa", testNow, 0.25, testNow).
			AddRow("client-1", "solana", "Mint1", testNow.Add(-time.Hour), nil, nil))

	items, err := NewTokenRepo(db).ListWishlist(context.Background(), "client-1", 100)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "base:0xa", items[0].TokenID())
	require.NotNil(t, items[0].CapturedPrice)
	assert.Equal(t, 0.25, *items[0].CapturedPrice)
	assert.Nil(t, items[1].CapturedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrefixed(t *testing.T) {
	assert.Equal(t, "t.a, t.b, t.c", prefixed("t.", "a,\n\tb, c"))
}
