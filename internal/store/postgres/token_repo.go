package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
	"github.com/apfl99/DexSwipe-Backend/internal/store"
)

const tokenColumns = `chain_id, token_address, symbol, name, pair_address, dex_id, url,
	price_usd, liquidity_usd, volume_24h, fdv, market_cap,
	price_change_5m, price_change_15m, price_change_1h, price_change_24h,
	buys_24h, sells_24h, pair_created_at, logo_url, website_url,
	last_activity_at, updated_at`

// TokenRepo stores market snapshots and serves the feed and wishlist reads.
type TokenRepo struct {
	db *DB
}

func NewTokenRepo(db *DB) *TokenRepo {
	return &TokenRepo{db: db}
}

var (
	_ store.TokenRepository    = (*TokenRepo)(nil)
	_ store.FeedRepository     = (*TokenRepo)(nil)
	_ store.WishlistRepository = (*TokenRepo)(nil)
)

// UpsertSnapshots writes all snapshots in one transaction. A snapshot
// without activity keeps the stored last_activity_at.
func (r *TokenRepo) UpsertSnapshots(ctx context.Context, snaps []model.TokenSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tokens (`+tokenColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
		ON CONFLICT (chain_id, token_address) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			name = EXCLUDED.name,
			pair_address = EXCLUDED.pair_address,
			dex_id = EXCLUDED.dex_id,
			url = EXCLUDED.url,
			price_usd = EXCLUDED.price_usd,
			liquidity_usd = EXCLUDED.liquidity_usd,
			volume_24h = EXCLUDED.volume_24h,
			fdv = EXCLUDED.fdv,
			market_cap = EXCLUDED.market_cap,
			price_change_5m = EXCLUDED.price_change_5m,
			price_change_15m = EXCLUDED.price_change_15m,
			price_change_1h = EXCLUDED.price_change_1h,
			price_change_24h = EXCLUDED.price_change_24h,
			buys_24h = EXCLUDED.buys_24h,
			sells_24h = EXCLUDED.sells_24h,
			pair_created_at = EXCLUDED.pair_created_at,
			logo_url = EXCLUDED.logo_url,
			website_url = EXCLUDED.website_url,
			last_activity_at = COALESCE(EXCLUDED.last_activity_at, tokens.last_activity_at),
			updated_at = EXCLUDED.updated_at
	`)
	if err != nil {
		return fmt.Errorf("prepare snapshot upsert: %w", err)
	}
	defer stmt.Close()

	for _, s := range snaps {
		if _, err := stmt.ExecContext(ctx,
			s.ChainID, s.TokenAddress, s.Symbol, s.Name, s.PairAddress, s.DexID, s.URL,
			s.PriceUSD, s.LiquidityUSD, s.Volume24h, s.FDV, s.MarketCap,
			s.PriceChange5m, s.PriceChange15m, s.PriceChange1h, s.PriceChange24h,
			s.Buys24h, s.Sells24h, s.PairCreatedAt, s.LogoURL, s.WebsiteURL,
			s.LastActivityAt, s.UpdatedAt,
		); err != nil {
			return fmt.Errorf("upsert snapshot %s: %w", s.Key(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot upsert: %w", err)
	}
	return nil
}

func (r *TokenRepo) GetSnapshots(ctx context.Context, keys []model.TokenKey) (map[model.TokenKey]model.TokenSnapshot, error) {
	out := make(map[model.TokenKey]model.TokenSnapshot, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	chains, addrs := keyArrays(keys)
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+tokenColumns+`
		FROM tokens
		WHERE (chain_id, token_address) IN (
			SELECT * FROM unnest($1::text[], $2::text[])
		)
	`, chains, addrs)
	if err != nil {
		return nil, fmt.Errorf("get snapshots: %w", err)
	}
	snaps, err := scanSnapshots(rows)
	if err != nil {
		return nil, fmt.Errorf("get snapshots: %w", err)
	}
	for _, s := range snaps {
		out[s.Key()] = s
	}
	return out, nil
}

// NextPage returns the newest unseen snapshots older than the cursor. A
// missing metric fails any positive threshold.
func (r *TokenRepo) NextPage(ctx context.Context, q store.FeedQuery) ([]model.TokenSnapshot, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	args := []interface{}{q.ClientID}
	where := []string{`NOT EXISTS (
		SELECT 1 FROM seen_tokens s
		WHERE s.client_id = $1 AND s.chain_id = t.chain_id AND s.token_address = t.token_address
	)`}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if len(q.Filter.Chains) > 0 {
		where = append(where, "t.chain_id = ANY("+arg(pq.Array(chainIDs(q.Filter.Chains)))+")")
	}
	if q.Cursor != nil {
		where = append(where, "t.updated_at < "+arg(*q.Cursor))
	}
	if q.Filter.MinLiquidityUSD > 0 {
		where = append(where, "t.liquidity_usd >= "+arg(q.Filter.MinLiquidityUSD))
	}
	if q.Filter.MinVolume24hUSD > 0 {
		where = append(where, "t.volume_24h >= "+arg(q.Filter.MinVolume24hUSD))
	}
	if q.Filter.MinFDV > 0 {
		where = append(where, "t.fdv >= "+arg(q.Filter.MinFDV))
	}
	limit := ""
	if q.Limit > 0 {
		limit = "LIMIT " + arg(q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+prefixed("t.", tokenColumns)+`
		FROM tokens t
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY t.updated_at DESC, t.chain_id, t.token_address
		`+limit, args...)
	if err != nil {
		return nil, fmt.Errorf("feed page: %w", err)
	}
	snaps, err := scanSnapshots(rows)
	if err != nil {
		return nil, fmt.Errorf("feed page: %w", err)
	}
	return snaps, nil
}

// MarkSeen records the first time a client was served each key.
func (r *TokenRepo) MarkSeen(ctx context.Context, clientID string, keys []model.TokenKey, at time.Time) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	chains, addrs := keyArrays(keys)
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO seen_tokens (client_id, chain_id, token_address, seen_at)
		SELECT $1, k.chain_id, k.token_address, $4
		FROM unnest($2::text[], $3::text[]) AS k(chain_id, token_address)
		ON CONFLICT (client_id, chain_id, token_address) DO NOTHING
	`, clientID, chains, addrs, at); err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

func (r *TokenRepo) ListWishlist(ctx context.Context, clientID string, limit int) ([]model.WishlistItem, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	query := `
		SELECT client_id, chain_id, token_address, created_at, captured_price, captured_at
		FROM wishlist
		WHERE client_id = $1
		ORDER BY created_at DESC`
	args := []interface{}{clientID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	defer rows.Close()

	var items []model.WishlistItem
	for rows.Next() {
		var w model.WishlistItem
		if err := rows.Scan(&w.ClientID, &w.ChainID, &w.TokenAddress, &w.CreatedAt, &w.CapturedPrice, &w.CapturedAt); err != nil {
			return nil, fmt.Errorf("scan wishlist: %w", err)
		}
		items = append(items, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	return items, nil
}

func scanSnapshots(rows *sql.Rows) ([]model.TokenSnapshot, error) {
	defer rows.Close()

	var out []model.TokenSnapshot
	for rows.Next() {
		var s model.TokenSnapshot
		if err := rows.Scan(
			&s.ChainID, &s.TokenAddress, &s.Symbol, &s.Name, &s.PairAddress, &s.DexID, &s.URL,
			&s.PriceUSD, &s.LiquidityUSD, &s.Volume24h, &s.FDV, &s.MarketCap,
			&s.PriceChange5m, &s.PriceChange15m, &s.PriceChange1h, &s.PriceChange24h,
			&s.Buys24h, &s.Sells24h, &s.PairCreatedAt, &s.LogoURL, &s.WebsiteURL,
			&s.LastActivityAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// prefixed qualifies a comma separated column list with an alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
