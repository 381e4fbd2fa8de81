package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
	"github.com/apfl99/DexSwipe-Backend/internal/store"
)

// CacheRepo stores GoPlus responses: token security (with scam
// permanence and the deny audit log), rugpull detection and URL risk.
type CacheRepo struct {
	db *DB
}

func NewCacheRepo(db *DB) *CacheRepo {
	return &CacheRepo{db: db}
}

var (
	_ store.SecurityCacheRepository = (*CacheRepo)(nil)
	_ store.RugpullCacheRepository  = (*CacheRepo)(nil)
	_ store.URLRiskCacheRepository  = (*CacheRepo)(nil)
)

const securityColumns = `chain_id, token_address, raw, signals, always_deny, deny_reasons,
	limited, limit_reason, scanned_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSecurity(row rowScanner) (model.SecurityEntry, error) {
	var (
		e       model.SecurityEntry
		raw     []byte
		signals []byte
		reasons pq.StringArray
	)
	if err := row.Scan(
		&e.ChainID, &e.TokenAddress, &raw, &signals, &e.AlwaysDeny, &reasons,
		&e.Limited, &e.LimitReason, &e.ScannedAt,
	); err != nil {
		return e, err
	}
	if len(raw) > 0 {
		e.Raw = json.RawMessage(raw)
	}
	if len(signals) > 0 {
		if err := json.Unmarshal(signals, &e.Signals); err != nil {
			return e, fmt.Errorf("decode signals for %s: %w", e.Key(), err)
		}
	}
	if len(reasons) > 0 {
		e.DenyReasons = []string(reasons)
	}
	return e, nil
}

func (r *CacheRepo) GetSecurity(ctx context.Context, keys []model.TokenKey) (map[model.TokenKey]model.SecurityEntry, error) {
	out := make(map[model.TokenKey]model.SecurityEntry, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	chains, addrs := keyArrays(keys)
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+securityColumns+`
		FROM goplus_token_security_cache
		WHERE (chain_id, token_address) IN (
			SELECT * FROM unnest($1::text[], $2::text[])
		)
	`, chains, addrs)
	if err != nil {
		return nil, fmt.Errorf("get security cache: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanSecurity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan security cache: %w", err)
		}
		out[e.Key()] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get security cache: %w", err)
	}
	return out, nil
}

// PutSecurity writes a scan under a row lock. A fresh key is inserted
// directly; an existing row is merged with store.MergeSecurity so a stored
// always-deny verdict survives later clean scans. A deny-log row is written
// in the same transaction when the key first turns always-deny.
func (r *CacheRepo) PutSecurity(ctx context.Context, entry model.SecurityEntry) (store.PutResult, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	signals, err := json.Marshal(entry.Signals)
	if err != nil {
		return store.PutResult{}, fmt.Errorf("encode signals: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return store.PutResult{}, fmt.Errorf("begin security put: %w", err)
	}
	defer tx.Rollback()

	ins, err := tx.ExecContext(ctx, `
		INSERT INTO goplus_token_security_cache (`+securityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (chain_id, token_address) DO NOTHING
	`, entry.ChainID, entry.TokenAddress, nullJSON(entry.Raw), signals, entry.AlwaysDeny,
		textArray(entry.DenyReasons), entry.Limited, entry.LimitReason, entry.ScannedAt)
	if err != nil {
		return store.PutResult{}, fmt.Errorf("insert security cache: %w", err)
	}
	inserted, err := ins.RowsAffected()
	if err != nil {
		return store.PutResult{}, fmt.Errorf("insert security cache: rows affected: %w", err)
	}

	var res store.PutResult
	if inserted == 1 {
		res = store.PutResult{Outcome: store.PutWritten, NewlyDenied: entry.AlwaysDeny}
	} else {
		existing, err := scanSecurity(tx.QueryRowContext(ctx, `
			SELECT `+securityColumns+`
			FROM goplus_token_security_cache
			WHERE chain_id = $1 AND token_address = $2
			FOR UPDATE
		`, entry.ChainID, entry.TokenAddress))
		if err != nil {
			return store.PutResult{}, fmt.Errorf("lock security cache row: %w", err)
		}
		var stored model.SecurityEntry
		res, stored = store.MergeSecurity(existing, true, entry)
		if res.Outcome != store.PutStale {
			if err := updateSecurity(ctx, tx, stored); err != nil {
				return store.PutResult{}, err
			}
		}
	}

	if res.NewlyDenied {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO token_deny_log (id, chain_id, token_address, reasons, source, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.New(), entry.ChainID, entry.TokenAddress, textArray(entry.DenyReasons),
			store.DenySourceTokenSecurity, entry.ScannedAt); err != nil {
			return store.PutResult{}, fmt.Errorf("insert deny log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return store.PutResult{}, fmt.Errorf("commit security put: %w", err)
	}
	return res, nil
}

func updateSecurity(ctx context.Context, tx *sql.Tx, e model.SecurityEntry) error {
	signals, err := json.Marshal(e.Signals)
	if err != nil {
		return fmt.Errorf("encode signals: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE goplus_token_security_cache
		SET raw = $3, signals = $4, always_deny = $5, deny_reasons = $6,
			limited = $7, limit_reason = $8, scanned_at = $9
		WHERE chain_id = $1 AND token_address = $2
	`, e.ChainID, e.TokenAddress, nullJSON(e.Raw), signals, e.AlwaysDeny,
		textArray(e.DenyReasons), e.Limited, e.LimitReason, e.ScannedAt); err != nil {
		return fmt.Errorf("update security cache: %w", err)
	}
	return nil
}

func (r *CacheRepo) GetRugpull(ctx context.Context, keys []model.TokenKey) (map[model.TokenKey]model.RugpullEntry, error) {
	out := make(map[model.TokenKey]model.RugpullEntry, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	chains, addrs := keyArrays(keys)
	rows, err := r.db.QueryContext(ctx, `
		SELECT chain_id, token_address, raw, is_rugpull_risk, risk_level, scanned_at
		FROM goplus_rugpull_cache
		WHERE (chain_id, token_address) IN (
			SELECT * FROM unnest($1::text[], $2::text[])
		)
	`, chains, addrs)
	if err != nil {
		return nil, fmt.Errorf("get rugpull cache: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e   model.RugpullEntry
			raw []byte
		)
		if err := rows.Scan(&e.ChainID, &e.TokenAddress, &raw, &e.IsRugpullRisk, &e.RiskLevel, &e.ScannedAt); err != nil {
			return nil, fmt.Errorf("scan rugpull cache: %w", err)
		}
		if len(raw) > 0 {
			e.Raw = json.RawMessage(raw)
		}
		out[e.Key()] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get rugpull cache: %w", err)
	}
	return out, nil
}

// PutRugpull is last-writer-wins by scanned_at.
func (r *CacheRepo) PutRugpull(ctx context.Context, e model.RugpullEntry) error {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO goplus_rugpull_cache (chain_id, token_address, raw, is_rugpull_risk, risk_level, scanned_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (chain_id, token_address) DO UPDATE SET
			raw = EXCLUDED.raw,
			is_rugpull_risk = EXCLUDED.is_rugpull_risk,
			risk_level = EXCLUDED.risk_level,
			scanned_at = EXCLUDED.scanned_at
		WHERE goplus_rugpull_cache.scanned_at <= EXCLUDED.scanned_at
	`, e.ChainID, e.TokenAddress, nullJSON(e.Raw), e.IsRugpullRisk, e.RiskLevel, e.ScannedAt)
	if err != nil {
		return fmt.Errorf("put rugpull cache: %w", err)
	}
	return nil
}

func (r *CacheRepo) GetURLRisk(ctx context.Context, urls []string) (map[string]model.URLRiskEntry, error) {
	out := make(map[string]model.URLRiskEntry, len(urls))
	if len(urls) == 0 {
		return out, nil
	}
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT url, raw_phishing, raw_dapp, is_phishing, dapp_risk_level, scanned_at
		FROM goplus_url_risk_cache
		WHERE url = ANY($1)
	`, pq.Array(urls))
	if err != nil {
		return nil, fmt.Errorf("get url risk cache: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e        model.URLRiskEntry
			phishing []byte
			dapp     []byte
		)
		if err := rows.Scan(&e.URL, &phishing, &dapp, &e.IsPhishing, &e.DappRiskLevel, &e.ScannedAt); err != nil {
			return nil, fmt.Errorf("scan url risk cache: %w", err)
		}
		if len(phishing) > 0 {
			e.RawPhishing = json.RawMessage(phishing)
		}
		if len(dapp) > 0 {
			e.RawDapp = json.RawMessage(dapp)
		}
		out[e.URL] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get url risk cache: %w", err)
	}
	return out, nil
}

// PutURLRisk is last-writer-wins by scanned_at.
func (r *CacheRepo) PutURLRisk(ctx context.Context, e model.URLRiskEntry) error {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO goplus_url_risk_cache (url, raw_phishing, raw_dapp, is_phishing, dapp_risk_level, scanned_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (url) DO UPDATE SET
			raw_phishing = EXCLUDED.raw_phishing,
			raw_dapp = EXCLUDED.raw_dapp,
			is_phishing = EXCLUDED.is_phishing,
			dapp_risk_level = EXCLUDED.dapp_risk_level,
			scanned_at = EXCLUDED.scanned_at
		WHERE goplus_url_risk_cache.scanned_at <= EXCLUDED.scanned_at
	`, e.URL, nullJSON(e.RawPhishing), nullJSON(e.RawDapp), e.IsPhishing, e.DappRiskLevel, e.ScannedAt)
	if err != nil {
		return fmt.Errorf("put url risk cache: %w", err)
	}
	return nil
}

// DenyLog lists audit rows for one token, newest first.
func (r *CacheRepo) DenyLog(ctx context.Context, key model.TokenKey) ([]model.TokenDenyLog, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chain_id, token_address, reasons, source, metadata, created_at
		FROM token_deny_log
		WHERE chain_id = $1 AND token_address = $2
		ORDER BY created_at DESC
	`, key.ChainID, key.TokenAddress)
	if err != nil {
		return nil, fmt.Errorf("list deny log: %w", err)
	}
	defer rows.Close()

	var out []model.TokenDenyLog
	for rows.Next() {
		var (
			l        model.TokenDenyLog
			reasons  pq.StringArray
			metadata []byte
		)
		if err := rows.Scan(&l.ID, &l.ChainID, &l.TokenAddress, &reasons, &l.Source, &metadata, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan deny log: %w", err)
		}
		l.Reasons = []string(reasons)
		if len(metadata) > 0 {
			l.Metadata = json.RawMessage(metadata)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list deny log: %w", err)
	}
	return out, nil
}
