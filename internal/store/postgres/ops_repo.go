package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
	"github.com/apfl99/DexSwipe-Backend/internal/store"
)

const dayLayout = "2006-01-02"

// OpsRepo holds the operational tables: chain mappings, the GoPlus daily
// scan counter and discovery ingestion runs.
type OpsRepo struct {
	db *DB
}

func NewOpsRepo(db *DB) *OpsRepo {
	return &OpsRepo{db: db}
}

var (
	_ store.ChainMappingRepository = (*OpsRepo)(nil)
	_ store.DailyUsageRepository   = (*OpsRepo)(nil)
	_ store.IngestionRunRepository = (*OpsRepo)(nil)
)

func (r *OpsRepo) ListChains(ctx context.Context) ([]model.Chain, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT dexscreener_chain_id, family, goplus_mode, goplus_chain_id, address_casing
		FROM chain_mappings
		ORDER BY dexscreener_chain_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list chains: %w", err)
	}
	defer rows.Close()

	var out []model.Chain
	for rows.Next() {
		var c model.Chain
		if err := rows.Scan(&c.ID, &c.Family, &c.GoPlusMode, &c.GoPlusChainID, &c.Casing); err != nil {
			return nil, fmt.Errorf("scan chain: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list chains: %w", err)
	}
	return out, nil
}

func (r *OpsRepo) UpsertChains(ctx context.Context, chains []model.Chain) error {
	if len(chains) == 0 {
		return nil
	}
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chain upsert: %w", err)
	}
	defer tx.Rollback()

	for _, c := range chains {
		mode, casing := c.GoPlusMode, c.Casing
		if mode == "" {
			mode = model.GoPlusModeNone
		}
		if casing == "" {
			casing = model.CasingSensitive
			if c.Family == model.FamilyEVM {
				casing = model.CasingLower
			}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chain_mappings (dexscreener_chain_id, family, goplus_mode, goplus_chain_id, address_casing)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (dexscreener_chain_id) DO UPDATE SET
				family = EXCLUDED.family,
				goplus_mode = EXCLUDED.goplus_mode,
				goplus_chain_id = EXCLUDED.goplus_chain_id,
				address_casing = EXCLUDED.address_casing,
				updated_at = now()
		`, c.ID, c.Family, mode, c.GoPlusChainID, casing); err != nil {
			return fmt.Errorf("upsert chain %s: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chain upsert: %w", err)
	}
	return nil
}

// Reserve increments the day's counter only while it is below limit. The
// conditional upsert keeps concurrent reservations from overshooting.
func (r *OpsRepo) Reserve(ctx context.Context, day time.Time, limit uint) (bool, error) {
	if limit == 0 {
		return false, nil
	}
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		INSERT INTO goplus_daily_usage (day, scans)
		VALUES ($1::date, 1)
		ON CONFLICT (day) DO UPDATE SET
			scans = goplus_daily_usage.scans + 1,
			updated_at = now()
		WHERE goplus_daily_usage.scans < $2
		RETURNING scans
	`, store.DayKey(day).Format(dayLayout), limit)
	if err != nil {
		return false, fmt.Errorf("reserve daily scan: %w", err)
	}
	defer rows.Close()

	reserved := rows.Next()
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("reserve daily scan: %w", err)
	}
	return reserved, nil
}

func (r *OpsRepo) Count(ctx context.Context, day time.Time) (uint, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var n uint
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE((SELECT scans FROM goplus_daily_usage WHERE day = $1::date), 0)
	`, store.DayKey(day).Format(dayLayout)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count daily scans: %w", err)
	}
	return n, nil
}

func (r *OpsRepo) StartRun(ctx context.Context, run *model.IngestionRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO dexscreener_ingestion_runs (id, source, status, chains, fetched, enqueued, error, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, run.ID, run.Source, run.Status, pq.Array(chainIDs(run.Chains)), run.Fetched, run.Enqueued,
		run.Error, run.StartedAt); err != nil {
		return fmt.Errorf("start ingestion run: %w", err)
	}
	return nil
}

func (r *OpsRepo) FinishRun(ctx context.Context, run *model.IngestionRun) error {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE dexscreener_ingestion_runs
		SET status = $2, fetched = $3, enqueued = $4, error = $5, finished_at = $6
		WHERE id = $1
	`, run.ID, run.Status, run.Fetched, run.Enqueued, run.Error, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("finish ingestion run %s: %w", run.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish ingestion run %s: rows affected: %w", run.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("finish ingestion run %s: not found", run.ID)
	}
	return nil
}

// RecentRuns lists the latest ingestion runs, newest first.
func (r *OpsRepo) RecentRuns(ctx context.Context, limit int) ([]model.IngestionRun, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source, status, chains, fetched, enqueued, error, started_at, finished_at
		FROM dexscreener_ingestion_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list ingestion runs: %w", err)
	}
	defer rows.Close()

	var out []model.IngestionRun
	for rows.Next() {
		var (
			run    model.IngestionRun
			chains pq.StringArray
		)
		if err := rows.Scan(&run.ID, &run.Source, &run.Status, &chains, &run.Fetched, &run.Enqueued,
			&run.Error, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan ingestion run: %w", err)
		}
		run.Chains = toChainIDs(chains)
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ingestion runs: %w", err)
	}
	return out, nil
}
