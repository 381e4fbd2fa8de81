package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
	"github.com/apfl99/DexSwipe-Backend/internal/store"
)

var queueTables = map[model.Stage]string{
	model.StageMarket:   "dexscreener_market_update_queue",
	model.StageSecurity: "token_security_scan_queue",
	model.StageQuality:  "token_quality_scan_queue",
}

const jobColumns = `chain_id, token_address, status, attempts, locked_at, last_error,
	next_run_at, last_scanned_at, created_at, updated_at`

func queueTable(stage model.Stage) (string, error) {
	table, ok := queueTables[stage]
	if !ok {
		return "", fmt.Errorf("unknown queue stage %q", stage)
	}
	return table, nil
}

type JobQueueRepo struct {
	db *DB
}

func NewJobQueueRepo(db *DB) *JobQueueRepo {
	return &JobQueueRepo{db: db}
}

var _ store.JobQueueRepository = (*JobQueueRepo)(nil)

func (r *JobQueueRepo) Enqueue(ctx context.Context, stage model.Stage, keys []model.TokenKey, runAt time.Time) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	table, err := queueTable(stage)
	if err != nil {
		return 0, err
	}
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	chains, addrs := keyArrays(keys)
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO `+table+` (chain_id, token_address, status, next_run_at, created_at, updated_at)
		SELECT k.chain_id, k.token_address, 'pending', $3, $3, $3
		FROM unnest($1::text[], $2::text[]) AS k(chain_id, token_address)
		ON CONFLICT (chain_id, token_address) DO NOTHING
	`, chains, addrs, runAt)
	if err != nil {
		return 0, fmt.Errorf("enqueue %s jobs: %w", stage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("enqueue %s jobs: rows affected: %w", stage, err)
	}
	return int(n), nil
}

// Claim leases due rows with FOR UPDATE SKIP LOCKED so concurrent workers
// never receive the same job. Rows stuck in processing past the lease
// timeout are reclaimed.
func (r *JobQueueRepo) Claim(ctx context.Context, stage model.Stage, limit int, now time.Time, leaseTimeout time.Duration) ([]model.Job, error) {
	if limit <= 0 {
		return nil, nil
	}
	table, err := queueTable(stage)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		UPDATE `+table+` AS q
		SET status = 'processing', locked_at = $1, updated_at = $1
		WHERE (q.chain_id, q.token_address) IN (
			SELECT chain_id, token_address
			FROM `+table+`
			WHERE (status <> 'processing' AND next_run_at <= $1)
			   OR (status = 'processing' AND locked_at <= $2)
			ORDER BY next_run_at, chain_id, token_address
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns,
		now, now.Add(-leaseTimeout), limit)
	if err != nil {
		return nil, fmt.Errorf("claim %s jobs: %w", stage, err)
	}
	jobs, err := scanJobs(rows, stage)
	if err != nil {
		return nil, fmt.Errorf("claim %s jobs: %w", stage, err)
	}
	sort.Slice(jobs, func(a, b int) bool {
		if !jobs[a].NextRunAt.Equal(jobs[b].NextRunAt) {
			return jobs[a].NextRunAt.Before(jobs[b].NextRunAt)
		}
		return jobs[a].Key().String() < jobs[b].Key().String()
	})
	return jobs, nil
}

func (r *JobQueueRepo) Complete(ctx context.Context, job model.Job, c model.Completion, now time.Time) error {
	if job.LockedAt == nil {
		return store.ErrLeaseLost
	}
	table, err := queueTable(job.Stage)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE `+table+`
		SET status = $3,
			attempts = $4,
			locked_at = NULL,
			next_run_at = $5,
			last_error = $6,
			last_scanned_at = CASE WHEN $7 THEN $8 ELSE last_scanned_at END,
			updated_at = $8
		WHERE chain_id = $1 AND token_address = $2
		  AND status = 'processing' AND locked_at = $9
	`, job.ChainID, job.TokenAddress, c.Status, c.Attempts, c.NextRunAt, c.LastError, c.Scanned, now, *job.LockedAt)
	if err != nil {
		return fmt.Errorf("complete %s job %s: %w", job.Stage, job.Key(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete %s job %s: rows affected: %w", job.Stage, job.Key(), err)
	}
	if n == 0 {
		return store.ErrLeaseLost
	}
	return nil
}

func (r *JobQueueRepo) GetJobs(ctx context.Context, stage model.Stage, keys []model.TokenKey) (map[model.TokenKey]model.Job, error) {
	out := make(map[model.TokenKey]model.Job, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	table, err := queueTable(stage)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	chains, addrs := keyArrays(keys)
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM `+table+`
		WHERE (chain_id, token_address) IN (
			SELECT * FROM unnest($1::text[], $2::text[])
		)
	`, chains, addrs)
	if err != nil {
		return nil, fmt.Errorf("get %s jobs: %w", stage, err)
	}
	jobs, err := scanJobs(rows, stage)
	if err != nil {
		return nil, fmt.Errorf("get %s jobs: %w", stage, err)
	}
	for _, j := range jobs {
		out[j.Key()] = j
	}
	return out, nil
}

func scanJobs(rows *sql.Rows, stage model.Stage) ([]model.Job, error) {
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j := model.Job{Stage: stage}
		if err := rows.Scan(
			&j.ChainID, &j.TokenAddress, &j.Status, &j.Attempts, &j.LockedAt, &j.LastError,
			&j.NextRunAt, &j.LastScannedAt, &j.CreatedAt, &j.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
