package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
	"github.com/apfl99/DexSwipe-Backend/internal/store"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return Wrap(sqlDB, slog.New(slog.NewTextHandler(io.Discard, nil))), mock
}

var jobRowColumns = []string{
	"chain_id", "token_address", "status", "attempts", "locked_at", "last_error",
	"next_run_at", "last_scanned_at", "created_at", "updated_at",
}

func TestJobQueueRepo_Enqueue(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobQueueRepo(db)

	mock.ExpectExec("INSERT INTO token_security_scan_queue").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), testNow).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.Enqueue(context.Background(), model.StageSecurity, []model.TokenKey{
		{ChainID: model.ChainBase, TokenAddress: "0xa"},
		{ChainID: model.ChainBase, TokenAddress: "0xb"},
		{ChainID: model.ChainBase, TokenAddress: "0xa"},
	}, testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobQueueRepo_EnqueueNothing(t *testing.T) {
	db, mock := newMockDB(t)
	n, err := NewJobQueueRepo(db).Enqueue(context.Background(), model.StageMarket, nil, testNow)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobQueueRepo_UnknownStage(t *testing.T) {
	db, _ := newMockDB(t)
	_, err := NewJobQueueRepo(db).Enqueue(context.Background(), "discovery", []model.TokenKey{{ChainID: model.ChainBase, TokenAddress: "0xa"}}, testNow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown queue stage "discovery"`)
}

func TestJobQueueRepo_ClaimSortsLeasedRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobQueueRepo(db)
	lease := 10 * time.Minute
	earlier := testNow.Add(-time.Hour)

	rows := sqlmock.NewRows(jobRowColumns).
		AddRow("solana", "Mint2", "processing", 0, testNow, nil, testNow, nil, testNow, testNow).
		AddRow("base", "0xa", "processing", 2, testNow, "timeout", earlier, nil, earlier, testNow)
	mock.ExpectQuery("UPDATE dexscreener_market_update_queue AS q").
		WithArgs(testNow, testNow.Add(-lease), 5).
		WillReturnRows(rows)

	jobs, err := repo.Claim(context.Background(), model.StageMarket, 5, testNow, lease)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, "0xa", jobs[0].TokenAddress)
	assert.Equal(t, model.StageMarket, jobs[0].Stage)
	assert.Equal(t, model.JobStatusProcessing, jobs[0].Status)
	assert.Equal(t, uint(2), jobs[0].Attempts)
	require.NotNil(t, jobs[0].LastError)
	assert.Equal(t, "timeout", *jobs[0].LastError)
	require.NotNil(t, jobs[0].LockedAt)
	assert.Equal(t, testNow, *jobs[0].LockedAt)
	assert.Nil(t, jobs[0].LastScannedAt)
	assert.Equal(t, model.ChainSolana, jobs[1].ChainID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobQueueRepo_ClaimZeroLimit(t *testing.T) {
	db, mock := newMockDB(t)
	jobs, err := NewJobQueueRepo(db).Claim(context.Background(), model.StageMarket, 0, testNow, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobQueueRepo_Complete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobQueueRepo(db)
	lockedAt := testNow.Add(-time.Minute)
	job := model.Job{Stage: model.StageQuality, ChainID: model.ChainBase, TokenAddress: "0xa", LockedAt: &lockedAt}
	msg := "no_pair_found"
	c := model.Completion{Status: model.JobStatusCompleted, Attempts: 1, NextRunAt: testNow.Add(time.Hour), LastError: &msg, Scanned: true}

	mock.ExpectExec("UPDATE token_quality_scan_queue").
		WithArgs(model.ChainBase, "0xa", model.JobStatusCompleted, uint(1), c.NextRunAt, &msg, true, testNow, lockedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Complete(context.Background(), job, c, testNow))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobQueueRepo_CompleteLeaseLost(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobQueueRepo(db)
	lockedAt := testNow.Add(-time.Minute)
	job := model.Job{Stage: model.StageSecurity, ChainID: model.ChainBase, TokenAddress: "0xa", LockedAt: &lockedAt}

	mock.ExpectExec("UPDATE token_security_scan_queue").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Complete(context.Background(), job, model.Completion{Status: model.JobStatusFailed}, testNow)
	assert.ErrorIs(t, err, store.ErrLeaseLost)

	job.LockedAt = nil
	err = repo.Complete(context.Background(), job, model.Completion{Status: model.JobStatusFailed}, testNow)
	assert.ErrorIs(t, err, store.ErrLeaseLost)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobQueueRepo_CompleteExecError(t *testing.T) {
	db, mock := newMockDB(t)
	lockedAt := testNow
	job := model.Job{Stage: model.StageMarket, ChainID: model.ChainSolana, TokenAddress: "Mint1", LockedAt: &lockedAt}

	mock.ExpectExec("UPDATE dexscreener_market_update_queue").WillReturnError(assert.AnError)

	err := NewJobQueueRepo(db).Complete(context.Background(), job, model.Completion{Status: model.JobStatusCompleted}, testNow)
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "complete market job solana:Mint1")
}

func TestJobQueueRepo_GetJobs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobQueueRepo(db)

	rows := sqlmock.NewRows(jobRowColumns).
		AddRow("base", "0xa", "completed", 0, nil, nil, testNow, testNow, testNow, testNow)
	mock.ExpectQuery("SELECT .* FROM token_security_scan_queue").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(rows)

	a := model.TokenKey{ChainID: model.ChainBase, TokenAddress: "0xa"}
	b := model.TokenKey{ChainID: model.ChainBase, TokenAddress: "0xb"}
	jobs, err := repo.GetJobs(context.Background(), model.StageSecurity, []model.TokenKey{a, b})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, model.JobStatusCompleted, jobs[a].Status)
	require.NotNil(t, jobs[a].LastScannedAt)
	assert.Nil(t, jobs[a].LockedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
