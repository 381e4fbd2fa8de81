package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
	"github.com/apfl99/DexSwipe-Backend/internal/store/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestQueue(t *testing.T, stage model.Stage) (*Queue, *memory.Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	st := memory.New()
	return New(st, stage, WithClock(clock.Now)), st, clock
}

func key(addr string) model.TokenKey {
	return model.TokenKey{ChainID: model.ChainBase, TokenAddress: addr}
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Base: 5 * time.Minute, Cap: time.Hour}
	tests := []struct {
		attempts uint
		want     time.Duration
	}{
		{0, 5 * time.Minute},
		{1, 10 * time.Minute},
		{2, 20 * time.Minute},
		{3, 40 * time.Minute},
		{4, time.Hour},
		{50, time.Hour},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("attempts_%d", tc.attempts), func(t *testing.T) {
			assert.Equal(t, tc.want, b.Delay(tc.attempts))
		})
	}

	quality := DefaultBackoff[model.StageQuality]
	assert.Equal(t, 6*time.Hour, quality.Delay(6))
	assert.Equal(t, 6*time.Hour, quality.Delay(100))
}

func TestEnqueue_Idempotent(t *testing.T) {
	q, _, _ := newTestQueue(t, model.StageSecurity)
	ctx := context.Background()

	res, err := q.Enqueue(ctx, key("0xa"), key("0xb"), key("0xa"))
	require.NoError(t, err)
	assert.Equal(t, EnqueueResult{Inserted: 2}, res)

	res, err = q.Enqueue(ctx, key("0xa"), key("0xc"))
	require.NoError(t, err)
	assert.Equal(t, EnqueueResult{Inserted: 1, AlreadyQueued: 1}, res)

	res, err = q.Enqueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, EnqueueResult{}, res)
}

func TestDequeue_OrderAndLimit(t *testing.T) {
	q, _, clock := newTestQueue(t, model.StageMarket)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, key("0x1"))
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = q.Enqueue(ctx, key("0x2"), key("0x3"))
	require.NoError(t, err)

	jobs, err := q.Dequeue(ctx, 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "0x1", jobs[0].TokenAddress)
	assert.Equal(t, model.JobStatusProcessing, jobs[0].Status)
	assert.Equal(t, model.StageMarket, jobs[0].Stage)
	require.NotNil(t, jobs[0].LockedAt)

	rest, err := q.Dequeue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)

	none, err := q.Dequeue(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFail_BackoffGrowsAndNextRunIncreases(t *testing.T) {
	q, st, clock := newTestQueue(t, model.StageSecurity)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, key("0xfail"))
	require.NoError(t, err)

	var prevAttempts uint
	var prevNext time.Time
	for i := 0; i < 8; i++ {
		jobs, err := q.Dequeue(ctx, 1)
		require.NoError(t, err)
		require.Len(t, jobs, 1, "iteration %d", i)

		require.NoError(t, q.Fail(ctx, jobs[0], errors.New("upstream 503")))

		got, err := st.GetJobs(ctx, model.StageSecurity, []model.TokenKey{key("0xfail")})
		require.NoError(t, err)
		job := got[key("0xfail")]
		assert.Equal(t, model.JobStatusFailed, job.Status)
		assert.Nil(t, job.LockedAt)
		assert.Greater(t, job.Attempts, prevAttempts)
		assert.True(t, job.NextRunAt.After(prevNext))
		assert.True(t, job.NextRunAt.After(clock.Now()))
		require.NotNil(t, job.LastError)
		assert.Equal(t, "upstream 503", *job.LastError)

		prevAttempts = job.Attempts
		prevNext = job.NextRunAt

		// not eligible until the backoff elapses
		early, err := q.Dequeue(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, early)

		clock.Advance(job.NextRunAt.Sub(clock.Now()))
	}
}

func TestFailureCompletion_UsesConfiguredBackoff(t *testing.T) {
	q := New(memory.New(), model.StageMarket, WithBackoff(Backoff{Base: time.Second, Cap: 3 * time.Second}))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c := q.FailureCompletion(model.Job{}, nil, now)
	assert.Equal(t, uint(1), c.Attempts)
	assert.Equal(t, now.Add(2*time.Second), c.NextRunAt)
	require.NotNil(t, c.LastError)
	assert.Equal(t, "unknown error", *c.LastError)

	c = q.FailureCompletion(model.Job{Attempts: 1}, errors.New("boom"), now)
	assert.Equal(t, now.Add(3*time.Second), c.NextRunAt)
}

func TestFail_TerminalSuppresses(t *testing.T) {
	q, st, clock := newTestQueue(t, model.StageSecurity)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, key("0xscam"))
	require.NoError(t, err)
	jobs, err := q.Dequeue(ctx, 1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	err = q.Fail(ctx, jobs[0], Terminal(ClassUnsupportedChain, errors.New("chain fantom")))
	require.NoError(t, err)

	got, err := st.GetJobs(ctx, model.StageSecurity, []model.TokenKey{key("0xscam")})
	require.NoError(t, err)
	job := got[key("0xscam")]
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, uint(0), job.Attempts)
	assert.True(t, job.NextRunAt.After(clock.Now().Add(2*365*24*time.Hour)))
	require.NotNil(t, job.LastError)
	assert.Contains(t, *job.LastError, string(ClassUnsupportedChain))

	clock.Advance(365 * 24 * time.Hour)
	none, err := q.Dequeue(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDefer_KeepsAttempts(t *testing.T) {
	q, st, clock := newTestQueue(t, model.StageSecurity)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, key("0xd"))
	require.NoError(t, err)
	jobs, err := q.Dequeue(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, q.Fail(ctx, jobs[0], errors.New("boom")))

	clock.Advance(time.Hour)
	jobs, err = q.Dequeue(ctx, 1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, uint(1), jobs[0].Attempts)

	until := clock.Now().Add(10 * time.Minute)
	require.NoError(t, q.Defer(ctx, jobs[0], until, "cu_budget_exhausted"))

	got, err := st.GetJobs(ctx, model.StageSecurity, []model.TokenKey{key("0xd")})
	require.NoError(t, err)
	job := got[key("0xd")]
	assert.Equal(t, uint(1), job.Attempts)
	assert.Equal(t, until, job.NextRunAt)
	assert.Equal(t, "cu_budget_exhausted", *job.LastError)

	// deferred rows become eligible again once due
	clock.Advance(10 * time.Minute)
	jobs, err = q.Dequeue(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestSucceed_SchedulesRescan(t *testing.T) {
	q, st, clock := newTestQueue(t, model.StageMarket)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, key("0xs"))
	require.NoError(t, err)
	jobs, err := q.Dequeue(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, q.SucceedWithNote(ctx, jobs[0], 6*time.Hour, "no_pair_found"))

	got, err := st.GetJobs(ctx, model.StageMarket, []model.TokenKey{key("0xs")})
	require.NoError(t, err)
	job := got[key("0xs")]
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, clock.Now().Add(6*time.Hour), job.NextRunAt)
	require.NotNil(t, job.LastScannedAt)
	assert.Equal(t, "no_pair_found", *job.LastError)
}

func TestLeaseExpiry_Reclaims(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	st := memory.New()
	q := New(st, model.StageQuality, WithClock(clock.Now), WithLeaseTimeout(5*time.Minute))
	ctx := context.Background()

	_, err := q.Enqueue(ctx, key("0xl"))
	require.NoError(t, err)
	first, err := q.Dequeue(ctx, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)

	clock.Advance(4 * time.Minute)
	none, err := q.Dequeue(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, none)

	clock.Advance(2 * time.Minute)
	second, err := q.Dequeue(ctx, 1)
	require.NoError(t, err)
	require.Len(t, second, 1)

	// the crashed worker's stale lease can no longer complete the job
	err = q.Succeed(ctx, first[0], time.Hour)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLeaseLost)

	require.NoError(t, q.Succeed(ctx, second[0], time.Hour))
}

func TestDequeue_ConcurrentNeverOverlaps(t *testing.T) {
	q, _, _ := newTestQueue(t, model.StageSecurity)
	ctx := context.Background()

	const total = 500
	keys := make([]model.TokenKey, 0, total)
	for i := 0; i < total; i++ {
		keys = append(keys, key(fmt.Sprintf("0x%04d", i)))
	}
	_, err := q.Enqueue(ctx, keys...)
	require.NoError(t, err)

	var (
		mu      sync.Mutex
		claimed = make(map[model.TokenKey]int)
		wg      sync.WaitGroup
	)
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				jobs, err := q.Dequeue(ctx, 7)
				if err != nil {
					t.Error(err)
					return
				}
				if len(jobs) == 0 {
					return
				}
				mu.Lock()
				for _, j := range jobs {
					claimed[j.Key()]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, total)
	for k, n := range claimed {
		assert.Equal(t, 1, n, "job %s claimed %d times", k, n)
	}
}

func TestTerminalError(t *testing.T) {
	base := errors.New("address not found")
	err := fmt.Errorf("scan: %w", Terminal(ClassInvalidAddress, base))

	te, ok := AsTerminal(err)
	require.True(t, ok)
	assert.Equal(t, ClassInvalidAddress, te.Class)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "invalid_address: address not found", te.Error())

	_, ok = AsTerminal(base)
	assert.False(t, ok)
}
