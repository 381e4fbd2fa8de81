package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
	"github.com/apfl99/DexSwipe-Backend/internal/metrics"
	"github.com/apfl99/DexSwipe-Backend/internal/store"
)

// Completion outcomes used in metrics and logs.
const (
	OutcomeSucceeded  = "succeeded"
	OutcomeFailed     = "failed"
	OutcomeSuppressed = "suppressed"
	OutcomeDeferred   = "deferred"
)

// Queue is the work queue of one pipeline stage.
type Queue struct {
	repo         store.JobQueueRepository
	stage        model.Stage
	backoff      Backoff
	leaseTimeout time.Duration
	nowFn        func() time.Time
	logger       *slog.Logger
}

type Option func(*Queue)

func WithBackoff(b Backoff) Option {
	return func(q *Queue) { q.backoff = b }
}

func WithLeaseTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.leaseTimeout = d
		}
	}
}

// WithClock overrides time.Now for tests.
func WithClock(nowFn func() time.Time) Option {
	return func(q *Queue) { q.nowFn = nowFn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) { q.logger = logger }
}

func New(repo store.JobQueueRepository, stage model.Stage, opts ...Option) *Queue {
	q := &Queue{
		repo:         repo,
		stage:        stage,
		backoff:      DefaultBackoff[stage],
		leaseTimeout: DefaultLeaseTimeout,
		nowFn:        time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.With("component", "queue", "stage", string(stage))
	return q
}

func (q *Queue) Stage() model.Stage {
	return q.stage
}

// EnqueueResult counts what an Enqueue call did.
type EnqueueResult struct {
	Inserted      int
	AlreadyQueued int
}

// Enqueue adds pending jobs for keys. Keys that already have a row in this
// stage, in any status, are left untouched.
func (q *Queue) Enqueue(ctx context.Context, keys ...model.TokenKey) (EnqueueResult, error) {
	uniq := dedupeKeys(keys)
	if len(uniq) == 0 {
		return EnqueueResult{}, nil
	}
	inserted, err := q.repo.Enqueue(ctx, q.stage, uniq, q.nowFn())
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("enqueue %s jobs: %w", q.stage, err)
	}
	metrics.QueueEnqueuedTotal.WithLabelValues(string(q.stage)).Add(float64(inserted))
	return EnqueueResult{Inserted: inserted, AlreadyQueued: len(uniq) - inserted}, nil
}

// Dequeue leases up to batchSize eligible jobs. Two concurrent callers never
// receive the same row.
func (q *Queue) Dequeue(ctx context.Context, batchSize int) ([]model.Job, error) {
	if batchSize <= 0 {
		return nil, nil
	}
	start := time.Now()
	jobs, err := q.repo.Claim(ctx, q.stage, batchSize, q.nowFn(), q.leaseTimeout)
	metrics.QueueClaimDuration.WithLabelValues(string(q.stage)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("claim %s jobs: %w", q.stage, err)
	}
	for i := range jobs {
		jobs[i].Stage = q.stage
	}
	metrics.QueueClaimedTotal.WithLabelValues(string(q.stage)).Add(float64(len(jobs)))
	return jobs, nil
}

// Succeed completes a job and schedules its next scan after rescanAfter.
func (q *Queue) Succeed(ctx context.Context, job model.Job, rescanAfter time.Duration) error {
	return q.SucceedWithNote(ctx, job, rescanAfter, "")
}

// SucceedWithNote is Succeed with an informational last_error, such as
// "no_pair_found".
func (q *Queue) SucceedWithNote(ctx context.Context, job model.Job, rescanAfter time.Duration, note string) error {
	now := q.nowFn()
	c := model.Completion{
		Status:    model.JobStatusCompleted,
		Attempts:  job.Attempts,
		NextRunAt: now.Add(rescanAfter),
		Scanned:   true,
	}
	if note != "" {
		c.LastError = &note
	}
	return q.complete(ctx, job, c, now, OutcomeSucceeded)
}

// Fail records a job error. Terminal errors suppress the job; anything else
// is retried with exponential backoff.
func (q *Queue) Fail(ctx context.Context, job model.Job, jobErr error) error {
	if te, ok := AsTerminal(jobErr); ok {
		return q.Suppress(ctx, job, te.Class, te.Error())
	}
	now := q.nowFn()
	c := q.FailureCompletion(job, jobErr, now)
	q.logger.Warn("job failed",
		"chain", job.ChainID,
		"token_address", job.TokenAddress,
		"attempts", c.Attempts,
		"next_run_at", c.NextRunAt,
		"error", jobErr,
	)
	return q.complete(ctx, job, c, now, OutcomeFailed)
}

// FailureCompletion computes the retry completion for a non-terminal error.
func (q *Queue) FailureCompletion(job model.Job, jobErr error, now time.Time) model.Completion {
	attempts := job.Attempts + 1
	msg := "unknown error"
	if jobErr != nil {
		msg = jobErr.Error()
	}
	return model.Completion{
		Status:    model.JobStatusFailed,
		Attempts:  attempts,
		NextRunAt: now.Add(q.backoff.Delay(attempts)),
		LastError: &msg,
	}
}

// Suppress completes a job with a far-future next_run_at so it is never
// picked again.
func (q *Queue) Suppress(ctx context.Context, job model.Job, class TerminalClass, detail string) error {
	now := q.nowFn()
	msg := string(class)
	if detail != "" && detail != msg {
		msg = detail
	}
	c := model.Completion{
		Status:    model.JobStatusCompleted,
		Attempts:  job.Attempts,
		NextRunAt: now.Add(SuppressFor),
		LastError: &msg,
	}
	q.logger.Info("job suppressed",
		"chain", job.ChainID,
		"token_address", job.TokenAddress,
		"class", class,
	)
	return q.complete(ctx, job, c, now, OutcomeSuppressed)
}

// Defer re-schedules a job without counting an attempt.
func (q *Queue) Defer(ctx context.Context, job model.Job, until time.Time, reason string) error {
	now := q.nowFn()
	c := model.Completion{
		Status:    model.JobStatusCompleted,
		Attempts:  job.Attempts,
		NextRunAt: until,
		LastError: &reason,
	}
	return q.complete(ctx, job, c, now, OutcomeDeferred)
}

// Jobs returns the current queue rows for keys.
func (q *Queue) Jobs(ctx context.Context, keys []model.TokenKey) (map[model.TokenKey]model.Job, error) {
	if len(keys) == 0 {
		return map[model.TokenKey]model.Job{}, nil
	}
	jobs, err := q.repo.GetJobs(ctx, q.stage, keys)
	if err != nil {
		return nil, fmt.Errorf("get %s jobs: %w", q.stage, err)
	}
	return jobs, nil
}

func (q *Queue) Now() time.Time {
	return q.nowFn()
}

func (q *Queue) complete(ctx context.Context, job model.Job, c model.Completion, now time.Time, outcome string) error {
	if err := q.repo.Complete(ctx, job, c, now); err != nil {
		if errors.Is(err, ErrLeaseLost) {
			q.logger.Warn("job lease lost before completion",
				"chain", job.ChainID,
				"token_address", job.TokenAddress,
			)
		}
		return fmt.Errorf("complete %s job %s: %w", q.stage, job.Key(), err)
	}
	metrics.QueueCompletedTotal.WithLabelValues(string(q.stage), outcome).Inc()
	return nil
}

func dedupeKeys(keys []model.TokenKey) []model.TokenKey {
	seen := make(map[model.TokenKey]struct{}, len(keys))
	out := make([]model.TokenKey, 0, len(keys))
	for _, k := range keys {
		if k.ChainID == "" || k.TokenAddress == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
