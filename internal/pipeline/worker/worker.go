// Package worker holds the batch loop shared by the queue-backed stages:
// lease a batch, fan it out per chain, repeat until the invocation cap or
// the queue runs dry.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/apfl99/DexSwipe-Backend/internal/circuitbreaker"
	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
	"github.com/apfl99/DexSwipe-Backend/internal/metrics"
	"github.com/apfl99/DexSwipe-Backend/internal/pipeline/retry"
	"github.com/apfl99/DexSwipe-Backend/internal/provider"
	"github.com/apfl99/DexSwipe-Backend/internal/queue"
)

// DefaultMaxChains bounds how many chains a batch works on at once.
const DefaultMaxChains = 4

// Stats counts what one invocation did to its jobs.
type Stats struct {
	Claimed    int `json:"claimed"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	Suppressed int `json:"suppressed"`
	Deferred   int `json:"deferred"`
	// Fetched and Enqueued are set by discovery only.
	Fetched  int `json:"fetched,omitempty"`
	Enqueued int `json:"enqueued,omitempty"`
	// Stopped names why the invocation ended early, if it did.
	Stopped string `json:"stopped,omitempty"`
}

// Tally is a Stats that per-chain goroutines can update together.
type Tally struct {
	mu sync.Mutex
	s  Stats
}

// Record counts one job by queue outcome.
func (t *Tally) Record(outcome string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch outcome {
	case queue.OutcomeSucceeded:
		t.s.Succeeded++
	case queue.OutcomeFailed:
		t.s.Failed++
	case queue.OutcomeSuppressed:
		t.s.Suppressed++
	case queue.OutcomeDeferred:
		t.s.Deferred++
	}
}

// Stop records the first reason the invocation ended early.
func (t *Tally) Stop(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.s.Stopped == "" {
		t.s.Stopped = reason
	}
}

func (t *Tally) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.s.Stopped != ""
}

func (t *Tally) claimed(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.Claimed += n
}

func (t *Tally) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.s
}

// Limits bound one invocation.
type Limits struct {
	BatchSize int
	MaxJobs   int
}

// BatchFunc processes one leased batch. It must complete every job it was
// handed, even when the run is stopping.
type BatchFunc func(ctx context.Context, jobs []model.Job) error

// Drain leases batches from q and hands them to fn until MaxJobs jobs were
// claimed, the queue is empty, or the tally is stopped.
func Drain(ctx context.Context, q *queue.Queue, lim Limits, tally *Tally, fn BatchFunc) error {
	remaining := lim.MaxJobs
	for remaining > 0 && !tally.Stopped() {
		if err := ctx.Err(); err != nil {
			return err
		}
		jobs, err := q.Dequeue(ctx, min(lim.BatchSize, remaining))
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			return nil
		}
		tally.claimed(len(jobs))
		remaining -= len(jobs)
		if err := fn(ctx, jobs); err != nil {
			return err
		}
	}
	return nil
}

// ByChain groups jobs by chain, keeping their claim order within a chain.
func ByChain(jobs []model.Job) map[model.ChainID][]model.Job {
	out := make(map[model.ChainID][]model.Job)
	for _, j := range jobs {
		out[j.ChainID] = append(out[j.ChainID], j)
	}
	return out
}

// PerChain runs fn once per chain group, chains in parallel (at most
// maxChains at a time), jobs of one chain in order. The first error cancels
// the remaining groups.
func PerChain(ctx context.Context, jobs []model.Job, maxChains int, fn func(ctx context.Context, chain model.ChainID, jobs []model.Job) error) error {
	if maxChains <= 0 {
		maxChains = DefaultMaxChains
	}
	groups := ByChain(jobs)
	chains := make([]model.ChainID, 0, len(groups))
	for c := range groups {
		chains = append(chains, c)
	}
	sort.Slice(chains, func(a, b int) bool { return chains[a] < chains[b] })

	sem := semaphore.NewWeighted(int64(maxChains))
	g, gctx := errgroup.WithContext(ctx)
	for _, chain := range chains {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			if err := fn(gctx, chain, groups[chain]); err != nil {
				return fmt.Errorf("chain %s: %w", chain, err)
			}
			metrics.PipelineJobsProcessed.WithLabelValues(string(jobs[0].Stage), string(chain)).Add(float64(len(groups[chain])))
			return nil
		})
	}
	return g.Wait()
}

// JobError maps a provider error onto the queue's failure policy: client
// errors other than auth suppress the job as an invalid address, anything
// else is retried with backoff.
func JobError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := queue.AsTerminal(err); ok {
		return err
	}
	if errors.Is(err, provider.ErrUnauthorized) || errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return err
	}
	var httpErr *provider.HTTPError
	if errors.As(err, &httpErr) && !retry.Classify(err).IsTransient() {
		switch httpErr.StatusCode {
		case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
			return queue.Terminal(queue.ClassInvalidAddress, err)
		}
	}
	return err
}

// Fail completes job after a processing error and returns the queue
// outcome it was recorded under.
func Fail(ctx context.Context, q *queue.Queue, job model.Job, err error) (string, error) {
	err = JobError(err)
	outcome := queue.OutcomeFailed
	if _, ok := queue.AsTerminal(err); ok {
		outcome = queue.OutcomeSuppressed
	}
	return outcome, q.Fail(ctx, job, err)
}
