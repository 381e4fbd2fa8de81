package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/apfl99/DexSwipe-Backend/internal/pipeline/worker"
)

// ErrUnknownStage is returned by Run for a stage name nobody registered.
var ErrUnknownStage = errors.New("unknown stage")

// Registry maps stage names to their runners. The scheduler and the manual
// trigger endpoint both resolve stages through it.
type Registry struct {
	mu      sync.RWMutex
	runners map[string]*Runner
}

func NewRegistry() *Registry {
	return &Registry{runners: make(map[string]*Runner)}
}

// Register adds a runner keyed by its stage name, replacing any previous one.
func (r *Registry) Register(runner *Runner) {
	r.mu.Lock()
	r.runners[runner.Name()] = runner
	r.mu.Unlock()
}

// Get returns the runner for the stage, or nil if not found.
func (r *Registry) Get(stage string) *Runner {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.runners[stage]
}

// Run invokes the named stage once.
func (r *Registry) Run(ctx context.Context, stage string) (worker.Stats, error) {
	runner := r.Get(stage)
	if runner == nil {
		return worker.Stats{}, fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}
	return runner.Run(ctx)
}

// Names returns the registered stage names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.runners))
	for name := range r.runners {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Health returns a snapshot per registered stage, sorted by name.
func (r *Registry) Health() []HealthSnapshot {
	names := r.Names()
	out := make([]HealthSnapshot, 0, len(names))
	for _, name := range names {
		if runner := r.Get(name); runner != nil {
			out = append(out, runner.Health().Snapshot())
		}
	}
	return out
}
