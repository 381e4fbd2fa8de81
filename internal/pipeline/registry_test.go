package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/apfl99/DexSwipe-Backend/internal/pipeline/worker"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()

	runner := NewRunner(&fakeStage{name: "market"})
	r.Register(runner)

	got := r.Get("market")
	if got != runner {
		t.Fatalf("expected registered runner, got %v", got)
	}
}

func TestRegistry_GetNotFound(t *testing.T) {
	r := NewRegistry()

	if got := r.Get("security"); got != nil {
		t.Fatalf("expected nil for unregistered stage, got %v", got)
	}
}

func TestRegistry_NamesAndHealthSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(NewRunner(&fakeStage{name: "security"}))
	r.Register(NewRunner(&fakeStage{name: "discovery"}))
	r.Register(NewRunner(&fakeStage{name: "market"}))

	names := r.Names()
	want := []string{"discovery", "market", "security"}
	if len(names) != len(want) {
		t.Fatalf("expected %d names, got %v", len(want), names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	health := r.Health()
	if len(health) != 3 || health[0].Stage != "discovery" || health[0].Status != string(HealthStatusUnknown) {
		t.Fatalf("unexpected health snapshots: %+v", health)
	}
}

func TestRegistry_Run(t *testing.T) {
	r := NewRegistry()
	r.Register(NewRunner(&fakeStage{name: "market", stats: worker.Stats{Claimed: 4}}))

	stats, err := r.Run(context.Background(), "market")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Claimed != 4 {
		t.Fatalf("expected stage stats, got %+v", stats)
	}

	if _, err := r.Run(context.Background(), "bogus"); !errors.Is(err, ErrUnknownStage) {
		t.Fatalf("expected ErrUnknownStage, got %v", err)
	}
}
