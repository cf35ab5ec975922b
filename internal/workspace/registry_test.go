package workspace

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kalambet/keyweave/internal/session"
)

func TestRegistry_BuildsOncePerSession(t *testing.T) {
	fc := newFakeCollab()
	built := map[string]int{}
	reg := NewRegistry(func(ctx context.Context, id string) (*Workspace, error) {
		built[id]++
		return New(ctx, Deps{Concepts: fc, Merger: fc, Scorer: fc, Searcher: fc})
	}, time.Hour)
	ctx := context.Background()

	a1, err := reg.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	a2, _ := reg.Get(ctx, "a")
	b, _ := reg.Get(ctx, "b")

	if a1 != a2 {
		t.Error("same session returned different workspaces")
	}
	if a1 == b {
		t.Error("different sessions share a workspace")
	}
	if built["a"] != 1 || built["b"] != 1 {
		t.Errorf("factory calls = %v", built)
	}
	if reg.Len() != 2 {
		t.Errorf("Len = %d, want 2", reg.Len())
	}

	reg.Forget("a")
	a3, _ := reg.Get(ctx, "a")
	if a3 == a1 || built["a"] != 2 {
		t.Error("Forget did not drop the live workspace")
	}
}

func TestRegistry_ReloadsPersistedState(t *testing.T) {
	fc := newFakeCollab()
	mem := session.NewMemory()
	reg := NewRegistry(func(ctx context.Context, _ string) (*Workspace, error) {
		return New(ctx, Deps{Concepts: fc, Merger: fc, Scorer: fc, Searcher: fc, Persister: mem})
	}, 0)
	ctx := context.Background()

	ws, _ := reg.Get(ctx, "s")
	ws.SetStory(ctx, "survives eviction")
	reg.Forget("s")

	ws, err := reg.Get(ctx, "s")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ws.Story() != "survives eviction" {
		t.Errorf("story = %q", ws.Story())
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	reg := NewRegistry(func(context.Context, string) (*Workspace, error) {
		return nil, errUnavailable
	}, time.Hour)

	if _, err := reg.Get(context.Background(), "s"); !errors.Is(err, errUnavailable) {
		t.Fatalf("err = %v, want errUnavailable", err)
	}
	if reg.Len() != 0 {
		t.Error("failed workspace was cached")
	}
}
