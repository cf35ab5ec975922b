package workspace

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/keyweave/internal/session"
)

var errUnavailable = errors.New("service unavailable")

type conceptCall struct{ Story, Keyword string }
type mergeCall struct{ Story, Detail, Keyword string }
type simCall struct{ Origin, New string }

// fakeCollab implements all four collaborators. Each *Fn may be replaced by
// a test; calls are recorded.
type fakeCollab struct {
	mu sync.Mutex

	conceptFn func(ctx context.Context, story, keyword string) (string, error)
	mergeFn   func(ctx context.Context, story, detail, keyword string) (string, error)
	simFn     func(ctx context.Context, origin, updated string) (float64, error)
	searchFn  func(ctx context.Context, query string) ([]string, error)

	conceptCalls []conceptCall
	mergeCalls   []mergeCall
	simCalls     []simCall
	searchCalls  []string
}

func newFakeCollab() *fakeCollab {
	return &fakeCollab{
		conceptFn: func(_ context.Context, _, keyword string) (string, error) { return "about " + keyword, nil },
		mergeFn: func(_ context.Context, story, detail, _ string) (string, error) {
			return story + " " + detail, nil
		},
		simFn:    func(context.Context, string, string) (float64, error) { return 50, nil },
		searchFn: func(context.Context, string) ([]string, error) { return []string{"pumpkin", "costume"}, nil },
	}
}

func (f *fakeCollab) GenerateConcept(ctx context.Context, story, keyword string) (string, error) {
	f.mu.Lock()
	f.conceptCalls = append(f.conceptCalls, conceptCall{story, keyword})
	fn := f.conceptFn
	f.mu.Unlock()
	return fn(ctx, story, keyword)
}

func (f *fakeCollab) MergeStory(ctx context.Context, story, detail, keyword string) (string, error) {
	f.mu.Lock()
	f.mergeCalls = append(f.mergeCalls, mergeCall{story, detail, keyword})
	fn := f.mergeFn
	f.mu.Unlock()
	return fn(ctx, story, detail, keyword)
}

func (f *fakeCollab) Similarity(ctx context.Context, origin, updated string) (float64, error) {
	f.mu.Lock()
	f.simCalls = append(f.simCalls, simCall{origin, updated})
	fn := f.simFn
	f.mu.Unlock()
	return fn(ctx, origin, updated)
}

func (f *fakeCollab) SearchKeywords(ctx context.Context, query string) ([]string, error) {
	f.mu.Lock()
	f.searchCalls = append(f.searchCalls, query)
	fn := f.searchFn
	f.mu.Unlock()
	return fn(ctx, query)
}

func (f *fakeCollab) conceptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conceptCalls)
}

func (f *fakeCollab) mergeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.mergeCalls)
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestWorkspace(t *testing.T, fc *fakeCollab, persist session.Persister) *Workspace {
	t.Helper()
	ws, err := New(context.Background(), Deps{
		Concepts:  fc,
		Merger:    fc,
		Scorer:    fc,
		Searcher:  fc,
		Persister: persist,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ws
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func mustState(t *testing.T, ws *Workspace, label string) KeywordState {
	t.Helper()
	st, err := ws.KeywordState(label)
	if err != nil {
		t.Fatalf("KeywordState(%q): %v", label, err)
	}
	return st
}
