package workspace

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kalambet/keyweave/internal/session"
)

// RevisionStore holds the current story text and the text the last
// successful diversity check compared against.
type RevisionStore struct {
	mu       sync.Mutex
	current  string
	previous string
	persist  session.Persister
	logger   *slog.Logger
}

// NewRevisionStore seeds both texts from vals, falling back to DefaultStory.
func NewRevisionStore(vals session.Values, persist session.Persister, logger *slog.Logger) *RevisionStore {
	r := &RevisionStore{
		current:  DefaultStory,
		previous: DefaultStory,
		persist:  persist,
		logger:   logger,
	}
	if v, ok := vals[session.KeyText]; ok && v != "" {
		r.current = v
	}
	if v, ok := vals[session.KeyPreviousText]; ok && v != "" {
		r.previous = v
	}
	return r
}

// Current returns the current story text.
func (r *RevisionStore) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Previous returns the last checkpointed text.
func (r *RevisionStore) Previous() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.previous
}

// SetCurrent replaces the story text and persists it. A persistence
// failure is logged; the in-memory edit stands.
func (r *RevisionStore) SetCurrent(ctx context.Context, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = text
	r.save(ctx, session.Values{session.KeyText: text})
}

// CommitCheckpoint advances the comparison baseline to text.
func (r *RevisionStore) CommitCheckpoint(ctx context.Context, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.previous = text
	r.save(ctx, session.Values{session.KeyPreviousText: text})
}

func (r *RevisionStore) save(ctx context.Context, vals session.Values) {
	if err := r.persist.Save(context.WithoutCancel(ctx), vals); err != nil {
		r.logger.Warn("persisting story state", "error", err)
	}
}
