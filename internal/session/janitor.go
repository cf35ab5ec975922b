package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Purger abstracts the store operations the janitor needs.
type Purger interface {
	StaleSessions(ctx context.Context, before time.Time) ([]string, error)
	Delete(ctx context.Context, id string) error
}

// Janitor ends sessions that have been idle longer than the TTL.
type Janitor struct {
	store   Purger
	ttl     time.Duration
	poll    time.Duration
	onPurge func(id string)
	now     func() time.Time
	logger  *slog.Logger
}

// NewJanitor creates a Janitor. If pollInterval is <= 0, it defaults to one minute.
// onPurge, when non-nil, is called with each purged session ID.
func NewJanitor(store Purger, ttl, pollInterval time.Duration, onPurge func(id string)) *Janitor {
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	return &Janitor{
		store:   store,
		ttl:     ttl,
		poll:    pollInterval,
		onPurge: onPurge,
		now:     time.Now,
		logger:  slog.Default(),
	}
}

// Run sweeps until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		n, err := j.RunOnce(ctx)
		if err != nil {
			j.logger.Error("session sweep failed", "error", err)
		} else if n > 0 {
			j.logger.Info("expired sessions purged", "count", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(j.poll):
		}
	}
}

// RunOnce deletes every stale session and returns how many were removed.
func (j *Janitor) RunOnce(ctx context.Context) (int, error) {
	if j.ttl <= 0 {
		return 0, nil
	}
	ids, err := j.store.StaleSessions(ctx, j.now().Add(-j.ttl))
	if err != nil {
		return 0, fmt.Errorf("listing stale sessions: %w", err)
	}

	purged := 0
	for _, id := range ids {
		if err := j.store.Delete(ctx, id); err != nil {
			j.logger.Warn("deleting stale session", "session_id", id, "error", err)
			continue
		}
		purged++
		if j.onPurge != nil {
			j.onPurge(id)
		}
	}
	return purged, nil
}
