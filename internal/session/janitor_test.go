package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

type mockPurger struct {
	stale     []string
	listErr   error
	deleteErr map[string]error
	deleted   []string
	before    time.Time
}

func (m *mockPurger) StaleSessions(_ context.Context, before time.Time) ([]string, error) {
	m.before = before
	return m.stale, m.listErr
}

func (m *mockPurger) Delete(_ context.Context, id string) error {
	if err := m.deleteErr[id]; err != nil {
		return err
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func TestJanitor_RunOnce(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	store := &mockPurger{
		stale:     []string{"a", "b", "c"},
		deleteErr: map[string]error{"b": errors.New("locked")},
	}
	var purged []string
	j := NewJanitor(store, time.Hour, time.Second, func(id string) { purged = append(purged, id) })
	j.now = func() time.Time { return now }

	n, err := j.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 2 {
		t.Errorf("purged = %d, want 2", n)
	}
	if want := now.Add(-time.Hour); !store.before.Equal(want) {
		t.Errorf("cutoff = %v, want %v", store.before, want)
	}
	if len(purged) != 2 || purged[0] != "a" || purged[1] != "c" {
		t.Errorf("onPurge calls = %v, want [a c]", purged)
	}
}

func TestJanitor_ListError(t *testing.T) {
	store := &mockPurger{listErr: errors.New("db closed")}
	j := NewJanitor(store, time.Hour, 0, nil)

	if _, err := j.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestJanitor_ZeroTTLDisabled(t *testing.T) {
	store := &mockPurger{stale: []string{"a"}}
	j := NewJanitor(store, 0, 0, nil)

	n, err := j.RunOnce(context.Background())
	if err != nil || n != 0 {
		t.Errorf("RunOnce = %d, %v; want 0, nil", n, err)
	}
	if len(store.deleted) != 0 {
		t.Errorf("deleted = %v, want none", store.deleted)
	}
}

func TestJanitor_AgainstStore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	s.Save(ctx, "idle", Values{KeyText: "x"})

	j := NewJanitor(s, 30*time.Minute, 0, nil)
	j.now = func() time.Time { return base.Add(time.Hour) }

	n, err := j.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged = %d, want 1", n)
	}
	vals, _ := s.Load(ctx, "idle")
	if len(vals) != 0 {
		t.Errorf("state survived purge: %v", vals)
	}
}

func TestJanitor_RunStopsOnCancel(t *testing.T) {
	j := NewJanitor(&mockPurger{}, time.Hour, 10*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
