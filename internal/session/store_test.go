package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct.
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) || len(v1) != 2 {
		t.Errorf("migrations = %v then %v, want 2 both times", v1, v2)
	}
}

func TestLoad_EmptySession(t *testing.T) {
	s := openTestStore(t)

	vals, err := s.Load(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(vals) != 0 {
		t.Errorf("Load = %v, want empty", vals)
	}
}

func TestSave_PartialUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "s1", Values{KeyText: "one", KeyPreviousText: "zero"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, "s1", Values{KeyText: "two"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	vals, err := s.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if vals[KeyText] != "two" {
		t.Errorf("text = %q, want %q", vals[KeyText], "two")
	}
	if vals[KeyPreviousText] != "zero" {
		t.Errorf("previousText = %q, want %q", vals[KeyPreviousText], "zero")
	}
	if _, ok := vals[KeyGaugeValue]; ok {
		t.Error("gaugeValue should not be set")
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, b := s.Session("a"), s.Session("b")
	if err := a.Save(ctx, Values{KeyText: "alpha"}); err != nil {
		t.Fatalf("Save a: %v", err)
	}
	if err := b.Save(ctx, Values{KeyText: "beta"}); err != nil {
		t.Fatalf("Save b: %v", err)
	}

	got, err := a.Load(ctx)
	if err != nil {
		t.Fatalf("Load a: %v", err)
	}
	if got[KeyText] != "alpha" {
		t.Errorf("a text = %q, want alpha", got[KeyText])
	}
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "gone", Values{KeyText: "bye"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	vals, err := s.Load(ctx, "gone")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(vals) != 0 {
		t.Errorf("Load after Delete = %v, want empty", vals)
	}
	if ok, _ := s.Exists(ctx, "gone"); ok {
		t.Error("session still exists after Delete")
	}

	if err := s.Delete(ctx, "gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
}

func TestStaleSessions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	if err := s.Touch(ctx, "old"); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	if err := s.Touch(ctx, "fresh"); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	ids, err := s.StaleSessions(ctx, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("StaleSessions: %v", err)
	}
	if len(ids) != 1 || ids[0] != "old" {
		t.Errorf("StaleSessions = %v, want [old]", ids)
	}
}

func TestMemory_SaveMerges(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Save(ctx, Values{KeyText: "a", KeyGaugeValue: "10"})
	m.Save(ctx, Values{KeyText: "b"})

	vals, _ := m.Load(ctx)
	if vals[KeyText] != "b" || vals[KeyGaugeValue] != "10" {
		t.Errorf("Load = %v", vals)
	}

	// Mutating the returned map must not leak back.
	vals[KeyText] = "mutated"
	again, _ := m.Load(ctx)
	if again[KeyText] != "b" {
		t.Errorf("Load after mutation = %q, want b", again[KeyText])
	}
}
