package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jwulff/hush/internal/timer"
)

func openTestStore(t *testing.T, limit int) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hush.sqlite")
	s, err := Open(path, limit)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func finishedSession(id string, endedAt time.Time) timer.Session {
	startedAt := endedAt.Add(-time.Minute)
	return timer.Session{
		ID:         id,
		Status:     timer.StatusStopped,
		StartedAt:  &startedAt,
		EndedAt:    &endedAt,
		DurationMs: time.Minute.Milliseconds(),
		StopReason: timer.StopManual,
	}
}

func TestLoadCurrentEmpty(t *testing.T) {
	s := openTestStore(t, 0)

	sess, ok, err := s.LoadCurrent()
	if err != nil {
		t.Fatalf("LoadCurrent() error = %v", err)
	}
	if ok {
		t.Fatal("LoadCurrent() ok = true on empty store, want false")
	}
	if sess.Status != timer.StatusIdle {
		t.Fatalf("status = %q, want %q", sess.Status, timer.StatusIdle)
	}
}

func TestSaveCurrentLastWriteWins(t *testing.T) {
	s := openTestStore(t, 0)

	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	first := timer.Session{Status: timer.StatusRunning, StartedAt: &started}
	if err := s.SaveCurrent(first); err != nil {
		t.Fatalf("SaveCurrent() error = %v", err)
	}

	second := finishedSession("abc-123", started.Add(time.Minute))
	if err := s.SaveCurrent(second); err != nil {
		t.Fatalf("SaveCurrent() error = %v", err)
	}

	got, ok, err := s.LoadCurrent()
	if err != nil {
		t.Fatalf("LoadCurrent() error = %v", err)
	}
	if !ok {
		t.Fatal("LoadCurrent() ok = false, want true")
	}
	if got.Status != timer.StatusStopped {
		t.Fatalf("status = %q, want %q", got.Status, timer.StatusStopped)
	}
	if got.ID != "abc-123" {
		t.Fatalf("id = %q, want %q", got.ID, "abc-123")
	}
}

func TestAppendBoundsHistory(t *testing.T) {
	s := openTestStore(t, 10)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 11; i++ {
		sess := finishedSession(fmt.Sprintf("id-%02d", i), base.Add(time.Duration(i)*time.Minute))
		if err := s.Append(sess); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}

	got, err := s.History(0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("len(history) = %d, want 10", len(got))
	}
	// Most recent first; the oldest entry was evicted.
	if got[0].ID != "id-10" {
		t.Fatalf("history[0].ID = %q, want %q", got[0].ID, "id-10")
	}
	if got[9].ID != "id-01" {
		t.Fatalf("history[9].ID = %q, want %q", got[9].ID, "id-01")
	}
}

func TestAppendSameSessionTwice(t *testing.T) {
	s := openTestStore(t, 10)

	endedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	sess := finishedSession("dup-1", endedAt)

	if err := s.Append(sess); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	// A second append with the same identity must not mutate the record.
	mutated := sess
	mutated.DurationMs = 999999
	if err := s.Append(mutated); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := s.History(0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(history) = %d, want 1", len(got))
	}
	if got[0].DurationMs != time.Minute.Milliseconds() {
		t.Fatalf("durationMs = %d, want %d", got[0].DurationMs, time.Minute.Milliseconds())
	}
}

func TestAppendRejectsUnfinished(t *testing.T) {
	s := openTestStore(t, 10)

	if err := s.Append(timer.Session{Status: timer.StatusRunning}); err == nil {
		t.Fatal("Append() error = nil for unfinished session, want error")
	}
}

func TestHistoryLimitParameter(t *testing.T) {
	s := openTestStore(t, 10)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		sess := finishedSession(fmt.Sprintf("id-%02d", i), base.Add(time.Duration(i)*time.Minute))
		if err := s.Append(sess); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}

	got, err := s.History(3)
	if err != nil {
		t.Fatalf("History(3) error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len(history) = %d, want 3", len(got))
	}
	if got[0].ID != "id-04" {
		t.Fatalf("history[0].ID = %q, want %q", got[0].ID, "id-04")
	}
}

func TestRegisterActorIdempotent(t *testing.T) {
	s := openTestStore(t, 0)

	connectedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := Actor{ID: "tui-1", DisplayName: "terminal", ConnectedAt: connectedAt}

	if err := s.RegisterActor(a); err != nil {
		t.Fatalf("RegisterActor() error = %v", err)
	}
	if err := s.RegisterActor(a); err != nil {
		t.Fatalf("RegisterActor() second error = %v", err)
	}

	actors, err := s.Actors()
	if err != nil {
		t.Fatalf("Actors() error = %v", err)
	}
	if len(actors) != 1 {
		t.Fatalf("len(actors) = %d, want 1", len(actors))
	}
	if actors[0].DisplayName != "terminal" {
		t.Fatalf("displayName = %q, want %q", actors[0].DisplayName, "terminal")
	}
}

func TestUnregisterActor(t *testing.T) {
	s := openTestStore(t, 0)

	a := Actor{ID: "bot-1", DisplayName: "bot", ConnectedAt: time.Now()}
	if err := s.RegisterActor(a); err != nil {
		t.Fatalf("RegisterActor() error = %v", err)
	}
	if err := s.UnregisterActor("bot-1"); err != nil {
		t.Fatalf("UnregisterActor() error = %v", err)
	}
	// Unknown identity is a no-op.
	if err := s.UnregisterActor("never-seen"); err != nil {
		t.Fatalf("UnregisterActor(unknown) error = %v", err)
	}

	actors, err := s.Actors()
	if err != nil {
		t.Fatalf("Actors() error = %v", err)
	}
	if len(actors) != 0 {
		t.Fatalf("len(actors) = %d, want 0", len(actors))
	}
}
