package timer

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSessionRoundTrip(t *testing.T) {
	started := time.Date(2025, 6, 1, 9, 0, 0, 123456789, time.UTC)
	ended := started.Add(42*time.Second + 7*time.Millisecond)
	scheduled := started.Add(time.Minute)

	orig := Session{
		ID:                "a4f0c7e2",
		Status:            StatusFinished,
		StartedAt:         &started,
		EndedAt:           &ended,
		ScheduledFinishAt: &scheduled,
		DurationMs:        42_007,
		StopReason:        StopScheduled,
		VoiceEnabled:      true,
		VoiceMode:         VoiceModeKeyword,
		Keyword:           "done",
	}

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Session
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.ID != orig.ID || got.Status != orig.Status {
		t.Errorf("identity/status changed: %+v", got)
	}
	if !got.StartedAt.Equal(*orig.StartedAt) {
		t.Errorf("startedAt = %v, want %v", got.StartedAt, orig.StartedAt)
	}
	if !got.EndedAt.Equal(*orig.EndedAt) {
		t.Errorf("endedAt = %v, want %v", got.EndedAt, orig.EndedAt)
	}
	if !got.ScheduledFinishAt.Equal(*orig.ScheduledFinishAt) {
		t.Errorf("scheduledFinishAt = %v, want %v", got.ScheduledFinishAt, orig.ScheduledFinishAt)
	}
	if got.DurationMs != orig.DurationMs {
		t.Errorf("durationMs = %d, want %d", got.DurationMs, orig.DurationMs)
	}
	if got.StopReason != orig.StopReason || got.VoiceMode != orig.VoiceMode || got.Keyword != orig.Keyword {
		t.Errorf("latched fields changed: %+v", got)
	}
	if !got.VoiceEnabled {
		t.Error("voiceEnabled lost in round trip")
	}
}

func TestIdleSessionOmitsOptionalFields(t *testing.T) {
	data, err := json.Marshal(Session{Status: StatusIdle})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}

	for _, field := range []string{"id", "startedAt", "endedAt", "scheduledFinishAt", "stopReason", "keyword"} {
		if _, ok := raw[field]; ok {
			t.Errorf("idle session should omit %q", field)
		}
	}
}

func TestElapsedAndRemaining(t *testing.T) {
	started := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	scheduled := started.Add(time.Minute)
	now := started.Add(20 * time.Second)

	s := Session{Status: StatusRunning, StartedAt: &started, ScheduledFinishAt: &scheduled}

	if got := s.Elapsed(now); got != 20*time.Second {
		t.Errorf("elapsed = %v, want 20s", got)
	}
	if got := s.Remaining(now); got != 40*time.Second {
		t.Errorf("remaining = %v, want 40s", got)
	}

	// Past the bound, remaining clamps to zero.
	if got := s.Remaining(started.Add(2 * time.Minute)); got != 0 {
		t.Errorf("remaining past bound = %v, want 0", got)
	}
}
