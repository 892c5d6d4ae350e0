package policy

import (
	"testing"

	"github.com/jwulff/hush/internal/timer"
)

type fakeTarget struct {
	status  timer.Status
	voice   timer.VoiceConfig
	stopped []timer.StopReason
}

func (f *fakeTarget) Snapshot() timer.Session   { return timer.Session{Status: f.status} }
func (f *fakeTarget) Voice() timer.VoiceConfig  { return f.voice }
func (f *fakeTarget) Stop(r timer.StopReason) bool {
	if f.status != timer.StatusRunning {
		return false
	}
	f.status = timer.StatusStopped
	f.stopped = append(f.stopped, r)
	return true
}

func TestApplyStopsOnMatch(t *testing.T) {
	target := &fakeTarget{
		status: timer.StatusRunning,
		voice:  timer.VoiceConfig{Enabled: true, Mode: timer.VoiceModeKeyword, Keyword: "stop"},
	}

	if !Apply(target, "please Stop now") {
		t.Fatal("matching utterance should stop")
	}
	if len(target.stopped) != 1 || target.stopped[0] != timer.StopVoiceKeyword {
		t.Errorf("stops = %v, want one voice_keyword", target.stopped)
	}

	// A second utterance observes the stopped state and does nothing.
	if Apply(target, "stop again") {
		t.Error("utterance after stop should be ignored")
	}
}

func TestApplyIgnoresNonMatch(t *testing.T) {
	target := &fakeTarget{
		status: timer.StatusRunning,
		voice:  timer.VoiceConfig{Enabled: true, Mode: timer.VoiceModeKeyword, Keyword: "stop"},
	}

	if Apply(target, "carry on") {
		t.Error("non-matching utterance should not stop")
	}
	if len(target.stopped) != 0 {
		t.Errorf("stops = %v, want none", target.stopped)
	}
}
