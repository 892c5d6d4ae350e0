package app

import (
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jwulff/hush/internal/daemon"
	"github.com/jwulff/hush/internal/timer"
)

func newTestModel() Model {
	m := New("/tmp/hushd.sock", "/tmp/hush.sqlite")
	m.width = 80
	m.height = 24
	return m
}

func TestNewModel(t *testing.T) {
	m := New("/tmp/hushd.sock", "/tmp/hush.sqlite")
	if m.connected {
		t.Error("new model should not be connected")
	}
	if m.session.Status != timer.StatusIdle {
		t.Errorf("status = %q, want idle", m.session.Status)
	}
	if m.actorID == "" {
		t.Error("new model should have an actor id")
	}
}

func TestDaemonConnectError(t *testing.T) {
	m := newTestModel()

	updated, _ := m.Update(DaemonConnectErrorMsg{Err: fmt.Errorf("connection refused")})
	model := updated.(Model)

	if model.connected {
		t.Error("should not be connected after error")
	}
	if !model.reconnecting {
		t.Error("should be reconnecting after connect error")
	}
}

func TestReconnectBacksOff(t *testing.T) {
	m := newTestModel()
	m.reconnecting = true
	m.reconnectAttempt = 2

	updated, cmd := m.Update(ReconnectTickMsg{})
	model := updated.(Model)

	if model.reconnectAttempt != 3 {
		t.Errorf("attempt = %d, want 3", model.reconnectAttempt)
	}
	if cmd == nil {
		t.Error("reconnect tick should produce a connect command")
	}
}

func TestCommandResponseUpdatesSession(t *testing.T) {
	m := newTestModel()
	m.connected = true

	started := time.Now()
	resp := CommandResponseMsg{Response: daemon.Response{
		OK:      true,
		Session: &timer.Session{Status: timer.StatusRunning, StartedAt: &started},
		Voice:   &timer.VoiceConfig{Enabled: true, Mode: timer.VoiceModeAny},
	}}

	updated, cmd := m.Update(resp)
	model := updated.(Model)

	if !model.session.Running() {
		t.Error("session should be running")
	}
	if !model.voice.Enabled {
		t.Error("voice should be enabled")
	}
	if cmd == nil {
		t.Error("entering running should start the elapsed tick")
	}
}

func TestCommandResponseErrorIsTransient(t *testing.T) {
	m := newTestModel()

	updated, cmd := m.Update(CommandResponseMsg{Response: daemon.Response{
		OK:    false,
		Error: "unknown voice mode \"whistle\"",
	}})
	model := updated.(Model)

	if model.warning == "" {
		t.Error("error response should surface a warning")
	}
	if cmd == nil {
		t.Error("warning should schedule a clear")
	}

	updated, _ = model.Update(ClearWarningMsg{})
	model = updated.(Model)
	if model.warning != "" {
		t.Error("warning should clear after timeout")
	}
}

func TestStoppedEventReloadsHistory(t *testing.T) {
	m := newTestModel()
	m.connected = true

	endedAt := time.Now()
	ev := DaemonEventMsg{Event: daemon.Event{
		Event:   daemon.EventStopped,
		Session: &timer.Session{ID: "s1", Status: timer.StatusStopped, EndedAt: &endedAt},
	}}

	updated, _ := m.Update(ev)
	model := updated.(Model)

	if model.session.Status != timer.StatusStopped {
		t.Errorf("status = %q, want stopped", model.session.Status)
	}
}

func TestVoiceWarningEvents(t *testing.T) {
	m := newTestModel()
	m.connected = true

	updated, cmd := m.Update(DaemonEventMsg{Event: daemon.Event{
		Event: daemon.EventVoicePermissionDenied,
	}})
	model := updated.(Model)

	if model.warning == "" {
		t.Error("permission event should surface a warning")
	}
	if cmd == nil {
		t.Error("should keep reading events and schedule a clear")
	}
	// The warning never moves the session.
	if model.session.Status != timer.StatusIdle {
		t.Errorf("status = %q, want idle", model.session.Status)
	}
}

func TestEventStreamErrorTriggersReconnect(t *testing.T) {
	m := newTestModel()
	m.connected = true

	updated, cmd := m.Update(DaemonEventErrorMsg{Err: fmt.Errorf("connection closed")})
	model := updated.(Model)

	if model.connected {
		t.Error("should be disconnected after stream error")
	}
	if !model.reconnecting {
		t.Error("should be reconnecting")
	}
	if cmd == nil {
		t.Error("should schedule a reconnect tick")
	}
}

func TestSpaceStartsAndStops(t *testing.T) {
	m := newTestModel()
	m.connected = true
	m.client = &daemon.Client{}

	_, cmd := m.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{' '}})
	if cmd == nil {
		t.Error("space while idle should send start")
	}

	started := time.Now()
	m.session = timer.Session{Status: timer.StatusRunning, StartedAt: &started}
	_, cmd = m.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{' '}})
	if cmd == nil {
		t.Error("space while running should send stop")
	}
}

func TestKeysIgnoredWhileDisconnected(t *testing.T) {
	m := newTestModel()

	for _, key := range []string{KeySpace, KeyReset, KeyToggleVoice, KeyCycleMode, KeySimulate} {
		_, cmd := m.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
		if cmd != nil {
			t.Errorf("key %q produced a command while disconnected", key)
		}
	}
}

func TestElapsedTickStopsWhenNotRunning(t *testing.T) {
	m := newTestModel()
	m.session = timer.Session{Status: timer.StatusStopped}

	_, cmd := m.Update(ElapsedTickMsg{Now: time.Now()})
	if cmd != nil {
		t.Error("elapsed tick should not reschedule once stopped")
	}
}

func TestViewRendersStates(t *testing.T) {
	m := newTestModel()

	view := m.View()
	if view == "" {
		t.Fatal("view is empty")
	}

	m.connected = true
	started := time.Now().Add(-90 * time.Second)
	m.session = timer.Session{Status: timer.StatusRunning, StartedAt: &started}
	m.now = time.Now()
	view = m.View()
	if view == "" {
		t.Fatal("running view is empty")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00.0"},
		{90*time.Second + 500*time.Millisecond, "1:30.5"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
		{-5 * time.Second, "0:00.0"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
