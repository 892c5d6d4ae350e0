package timer

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwulff/hush/internal/clock"
)

// EventKind classifies machine lifecycle events.
type EventKind string

const (
	EventStarted EventKind = "started"
	EventStopped EventKind = "stopped"
	EventReset   EventKind = "reset"
)

// Event is emitted after a completed transition, carrying a snapshot of the
// session as it was the moment the transition landed.
type Event struct {
	Kind    EventKind
	Session Session
}

// HistorySink receives finalized sessions. A session is immutable once
// appended; the machine never rewrites an appended record.
type HistorySink interface {
	Append(Session) error
}

// Persister writes the whole current session record to the shared store.
// Write failures must not fail the command path; the machine logs and
// continues against its in-memory state.
type Persister interface {
	SaveCurrent(Session) error
}

// Trigger is the speech recognition arm/disarm control. Both calls must be
// safe when the stream was never armed or has already ended.
type Trigger interface {
	Arm()
	Disarm()
}

// Machine is the session state machine. All transitions are self-guarding:
// a command that does not observe the state it requires degrades to a no-op,
// which is the sole concurrency safety net between racing actors.
type Machine struct {
	clock clock.Clock
	log   zerolog.Logger

	mu        sync.Mutex
	cur       Session
	voice     VoiceConfig
	countdown time.Duration

	trigger Trigger
	history HistorySink
	persist Persister
	notify  func(Event)
}

// NewMachine creates an idle machine.
func NewMachine(clk clock.Clock, log zerolog.Logger) *Machine {
	return &Machine{
		clock: clk,
		log:   log,
		cur:   Session{Status: StatusIdle},
		voice: VoiceConfig{Mode: VoiceModeAny},
	}
}

// AttachTrigger wires the speech trigger armed on start and disarmed on
// stop/reset. May be nil (manual-only operation).
func (m *Machine) AttachTrigger(t Trigger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trigger = t
}

// AttachHistory wires the append-only sink for finalized sessions.
func (m *Machine) AttachHistory(h HistorySink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = h
}

// AttachStore wires whole-record persistence of the current session.
func (m *Machine) AttachStore(p Persister) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persist = p
}

// OnEvent registers the single event listener. Events are delivered
// synchronously, after the transition and its persistence have completed.
func (m *Machine) OnEvent(fn func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notify = fn
}

// Start begins timing. A start while already running is a silent no-op and
// reports false; startedAt is never rewritten mid-run.
func (m *Machine) Start() bool {
	m.mu.Lock()
	if m.cur.Status == StatusRunning {
		m.mu.Unlock()
		return false
	}

	now := m.clock.Now()
	m.cur = Session{Status: StatusRunning, StartedAt: &now}
	if m.countdown > 0 {
		finish := now.Add(m.countdown)
		m.cur.ScheduledFinishAt = &finish
	}
	snap := m.cur
	armVoice := m.voice.Enabled
	m.mu.Unlock()

	m.persistCurrent(snap)
	if armVoice {
		m.armTrigger()
	}
	m.emit(Event{Kind: EventStarted, Session: snap})
	return true
}

// Stop ends a running session with the given reason, records the observed
// end instant, and appends the finalized record to history. A stop while not
// running is a silent no-op; when a manual stop and a voice stop race, the
// first to observe running wins and the other degrades to this no-op.
func (m *Machine) Stop(reason StopReason) bool {
	return m.end(reason, StatusStopped, m.clock.Now())
}

// Finish ends a duration-bounded run at its scheduled instant. The recorded
// end is scheduledAt, never the observation time, so the finalized record is
// identical no matter how late the evaluator happens to run. Re-finishing an
// already-finished session is a no-op.
func (m *Machine) Finish(scheduledAt time.Time) bool {
	return m.end(StopScheduled, StatusFinished, scheduledAt)
}

func (m *Machine) end(reason StopReason, status Status, endedAt time.Time) bool {
	m.mu.Lock()
	if m.cur.Status != StatusRunning {
		m.mu.Unlock()
		return false
	}

	m.cur.EndedAt = &endedAt
	m.cur.DurationMs = durationBetween(*m.cur.StartedAt, endedAt)
	m.cur.StopReason = reason
	m.cur.Status = status
	m.cur.ID = uuid.New().String()
	m.latchVoiceLocked()
	snap := m.cur
	m.mu.Unlock()

	m.persistCurrent(snap)
	m.disarmTrigger()
	m.appendHistory(snap)
	m.emit(Event{Kind: EventStopped, Session: snap})
	return true
}

// Reset discards the current session and returns to idle. Valid from any
// state; already-finalized history entries are untouched.
func (m *Machine) Reset() {
	m.disarmTrigger()

	m.mu.Lock()
	m.cur = Session{Status: StatusIdle}
	snap := m.cur
	m.mu.Unlock()

	m.persistCurrent(snap)
	m.emit(Event{Kind: EventReset, Session: snap})
}

// SetVoiceEnabled toggles the voice trigger. Toggling mid-run arms or
// disarms the live recognition stream immediately.
func (m *Machine) SetVoiceEnabled(enabled bool) {
	m.mu.Lock()
	m.voice.Enabled = enabled
	running := m.cur.Status == StatusRunning
	m.mu.Unlock()

	if !running {
		return
	}
	if enabled {
		m.armTrigger()
	} else {
		m.disarmTrigger()
	}
}

// SetVoiceMode selects "any" or "keyword" matching for the next utterances.
func (m *Machine) SetVoiceMode(mode VoiceMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voice.Mode = mode
}

// SetKeyword sets the keyword for keyword mode. An empty keyword is kept but
// never matches.
func (m *Machine) SetKeyword(keyword string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voice.Keyword = keyword
}

// SetCountdown arms the next start as a duration-bounded run. Zero returns
// to open-ended runs. The scheduled finish of a run already in flight is
// never recomputed.
func (m *Machine) SetCountdown(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d < 0 {
		d = 0
	}
	m.countdown = d
}

// Snapshot returns the whole current session record.
func (m *Machine) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur
}

// Voice returns the voice configuration active for the current or next run.
func (m *Machine) Voice() VoiceConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.voice
}

// Countdown returns the configured duration bound for the next run.
func (m *Machine) Countdown() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countdown
}

// latchVoiceLocked copies the active voice configuration into the session at
// stop time. Only the configuration is retained, never utterance text.
func (m *Machine) latchVoiceLocked() {
	m.cur.VoiceEnabled = m.voice.Enabled
	if !m.voice.Enabled {
		return
	}
	m.cur.VoiceMode = m.voice.Mode
	if m.voice.Mode == VoiceModeKeyword {
		m.cur.Keyword = m.voice.Keyword
	}
}

func (m *Machine) armTrigger() {
	m.mu.Lock()
	t := m.trigger
	m.mu.Unlock()
	if t != nil {
		t.Arm()
	}
}

func (m *Machine) disarmTrigger() {
	m.mu.Lock()
	t := m.trigger
	m.mu.Unlock()
	if t != nil {
		t.Disarm()
	}
}

func (m *Machine) persistCurrent(snap Session) {
	m.mu.Lock()
	p := m.persist
	m.mu.Unlock()
	if p == nil {
		return
	}
	if err := p.SaveCurrent(snap); err != nil {
		m.log.Warn().Err(err).Msg("failed to persist current session")
	}
}

func (m *Machine) appendHistory(snap Session) {
	m.mu.Lock()
	h := m.history
	m.mu.Unlock()
	if h == nil {
		return
	}
	if err := h.Append(snap); err != nil {
		m.log.Warn().Err(err).Str("session", snap.ID).Msg("failed to append session to history")
	}
}

func (m *Machine) emit(ev Event) {
	m.mu.Lock()
	fn := m.notify
	m.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}
