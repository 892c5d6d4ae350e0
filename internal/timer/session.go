// Package timer owns the session lifecycle: the idle/running/stopped/finished
// state machine, stop-reason tagging, and duration computation.
package timer

import "time"

// Status is the lifecycle state of a session.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusRunning  Status = "running"
	StatusStopped  Status = "stopped"
	StatusFinished Status = "finished"
)

// StopReason records why a running session ended.
type StopReason string

const (
	StopManual       StopReason = "manual"
	StopVoiceAny     StopReason = "voice_any"
	StopVoiceKeyword StopReason = "voice_keyword"
	StopScheduled    StopReason = "scheduled"
	StopError        StopReason = "error"
)

// VoiceMode selects how recognized speech ends a session.
type VoiceMode string

const (
	VoiceModeAny     VoiceMode = "any"
	VoiceModeKeyword VoiceMode = "keyword"
)

// VoiceConfig is the voice trigger configuration active during a run. It is
// ephemeral; the values are latched into the Session only at stop time.
type VoiceConfig struct {
	Enabled bool      `json:"enabled"`
	Mode    VoiceMode `json:"mode"`
	Keyword string    `json:"keyword"`
}

// Session is one timed run. The ID is assigned at stop time; an idle or
// running session has no identity yet. Transcript text is never stored, only
// the voice configuration that was active when the session ended.
type Session struct {
	ID                string     `json:"id,omitempty"`
	Status            Status     `json:"status"`
	StartedAt         *time.Time `json:"startedAt,omitempty"`
	EndedAt           *time.Time `json:"endedAt,omitempty"`
	ScheduledFinishAt *time.Time `json:"scheduledFinishAt,omitempty"`
	DurationMs        int64      `json:"durationMs,omitempty"`
	StopReason        StopReason `json:"stopReason,omitempty"`
	VoiceEnabled      bool       `json:"voiceEnabled,omitempty"`
	VoiceMode         VoiceMode  `json:"voiceMode,omitempty"`
	Keyword           string     `json:"keyword,omitempty"`
}

// Running reports whether the session is currently being timed.
func (s Session) Running() bool {
	return s.Status == StatusRunning
}

// Ended reports whether the session has a recorded end.
func (s Session) Ended() bool {
	return s.Status == StatusStopped || s.Status == StatusFinished
}

// durationBetween computes elapsed milliseconds, clamping clock regressions
// to zero so a finalized session never carries a negative duration.
func durationBetween(start, end time.Time) int64 {
	ms := end.Sub(start).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}

// Elapsed returns the live elapsed duration of a running session, or the
// recorded duration once ended. Idle sessions report zero.
func (s Session) Elapsed(now time.Time) time.Duration {
	switch {
	case s.Ended():
		return time.Duration(s.DurationMs) * time.Millisecond
	case s.Status == StatusRunning && s.StartedAt != nil:
		return time.Duration(durationBetween(*s.StartedAt, now)) * time.Millisecond
	default:
		return 0
	}
}

// Remaining returns the time left before the scheduled finish of a
// duration-bounded run, clamped to zero. Open-ended runs report zero.
func (s Session) Remaining(now time.Time) time.Duration {
	if s.Status != StatusRunning || s.ScheduledFinishAt == nil {
		return 0
	}
	left := s.ScheduledFinishAt.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}
