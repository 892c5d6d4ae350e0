// Package daemon provides the Unix-socket NDJSON protocol between hushd and
// its clients, plus the client and server implementations.
package daemon

import "github.com/jwulff/hush/internal/timer"

// Command is sent from a client to the daemon. One JSON object per line.
type Command struct {
	Cmd         string  `json:"cmd"`
	Reason      string  `json:"reason,omitempty"`
	Enabled     *bool   `json:"enabled,omitempty"`
	Mode        string  `json:"mode,omitempty"`
	Keyword     *string `json:"keyword,omitempty"`
	CountdownMs *int64  `json:"countdownMs,omitempty"`
	Text        string  `json:"text,omitempty"`
	Limit       *int    `json:"limit,omitempty"`
	ActorID     string  `json:"actorId,omitempty"`
	DisplayName string  `json:"displayName,omitempty"`
}

// Response is returned by the daemon after processing a command.
type Response struct {
	OK      bool               `json:"ok"`
	Error   string             `json:"error,omitempty"`
	Session *timer.Session     `json:"session,omitempty"`
	History []timer.Session    `json:"history,omitempty"`
	Voice   *timer.VoiceConfig `json:"voice,omitempty"`
	Actors  *int               `json:"actors,omitempty"`
	Stopped *bool              `json:"stopped,omitempty"`
}

// Event is streamed from the daemon to subscribed clients.
type Event struct {
	Event      string         `json:"event"`
	Session    *timer.Session `json:"session,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	DurationMs *int64         `json:"durationMs,omitempty"`
	Message    string         `json:"message,omitempty"`
}

// Command names understood by the daemon.
const (
	CmdHello        = "hello"
	CmdStart        = "start"
	CmdStop         = "stop"
	CmdReset        = "reset"
	CmdStatus       = "status"
	CmdRefresh      = "refresh"
	CmdSetVoice     = "set_voice"
	CmdSetKeyword   = "set_keyword"
	CmdSetCountdown = "set_countdown"
	CmdSimulate     = "simulate"
	CmdHistory      = "history"
	CmdSubscribe    = "subscribe"
)

// Event names streamed to subscribers.
const (
	EventStarted               = "session_started"
	EventStopped               = "session_stopped"
	EventReset                 = "session_reset"
	EventStatus                = "status"
	EventVoiceUnsupported      = "voice_unsupported"
	EventVoicePermissionDenied = "voice_permission_denied"
	EventVoiceStreamError      = "voice_stream_error"
)

// BoolPtr returns a pointer to a bool value. Convenience for building commands.
func BoolPtr(b bool) *bool { return &b }

// StringPtr returns a pointer to a string value.
func StringPtr(s string) *string { return &s }

// Int64Ptr returns a pointer to an int64 value.
func Int64Ptr(n int64) *int64 { return &n }
