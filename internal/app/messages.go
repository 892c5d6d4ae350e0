package app

import (
	"time"

	"github.com/jwulff/hush/internal/daemon"
	"github.com/jwulff/hush/internal/timer"
)

// DaemonConnectedMsg is sent when both daemon connections are established.
type DaemonConnectedMsg struct {
	Client   *daemon.Client // for commands (start, stop, status, history)
	EvClient *daemon.Client // for event subscription
}

// DaemonConnectErrorMsg is sent when the daemon connection fails.
type DaemonConnectErrorMsg struct {
	Err error
}

// DaemonEventMsg wraps a streamed event from the daemon.
type DaemonEventMsg struct {
	Event daemon.Event
}

// DaemonEventErrorMsg is sent when the event stream encounters an error.
type DaemonEventErrorMsg struct {
	Err error
}

// CommandResponseMsg carries the response to a session command
// (start/stop/reset/status/simulate and the voice setters).
type CommandResponseMsg struct {
	Response daemon.Response
}

// HistoryLoadedMsg carries finalized sessions read from the shared store.
type HistoryLoadedMsg struct {
	Sessions []timer.Session
}

// ElapsedTickMsg redraws the running timer display.
type ElapsedTickMsg struct {
	Now time.Time
}

// RefreshTickMsg triggers the periodic status and history refresh.
type RefreshTickMsg struct{}

// ClearWarningMsg clears a transient voice warning after a timeout.
type ClearWarningMsg struct{}

// ReconnectTickMsg triggers a reconnection attempt.
type ReconnectTickMsg struct{}
