// Package voice wraps a best-effort streaming speech recognition capability
// and ties its lifetime to a running session.
package voice

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by a recognizer that cannot run in the current
// environment. The session keeps working in manual-only mode.
var ErrUnsupported = errors.New("speech recognition is not supported in this environment")

// ErrPermission is returned when the audio device or recognition service
// refuses access. Non-fatal: manual timing keeps working.
var ErrPermission = errors.New("audio capture permission denied")

// Stream is one live recognition stream. Utterances closes when the stream
// ends, whether normally or not; Err reports the abnormal cause afterwards.
// A stream never restarts itself — re-arming is the Trigger's job.
type Stream interface {
	Utterances() <-chan string
	Err() error
	Close() error
}

// Recognizer starts recognition streams. The concrete variant (supported or
// unsupported) is selected once at startup; every call site depends only on
// this interface.
type Recognizer interface {
	Start(ctx context.Context) (Stream, error)
}

// Unsupported is the no-capability variant of Recognizer.
type Unsupported struct{}

// Start always fails with ErrUnsupported.
func (Unsupported) Start(context.Context) (Stream, error) {
	return nil, ErrUnsupported
}
