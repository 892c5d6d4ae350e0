package voice

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// WarningKind classifies advisory trigger failures. None of them affect the
// session state machine; manual timing keeps working regardless.
type WarningKind string

const (
	WarnUnsupported WarningKind = "unsupported"
	WarnPermission  WarningKind = "permission"
	WarnStream      WarningKind = "stream"
)

// Warning is a non-fatal trigger failure surfaced to observers.
type Warning struct {
	Kind WarningKind
	Err  error
}

const defaultRestartDelay = 250 * time.Millisecond

// Trigger keeps a recognition stream alive for the duration of a run.
//
// Arm starts the stream and re-arms it whenever it ends unexpectedly, since
// recognition streams are not guaranteed to stay open indefinitely. Disarm
// tears the stream down and suppresses the restart for that specific stop;
// the next Arm restores the self-healing loop. Both calls are safe at any
// time, including when nothing was ever armed or mid-delivery.
type Trigger struct {
	rec          Recognizer
	log          zerolog.Logger
	restartDelay time.Duration

	onUtterance func(string)
	onWarning   func(Warning)

	mu          sync.Mutex
	armed       bool
	starting    bool // start-debounce: an arm is already pending
	startingGen int  // generation the pending start belongs to
	gen         int  // bumped on disarm so stale loops never restart
	stream      Stream
	cancel      context.CancelFunc
}

// NewTrigger creates a disarmed trigger around the given recognizer.
func NewTrigger(rec Recognizer, log zerolog.Logger) *Trigger {
	return &Trigger{rec: rec, log: log, restartDelay: defaultRestartDelay}
}

// OnUtterance registers the consumer of recognized chunks. Chunks are
// trimmed, empty chunks dropped, and each non-empty chunk is forwarded
// exactly once; repeated words across chunks are independent events.
func (t *Trigger) OnUtterance(fn func(string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onUtterance = fn
}

// OnWarning registers the consumer of advisory failures.
func (t *Trigger) OnWarning(fn func(Warning)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onWarning = fn
}

// Arm starts the recognition stream. Re-entrant calls while a start is
// already pending or a stream is live are no-ops. A start left pending by a
// disarmed generation does not debounce the new one; its loop exits on the
// stale checks instead.
func (t *Trigger) Arm() {
	t.mu.Lock()
	if t.armed || (t.starting && t.startingGen == t.gen) {
		t.mu.Unlock()
		return
	}
	t.armed = true
	t.starting = true
	t.startingGen = t.gen
	gen := t.gen
	t.mu.Unlock()

	go t.run(gen)
}

// Disarm tears down any live stream and suppresses the auto-restart for this
// stop. Safe to call when nothing is armed, repeatedly, and concurrently
// with utterance delivery.
func (t *Trigger) Disarm() {
	t.mu.Lock()
	t.armed = false
	t.gen++
	stream := t.stream
	t.stream = nil
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stream != nil {
		_ = stream.Close()
	}
}

// Armed reports whether the trigger currently intends to keep a stream open.
func (t *Trigger) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed
}

// run owns one arm generation: it starts the stream, pumps utterances, and
// restarts on unexpected ends until the generation is disarmed.
func (t *Trigger) run(gen int) {
	for {
		ctx, cancel := context.WithCancel(context.Background())

		t.mu.Lock()
		if t.gen != gen || !t.armed {
			if t.startingGen == gen {
				t.starting = false
			}
			t.mu.Unlock()
			cancel()
			return
		}
		t.cancel = cancel
		t.mu.Unlock()

		stream, err := t.rec.Start(ctx)

		t.mu.Lock()
		if t.startingGen == gen {
			t.starting = false
		}
		stale := t.gen != gen || !t.armed
		if !stale && err == nil {
			t.stream = stream
		}
		t.mu.Unlock()

		if err != nil {
			cancel()
			t.warnStartError(err)
			if errors.Is(err, ErrUnsupported) || errors.Is(err, ErrPermission) {
				t.mu.Lock()
				if t.gen == gen {
					t.armed = false
				}
				t.mu.Unlock()
				return
			}
			if stale {
				return
			}
			time.Sleep(t.restartDelay)
			continue
		}

		if stale {
			_ = stream.Close()
			cancel()
			return
		}

		t.pump(gen, stream)
		cancel()

		t.mu.Lock()
		restart := t.armed && t.gen == gen
		if t.stream == stream {
			t.stream = nil
		}
		t.mu.Unlock()

		if !restart {
			// Intentional disarm: the restart is suppressed for this stop,
			// and teardown errors are expected noise, not warnings.
			return
		}

		if streamErr := stream.Err(); streamErr != nil {
			t.warn(Warning{Kind: WarnStream, Err: streamErr})
		}

		t.log.Debug().Msg("recognition stream ended while session running, re-arming")
		time.Sleep(t.restartDelay)
	}
}

// pump forwards utterances until the stream's channel closes.
func (t *Trigger) pump(gen int, stream Stream) {
	for text := range stream.Utterances() {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		t.mu.Lock()
		live := t.gen == gen && t.armed
		fn := t.onUtterance
		t.mu.Unlock()

		if live && fn != nil {
			fn(text)
		}
	}
}

func (t *Trigger) warnStartError(err error) {
	switch {
	case errors.Is(err, ErrUnsupported):
		t.warn(Warning{Kind: WarnUnsupported, Err: err})
	case errors.Is(err, ErrPermission):
		t.warn(Warning{Kind: WarnPermission, Err: err})
	default:
		t.warn(Warning{Kind: WarnStream, Err: err})
	}
}

func (t *Trigger) warn(w Warning) {
	t.log.Warn().Err(w.Err).Str("kind", string(w.Kind)).Msg("voice trigger warning")

	t.mu.Lock()
	fn := t.onWarning
	t.mu.Unlock()
	if fn != nil {
		fn(w)
	}
}
