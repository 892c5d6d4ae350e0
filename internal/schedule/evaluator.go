// Package schedule finishes duration-bounded sessions at their scheduled
// instant, independent of how late the periodic check happens to run.
package schedule

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwulff/hush/internal/clock"
	"github.com/jwulff/hush/internal/timer"
)

// Target is the slice of the state machine the evaluator needs. Finish is
// idempotent: evaluating an already-finished session is a harmless no-op.
type Target interface {
	Snapshot() timer.Session
	Finish(scheduledAt time.Time) bool
}

const defaultInterval = 500 * time.Millisecond

// Evaluator is the periodic actor that checks the current record against its
// scheduled finish time.
type Evaluator struct {
	clock    clock.Clock
	target   Target
	interval time.Duration
	log      zerolog.Logger

	running  atomic.Bool
	stopOnce sync.Once
	done     chan struct{}
	stopped  chan struct{}
}

// NewEvaluator creates an evaluator ticking at the given interval.
func NewEvaluator(clk clock.Clock, target Target, interval time.Duration, log zerolog.Logger) *Evaluator {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Evaluator{
		clock:    clk,
		target:   target,
		interval: interval,
		log:      log,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Run ticks until Stop is called. Blocks; callers run it in a goroutine.
func (e *Evaluator) Run() {
	e.running.Store(true)
	defer close(e.stopped)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.Evaluate()
		case <-e.done:
			return
		}
	}
}

// Stop halts the tick loop and waits for it to drain. Safe to call more
// than once and before Run; when Run never began there is nothing to wait
// for.
func (e *Evaluator) Stop() {
	e.stopOnce.Do(func() { close(e.done) })
	if !e.running.Load() {
		return
	}
	select {
	case <-e.stopped:
	case <-time.After(time.Second):
	}
}

// Evaluate runs one check. The finish is recorded at the scheduled instant,
// never at the observation instant, so two observers polling at different
// cadences agree on the finalized record.
func (e *Evaluator) Evaluate() {
	s := e.target.Snapshot()
	if s.Status != timer.StatusRunning || s.ScheduledFinishAt == nil {
		return
	}

	scheduled := *s.ScheduledFinishAt
	if e.clock.Now().Before(scheduled) {
		return
	}

	if e.target.Finish(scheduled) {
		e.log.Info().Time("scheduledAt", scheduled).Msg("session reached scheduled finish")
	}
}
