package policy

import "github.com/jwulff/hush/internal/timer"

// Target is the slice of the state machine the policy needs: a snapshot to
// read and a guarded stop to request.
type Target interface {
	Snapshot() timer.Session
	Voice() timer.VoiceConfig
	Stop(timer.StopReason) bool
}

// Apply evaluates one utterance against the target's live state and requests
// a stop on a match. Both the live recognition path and the simulated
// utterance command go through here, so the two can never diverge. The
// returned bool reports whether a stop actually landed; a losing race with
// another stop command degrades to false.
func Apply(target Target, utterance string) bool {
	d := Evaluate(utterance, target.Voice(), target.Snapshot().Status)
	if !d.Stop {
		return false
	}
	return target.Stop(d.Reason)
}
