// Package policy decides whether a recognized utterance should stop a running
// session. The decision is a pure function so the live recognition path and
// the simulated-utterance path cannot diverge.
package policy

import (
	"strings"

	"github.com/jwulff/hush/internal/timer"
)

// Decision is the outcome of evaluating one utterance.
type Decision struct {
	Stop   bool
	Reason timer.StopReason
}

// Evaluate applies the auto-stop rules to a single utterance.
//
// Utterances only matter while a session is running and voice is enabled.
// In "any" mode every non-empty utterance stops the session. In "keyword"
// mode the utterance must contain the configured keyword as a
// case-insensitive substring; an empty keyword never matches.
func Evaluate(utterance string, cfg timer.VoiceConfig, status timer.Status) Decision {
	if status != timer.StatusRunning || !cfg.Enabled {
		return Decision{}
	}

	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return Decision{}
	}

	switch cfg.Mode {
	case timer.VoiceModeAny:
		return Decision{Stop: true, Reason: timer.StopVoiceAny}

	case timer.VoiceModeKeyword:
		keyword := strings.TrimSpace(cfg.Keyword)
		if keyword == "" {
			return Decision{}
		}
		if strings.Contains(strings.ToLower(utterance), strings.ToLower(keyword)) {
			return Decision{Stop: true, Reason: timer.StopVoiceKeyword}
		}
	}

	return Decision{}
}
