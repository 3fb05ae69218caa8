// Package decision implements the spec §4.5 Decision Engine: a pure rule
// evaluator with zero IO. It never touches the store, the clock, or the
// network — every input it needs is passed in by the caller.
package decision

import (
	"github.com/smartdoor/orchestrator/internal/models"
)

// autoReplyThreshold and escalateThreshold are the two risk breakpoints in
// the R1-R4 rule table (spec §4.5).
const (
	escalateThreshold = 0.70
	autoReplyCeiling  = 0.40
)

// Policy gates whether auto_reply is available for a given device. "Hot
// reloading of policy" is an explicit non-goal, so Policy is loaded once at
// startup and held for the orchestrator's lifetime.
type Policy struct {
	AutoReplyEnabledByDevice map[string]bool
}

// AutoReplyPermitted reports whether deviceID may receive an auto_reply
// directive. Devices absent from the map default to disabled, the safer
// choice.
func (p Policy) AutoReplyPermitted(deviceID string) bool {
	if p.AutoReplyEnabledByDevice == nil {
		return false
	}
	return p.AutoReplyEnabledByDevice[deviceID]
}

// Input bundles everything Evaluate needs: the Intelligence stage's output
// plus the device's auto-reply permission.
type Input struct {
	RiskScore          float64
	EscalationRequired bool
	DeviceID           string
	Policy             Policy
}

// Evaluate runs the R1-R4 rule table in order and returns the resulting
// Directive. It is pure: same input, same output, always (spec §4.5).
func Evaluate(in Input) models.Directive {
	switch {
	case in.EscalationRequired || in.RiskScore >= escalateThreshold:
		return models.Directive{
			FinalAction: models.ActionEscalate,
			Reason:      "R1: escalation required or risk at or above threshold",
			Dispatch:    models.Dispatch{TTS: true, NotifyOwner: true, Escalate: true},
		}
	case in.RiskScore < autoReplyCeiling && in.Policy.AutoReplyPermitted(in.DeviceID):
		return models.Directive{
			FinalAction: models.ActionAutoReply,
			Reason:      "R2: low risk and auto-reply permitted for device",
			Dispatch:    models.Dispatch{TTS: true, NotifyOwner: false},
		}
	case in.RiskScore >= autoReplyCeiling && in.RiskScore < escalateThreshold:
		return models.Directive{
			FinalAction: models.ActionNotifyOwner,
			Reason:      "R3: moderate risk",
			// Open question (a): whether notify_owner should also play a TTS
			// acknowledgement to the visitor is unspecified by the source
			// material; resolved as tts:false per the majority reading.
			Dispatch: models.Dispatch{TTS: false, NotifyOwner: true},
		}
	default:
		return models.Directive{
			FinalAction: models.ActionNotifyOwner,
			Reason:      "R4: default",
			Dispatch:    models.Dispatch{TTS: false, NotifyOwner: true},
		}
	}
}
