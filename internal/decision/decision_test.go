package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smartdoor/orchestrator/internal/models"
)

func permissivePolicy() Policy {
	return Policy{AutoReplyEnabledByDevice: map[string]bool{"front-door-01": true}}
}

func TestEvaluate_R1EscalationRequiredWins(t *testing.T) {
	d := Evaluate(Input{RiskScore: 0.1, EscalationRequired: true, DeviceID: "front-door-01", Policy: permissivePolicy()})
	assert.Equal(t, models.ActionEscalate, d.FinalAction)
	assert.Equal(t, models.Dispatch{TTS: true, NotifyOwner: true, Escalate: true}, d.Dispatch)
}

func TestEvaluate_R1HighRiskEscalatesEvenWithoutFlag(t *testing.T) {
	d := Evaluate(Input{RiskScore: 0.75, EscalationRequired: false, DeviceID: "front-door-01", Policy: permissivePolicy()})
	assert.Equal(t, models.ActionEscalate, d.FinalAction)
}

func TestEvaluate_R2AutoReplyRequiresPermission(t *testing.T) {
	d := Evaluate(Input{RiskScore: 0.1, DeviceID: "front-door-01", Policy: permissivePolicy()})
	assert.Equal(t, models.ActionAutoReply, d.FinalAction)
	assert.True(t, d.Dispatch.TTS)
	assert.False(t, d.Dispatch.NotifyOwner)

	// Same low risk, device not permitted -> falls through to R3/R4 notify_owner.
	d = Evaluate(Input{RiskScore: 0.1, DeviceID: "unknown-device", Policy: permissivePolicy()})
	assert.Equal(t, models.ActionNotifyOwner, d.FinalAction)
}

func TestEvaluate_R3ModerateRiskNotifiesOwnerWithoutTTS(t *testing.T) {
	d := Evaluate(Input{RiskScore: 0.55, DeviceID: "front-door-01", Policy: permissivePolicy()})
	assert.Equal(t, models.ActionNotifyOwner, d.FinalAction)
	assert.False(t, d.Dispatch.TTS)
	assert.True(t, d.Dispatch.NotifyOwner)
}

func TestEvaluate_BoundaryAtEscalateThreshold(t *testing.T) {
	d := Evaluate(Input{RiskScore: 0.70, DeviceID: "front-door-01", Policy: permissivePolicy()})
	assert.Equal(t, models.ActionEscalate, d.FinalAction)

	d = Evaluate(Input{RiskScore: 0.6999, DeviceID: "front-door-01", Policy: permissivePolicy()})
	assert.NotEqual(t, models.ActionEscalate, d.FinalAction)
}

func TestEvaluate_BoundaryAtAutoReplyCeiling(t *testing.T) {
	d := Evaluate(Input{RiskScore: 0.3999, DeviceID: "front-door-01", Policy: permissivePolicy()})
	assert.Equal(t, models.ActionAutoReply, d.FinalAction)

	d = Evaluate(Input{RiskScore: 0.40, DeviceID: "front-door-01", Policy: permissivePolicy()})
	assert.Equal(t, models.ActionNotifyOwner, d.FinalAction)
}

// TestEvaluate_EscalationDominance is spec §8 invariant 6 as a property
// test: escalation_required or risk>=0.70 must always yield escalate,
// regardless of device policy.
func TestEvaluate_EscalationDominance(t *testing.T) {
	policies := []Policy{permissivePolicy(), {}}
	risks := []float64{0.0, 0.3, 0.69, 0.70, 0.85, 1.0}
	for _, p := range policies {
		for _, r := range risks {
			for _, escalationRequired := range []bool{true, false} {
				d := Evaluate(Input{RiskScore: r, EscalationRequired: escalationRequired, DeviceID: "front-door-01", Policy: p})
				if escalationRequired || r >= escalateThreshold {
					assert.Equal(t, models.ActionEscalate, d.FinalAction,
						"risk=%v escalationRequired=%v", r, escalationRequired)
				} else {
					assert.NotEqual(t, models.ActionEscalate, d.FinalAction)
				}
			}
		}
	}
}

func TestPolicy_UnknownDeviceDefaultsToDisabled(t *testing.T) {
	var p Policy
	assert.False(t, p.AutoReplyPermitted("anything"))
}
