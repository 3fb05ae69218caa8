package intelligence

import (
	"math"

	"github.com/smartdoor/orchestrator/internal/models"
)

func emotionWeight(e models.Emotion) float64 {
	switch e {
	case models.EmotionDistressed:
		return 0.4
	case models.EmotionAggressive:
		return 0.6
	default:
		return 0.2
	}
}

// intentAdjustment returns the additive risk adjustment for intent (spec
// §4.4 "Per-intent adjustments" table). hasPackage only matters for delivery.
func intentAdjustment(intent models.Intent, hasPackage bool) float64 {
	switch intent {
	case models.IntentScamAttempt:
		return 0.50
	case models.IntentAggression:
		return 0.60
	case models.IntentOccupancyProbe:
		return 0.40
	case models.IntentEntryRequest:
		return 0.55
	case models.IntentIdentityClaim:
		return 0.25
	case models.IntentGovernmentClaim:
		return 0.30
	case models.IntentDelivery:
		if hasPackage {
			return -0.20
		}
		return 0.30
	case models.IntentReligiousDonation:
		return 0
	case models.IntentDomesticStaff:
		return 0.15
	case models.IntentVisitor:
		return 0
	case models.IntentUnknown:
		return 0.10
	default:
		return 0
	}
}

// RiskInput bundles everything the Step 2/3 scoring math needs.
type RiskInput struct {
	VisionConfidence  float64
	AntiSpoofScore    float64
	Emotion           models.Emotion
	Intent            models.Intent
	HasPackageObject  bool
	WeaponDetected    bool
	HasEntryVocab     bool
	IsNightHour       bool // local wall-time hour in [22,05)
}

// RiskResult is the computed score plus the escalation flag it implies.
type RiskResult struct {
	Score              float64
	EscalationRequired bool
}

// Score implements spec §4.4 Step 2 (composite weighted sum), the
// per-intent adjustments, the Step 2 context adjustments, and Step 3
// escalation — in that order, clamping and rounding exactly as specified.
func Score(in RiskInput) RiskResult {
	base := 0.5*(1-in.VisionConfidence) + 0.3*in.AntiSpoofScore + 0.2*emotionWeight(in.Emotion)

	risk := base + intentAdjustment(in.Intent, in.HasPackageObject)

	escalation := false

	if in.WeaponDetected {
		risk = math.Max(risk, 0.75)
		escalation = true
	}
	if in.IsNightHour {
		risk += 0.30
	}
	if in.HasEntryVocab {
		risk += 0.20
		escalation = true
	}

	risk = round3(clamp01(risk))

	if escalation || risk >= 0.70 {
		escalation = true
	}

	return RiskResult{Score: risk, EscalationRequired: escalation}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
