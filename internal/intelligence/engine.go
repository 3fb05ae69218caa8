// Package intelligence implements the spec §4.4 Intelligence Engine: intent
// classification, composite risk scoring, and reply generation, given a
// PerceptionReport as input.
package intelligence

import (
	"context"

	"github.com/smartdoor/orchestrator/internal/lexicon"
	"github.com/smartdoor/orchestrator/internal/models"
)

// nightStartHour and nightEndHour bound the local-wall-time night window
// (spec §4.4: "local wall-time hour in [22, 05)").
const (
	nightStartHour = 22
	nightEndHour   = 5
)

// isNightHour reports whether hour (0-23, local wall-time) falls in the
// night window.
func isNightHour(hour int) bool {
	return hour >= nightStartHour || hour < nightEndHour
}

// Engine ties the classifier, scorer, and reply generator into the single
// entry point the Orchestrator calls once per session (spec §4.4).
type Engine struct {
	Lexicon       *lexicon.Set
	ReplyProvider ReplyProvider
}

// NewEngine builds an Engine with the default keyword configuration and no
// Reply Provider (canned replies only).
func NewEngine() *Engine {
	return &Engine{Lexicon: lexicon.Default()}
}

// Evaluate runs the full Step 1-4 ladder against a perception report and
// recent transcript history, producing the IntelligenceReport the
// Orchestrator persists and forwards to the Decision stage.
func (e *Engine) Evaluate(ctx context.Context, pr models.PerceptionReport, localHour int, recent []models.TranscriptEntry) (models.IntelligenceReport, error) {
	normalized := lexicon.Normalize(pr.Transcript)

	intent := Classify(normalized, pr.Objects, e.Lexicon)
	hasPackage := HasPackageObject(pr.Objects)
	hasEntryVocab := HasEntryVocabulary(normalized, e.Lexicon)

	result := Score(RiskInput{
		VisionConfidence: pr.VisionConfidence,
		AntiSpoofScore:   pr.AntiSpoofScore,
		Emotion:          pr.Emotion,
		Intent:           intent,
		HasPackageObject: hasPackage,
		WeaponDetected:   pr.WeaponDetected,
		HasEntryVocab:    hasEntryVocab,
		IsNightHour:      isNightHour(localHour),
	})

	rc := ReplyContext{
		PerceptionSummary: pr.Transcript,
		RecentTranscript:  recent,
		Intent:            intent,
	}

	replyText, err := Reply(ctx, intent, result.EscalationRequired, e.ReplyProvider, rc)

	tags := buildTags(pr, hasEntryVocab, hasPackage)

	report := models.IntelligenceReport{
		SessionID:          pr.SessionID,
		Intent:             intent,
		ReplyText:          replyText,
		RiskScore:          result.Score,
		EscalationRequired: result.EscalationRequired,
		Tags:               tags,
		Timestamp:          pr.Timestamp,
	}
	return report, err
}

// buildTags records the boolean signals that fed the score, for audit and
// debugging (spec §3 IntelligenceReport.Tags is unstructured).
func buildTags(pr models.PerceptionReport, hasEntryVocab, hasPackage bool) []string {
	var tags []string
	if pr.WeaponDetected {
		tags = append(tags, "weapon_detected")
	}
	if hasEntryVocab {
		tags = append(tags, "entry_vocabulary")
	}
	if hasPackage {
		tags = append(tags, "package_object")
	}
	if pr.Emotion == models.EmotionAggressive {
		tags = append(tags, "emotion_aggressive")
	}
	if pr.Emotion == models.EmotionDistressed {
		tags = append(tags, "emotion_distressed")
	}
	return tags
}
