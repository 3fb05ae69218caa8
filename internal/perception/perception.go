// Package perception wraps the injectable vision/STT capability the spec
// calls the Perception Provider (spec §4.3, §6 — out of scope beyond its
// interface). Adapter layers the provider-budget timeout and the
// anti-spoof/emotion post-processing on top of whatever Provider is
// injected.
package perception

import (
	"context"
	"strings"
	"time"

	"github.com/smartdoor/orchestrator/internal/lexicon"
	"github.com/smartdoor/orchestrator/internal/models"
)

// Budget is the provider wall-time budget (spec §4.3): "8 s wall time; on
// exceeding, the Orchestrator uses a degraded empty report and continues."
const Budget = 8 * time.Second

// Input is what the Orchestrator hands the Perception stage.
type Input struct {
	ImagePath string
	AudioPath string
}

// Provider is the injectable capability contract (spec §4.3). A real
// implementation wraps CNN object/weapon detection and STT; this package
// ships only StubProvider, a deterministic stand-in, since the model
// backends themselves are explicitly out of scope.
type Provider interface {
	Analyze(ctx context.Context, in Input) (models.PerceptionReport, error)
}

// Degraded builds the "provider exceeded budget" fallback report (spec
// §4.3): person_detected=false, all confidences 0.0.
func Degraded(sessionID string, now time.Time) models.PerceptionReport {
	return models.PerceptionReport{
		SessionID:        sessionID,
		PersonDetected:   false,
		VisionConfidence: 0,
		STTConfidence:    0,
		Emotion:          models.EmotionNeutral,
		AntiSpoofScore:   computeAntiSpoof(false, 0, "", true),
		Timestamp:        now,
	}
}

// Adapter enforces the provider budget and computes the anti-spoof score
// and emotion as post-processing over whatever the wrapped Provider
// returns, resolving spec §4.3's "inside or after provider" ambiguity in
// favor of "after": providers need only return vision/STT primitives.
type Adapter struct {
	Provider Provider
	Lexicon  *lexicon.Set

	// Budget overrides the default 8s provider wall-time budget (spec §6
	// PROVIDER_TIMEOUT_SEC). Zero means "use Budget".
	BudgetOverride time.Duration
}

// NewAdapter wraps provider with the default lexicon for emotion inference.
func NewAdapter(provider Provider) *Adapter {
	return &Adapter{Provider: provider, Lexicon: lexicon.Default()}
}

// NewAdapterWithBudget wraps provider with an explicit provider-timeout
// budget, used when PROVIDER_TIMEOUT_SEC overrides the spec default.
func NewAdapterWithBudget(provider Provider, budget time.Duration) *Adapter {
	return &Adapter{Provider: provider, Lexicon: lexicon.Default(), BudgetOverride: budget}
}

// Analyze runs the wrapped provider under the provider-timeout budget, then
// fills in anti-spoof score and emotion. On timeout it returns a degraded
// report rather than an error, per spec §4.3.
func (a *Adapter) Analyze(ctx context.Context, sessionID string, in Input) models.PerceptionReport {
	budget := Budget
	if a.BudgetOverride > 0 {
		budget = a.BudgetOverride
	}
	budgetCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	type result struct {
		report models.PerceptionReport
		err    error
	}
	done := make(chan result, 1)
	go func() {
		report, err := a.Provider.Analyze(budgetCtx, in)
		done <- result{report, err}
	}()

	var report models.PerceptionReport
	select {
	case r := <-done:
		if r.err != nil {
			report = Degraded(sessionID, time.Now())
		} else {
			report = r.report
		}
	case <-budgetCtx.Done():
		report = Degraded(sessionID, time.Now())
	}

	report.SessionID = sessionID
	report.AntiSpoofScore = computeAntiSpoof(report.PersonDetected, report.VisionConfidence, report.Transcript, in.AudioPath == "")
	report.Emotion = inferEmotion(report.Transcript, a.Lexicon)
	return report
}

// computeAntiSpoof implements spec §4.3's anti-spoof formula exactly.
func computeAntiSpoof(personDetected bool, visionConfidence float64, transcript string, audioAbsent bool) float64 {
	score := 0.0
	if !personDetected {
		score = 0.9
	} else if visionConfidence < 0.5 {
		score += 0.3
	}
	if !audioAbsent && strings.TrimSpace(transcript) == "" {
		score += 0.2
	}
	if audioAbsent {
		score += 0.1
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// inferEmotion implements spec §4.3's rule-based emotion inference:
// threat vocabulary wins over distress vocabulary, both over neutral.
func inferEmotion(transcript string, lex *lexicon.Set) models.Emotion {
	normalized := lexicon.Normalize(transcript)
	switch {
	case lexicon.ContainsAny(normalized, lex.Threat):
		return models.EmotionAggressive
	case lexicon.ContainsAny(normalized, lex.Distress):
		return models.EmotionDistressed
	default:
		return models.EmotionNeutral
	}
}
