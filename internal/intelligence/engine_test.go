package intelligence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdoor/orchestrator/internal/models"
)

func TestIsNightHour(t *testing.T) {
	assert.True(t, isNightHour(23))
	assert.True(t, isNightHour(0))
	assert.True(t, isNightHour(4))
	assert.False(t, isNightHour(5))
	assert.False(t, isNightHour(14))
	assert.False(t, isNightHour(21))
}

func TestEngine_Evaluate_DeliveryScenarioEndToEnd(t *testing.T) {
	e := NewEngine()
	pr := models.PerceptionReport{
		SessionID:        "e1",
		PersonDetected:   true,
		Objects:          []models.DetectedObject{{Label: "package", Confidence: 0.9}},
		VisionConfidence: 0.88,
		Transcript:       "i have a package delivery for you",
		Emotion:          models.EmotionNeutral,
	}

	report, err := e.Evaluate(context.Background(), pr, 14, nil)
	require.NoError(t, err)

	assert.Equal(t, models.IntentDelivery, report.Intent)
	assert.False(t, report.EscalationRequired)
	assert.Contains(t, report.Tags, "package_object")
	assert.Equal(t, cannedReplies[models.IntentDelivery], report.ReplyText)
}

func TestEngine_Evaluate_WeaponDetectionAlwaysEscalates(t *testing.T) {
	e := NewEngine()
	pr := models.PerceptionReport{
		SessionID:        "e2",
		PersonDetected:   true,
		VisionConfidence: 0.9,
		Emotion:          models.EmotionNeutral,
		WeaponDetected:   true,
	}

	report, err := e.Evaluate(context.Background(), pr, 14, nil)
	require.NoError(t, err)

	assert.True(t, report.EscalationRequired)
	assert.Equal(t, CannedSecurityLine, report.ReplyText)
	assert.Contains(t, report.Tags, "weapon_detected")
}

func TestEngine_Evaluate_EntryVocabularyTaggedAndScored(t *testing.T) {
	e := NewEngine()
	pr := models.PerceptionReport{
		SessionID:        "e3",
		PersonDetected:   true,
		VisionConfidence: 0.9,
		Transcript:       "please open the door",
		Emotion:          models.EmotionNeutral,
	}

	report, err := e.Evaluate(context.Background(), pr, 14, nil)
	require.NoError(t, err)

	assert.Equal(t, models.IntentEntryRequest, report.Intent)
	assert.Contains(t, report.Tags, "entry_vocabulary")
	assert.True(t, report.EscalationRequired)
}

func TestEngine_Evaluate_AggressiveEmotionTagged(t *testing.T) {
	e := NewEngine()
	pr := models.PerceptionReport{
		SessionID:        "e4",
		PersonDetected:   true,
		VisionConfidence: 0.8,
		Transcript:       "i will hurt you",
		Emotion:          models.EmotionAggressive,
	}

	report, err := e.Evaluate(context.Background(), pr, 23, nil)
	require.NoError(t, err)

	assert.Equal(t, models.IntentAggression, report.Intent)
	assert.Contains(t, report.Tags, "emotion_aggressive")
	assert.True(t, report.EscalationRequired)
}
