// Package action implements the spec §4.6 Action Executor: it executes a
// Directive's side effects and never decides — the final_action was
// already chosen by the Decision stage.
package action

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/smartdoor/orchestrator/internal/assets"
	"github.com/smartdoor/orchestrator/internal/eventbus"
	"github.com/smartdoor/orchestrator/internal/models"
	"github.com/smartdoor/orchestrator/internal/notify"
	"github.com/smartdoor/orchestrator/internal/tts"
)

// ttsTimeout bounds a single TTS synthesis call (spec §4.6: "Timeout 10 s").
const ttsTimeout = 10 * time.Second

// maxReplyLen is the sanitized reply text length cap (spec §4.6).
const maxReplyLen = 240

// Executor wires the TTS synthesizer, owner notification channel, and
// asset store into one Directive executor.
type Executor struct {
	TTS    tts.Synthesizer
	Notify *notify.Service
	Assets *assets.Store
	Bus    *eventbus.Bus

	// Timeout overrides the default 10s action timeout (spec §6
	// ACTION_TIMEOUT_SEC). Zero means "use ttsTimeout".
	Timeout time.Duration
}

func (e *Executor) timeout() time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return ttsTimeout
}

// Execute runs the side effects for directive given the upstream reports,
// returning the ActionResult the Orchestrator persists. It never returns a
// status other than played/queued/ignored/failed, and never retries.
func (e *Executor) Execute(ctx context.Context, directive models.Directive, ir models.IntelligenceReport, pr models.PerceptionReport) models.ActionResult {
	now := time.Now()

	switch directive.FinalAction {
	case models.ActionAutoReply:
		return e.autoReply(ctx, directive, ir, now)
	case models.ActionNotifyOwner:
		return e.notifyOwner(ctx, directive, ir, pr, false, now)
	case models.ActionEscalate:
		return e.escalate(ctx, directive, ir, pr, now)
	default:
		return models.ActionResult{
			SessionID:  directive.SessionID,
			Status:     models.ActionStatusIgnored,
			ActionType: string(directive.FinalAction),
			Timestamp:  now,
		}
	}
}

// sanitizeReply implements spec §4.6's auto_reply sanitation: strip control
// characters, cap length, escape double quotes.
func sanitizeReply(text string) string {
	var b strings.Builder
	for _, r := range text {
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	sanitized := b.String()
	if runes := []rune(sanitized); len(runes) > maxReplyLen {
		sanitized = string(runes[:maxReplyLen])
	}
	return strings.ReplaceAll(sanitized, `"`, `\"`)
}

func (e *Executor) autoReply(ctx context.Context, directive models.Directive, ir models.IntelligenceReport, now time.Time) models.ActionResult {
	sanitized := sanitizeReply(ir.ReplyText)

	if _, err := e.Assets.WriteAtomic(assets.SubdirTTS, directive.SessionID+".txt", []byte(sanitized)); err != nil {
		return failed(directive.SessionID, "auto_reply", err)
	}

	wavPath, err := e.Assets.Path(assets.SubdirTTS, directive.SessionID+".wav")
	if err != nil {
		return failed(directive.SessionID, "auto_reply", err)
	}

	ttsCtx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	voice := tts.VoiceFor(sanitized)
	if err := e.TTS.Synthesize(ttsCtx, sanitized, voice, wavPath); err != nil {
		return failed(directive.SessionID, "auto_reply", err)
	}

	return models.ActionResult{
		SessionID:  directive.SessionID,
		Status:     models.ActionStatusPlayed,
		ActionType: "auto_reply",
		Payload:    map[string]any{"voice": string(voice), "tts_path": wavPath},
		Timestamp:  now,
	}
}

func (e *Executor) notifyOwner(ctx context.Context, directive models.Directive, ir models.IntelligenceReport, pr models.PerceptionReport, escalated bool, now time.Time) models.ActionResult {
	payload := map[string]any{
		"message":    ir.ReplyText,
		"risk_score": ir.RiskScore,
		"image_path": pr.ImagePath,
	}
	if escalated {
		payload["urgent"] = true
	}

	e.Notify.NotifyOwner(ctx, notify.OwnerAlert{
		SessionID: directive.SessionID,
		Message:   ir.ReplyText,
		RiskScore: ir.RiskScore,
		ImagePath: pr.ImagePath,
		Escalated: escalated,
	})

	e.Bus.Publish(eventbus.OwnerChannel, eventbus.Event{
		Kind:      eventbus.KindPipelineStage,
		SessionID: directive.SessionID,
		Payload: map[string]any{
			"final_action": string(directive.FinalAction),
			"risk_score":   strconv.FormatFloat(ir.RiskScore, 'f', 3, 64),
		},
	})

	return models.ActionResult{
		SessionID:  directive.SessionID,
		Status:     models.ActionStatusQueued,
		ActionType: string(directive.FinalAction),
		Payload:    payload,
		Timestamp:  now,
	}
}

func (e *Executor) escalate(ctx context.Context, directive models.Directive, ir models.IntelligenceReport, pr models.PerceptionReport, now time.Time) models.ActionResult {
	result := e.notifyOwner(ctx, directive, ir, pr, true, now)

	sanitized := sanitizeReply(ir.ReplyText)
	if wavPath, err := e.Assets.Path(assets.SubdirTTS, directive.SessionID+".wav"); err == nil {
		ttsCtx, cancel := context.WithTimeout(ctx, e.timeout())
		if err := e.TTS.Synthesize(ttsCtx, sanitized, tts.VoiceFor(sanitized), wavPath); err != nil {
			result.Payload["tts_error"] = err.Error()
		} else {
			result.Payload["tts_path"] = wavPath
		}
		cancel()
	}
	return result
}

func failed(sessionID, actionType string, err error) models.ActionResult {
	return models.ActionResult{
		SessionID:  sessionID,
		Status:     models.ActionStatusFailed,
		ActionType: actionType,
		Payload:    map[string]any{"error": err.Error()},
		Timestamp:  time.Now(),
	}
}
