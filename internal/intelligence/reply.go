package intelligence

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/smartdoor/orchestrator/internal/apperr"
	"github.com/smartdoor/orchestrator/internal/models"
)

// CannedSecurityLine is the fixed reply used for every escalated session,
// regardless of Reply Provider (spec §4.4 Step 3).
const CannedSecurityLine = "I have notified the owner and the security guard."

// OccupancyProbeReply is the exact reply for occupancy_probe, verbatim
// (spec §4.4 Step 4, §8 invariant 8).
const OccupancyProbeReply = "Please wait while I notify the owner."

// cannedReplies holds the fixed neutral templates for non-conversational
// intents (spec §4.4 Step 4).
var cannedReplies = map[models.Intent]string{
	models.IntentDelivery:          "Thanks for the delivery — please leave it at the door, the owner has been notified.",
	models.IntentHelp:              "I understand you need help. I am notifying the owner right now.",
	models.IntentVisitor:           "Thanks for visiting — I'm letting the owner know you're here.",
	models.IntentUnknown:           "Thanks for stopping by. I've let the owner know someone is at the door.",
	models.IntentReligiousDonation: "Thank you for stopping by. The owner has been informed of your visit.",
	models.IntentDomesticStaff:     "Thanks — I've let the owner know you're here.",
	models.IntentSalesMarketing:    "Thanks for the information. The owner will reach out if interested.",
	models.IntentChildElderly:      "I understand. I'm notifying the owner right away.",
	models.IntentGovernmentClaim:   "Thank you. I've notified the owner of your visit.",
}

// ReplyContext bounds what a Reply Provider sees: a system prompt, the last
// two transcript turns, and a perception summary (spec §4.4 Step 4).
type ReplyContext struct {
	SystemPrompt      string
	RecentTranscript  []models.TranscriptEntry
	PerceptionSummary string
	Intent            models.Intent
}

// ReplyProvider is the injectable, narrow-contract seam for remote LLM
// inference (spec §1, §6 — out of scope beyond this interface).
type ReplyProvider interface {
	Generate(ctx context.Context, rc ReplyContext) (string, error)
}

// replyDeadline and the fixed backoff schedule implement spec §4.4 Step 4:
// "Provider deadline: 8 s; 2 retries with exponential backoff (0.5 s, 1 s)."
const replyDeadline = 8 * time.Second

var replyBackoff = []time.Duration{500 * time.Millisecond, 1 * time.Second}

// forbiddenPatterns implements the SecurityContract check (spec §7): a
// reply containing any of these substrings is replaced by the canned safe
// line and the incident is audited.
var forbiddenPatterns = []string{
	"nobody is home", "no one is home", "owner is away", "owner is out",
	"the password is", "the otp is", "; rm -rf", "$(", "`",
}

// CannedReplyFor returns the fixed template for intent, defaulting to the
// unknown-intent template when none is registered (used both as the default
// reply and as the fallback after a failed/filtered provider call).
func CannedReplyFor(intent models.Intent) string {
	if intent == models.IntentOccupancyProbe {
		return OccupancyProbeReply
	}
	if r, ok := cannedReplies[intent]; ok {
		return r
	}
	return cannedReplies[models.IntentUnknown]
}

// violatesSecurityContract reports whether text contains a forbidden
// pattern (occupancy-confirming, credential-echoing, or shell-injection
// indicator).
func violatesSecurityContract(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range forbiddenPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Reply implements spec §4.4 Step 4. escalationRequired forces the canned
// security line unconditionally. Otherwise intents with a fixed template
// skip the provider entirely; anything else is offered to provider (if
// non-nil) under the bounded deadline/retry schedule, falling back to the
// canned reply on any failure or SecurityContract violation.
func Reply(ctx context.Context, intent models.Intent, escalationRequired bool, provider ReplyProvider, rc ReplyContext) (string, error) {
	if escalationRequired {
		return CannedSecurityLine, nil
	}
	if intent == models.IntentOccupancyProbe {
		return OccupancyProbeReply, nil
	}
	if _, hasTemplate := cannedReplies[intent]; hasTemplate {
		return cannedReplies[intent], nil
	}

	fallback := CannedReplyFor(intent)
	if provider == nil {
		return fallback, nil
	}

	text, err := callProviderWithRetry(ctx, provider, rc)
	if err != nil {
		slog.Warn("reply provider failed, using canned fallback",
			"intent", intent, "error", err)
		return fallback, nil
	}

	if violatesSecurityContract(text) {
		slog.Warn("reply provider output violated security contract, replacing with canned line",
			"intent", intent)
		return fallback, apperr.New(apperr.KindSecurityContract, "forbidden pattern in generated reply", nil)
	}

	return text, nil
}

// callProviderWithRetry calls provider.Generate under a bounded deadline,
// retrying per replyBackoff on failure (spec §4.4 Step 4).
func callProviderWithRetry(ctx context.Context, provider ReplyProvider, rc ReplyContext) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, replyDeadline)
	defer cancel()

	var lastErr error
	attempts := 1 + len(replyBackoff)
	for attempt := 0; attempt < attempts; attempt++ {
		text, err := provider.Generate(callCtx, rc)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if attempt < len(replyBackoff) {
			select {
			case <-time.After(replyBackoff[attempt]):
			case <-callCtx.Done():
				return "", callCtx.Err()
			}
		}
	}
	return "", apperr.New(apperr.KindTransientProvider, "reply provider exhausted retries", lastErr)
}
