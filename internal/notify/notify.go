// Package notify delivers owner-facing notifications for notify_owner and
// escalate directives. It is adapted from the teacher's Slack service: the
// pipeline's one externally visible "someone is at the door" channel plays
// the same role the teacher's Slack channel plays for "an alert needs a
// human" — nil-safe, fail-open, never blocking the pipeline on a delivery
// failure.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goslack "github.com/slack-go/slack"
)

// postTimeout bounds a single Slack API call so a slow webhook never stalls
// the Action Executor.
const postTimeout = 5 * time.Second

// Config holds the Slack channel parameters. Notify is nil-safe: Service
// methods are no-ops when Token or Channel is empty.
type Config struct {
	Token   string
	Channel string
}

// Service delivers owner notifications to Slack.
type Service struct {
	api     *goslack.Client
	channel string
	logger  *slog.Logger
}

// New constructs a Service, or returns nil if cfg is incomplete — every
// Service method is nil-safe, so callers never need to branch on this.
func New(cfg Config) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return &Service{
		api:     goslack.New(cfg.Token),
		channel: cfg.Channel,
		logger:  slog.Default().With("component", "notify"),
	}
}

// OwnerAlert is one notify_owner/escalate payload (spec §4.6).
type OwnerAlert struct {
	SessionID string
	Message   string
	RiskScore float64
	ImagePath string
	Escalated bool
}

// NotifyOwner posts an alert to the owner channel. Fail-open: delivery
// failures are logged, never returned, since a Slack outage must not stall
// session completion.
func (s *Service) NotifyOwner(ctx context.Context, alert OwnerAlert) {
	if s == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, postTimeout)
	defer cancel()

	prefix := "Doorbell"
	if alert.Escalated {
		prefix = "ESCALATION"
	}

	text := fmt.Sprintf("%s — session %s (risk %.2f): %s", prefix, alert.SessionID, alert.RiskScore, alert.Message)
	blocks := []goslack.Block{
		goslack.NewSectionBlock(goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false), nil, nil),
	}

	if _, _, err := s.api.PostMessageContext(ctx, s.channel, goslack.MsgOptionBlocks(blocks...)); err != nil {
		s.logger.Warn("failed to deliver owner notification", "session_id", alert.SessionID, "error", err)
	}
}
