package http

import "github.com/smartdoor/orchestrator/internal/eventbus"

// ownerReplyEvent builds the owner_reply event published on a session's
// channel when the owner sends a message (spec §4.2).
func ownerReplyEvent(sessionID, message string) eventbus.Event {
	return eventbus.Event{
		Kind:      eventbus.KindOwnerReply,
		SessionID: sessionID,
		Payload:   map[string]any{"message": message},
	}
}
