// Package eventbus implements the spec §4.2 Event Bus: in-process fan-out
// of session lifecycle events to subscribers, keyed by channel. It is
// grounded on the teacher's ConnectionManager channel-map shape, minus the
// cross-pod Postgres LISTEN/NOTIFY layer — horizontal scaling across
// machines is an explicit non-goal.
package eventbus

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriberBufferSize is the bounded per-subscriber buffer (spec §4.2:
// "bounded per-subscriber buffer, size 64, oldest-dropped").
const subscriberBufferSize = 64

// Kind is the closed set of event types the Orchestrator publishes.
type Kind string

const (
	KindNewRing       Kind = "new_ring"
	KindPipelineStage Kind = "pipeline_stage"
	KindWeaponAlert   Kind = "weapon_alert"
	KindSessionEnded  Kind = "session_ended"
	KindOwnerReply    Kind = "owner_reply"
)

// OwnerChannel is the global channel every owner-facing dashboard
// subscribes to, distinct from the per-session channels.
const OwnerChannel = "owner"

// Event is one published message.
type Event struct {
	Kind      Kind
	SessionID string
	Payload   map[string]any
}

// subscriber is one registered listener and its bounded mailbox.
type subscriber struct {
	id string
	ch chan Event
}

// Bus is the in-process pub/sub hub. Zero value is not usable; use New.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscriber // channel -> subscribers
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[string][]*subscriber)}
}

// Subscription is returned by Subscribe; Events delivers published events
// and Close detaches the subscription, after which no more sends occur.
type Subscription struct {
	Events <-chan Event
	bus    *Bus
	channel string
	id      string
}

// Close detaches the subscription from its channel. Safe to call more than
// once.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.channel, s.id)
}

// Subscribe registers a new listener on channel and returns a Subscription
// whose Events channel is closed when the caller calls Close.
func (b *Bus) Subscribe(channel string) *Subscription {
	id := uuid.New().String()
	sub := &subscriber{id: id, ch: make(chan Event, subscriberBufferSize)}
	b.mu.Lock()
	b.subscribers[channel] = append(b.subscribers[channel], sub)
	b.mu.Unlock()

	return &Subscription{Events: sub.ch, bus: b, channel: channel, id: id}
}

func (b *Bus) unsubscribe(channel, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[channel]
	for i, s := range subs {
		if s.id == id {
			close(s.ch)
			b.subscribers[channel] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Publish is non-blocking (spec §4.2): a full subscriber buffer drops its
// oldest queued event to make room rather than blocking the producer.
func (b *Bus) Publish(channel string, event Event) {
	b.mu.RLock()
	subs := append([]*subscriber(nil), b.subscribers[channel]...)
	b.mu.RUnlock()

	for _, s := range subs {
		select {
		case s.ch <- event:
		default:
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- event:
			default:
				slog.Warn("eventbus: dropped event, subscriber buffer saturated",
					"channel", channel, "subscriber_id", s.id, "kind", event.Kind)
			}
		}
	}
}
