// Package ws implements spec §6's `WS /api/ws/{channel}` surface: it
// bridges the in-process Event Bus (internal/eventbus) to WebSocket
// clients. Grounded on the teacher's coder/websocket usage in
// pkg/events/manager.go and pkg/api/handler_ws.go — Accept the connection,
// then pump one subscriber's event channel to the socket until either side
// closes. Client-to-server messages are read and discarded (spec §6:
// "Client-to-server messages are ignored").
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/smartdoor/orchestrator/internal/eventbus"
)

// writeTimeout bounds a single outbound frame so one stalled client cannot
// pin a goroutine forever.
const writeTimeout = 5 * time.Second

// wireEvent is the JSON shape delivered to clients: a `type` discriminator
// plus the event's fields (spec §4.2, §6).
type wireEvent struct {
	Type      eventbus.Kind  `json:"type"`
	SessionID string         `json:"sessionId"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Hub bridges eventbus subscriptions to WebSocket connections.
type Hub struct {
	bus    *eventbus.Bus
	logger *slog.Logger
}

// NewHub constructs a Hub over bus.
func NewHub(bus *eventbus.Bus) *Hub {
	return &Hub{bus: bus, logger: slog.Default().With("component", "ws")}
}

// Serve upgrades the connection backing ctx/conn is already-accepted, and
// pumps channel's events to it until the client disconnects or the server
// context is cancelled. It blocks for the lifetime of the connection,
// mirroring the teacher's ConnectionManager.HandleConnection contract.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, channel string) {
	sub := h.bus.Subscribe(channel)
	defer sub.Close()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, wireEvent{Type: ev.Kind, SessionID: ev.SessionID, Payload: ev.Payload})
			cancel()
			if err != nil {
				h.logger.Debug("ws: write failed, closing connection", "channel", channel, "error", err)
				return
			}
		case <-readerDone:
			return
		case <-ctx.Done():
			return
		}
	}
}

// MarshalForTest exposes wireEvent's JSON shape to tests without exporting
// the type itself.
func MarshalForTest(ev eventbus.Event) ([]byte, error) {
	return json.Marshal(wireEvent{Type: ev.Kind, SessionID: ev.SessionID, Payload: ev.Payload})
}
