package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/flourisha/brain/internal/port/messagequeue"
)

// BroadcastEvent marshals a typed event payload and delivers it to the payload's audience.
// Payloads without a tenant are dropped.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}
	h.deliver(ctx, eventType, data)
}

// Relay is a message-queue handler that forwards domain events to connected clients.
// The event type is the subject without the "flourisha." prefix.
func (h *Hub) Relay(ctx context.Context, subject string, data []byte) error {
	h.deliver(ctx, strings.TrimPrefix(subject, "flourisha."), data)
	return nil
}

func (h *Hub) deliver(ctx context.Context, eventType string, data []byte) {
	aud := messagequeue.AudienceOf(data)
	if aud.TenantID == "" {
		slog.Warn("ws event without audience dropped", "type", eventType)
		return
	}
	h.Broadcast(ctx, aud, Message{Type: eventType, Payload: json.RawMessage(data)})
}
