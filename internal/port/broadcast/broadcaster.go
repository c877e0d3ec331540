// Package broadcast defines the port for pushing live events to connected clients.
package broadcast

import "context"

// Broadcaster delivers a typed event to the connected clients allowed to see it. The
// payload carries its own audience (tenant, optionally a single user).
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
