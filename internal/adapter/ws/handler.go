// Package ws implements the WebSocket adapter for live event delivery to clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/flourisha/brain/internal/domain/access"
	"github.com/flourisha/brain/internal/middleware"
	"github.com/flourisha/brain/internal/port/messagequeue"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// conn wraps a single WebSocket connection and the claims it authenticated with.
type conn struct {
	ws     *websocket.Conn
	cancel context.CancelFunc
	claims access.Claims
}

// Hub manages all active WebSocket connections and delivers each message only to the
// connections whose claims satisfy the message audience.
type Hub struct {
	mu             sync.RWMutex
	conns          map[*conn]struct{}
	originPatterns []string
}

// NewHub creates a new WebSocket hub. originPatterns are passed to the upgrader; an empty
// list accepts any origin (CORS is enforced by middleware).
func NewHub(originPatterns ...string) *Hub {
	return &Hub{
		conns:          make(map[*conn]struct{}),
		originPatterns: originPatterns,
	}
}

// HandleWS upgrades an authenticated request to a WebSocket connection.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || !claims.Valid() {
		http.Error(w, `{"error":"authorization required"}`, http.StatusUnauthorized)
		return
	}

	opts := &websocket.AcceptOptions{OriginPatterns: h.originPatterns}
	if len(h.originPatterns) == 0 {
		opts.InsecureSkipVerify = true
	}
	ws, err := websocket.Accept(w, r, opts)
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	// The request context ends when the handler returns; the connection outlives it.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	c := &conn{ws: ws, cancel: cancel, claims: claims}
	h.add(c)

	slog.Info("websocket connected", "remote", r.RemoteAddr, "tenant_id", claims.TenantID, "user_id", claims.Subject)

	go func() {
		defer func() {
			h.remove(c)
			_ = ws.Close(websocket.StatusNormalClosure, "")
		}()
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()
}

// Broadcast sends msg to every connection whose claims satisfy aud.
func (h *Hub) Broadcast(ctx context.Context, aud messagequeue.Audience, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return
	}

	for _, c := range h.recipients(aud) {
		if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
			slog.Debug("websocket write failed", "error", err)
			h.remove(c)
		}
	}
}

// Allows reports whether claims may receive an event addressed to aud. Personal events go
// to their user only; everything else goes to the tenant.
func Allows(aud messagequeue.Audience, claims access.Claims) bool {
	if aud.UserID != "" {
		return aud.UserID == claims.Subject
	}
	return aud.TenantID != "" && aud.TenantID == claims.TenantID
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) recipients(aud messagequeue.Audience) []*conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*conn
	for c := range h.conns {
		if Allows(aud, c.claims) {
			out = append(out, c)
		}
	}
	return out
}

func (h *Hub) add(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; ok {
		c.cancel()
		delete(h.conns, c)
		slog.Info("websocket disconnected", "tenant_id", c.claims.TenantID)
	}
}
