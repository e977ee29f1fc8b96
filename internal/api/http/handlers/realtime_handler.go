package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/realtime"
)

// RealtimeHandler upgrades authenticated callers to a push session.
type RealtimeHandler struct {
	hub *realtime.Hub
}

// NewRealtimeHandler constructs handler.
func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// Upgrade rejects plain HTTP requests on the websocket route.
func (h *RealtimeHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Serve registers the session with the hub and blocks until the peer
// disconnects. The auth middleware has already stored the actor in locals.
func (h *RealtimeHandler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		actor, ok := conn.Locals(auth.ActorKey).(domain.Actor)
		if !ok {
			_ = conn.Close()
			return
		}
		h.hub.Register(actor.ID, conn)
	})
}
