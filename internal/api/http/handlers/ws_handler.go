package handlers

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/notify"
)

// WSHandler upgrades subscribers onto the change-notification hub.
type WSHandler struct {
	hub *notify.Hub
}

// NewWSHandler constructs handler.
func NewWSHandler(hub *notify.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// Upgrade gates non-websocket requests before the protocol switch.
func (h *WSHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Subscribe GET /ws.
func (h *WSHandler) Subscribe() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		h.hub.Serve(conn)
	})
}
