package handler

import (
	"eis-ingest-be/internal/pkg/logger"
	internalWS "eis-ingest-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// EventStreamHandler upgrades clients to a websocket that receives every hub event.
type EventStreamHandler struct {
	hub    *internalWS.Hub
	logger logger.ILogger
}

func NewEventStreamHandler(hub *internalWS.Hub, log logger.ILogger) *EventStreamHandler {
	return &EventStreamHandler{hub: hub, logger: log}
}

func (h *EventStreamHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("EventStreamHandler", "Starting WebSocket session", map[string]interface{}{"remote": conn.RemoteAddr().String()})
		internalWS.ServeWs(h.hub, conn)
		h.logger.Info("EventStreamHandler", "WebSocket session ended", nil)
	})(c)
}

func (h *EventStreamHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/eis/v1/events/ws", h.ServeWs)
}
