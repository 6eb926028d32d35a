package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"presence-gateway/internal/domain"
	"presence-gateway/internal/services"
	"presence-gateway/pkg/logger"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// Handler accepts websocket upgrades and runs the per-connection read
// loop. It is mounted as a catch-all: connections to anything other
// than /connect are accepted, told off in-protocol and closed.
type Handler struct {
	router   *services.SubscriptionRouter
	registry domain.ConnectionRegistry
	log      logger.Logger
}

func NewHandler(router *services.SubscriptionRouter, registry domain.ConnectionRegistry, log logger.Logger) *Handler {
	return &Handler{
		router:   router,
		registry: registry,
		log:      log,
	}
}

func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if r.URL.Path == "/connect" && userID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "path", r.URL.Path, "error", err)
		return
	}

	if r.URL.Path != "/connect" {
		h.log.Info("Connection rejected", "path", r.URL.Path)
		if err := conn.WriteMessage(websocket.TextMessage, []byte("Unrecognized Request")); err != nil {
			h.log.Error("Failed to send rejection", "error", err)
		}
		conn.Close()
		return
	}

	wsConn := NewConnection(conn, userID)
	if err := h.registry.Register(wsConn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		conn.Close()
		return
	}

	h.log.Info("Connection accepted", "connection_id", wsConn.ID(), "user_id", userID)
	go h.readLoop(wsConn)
}

func (h *Handler) readLoop(conn *Connection) {
	defer func() {
		h.registry.Unregister(conn.ID())
		conn.Close()
		h.log.Info("Connection closed", "connection_id", conn.ID(), "user_id", conn.UserID())
	}()

	for {
		_, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Error("Connection read failed", "connection_id", conn.ID(), "error", err)
			}
			return
		}

		// A message the gateway cannot parse is dropped; the
		// connection itself stays open.
		var msg domain.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.Error("Malformed client message", "connection_id", conn.ID(),
				"user_id", conn.UserID(), "error", err)
			continue
		}

		h.handleMessage(conn, &msg)
	}
}

func (h *Handler) handleMessage(conn *Connection, msg *domain.ClientMessage) {
	switch msg.EventType {
	case "subscribe":
		if msg.Channel == "" {
			h.log.Error("Subscribe without channel", "connection_id", conn.ID(), "user_id", conn.UserID())
			return
		}
		h.router.Subscribe(context.Background(), conn.UserID(), msg.Channel, conn)

	case "publish":
		if msg.Channel == "" {
			h.log.Error("Publish without channel", "connection_id", conn.ID(), "user_id", conn.UserID())
			return
		}
		h.router.Publish(context.Background(), conn.UserID(), msg.Channel, msg.Payload, conn)

	default:
		// Unrecognized event types are silently ignored.
	}
}
