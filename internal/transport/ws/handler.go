package ws

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"alias/internal/app"
)

// Handler handles WebSocket connections
type Handler struct {
	engine      *app.Engine
	broadcaster *app.Broadcaster
	upgrader    websocket.Upgrader
	logger      *slog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(engine *app.Engine, broadcaster *app.Broadcaster, logger *slog.Logger) *Handler {
	return &Handler{
		engine:      engine,
		broadcaster: broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// ServeHTTP handles WebSocket upgrade requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	clientID := uuid.NewString()
	client := NewClient(conn, h.engine, h.broadcaster, clientID, h.logger)

	h.broadcaster.RegisterClient(client)

	h.logger.Info("websocket connected",
		"clientID", clientID,
		"remoteAddr", r.RemoteAddr,
	)

	client.sendState()

	// Start the client
	client.Run()
}
