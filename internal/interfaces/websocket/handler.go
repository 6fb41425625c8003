package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"go-issue-relay/internal/infrastructure/hub"
	"go-issue-relay/internal/infrastructure/logger"
)

// WebSocketHandler upgrades client requests and attaches them to the hub
type WebSocketHandler struct {
	hub        *hub.Hub
	logger     logger.Logger
	upgrader   websocket.Upgrader
	sendBuffer int
}

// NewWebSocketHandler creates a new WebSocket handler instance
func NewWebSocketHandler(hubInstance *hub.Hub, logger logger.Logger, sendBuffer int) *WebSocketHandler {
	return &WebSocketHandler{
		hub:        hubInstance,
		logger:     logger.WithField("handler", "websocket"),
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The stream is read-only and public.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// IsUpgrade reports whether the request asks for a WebSocket upgrade.
func IsUpgrade(c *gin.Context) bool {
	return websocket.IsWebSocketUpgrade(c.Request)
}

// Connect upgrades the request, greets the client and registers it with
// the hub. It returns once the connection ends.
func (h *WebSocketHandler) Connect(c *gin.Context) {
	if !h.hub.IsRunning() {
		h.logger.Error("Hub is not running")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Service temporarily unavailable",
		})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("Failed to upgrade connection: %v", err)
		return
	}

	wsConn := hub.NewWebSocketConnection(c.Request.Context(), "ws-"+uuid.NewString(), conn, h.logger, h.sendBuffer)

	// Queued before registration so it precedes every broadcast.
	if err := wsConn.Send(c.Request.Context(), hub.WelcomeMessage()); err != nil {
		h.logger.Errorf("Failed to greet WebSocket connection %s: %v", wsConn.ID(), err)
		wsConn.Close()
		return
	}

	if err := h.hub.RegisterConnection(wsConn); err != nil {
		h.logger.Errorf("Failed to register WebSocket connection: %v", err)
		wsConn.Close()
		return
	}

	<-wsConn.Context().Done()
	h.logger.Infof("WebSocket connection %s disconnected", wsConn.ID())
}

// GetConnections returns information about WebSocket connections
func (h *WebSocketHandler) GetConnections(c *gin.Context) {
	connections := h.hub.GetConnectionsByType("websocket")
	connectionInfo := make([]gin.H, len(connections))

	for i, conn := range connections {
		connectionInfo[i] = gin.H{
			"id":     conn.ID(),
			"closed": conn.IsClosed(),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"total_connections": len(connections),
		"connections":       connectionInfo,
	})
}
