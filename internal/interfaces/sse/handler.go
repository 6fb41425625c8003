package sse

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"go-issue-relay/internal/infrastructure/hub"
	"go-issue-relay/internal/infrastructure/logger"
)

type ServerSentEventHandler struct {
	hub        *hub.Hub
	logger     logger.Logger
	sendBuffer int
}

func NewServerSentEventHandler(hubInstance *hub.Hub, logger logger.Logger, sendBuffer int) *ServerSentEventHandler {
	return &ServerSentEventHandler{
		hub:        hubInstance,
		logger:     logger.WithField("handler", "sse"),
		sendBuffer: sendBuffer,
	}
}

// Connect streams hub messages to the client as server-sent events until
// the client disconnects or the hub drops the connection.
func (h *ServerSentEventHandler) Connect(c *gin.Context) {
	if !h.hub.IsRunning() {
		h.logger.Error("Hub is not running")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Service temporarily unavailable",
		})
		return
	}

	conn := hub.NewSSEConnection(c.Request.Context(), "sse-"+uuid.NewString(), c.Writer, h.logger, h.sendBuffer)

	if err := conn.Send(c.Request.Context(), hub.WelcomeMessage()); err != nil {
		h.logger.Errorf("Failed to greet SSE connection %s: %v", conn.ID(), err)
		conn.Close()
		return
	}

	if err := h.hub.RegisterConnection(conn); err != nil {
		h.logger.Errorf("Failed to register connection: %v", err)
		conn.Close()
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to register connection",
		})
		return
	}

	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	conn.Serve()
	h.logger.Infof("SSE connection %s disconnected", conn.ID())
}

// GetConnections returns information about SSE connections
func (h *ServerSentEventHandler) GetConnections(c *gin.Context) {
	connections := h.hub.GetConnectionsByType("sse")
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
		"hub_running":       h.hub.IsRunning(),
	})
}
