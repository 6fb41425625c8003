package websocket

import (
	"github.com/gin-gonic/gin"

	"go-issue-relay/internal/infrastructure/hub"
	"go-issue-relay/internal/infrastructure/logger"
)

// InitWebSocketRouter mounts the event stream at /ws. Upgrade requests to
// the root path are accepted too; other root requests fall through to the
// next handler in the chain.
func InitWebSocketRouter(logger logger.Logger, hubInstance *hub.Hub, sendBuffer int, rg *gin.RouterGroup) *WebSocketHandler {
	wsHandler := NewWebSocketHandler(hubInstance, logger, sendBuffer)

	rg.GET("/ws", wsHandler.Connect)

	apiGroup := rg.Group("/api/v1/ws")
	apiGroup.GET("/connections", wsHandler.GetConnections)

	return wsHandler
}
