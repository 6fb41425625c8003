package sse

import (
	"github.com/gin-gonic/gin"

	"go-issue-relay/internal/infrastructure/hub"
	"go-issue-relay/internal/infrastructure/logger"
)

func InitSSERouter(logger logger.Logger, hubInstance *hub.Hub, sendBuffer int, rg *gin.RouterGroup) {
	sseHandler := NewServerSentEventHandler(hubInstance, logger, sendBuffer)

	rg.GET("/sse", sseHandler.Connect)

	apiGroup := rg.Group("/api/v1/sse")
	apiGroup.GET("/connections", sseHandler.GetConnections)
}
