package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-issue-relay/internal/infrastructure/hub"
	"go-issue-relay/internal/infrastructure/logger"
	"go-issue-relay/internal/infrastructure/ratelimit"
	"go-issue-relay/internal/infrastructure/session"
	"go-issue-relay/internal/interfaces/rest/v1/handler"
	"go-issue-relay/internal/interfaces/sse"
	"go-issue-relay/internal/interfaces/websocket"
	"go-issue-relay/internal/port/inbound"
	"go-issue-relay/internal/port/outbound"
)

// RouterDeps is everything the HTTP surface is built from.
type RouterDeps struct {
	Hub        *hub.Hub
	Relay      inbound.RelayUseCase
	Snapshots  inbound.SnapshotUseCase
	Issues     inbound.IssueUseCase
	OAuth      handler.OAuthFlow
	Sessions   *session.Manager
	TrackerFor outbound.TrackerFor

	// Limiter may be nil to disable rate limiting.
	Limiter *ratelimit.Limiter

	WebhookSecret       string
	WebhookMaxBodyBytes int64
	SendBuffer          int
	StaticDir           string
}

func InitRouter(deps RouterDeps, log logger.Logger) http.Handler {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	limit := func(c *gin.Context) { c.Next() }
	if deps.Limiter != nil {
		limit = deps.Limiter.Middleware()
	}

	rootGroup := router.Group("")

	// Health check endpoint
	rootGroup.GET("/hub/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"hub_running": deps.Hub.IsRunning(),
			"connections": deps.Hub.ConnectionCount(),
		})
	})

	// Never throttled: a rejected delivery is a lost event.
	webhookHandler := handler.NewWebhookHandler(deps.Relay, deps.WebhookSecret, deps.WebhookMaxBodyBytes, log)
	rootGroup.POST("/webhook", webhookHandler.Receive)

	// Everything below acts on behalf of the session's user, if any.
	sessionGroup := rootGroup.Group("", deps.Sessions.Middleware())

	snapshotHandler := handler.NewSnapshotHandler(deps.Snapshots)
	sessionGroup.GET("/issues", snapshotHandler.Issues)
	sessionGroup.GET("/commits", snapshotHandler.Commits)

	issueHandler := handler.NewIssueHandler(deps.Issues, deps.Sessions, log)
	controlGroup := sessionGroup.Group("", limit)
	{
		controlGroup.POST("/issues/:id/close", issueHandler.Close)
		controlGroup.POST("/issues/:id/comments", issueHandler.Comment)
		controlGroup.GET("/projects", issueHandler.Projects)
		controlGroup.POST("/projects/:id/webhook", issueHandler.RegisterWebhook)
	}

	authHandler := handler.NewAuthHandler(deps.OAuth, deps.Sessions, deps.TrackerFor, log)
	{
		controlGroup.GET("/auth/gitlab", authHandler.Login)
		controlGroup.GET("/oauth/callback", authHandler.Callback)
		sessionGroup.GET("/logout", authHandler.Logout)
		sessionGroup.GET("/me", authHandler.Me)
	}

	sse.InitSSERouter(log, deps.Hub, deps.SendBuffer, rootGroup)
	wsHandler := websocket.InitWebSocketRouter(log, deps.Hub, deps.SendBuffer, rootGroup)

	static := staticHandler(deps.StaticDir)
	rootGroup.GET("/", func(c *gin.Context) {
		if websocket.IsUpgrade(c) {
			wsHandler.Connect(c)
			return
		}
		static(c)
	})
	router.NoRoute(static)

	return router
}

// staticHandler serves GET and HEAD requests from dir. With no dir it
// answers 404.
func staticHandler(dir string) gin.HandlerFunc {
	if dir == "" {
		return func(c *gin.Context) {
			c.String(http.StatusNotFound, "Not found")
		}
	}

	fileServer := http.FileServer(gin.Dir(dir, false))
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.String(http.StatusNotFound, "Not found")
			return
		}
		fileServer.ServeHTTP(c.Writer, c.Request)
	}
}
