package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-issue-relay/internal/port/inbound"
)

type SnapshotHandler struct {
	snapshots inbound.SnapshotUseCase
}

func NewSnapshotHandler(snapshots inbound.SnapshotUseCase) *SnapshotHandler {
	return &SnapshotHandler{snapshots: snapshots}
}

// Issues returns every open issue. Clients call it after each reconnect,
// so responses must never be cached.
func (h *SnapshotHandler) Issues(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, h.snapshots.OpenIssues(c.Request.Context(), credentials(c)))
}

func (h *SnapshotHandler) Commits(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, h.snapshots.RecentCommits(c.Request.Context(), credentials(c)))
}
