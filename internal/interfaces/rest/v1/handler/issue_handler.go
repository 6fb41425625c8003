package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"go-issue-relay/internal/infrastructure/logger"
	"go-issue-relay/internal/infrastructure/session"
	"go-issue-relay/internal/port/inbound"
)

// SessionSaver persists changes to the request's session.
type SessionSaver interface {
	Save(c *gin.Context, sess *session.Session) error
}

type IssueHandler struct {
	issues   inbound.IssueUseCase
	sessions SessionSaver
	logger   logger.Logger
}

type CommentRequest struct {
	Comment *string `json:"comment"`
}

func NewIssueHandler(issues inbound.IssueUseCase, sessions SessionSaver, log logger.Logger) *IssueHandler {
	return &IssueHandler{
		issues:   issues,
		sessions: sessions,
		logger:   log.WithField("handler", "issues"),
	}
}

func (h *IssueHandler) Close(c *gin.Context) {
	issueID, ok := issueIDParam(c)
	if !ok {
		return
	}

	closed, err := h.issues.CloseIssue(c.Request.Context(), credentials(c), issueID)
	if err != nil {
		h.logger.Warnf("Failed to close issue %d: %v", issueID, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, closed)
}

func (h *IssueHandler) Comment(c *gin.Context) {
	issueID, ok := issueIDParam(c)
	if !ok {
		return
	}

	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Comment == nil {
		c.String(http.StatusBadRequest, "Invalid comment")
		return
	}

	note, err := h.issues.CommentOnIssue(c.Request.Context(), credentials(c), issueID, *req.Comment)
	if err != nil {
		h.logger.Warnf("Failed to comment on issue %d: %v", issueID, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, note)
}

func (h *IssueHandler) Projects(c *gin.Context) {
	projects, err := h.issues.ListProjects(c.Request.Context(), credentials(c))
	if err != nil {
		h.logger.Warnf("Failed to list projects: %v", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, projects)
}

// RegisterWebhook installs the relay's webhook on a project and makes it
// the session's selected project.
func (h *IssueHandler) RegisterWebhook(c *gin.Context) {
	projectID := c.Param("id")

	hook, err := h.issues.RegisterWebhook(c.Request.Context(), credentials(c), projectID)
	if err != nil {
		h.logger.Warnf("Failed to register webhook on project %s: %v", projectID, err)
		respondError(c, err)
		return
	}

	if sess := session.FromContext(c); sess != nil {
		sess.ProjectID = projectID
		if err := h.sessions.Save(c, sess); err != nil {
			h.logger.Errorf("Failed to remember project %s in session: %v", projectID, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"webhook": hook,
	})
}

func issueIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid issue id")
		return 0, false
	}
	return id, true
}
