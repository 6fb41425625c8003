package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-issue-relay/internal/infrastructure/gitlab"
	"go-issue-relay/internal/infrastructure/session"
	"go-issue-relay/internal/port/inbound"
)

// credentials reads the signed-in user's token and selected project from
// the request's session. Anonymous requests get empty credentials.
func credentials(c *gin.Context) inbound.Credentials {
	sess := session.FromContext(c)
	if sess == nil {
		return inbound.Credentials{}
	}
	return inbound.Credentials{Token: sess.AccessToken, ProjectID: sess.ProjectID}
}

// respondError maps use case and upstream errors onto status codes.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, inbound.ErrUnauthenticated):
		c.String(http.StatusUnauthorized, "User not logged in")
	case errors.Is(err, inbound.ErrIssueNotFound):
		c.String(http.StatusNotFound, "Issue not found")
	case errors.Is(err, inbound.ErrInvalidComment):
		c.String(http.StatusBadRequest, "Invalid comment")
	case errors.Is(err, inbound.ErrNoProject):
		c.String(http.StatusBadRequest, "No project selected")
	case gitlab.IsUnauthorized(err):
		c.String(http.StatusUnauthorized, "Provider rejected the access token")
	case gitlab.IsNotFound(err):
		c.String(http.StatusNotFound, "Not found")
	case errors.As(err, new(*gitlab.APIError)):
		c.String(http.StatusBadGateway, "Provider request failed")
	default:
		c.String(http.StatusInternalServerError, "Internal server error")
	}
}
