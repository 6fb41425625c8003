package handler

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"go-issue-relay/internal/infrastructure/logger"
	"go-issue-relay/internal/infrastructure/session"
	"go-issue-relay/internal/port/outbound"
)

// OAuthFlow is the provider side of the authorization code flow.
type OAuthFlow interface {
	Enabled() bool
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// SessionManager starts, saves and ends request sessions.
type SessionManager interface {
	SessionSaver
	Ensure(c *gin.Context) (*session.Session, error)
	Renew(c *gin.Context, sess *session.Session) (*session.Session, error)
	Destroy(c *gin.Context) error
}

type AuthHandler struct {
	oauth      OAuthFlow
	sessions   SessionManager
	trackerFor outbound.TrackerFor
	logger     logger.Logger
}

func NewAuthHandler(oauth OAuthFlow, sessions SessionManager, trackerFor outbound.TrackerFor, log logger.Logger) *AuthHandler {
	return &AuthHandler{
		oauth:      oauth,
		sessions:   sessions,
		trackerFor: trackerFor,
		logger:     log.WithField("handler", "auth"),
	}
}

// Login redirects to the provider's authorization page.
func (h *AuthHandler) Login(c *gin.Context) {
	if !h.oauth.Enabled() {
		c.String(http.StatusServiceUnavailable, "OAuth login is not configured")
		return
	}

	sess, err := h.sessions.Ensure(c)
	if err != nil {
		h.logger.Errorf("Failed to start session: %v", err)
		c.String(http.StatusInternalServerError, "Failed to start login")
		return
	}

	sess.OAuthState = uuid.NewString()
	if err := h.sessions.Save(c, sess); err != nil {
		h.logger.Errorf("Failed to save session: %v", err)
		c.String(http.StatusInternalServerError, "Failed to start login")
		return
	}

	c.Redirect(http.StatusFound, h.oauth.AuthCodeURL(sess.OAuthState))
}

// Callback completes the login started by Login.
func (h *AuthHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.String(http.StatusBadRequest, "Missing OAuth code")
		return
	}

	sess := session.FromContext(c)
	state := c.Query("state")
	if sess == nil || sess.OAuthState == "" ||
		subtle.ConstantTimeCompare([]byte(state), []byte(sess.OAuthState)) != 1 {
		h.logger.Warnf("Rejected OAuth callback from %s: state mismatch", c.ClientIP())
		c.String(http.StatusBadRequest, "Invalid OAuth state")
		return
	}

	token, err := h.oauth.Exchange(c.Request.Context(), code)
	if err != nil {
		h.logger.Errorf("OAuth exchange failed: %v", err)
		c.String(http.StatusBadGateway, "OAuth failed")
		return
	}

	user, err := h.trackerFor(token.AccessToken).CurrentUser(c.Request.Context())
	if err != nil {
		h.logger.Errorf("Failed to fetch signed-in user: %v", err)
		c.String(http.StatusBadGateway, "OAuth failed")
		return
	}

	sess.AccessToken = token.AccessToken
	sess.OAuthState = ""
	sess.User = &session.User{
		ID:        user.ID,
		Username:  user.Username,
		Name:      user.Name,
		AvatarURL: user.AvatarURL,
	}
	if _, err := h.sessions.Renew(c, sess); err != nil {
		h.logger.Errorf("Failed to renew session: %v", err)
		c.String(http.StatusInternalServerError, "OAuth failed")
		return
	}

	h.logger.Infof("Logged in as %s", user.Username)
	c.Redirect(http.StatusFound, "/")
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.sessions.Destroy(c); err != nil {
		h.logger.Errorf("Failed to destroy session: %v", err)
		c.String(http.StatusInternalServerError, "Failed to log out")
		return
	}
	c.Redirect(http.StatusFound, "/")
}

// Me reports the signed-in user, if any.
func (h *AuthHandler) Me(c *gin.Context) {
	sess := session.FromContext(c)
	if !sess.LoggedIn() || sess.User == nil {
		c.JSON(http.StatusOK, gin.H{"loggedIn": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"loggedIn":   true,
		"username":   sess.User.Username,
		"name":       sess.User.Name,
		"avatar_url": sess.User.AvatarURL,
	})
}
