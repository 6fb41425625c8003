package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go-issue-relay/internal/infrastructure/logger"
)

const contextKey = "session"

// Store is the persistence the Manager needs.
type Store interface {
	Create(ctx context.Context, ttl time.Duration) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, sess *Session) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type ManagerOptions struct {
	CookieName string
	TTL        time.Duration
	// Secure marks the cookie HTTPS-only.
	Secure bool
}

// Manager binds sessions to requests through a signed cookie.
type Manager struct {
	store   Store
	signer  *TokenSigner
	options ManagerOptions
	logger  logger.Logger
}

func NewManager(store Store, signer *TokenSigner, options ManagerOptions, logger logger.Logger) *Manager {
	return &Manager{
		store:   store,
		signer:  signer,
		options: options,
		logger:  logger.WithField("component", "session"),
	}
}

// Middleware loads the request's session, if any, into the gin context.
// Requests without a valid cookie proceed anonymously.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if sess := m.load(c); sess != nil {
			c.Set(contextKey, sess)
		}
		c.Next()
	}
}

func (m *Manager) load(c *gin.Context) *Session {
	cookie, err := c.Cookie(m.options.CookieName)
	if err != nil || cookie == "" {
		return nil
	}

	id, err := m.signer.Parse(cookie)
	if err != nil {
		m.logger.Debugf("Ignoring session cookie: %v", err)
		return nil
	}

	sess, err := m.store.Get(c.Request.Context(), id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.logger.Warnf("Failed to load session %s: %v", id, err)
		}
		return nil
	}
	return sess
}

// FromContext returns the session Middleware attached, or nil.
func FromContext(c *gin.Context) *Session {
	value, ok := c.Get(contextKey)
	if !ok {
		return nil
	}
	sess, _ := value.(*Session)
	return sess
}

// Ensure returns the request's session, starting one and setting the
// cookie when there is none.
func (m *Manager) Ensure(c *gin.Context) (*Session, error) {
	if sess := FromContext(c); sess != nil {
		return sess, nil
	}

	sess, err := m.store.Create(c.Request.Context(), m.options.TTL)
	if err != nil {
		return nil, err
	}

	token, err := m.signer.Issue(sess.ID)
	if err != nil {
		return nil, err
	}

	m.setCookie(c, token, int(m.options.TTL/time.Second))
	c.Set(contextKey, sess)
	return sess, nil
}

func (m *Manager) Save(c *gin.Context, sess *Session) error {
	return m.store.Save(c.Request.Context(), sess)
}

// Renew moves sess to a fresh id and reissues the cookie. The old id stops
// resolving. Login calls it once the provider token is stored.
func (m *Manager) Renew(c *gin.Context, sess *Session) (*Session, error) {
	ctx := c.Request.Context()

	renewed, err := m.store.Create(ctx, m.options.TTL)
	if err != nil {
		return nil, err
	}
	renewed.AccessToken = sess.AccessToken
	renewed.User = sess.User
	renewed.ProjectID = sess.ProjectID
	renewed.OAuthState = sess.OAuthState
	if err := m.store.Save(ctx, renewed); err != nil {
		return nil, err
	}

	token, err := m.signer.Issue(renewed.ID)
	if err != nil {
		return nil, err
	}

	if sess.ID != "" {
		if err := m.store.Delete(ctx, sess.ID); err != nil && !errors.Is(err, ErrNotFound) {
			m.logger.Warnf("Failed to delete replaced session %s: %v", sess.ID, err)
		}
	}

	m.setCookie(c, token, int(m.options.TTL/time.Second))
	c.Set(contextKey, renewed)
	return renewed, nil
}

// Destroy deletes the request's session and clears the cookie.
func (m *Manager) Destroy(c *gin.Context) error {
	m.setCookie(c, "", -1)

	sess := FromContext(c)
	if sess == nil {
		return nil
	}
	return m.store.Delete(c.Request.Context(), sess.ID)
}

func (m *Manager) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.options.CookieName, value, maxAge, "/", "", m.options.Secure, true)
}

// RunCleanup deletes expired sessions every interval until ctx is done.
func (m *Manager) RunCleanup(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := m.store.DeleteExpired(ctx)
			if err != nil {
				m.logger.Warnf("Session cleanup failed: %v", err)
				continue
			}
			if n > 0 {
				m.logger.Infof("Removed %d expired sessions", n)
			}
		}
	}
}
