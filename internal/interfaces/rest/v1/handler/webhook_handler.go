package handler

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-issue-relay/internal/domain/event"
	"go-issue-relay/internal/infrastructure/logger"
	"go-issue-relay/internal/port/inbound"
)

const (
	// HeaderProviderToken carries the shared webhook secret.
	HeaderProviderToken = "X-Provider-Token"
	// HeaderGitLabToken is GitLab's native name for the same header.
	HeaderGitLabToken = "X-Gitlab-Token"
)

type WebhookHandler struct {
	relay        inbound.RelayUseCase
	secret       []byte
	maxBodyBytes int64
	logger       logger.Logger
}

func NewWebhookHandler(relay inbound.RelayUseCase, secret string, maxBodyBytes int64, log logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		relay:        relay,
		secret:       []byte(secret),
		maxBodyBytes: maxBodyBytes,
		logger:       log.WithField("handler", "webhook"),
	}
}

// Receive authenticates a provider delivery and relays its events. Any
// authenticated delivery is acknowledged with 200, including ones that
// carry nothing to relay, so the provider does not retry them.
func (h *WebhookHandler) Receive(c *gin.Context) {
	if !h.authenticate(c.Request) {
		h.logger.Warnf("Rejected webhook from %s: invalid token", c.ClientIP())
		c.String(http.StatusUnauthorized, "Unauthorized")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxBodyBytes+1))
	if err != nil {
		h.logger.Warnf("Failed to read webhook body: %v", err)
		c.String(http.StatusOK, "OK")
		return
	}
	if int64(len(body)) > h.maxBodyBytes {
		h.logger.Warnf("Ignoring webhook body larger than %d bytes", h.maxBodyBytes)
		c.String(http.StatusOK, "OK")
		return
	}

	kind := event.ObjectKind(body)
	n, err := h.relay.Ingest(c.Request.Context(), body)
	switch {
	case errors.Is(err, event.ErrUnrecognizedKind):
		h.logger.Infof("Ignoring webhook of kind %q", kind)
	case err != nil:
		h.logger.Warnf("Webhook of kind %q relayed with errors: %v", kind, err)
	default:
		h.logger.Infof("Webhook of kind %q relayed as %d events", kind, n)
	}

	c.String(http.StatusOK, "OK")
}

// authenticate fails closed when no secret is configured.
func (h *WebhookHandler) authenticate(r *http.Request) bool {
	if len(h.secret) == 0 {
		return false
	}

	token := r.Header.Get(HeaderProviderToken)
	if token == "" {
		token = r.Header.Get(HeaderGitLabToken)
	}
	return subtle.ConstantTimeCompare([]byte(token), h.secret) == 1
}
