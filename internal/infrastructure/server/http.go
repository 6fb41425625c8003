package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"go-issue-relay/internal/infrastructure/logger"
)

// Options configure the HTTP listener. A zero WriteTimeout leaves
// long-lived streams (WebSocket, SSE) unbounded.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type HTTPServer struct {
	handler http.Handler
	options Options
	logger  logger.Logger

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

var _ Server = (*HTTPServer)(nil)

func NewHTTPServer(handler http.Handler, options Options, logger logger.Logger) *HTTPServer {
	return &HTTPServer{
		handler: handler,
		options: options,
		logger:  logger.WithField("component", "http"),
	}
}

// Listen binds the listening socket without serving. Start calls it when
// the caller has not.
func (h *HTTPServer) Listen() (net.Addr, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.listener != nil {
		return h.listener.Addr(), nil
	}

	listener, err := net.Listen("tcp", h.options.Addr)
	if err != nil {
		return nil, err
	}
	h.listener = listener
	return listener.Addr(), nil
}

// Start serves until Stop is called. It returns nil after a graceful
// shutdown.
func (h *HTTPServer) Start(ctx context.Context) error {
	addr, err := h.Listen()
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.srv = &http.Server{
		Handler:      h.handler,
		ReadTimeout:  h.options.ReadTimeout,
		WriteTimeout: h.options.WriteTimeout,
		IdleTimeout:  h.options.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	srv, listener := h.srv, h.listener
	h.mu.Unlock()

	h.logger.Infof("HTTP server listening on %s", addr)

	err = srv.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (h *HTTPServer) Stop(ctx context.Context) error {
	h.mu.Lock()
	srv, listener := h.srv, h.listener
	h.mu.Unlock()

	if srv == nil {
		if listener != nil {
			return listener.Close()
		}
		return nil
	}
	return srv.Shutdown(ctx)
}
