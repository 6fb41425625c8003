package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-issue-relay/internal/infrastructure/logger"
)

const defaultCleanupInterval = 30 * time.Second

// Hub owns the membership set of live client connections and fans messages
// out to them. It holds no history: a connection only receives messages
// broadcast while it is registered.
type Hub struct {
	connections   map[string]Connection
	connectionsMu sync.RWMutex

	// broadcastMu serializes fan-outs so every connection observes
	// broadcasts in the order the Broadcast calls were made.
	broadcastMu sync.Mutex

	running   bool
	runningMu sync.RWMutex

	logger    logger.Logger
	validator *MessageValidator

	cleanupInterval time.Duration

	// Context for graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Hub instance
func New(logger logger.Logger) *Hub {
	return &Hub{
		connections:     make(map[string]Connection),
		logger:          logger.WithField("component", "hub"),
		validator:       NewMessageValidator(),
		cleanupInterval: defaultCleanupInterval,
	}
}

// Start starts the hub and its background cleanup loop
func (h *Hub) Start(ctx context.Context) error {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()

	if h.running {
		return fmt.Errorf("hub is already running")
	}

	h.ctx, h.cancel = context.WithCancel(ctx)
	h.running = true

	go h.run(h.ctx)

	h.logger.Info("Hub started successfully")
	return nil
}

// Stop gracefully stops the hub and disconnects all connections
func (h *Hub) Stop(ctx context.Context) error {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()

	if !h.running {
		return nil
	}

	h.cancel()

	h.connectionsMu.Lock()
	connections := h.connections
	h.connections = make(map[string]Connection)
	h.connectionsMu.Unlock()

	for _, conn := range connections {
		if err := conn.Close(); err != nil {
			h.logger.Errorf("Failed to close connection %s: %v", conn.ID(), err)
		}
	}

	h.running = false
	h.logger.Infof("Hub stopped successfully, closed %d connections", len(connections))
	return nil
}

// IsRunning returns true if the hub is currently running
func (h *Hub) IsRunning() bool {
	h.runningMu.RLock()
	defer h.runningMu.RUnlock()
	return h.running
}

// RegisterConnection adds a connection to the membership set. No backlog is
// sent; the connection receives only what is broadcast from now on.
func (h *Hub) RegisterConnection(conn Connection) error {
	if !h.IsRunning() {
		return ErrHubNotRunning
	}
	if conn.IsClosed() {
		return fmt.Errorf("registering %s: %w", conn.ID(), ErrConnectionClosed)
	}

	h.connectionsMu.Lock()
	h.connections[conn.ID()] = conn
	count := len(h.connections)
	h.connectionsMu.Unlock()

	h.logger.Infof("Connection %s registered (type: %s, total: %d)", conn.ID(), conn.Type(), count)

	// Drop the connection the moment its transport goes away.
	go func() {
		select {
		case <-conn.Context().Done():
			h.UnregisterConnection(conn.ID())
		case <-h.ctx.Done():
		}
	}()

	return nil
}

// UnregisterConnection removes a connection from the hub and closes it.
// Unknown or already removed ids are ignored.
func (h *Hub) UnregisterConnection(connID string) {
	h.connectionsMu.Lock()
	conn, exists := h.connections[connID]
	if exists {
		delete(h.connections, connID)
	}
	h.connectionsMu.Unlock()

	if !exists {
		return
	}

	if err := conn.Close(); err != nil {
		h.logger.Warnf("Closing connection %s: %v", connID, err)
	}
	h.logger.Infof("Connection %s unregistered", connID)
}

// GetConnection returns a connection by ID
func (h *Hub) GetConnection(connID string) (Connection, bool) {
	h.connectionsMu.RLock()
	defer h.connectionsMu.RUnlock()

	conn, exists := h.connections[connID]
	return conn, exists
}

// GetConnections returns all active connections
func (h *Hub) GetConnections() []Connection {
	h.connectionsMu.RLock()
	defer h.connectionsMu.RUnlock()

	connections := make([]Connection, 0, len(h.connections))
	for _, conn := range h.connections {
		connections = append(connections, conn)
	}
	return connections
}

// GetConnectionsByType returns connections of a specific type
func (h *Hub) GetConnectionsByType(connType string) []Connection {
	h.connectionsMu.RLock()
	defer h.connectionsMu.RUnlock()

	var connections []Connection
	for _, conn := range h.connections {
		if conn.Type() == connType {
			connections = append(connections, conn)
		}
	}
	return connections
}

// ConnectionCount returns the number of active connections
func (h *Hub) ConnectionCount() int {
	h.connectionsMu.RLock()
	defer h.connectionsMu.RUnlock()
	return len(h.connections)
}

// Broadcast serializes the message once and hands it to every registered
// connection. A connection whose Send fails is unregistered; the others
// still receive the message. It returns the number of connections the
// message was queued for.
func (h *Hub) Broadcast(ctx context.Context, message *Message) (int, error) {
	if !h.IsRunning() {
		return 0, ErrHubNotRunning
	}
	if err := h.validator.Validate(message); err != nil {
		return 0, err
	}

	h.broadcastMu.Lock()
	defer h.broadcastMu.Unlock()

	// The read lock is held across the sends so a connection cannot be
	// removed and then written to within the same fan-out.
	var failed []string
	delivered := 0
	h.connectionsMu.RLock()
	total := len(h.connections)
	for id, conn := range h.connections {
		if err := conn.Send(ctx, message); err != nil {
			h.logger.Warnf("Failed to send message %s to connection %s: %v", message.ID, id, err)
			failed = append(failed, id)
			continue
		}
		delivered++
	}
	h.connectionsMu.RUnlock()

	for _, id := range failed {
		h.UnregisterConnection(id)
	}

	h.logger.Debugf("Broadcasted message %s (%s) to %d/%d connections", message.ID, message.Type, delivered, total)
	return delivered, nil
}

// run periodically sweeps connections that closed without being
// unregistered.
func (h *Hub) run(ctx context.Context) {
	ticker := time.NewTicker(h.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.cleanupClosedConnections()

		case <-ctx.Done():
			h.logger.Info("Hub run loop stopped")
			return
		}
	}
}

// cleanupClosedConnections removes connections that have been closed
func (h *Hub) cleanupClosedConnections() {
	h.connectionsMu.Lock()
	defer h.connectionsMu.Unlock()

	for id, conn := range h.connections {
		if conn.IsClosed() {
			delete(h.connections, id)
			h.logger.Infof("Cleaned up closed connection %s", id)
		}
	}
}
