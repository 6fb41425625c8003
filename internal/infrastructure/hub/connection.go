package hub

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gorilla/websocket"

	"go-issue-relay/internal/infrastructure/logger"
)

const (
	DefaultSendBuffer = 256

	writeTimeout      = 10 * time.Second
	pongTimeout       = 60 * time.Second
	pingInterval      = 54 * time.Second
	keepAliveInterval = 30 * time.Second

	// Clients never need to send anything but control frames.
	maxClientMessageSize = 512
)

// queue is the buffered outbox shared by both connection types. Enqueue
// never blocks; a full buffer means the client is not keeping up.
type queue struct {
	ctx    context.Context
	cancel context.CancelFunc

	closed   bool
	closedMu sync.RWMutex

	send chan *Message
}

func (q *queue) init(ctx context.Context, size int) {
	if size <= 0 {
		size = DefaultSendBuffer
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.send = make(chan *Message, size)
}

func (q *queue) enqueue(message *Message) error {
	q.closedMu.RLock()
	defer q.closedMu.RUnlock()

	if q.closed {
		return ErrConnectionClosed
	}

	select {
	case q.send <- message:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// markClosed reports whether this call performed the close.
func (q *queue) markClosed() bool {
	q.closedMu.Lock()
	defer q.closedMu.Unlock()

	if q.closed {
		return false
	}
	q.closed = true
	q.cancel()
	return true
}

func (q *queue) isClosed() bool {
	q.closedMu.RLock()
	defer q.closedMu.RUnlock()
	return q.closed
}

// SSEConnection implements the Connection interface for Server-Sent Events.
// The owning HTTP handler must call Serve; it is the only writer to the
// response.
type SSEConnection struct {
	queue

	id     string
	writer http.ResponseWriter
	logger logger.Logger
}

// NewSSEConnection creates a new SSE connection bound to ctx, normally the
// request context.
func NewSSEConnection(
	ctx context.Context,
	id string,
	w http.ResponseWriter,
	logger logger.Logger,
	bufferSize int,
) *SSEConnection {
	conn := &SSEConnection{
		id:     id,
		writer: w,
		logger: logger.WithField("connection_id", id),
	}
	conn.init(ctx, bufferSize)

	conn.setupSSEHeaders()
	return conn
}

// ID returns unique connection identifier
func (c *SSEConnection) ID() string {
	return c.id
}

// Type returns the connection type
func (c *SSEConnection) Type() string {
	return "sse"
}

// Send queues a message for delivery
func (c *SSEConnection) Send(_ context.Context, message *Message) error {
	return c.enqueue(message)
}

// Close gracefully closes the connection
func (c *SSEConnection) Close() error {
	if c.markClosed() {
		c.logger.Info("SSE connection closed")
	}
	return nil
}

// IsClosed returns true if connection is closed
func (c *SSEConnection) IsClosed() bool {
	return c.isClosed()
}

// Context returns the connection's context (for cancellation)
func (c *SSEConnection) Context() context.Context {
	return c.ctx
}

// Serve writes queued messages and periodic keep-alives to the response
// until the connection is closed or a write fails.
func (c *SSEConnection) Serve() {
	ticker := time.NewTicker(keepAliveInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.write(message); err != nil {
				c.logger.Errorf("Failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			keepAlive := NewMessageBuilder().
				WithType(MessageTypeKeepAlive).
				WithData(map[string]any{"timestamp": time.Now().Unix()}).
				Build()
			if err := c.write(keepAlive); err != nil {
				c.logger.Errorf("Failed to send keep-alive: %v", err)
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *SSEConnection) write(message *Message) error {
	payload, err := message.Encode()
	if err != nil {
		return err
	}

	// sse.Encode splits multi-line data into separate data fields.
	if err := sse.Encode(c.writer, sse.Event{
		Id:    message.ID,
		Event: message.Type,
		Data:  string(payload),
	}); err != nil {
		return err
	}

	if flusher, ok := c.writer.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

// setupSSEHeaders sets up the proper headers for SSE connection
func (c *SSEConnection) setupSSEHeaders() {
	c.writer.Header().Set("Content-Type", "text/event-stream")
	c.writer.Header().Set("Cache-Control", "no-cache")
	c.writer.Header().Set("Connection", "keep-alive")
	c.writer.Header().Set("X-Accel-Buffering", "no") // For nginx
}

// WebSocketConnection implements the Connection interface for WebSocket
// connections. Each message is written as a single text frame holding the
// message payload.
type WebSocketConnection struct {
	queue

	id     string
	conn   *websocket.Conn
	logger logger.Logger
}

// NewWebSocketConnection creates a new WebSocket connection and starts its
// read and write pumps.
func NewWebSocketConnection(
	ctx context.Context,
	id string,
	conn *websocket.Conn,
	logger logger.Logger,
	bufferSize int,
) *WebSocketConnection {
	wsConn := &WebSocketConnection{
		id:     id,
		conn:   conn,
		logger: logger.WithField("connection_id", id),
	}
	wsConn.init(ctx, bufferSize)

	wsConn.setupWebSocket()

	go wsConn.writePump()
	go wsConn.readPump()

	return wsConn
}

// ID returns unique connection identifier
func (c *WebSocketConnection) ID() string {
	return c.id
}

// Type returns the connection type
func (c *WebSocketConnection) Type() string {
	return "websocket"
}

// Send queues a message for the write pump
func (c *WebSocketConnection) Send(_ context.Context, message *Message) error {
	return c.enqueue(message)
}

// Close marks the connection closed. The write pump sends the close frame
// and releases the socket.
func (c *WebSocketConnection) Close() error {
	if c.markClosed() {
		c.logger.Info("WebSocket connection closed")
	}
	return nil
}

// IsClosed returns true if connection is closed
func (c *WebSocketConnection) IsClosed() bool {
	return c.isClosed()
}

// Context returns the connection's context (for cancellation)
func (c *WebSocketConnection) Context() context.Context {
	return c.ctx
}

func (c *WebSocketConnection) setupWebSocket() {
	c.conn.SetReadLimit(maxClientMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
}

// writePump is the only goroutine writing to the socket
func (c *WebSocketConnection) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			payload, err := message.Encode()
			if err != nil {
				c.logger.Errorf("Failed to encode message %s: %v", message.ID, err)
				continue
			}

			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Errorf("Failed to write message: %v", err)
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Errorf("Failed to send ping: %v", err)
				c.Close()
				return
			}

		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			c.conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			)
			return
		}
	}
}

// readPump drains client frames so control messages are processed and a
// dropped peer is noticed.
func (c *WebSocketConnection) readPump() {
	defer c.Close()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseAbnormalClosure,
			) {
				c.logger.Warnf("WebSocket error: %v", err)
			}
			return
		}
	}
}
