package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrHubNotRunning    = errors.New("hub is not running")
	ErrConnectionClosed = errors.New("connection is closed")
	ErrSendBufferFull   = errors.New("connection send buffer is full")
)

// Connection represents any type of client connection (WebSocket, SSE, ...).
// Send must not block on the network: implementations queue the message and
// deliver it from their own goroutine, so one slow client cannot hold up a
// broadcast to the others.
type Connection interface {
	ID() string
	Type() string
	Send(ctx context.Context, message *Message) error
	Close() error
	IsClosed() bool
	Context() context.Context
}

// Message is one server-to-client message. Data is serialized to JSON
// exactly once, however many connections the message is sent to.
type Message struct {
	ID   string
	Type string
	Data any

	encodeOnce sync.Once
	payload    []byte
	encodeErr  error
}

// Encode returns the JSON payload for the message, serializing Data on the
// first call.
func (m *Message) Encode() ([]byte, error) {
	m.encodeOnce.Do(func() {
		switch v := m.Data.(type) {
		case []byte:
			m.payload = v
		case json.RawMessage:
			m.payload = v
		default:
			m.payload, m.encodeErr = json.Marshal(v)
			if m.encodeErr != nil {
				m.encodeErr = fmt.Errorf("encoding message %s: %w", m.ID, m.encodeErr)
			}
		}
	})
	return m.payload, m.encodeErr
}
