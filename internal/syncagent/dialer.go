package syncagent

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// Stream is an open relay connection.
type Stream interface {
	// ReadMessage blocks for the next server message.
	ReadMessage() ([]byte, error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context) (Stream, error)
}

// WebSocketDialer connects to a relay's WebSocket endpoint.
type WebSocketDialer struct {
	URL    string
	Header http.Header
	Dialer *websocket.Dialer
}

func (d *WebSocketDialer) Dial(ctx context.Context) (Stream, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.DialContext(ctx, d.URL, d.Header)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", d.URL, err)
	}
	return &webSocketStream{conn: conn}, nil
}

type webSocketStream struct {
	conn *websocket.Conn
}

func (s *webSocketStream) ReadMessage() ([]byte, error) {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType == websocket.TextMessage {
			return data, nil
		}
	}
}

func (s *webSocketStream) Close() error {
	return s.conn.Close()
}

// Endpoints derives the WebSocket URL and the snapshot base URL from a
// relay's base URL, e.g. "http://localhost:3000".
func Endpoints(base string) (streamURL, snapshotURL string, err error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", "", fmt.Errorf("parsing relay url: %w", err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "http"
	case "https", "wss":
		u.Scheme = "https"
	default:
		return "", "", fmt.Errorf("unsupported relay url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery = ""
	snapshotURL = u.String()

	ws := *u
	ws.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	ws.Path = u.Path + "/ws"
	return ws.String(), snapshotURL, nil
}
