package sscp

import (
	"context"
	"errors"

	"github.com/gorilla/websocket"
)

// Transport carries whole frames. Implementations must honor context deadlines and cancellation.
type Transport interface {
	// ReadFrame blocks until the next frame arrives or ctx is done.
	ReadFrame(ctx context.Context) ([]byte, error)
	// WriteFrame writes one frame.
	WriteFrame(ctx context.Context, b []byte) error
	// Close closes the underlying channel and unblocks pending reads.
	Close() error
}

// MessageConn is a context-aware websocket message connection (realtime/ws.Conn satisfies it).
type MessageConn interface {
	ReadMessage(ctx context.Context) (messageType int, b []byte, err error)
	WriteMessage(ctx context.Context, messageType int, b []byte) error
	Close() error
}

var errTextMessage = errors.New("unexpected websocket text message")

// WebSocketTransport adapts a websocket message connection to Transport.
// Only binary messages are frames; a text message is a protocol error.
type WebSocketTransport struct {
	c MessageConn
}

// NewWebSocketTransport wraps c.
func NewWebSocketTransport(c MessageConn) *WebSocketTransport {
	return &WebSocketTransport{c: c}
}

func (t *WebSocketTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	for {
		mt, b, err := t.c.ReadMessage(ctx)
		if err != nil {
			return nil, err
		}
		switch mt {
		case websocket.BinaryMessage:
			return b, nil
		case websocket.TextMessage:
			return nil, errTextMessage
		default:
			continue
		}
	}
}

func (t *WebSocketTransport) WriteFrame(ctx context.Context, b []byte) error {
	return t.c.WriteMessage(ctx, websocket.BinaryMessage, b)
}

func (t *WebSocketTransport) Close() error {
	return t.c.Close()
}
