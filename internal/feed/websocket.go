package feed

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// WebSocket streams chunks from a remote text-generation process over
// a websocket connection. Each text message is one chunk.
type WebSocket struct {
	conn   *websocket.Conn
	closed atomic.Bool
}

// DialWebSocket connects to a stream endpoint (ws:// or wss://).
func DialWebSocket(ctx context.Context, url string) (*WebSocket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &WebSocket{conn: conn}, nil
}

// Greet sends a text message to the remote endpoint before streaming
// begins. The run command uses it to deliver the active correction-mode
// instructions.
func (w *WebSocket) Greet(text string) error {
	if w.closed.Load() {
		return ErrClosed
	}
	return w.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// Next returns the next message payload. A normal remote close maps to
// io.EOF. Close from another goroutine unblocks a pending read, which
// then returns ErrClosed.
func (w *WebSocket) Next(ctx context.Context) (string, error) {
	if w.closed.Load() {
		return "", ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = w.conn.SetReadDeadline(deadline)
	}

	_, data, err := w.conn.ReadMessage()
	if err != nil {
		if w.closed.Load() {
			return "", ErrClosed
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return "", io.EOF
		}
		return "", fmt.Errorf("read message: %w", err)
	}
	return string(data), nil
}

// Close closes the connection after a best-effort close handshake.
func (w *WebSocket) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	_ = w.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	return w.conn.Close()
}
