package server

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn adapts a websocket connection to party.Conn. gorilla/websocket
// allows one concurrent writer, so writes are serialized here.
type wsConn struct {
	id           string
	ws           *websocket.Conn
	writeTimeout time.Duration

	mu sync.Mutex
}

func newConn(id string, ws *websocket.Conn, writeTimeout time.Duration) *wsConn {
	return &wsConn{
		id:           id,
		ws:           ws,
		writeTimeout: writeTimeout,
	}
}

func (c *wsConn) ID() string {
	return c.id
}

// Send writes one text frame, bounded by the write timeout and any earlier
// context deadline.
func (c *wsConn) Send(ctx context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.ws.SetWriteDeadline(c.deadline(ctx)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// ping sends a ping control frame. WriteControl is safe alongside Send.
func (c *wsConn) ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

// close sends a close frame with code and reason.
func (c *wsConn) close(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
}

func (c *wsConn) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		return d
	}
	return deadline
}
