package ws

import (
	"net/http"
	"sync"
	"time"

	"payway/internal/status"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// NewUpgrader returns an upgrader that accepts requests whose Origin passes
// allowed. Requests without an Origin header (non-browser clients) are accepted.
func NewUpgrader(allowed func(origin string) bool) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowed == nil {
				return true
			}
			return allowed(origin)
		},
	}
}

// StatusConn writes status results to one WebSocket connection.
type StatusConn struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
}

func NewStatusConn(conn *websocket.Conn) *StatusConn {
	return &StatusConn{conn: conn}
}

// Send writes res as a JSON text frame.
func (c *StatusConn) Send(res status.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(res)
}

// ReadPump discards client frames and calls onClose once the connection fails,
// which is how a client going away is noticed.
func (c *StatusConn) ReadPump(onClose func()) {
	defer onClose()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// PingLoop keeps idle connections alive until done is closed.
func (c *StatusConn) PingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// Close sends a close frame with code and text, then closes the connection.
func (c *StatusConn) Close(code int, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	msg := websocket.FormatCloseMessage(code, text)
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.conn.Close()
}
