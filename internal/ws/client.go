package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// sendBuffer bounds the frames queued for one socket. A consumer that falls
// this far behind is disconnected.
const sendBuffer = 64

// clientConn serialises writes; gorilla allows one concurrent writer.
type clientConn struct {
	rawConn   *websocket.Conn
	mu        sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
	send      chan []byte
}

func newClientConn(raw *websocket.Conn) *clientConn {
	return &clientConn{rawConn: raw, done: make(chan struct{}), send: make(chan []byte, sendBuffer)}
}

// enqueue never blocks. It reports false when the socket is closed or its
// queue is full.
func (c *clientConn) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *clientConn) write(mt int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.rawConn.WriteMessage(mt, data)
}

func (c *clientConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.rawConn.WriteJSON(v)
}

func (c *clientConn) ping() error {
	return c.rawConn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *clientConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.rawConn.Close()
	})
}
