package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var errSendBufferFull = errors.New("send buffer full")

// clientConn wraps one live socket. Outbound frames go through a
// buffered channel drained by writePump, so callers never block on the
// peer; a full buffer drops the frame for this connection only.
type clientConn struct {
	id      string
	rawConn *websocket.Conn
	send    chan []byte

	closeOnce sync.Once
}

func newClientConn(id string, rawConn *websocket.Conn, sendBuffer int) *clientConn {
	return &clientConn{
		id:      id,
		rawConn: rawConn,
		send:    make(chan []byte, sendBuffer),
	}
}

// enqueue hands a pre-marshalled frame to the writer.
func (c *clientConn) enqueue(frame []byte) error {
	select {
	case c.send <- frame:
		return nil
	default:
		return errSendBufferFull
	}
}

// enqueueJSON marshals an envelope and enqueues it.
func (c *clientConn) enqueueJSON(v any) error {
	frame, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.enqueue(frame)
}

// writePump is the only goroutine allowed to write to the socket. It
// drains the send buffer and keeps the peer alive with periodic pings.
func (c *clientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.rawConn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.rawConn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.rawConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *clientConn) close() {
	c.closeOnce.Do(func() {
		_ = c.rawConn.Close()
	})
}

// ConnTable maps connection ids to live sockets and implements
// rooms.Deliverer: a push is a marshal plus a non-blocking enqueue.
type ConnTable struct {
	mu    sync.RWMutex
	conns map[string]*clientConn
}

func NewConnTable() *ConnTable {
	return &ConnTable{conns: make(map[string]*clientConn)}
}

// Deliver pushes one event frame to one connection. Unknown ids are
// dropped silently: the socket raced away between snapshot and push.
func (t *ConnTable) Deliver(connID, event string, payload any) error {
	t.mu.RLock()
	c := t.conns[connID]
	t.mu.RUnlock()
	if c == nil {
		return nil
	}
	return c.enqueueJSON(pushFrame{Event: event, Body: payload})
}

func (t *ConnTable) add(c *clientConn) {
	t.mu.Lock()
	t.conns[c.id] = c
	t.mu.Unlock()
}

func (t *ConnTable) remove(connID string) {
	t.mu.Lock()
	delete(t.conns, connID)
	t.mu.Unlock()
}
