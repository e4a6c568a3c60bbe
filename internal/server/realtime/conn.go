// Package realtime carries server events to live websocket connections.
package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	readWait       = 60 * time.Second
	maxMessageSize = 1 << 20
	sendBuffer     = 128
)

var (
	ErrConnClosed = errors.New("connection closed")
	ErrBufferFull = errors.New("connection buffer exceeded")
)

type outbound struct {
	payload []byte
	close   bool
	code    int
	reason  string
}

// Conn wraps a websocket. Writes go through a bounded buffer drained by a
// single write loop; a client too slow to keep the buffer below its limit
// is disconnected rather than allowed to block producers. Conn is safe
// for concurrent use.
type Conn struct {
	ID string

	ws     *websocket.Conn
	send   chan outbound
	once   sync.Once
	closed chan struct{}
}

// NewConn configures read limits and keep-alive on ws. Call Start before
// sending.
func NewConn(ws *websocket.Conn) *Conn {
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(readWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readWait))
	})
	return &Conn{
		ID:     uuid.NewString(),
		ws:     ws,
		send:   make(chan outbound, sendBuffer),
		closed: make(chan struct{}),
	}
}

// Start launches the write loop. It must be called exactly once.
func (c *Conn) Start() {
	go c.writeLoop()
}

// Read blocks for the next data frame.
func (c *Conn) Read() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

// Send enqueues payload for delivery.
func (c *Conn) Send(payload []byte) error {
	return c.enqueue(outbound{payload: payload})
}

// Shutdown delivers everything already queued, then closes with code.
func (c *Conn) Shutdown(code int, reason string) {
	if err := c.enqueue(outbound{close: true, code: code, reason: reason}); err != nil && !errors.Is(err, ErrConnClosed) {
		c.Close(code, reason)
	}
}

func (c *Conn) enqueue(o outbound) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}
	select {
	case <-c.closed:
		return ErrConnClosed
	case c.send <- o:
		return nil
	default:
		c.Close(websocket.CloseGoingAway, "send buffer full")
		return ErrBufferFull
	}
}

// Close terminates the connection immediately, dropping queued frames.
func (c *Conn) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.closed)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case o := <-c.send:
			if o.close {
				c.Close(o.code, o.reason)
				return
			}
			if err := c.write(websocket.TextMessage, o.payload); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

func (c *Conn) write(messageType int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}
