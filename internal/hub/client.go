package hub

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/weiawesome/cycredit-chat/internal/config"
	"github.com/weiawesome/cycredit-chat/internal/domain"
	"github.com/weiawesome/cycredit-chat/pkg/log"
)

var (
	ErrClientClosed   = errors.New("client closed")
	ErrSendBufferFull = errors.New("client send buffer full")
)

// State is the lifecycle state of a connection. CLOSED is terminal.
type State int32

const (
	StateConnecting State = iota
	StateEstablished
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateEstablished:
		return "ESTABLISHED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Client is one live websocket connection.
type Client struct {
	ID    string
	Conn  *websocket.Conn
	Attrs domain.Attributes

	send     chan []byte
	state    atomic.Int32
	mu       sync.RWMutex
	closed   bool
	resolved domain.Resolved
	room     string
	config   config.WebSocketConfig
}

// NewClient wraps conn. conn may be nil when the client is only used as a
// registry member.
func NewClient(id string, conn *websocket.Conn, attrs domain.Attributes, cfg config.WebSocketConfig) *Client {
	size := cfg.SendBuffer
	if size <= 0 {
		size = 256
	}
	return &Client{
		ID:       id,
		Conn:     conn,
		Attrs:    attrs,
		send:     make(chan []byte, size),
		resolved: attrs.Resolve(),
		config:   cfg,
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// MarkEstablished moves CONNECTING to ESTABLISHED. It reports false if the
// client was already closed.
func (c *Client) MarkEstablished() bool {
	return c.state.CompareAndSwap(int32(StateConnecting), int32(StateEstablished))
}

// Resolved returns the connection attributes with defaults applied.
func (c *Client) Resolved() domain.Resolved {
	return c.resolved
}

// Room returns the key of the room the client is registered in, if any.
func (c *Client) Room() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.room
}

func (c *Client) setRoom(key string) {
	c.mu.Lock()
	c.room = key
	c.mu.Unlock()
}

// Send exposes the outbound queue.
func (c *Client) Send() <-chan []byte {
	return c.send
}

// Enqueue queues data for the write pump without blocking.
func (c *Client) Enqueue(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close marks the client CLOSED and closes its queue, which makes the write
// pump send a close frame. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Store(int32(StateClosed))
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// IsClosed reports whether Close has been called.
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// ReadPump reads frames until the connection fails and hands each one to
// handler. It returns when the peer goes away.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer c.Conn.Close()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l := log.L()
				l.Warn().Err(err).Str(log.FieldConnID, c.ID).Msg("websocket read error")
			}
			return
		}
		handler(c, message)
	}
}

// WritePump drains the send queue to the socket and keeps the connection
// alive with pings. Each write is bounded by WriteWait.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				l := log.L()
				l.Debug().Err(err).Str(log.FieldConnID, c.ID).Msg("websocket write failed")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
