package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"classhub/pkg/interfaces"
)

const (
	// writeBufferSize is the maximum number of outbound messages queued
	// per connection before writes start failing.
	writeBufferSize = 100

	// writeTimeout bounds how long an enqueue waits for buffer space.
	writeTimeout = 5 * time.Second
)

// Identity carries the authenticated attributes of a connection. All
// fields are fixed at handshake time and never change afterwards.
type Identity struct {
	UserID      string
	UserName    string
	SessionID   string
	SessionKind string
	Role        string
}

// Connection wraps a websocket connection with a single writer goroutine.
// All outbound traffic goes through writeChannel so that concurrent
// callers never interleave frames on the wire.
type Connection struct {
	id       string
	identity Identity

	conn         *websocket.Conn
	writeChannel chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closed    bool
	mu        sync.RWMutex
}

// NewConnection wraps an upgraded websocket connection and starts its
// writer goroutine.
func NewConnection(id string, conn *websocket.Conn, identity Identity) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Connection{
		id:           id,
		identity:     identity,
		conn:         conn,
		writeChannel: make(chan []byte, writeBufferSize),
		ctx:          ctx,
		cancel:       cancel,
	}

	go c.writeLoop()

	return c
}

// GetID returns the unique connection id.
func (c *Connection) GetID() string { return c.id }

// GetUserID returns the authenticated user id.
func (c *Connection) GetUserID() string { return c.identity.UserID }

// GetUserName returns the display name from the handshake token.
func (c *Connection) GetUserName() string { return c.identity.UserName }

// GetSessionID returns the class or study group id this connection joined.
func (c *Connection) GetSessionID() string { return c.identity.SessionID }

// GetSessionKind reports whether the connection joined a class or a
// study group.
func (c *Connection) GetSessionKind() string { return c.identity.SessionKind }

// GetRole returns the connection role, host or participant.
func (c *Connection) GetRole() string { return c.identity.Role }

// WriteJSON marshals v and queues it for delivery. It returns
// ErrConnectionClosed if the connection has been closed and
// ErrWriteTimeout if the outbound buffer stays full.
func (c *Connection) WriteJSON(v interface{}) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrConnectionClosed
	}
	c.mu.RUnlock()

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeChannel <- data:
		return nil
	case <-time.After(writeTimeout):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close tears down the connection. It is safe to call multiple times.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.cancel()
		c.conn.Close()
	})
	return nil
}

// Context is cancelled when the connection closes.
func (c *Connection) Context() context.Context { return c.ctx }

// writeLoop is the single writer for the underlying websocket. It drains
// writeChannel until the connection context is cancelled.
func (c *Connection) writeLoop() {
	defer c.Close()

	for {
		select {
		case data := <-c.writeChannel:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// ping sends a websocket ping control frame.
func (c *Connection) ping(deadline time.Time) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrConnectionClosed
	}
	c.mu.RUnlock()

	return c.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

var _ interfaces.Connection = (*Connection)(nil)
