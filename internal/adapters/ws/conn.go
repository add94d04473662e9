// Package ws adapts the client-facing websocket wire to the core: it
// decodes command envelopes, gates everything behind the login handshake
// and pushes replies and events back through a buffered send channel.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/immersivehub/orchestrator/internal/protocol"
)

var (
	ErrBackpressure = errors.New("client send buffer full")
	ErrConnClosed   = errors.New("connection closed")
)

const writeTimeout = 5 * time.Second

// responder is what command handlers talk to: the push side of the core
// Connection plus request replies. Split out so handlers are testable
// without a live websocket.
type responder interface {
	Emit(event string, payload any) error
	Close()
	reply(resp protocol.Response)
}

// wsConn wraps one websocket connection with a non-blocking send queue.
// The closed flag is checked under the lock on every send, so a concurrent
// Close never races a send into the closed channel.
type wsConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{
		conn: conn,
		send: make(chan []byte, 64),
	}
}

func (c *wsConn) trySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

// Emit implements core.Connection. Delivery is best-effort: a slow client
// drops the event rather than blocking the server.
func (c *wsConn) Emit(event string, payload any) error {
	data, err := json.Marshal(protocol.Push{Event: event, Data: payload})
	if err != nil {
		return err
	}
	return c.trySend(data)
}

func (c *wsConn) reply(resp protocol.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Error().Str("module", "adapters.ws").Err(err).Msg("failed to marshal response")
		return
	}
	if err := c.trySend(data); err != nil {
		log.Debug().Str("module", "adapters.ws").Err(err).Msg("reply dropped")
	}
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *wsConn) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Debug().Str("module", "adapters.ws").Err(err).Msg("writePump set deadline error")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Str("module", "adapters.ws").Err(err).Msg("writePump write error")
				return
			}
		}
	}
}
