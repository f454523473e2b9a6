// Package channel owns the persistent bidirectional connection to the
// messaging service. Reconnection is handled here, at the transport:
// consumers only see a stream of decoded events plus Emit.
package channel

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gfranca/papo/internal/status"
	"github.com/gfranca/papo/internal/wire"
)

// ErrNotConnected is returned by Emit while the transport is down.
var ErrNotConnected = errors.New("channel: not connected")

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Channel is the owned connection object injected into the
// reconciliation core. It dials on Start, redials with capped
// exponential backoff, and synthesizes a connected event after every
// successful (re)dial so the engine refreshes its authoritative state.
type Channel struct {
	url     string
	machine *status.Machine
	logger  *zap.Logger

	mu   sync.Mutex // guards conn and concurrent writes
	conn *websocket.Conn

	events chan wire.Inbound
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a channel for the given websocket URL.
func New(url string, machine *status.Machine, logger *zap.Logger) *Channel {
	return &Channel{
		url:     url,
		machine: machine,
		logger:  logger,
		events:  make(chan wire.Inbound, 256),
		done:    make(chan struct{}),
	}
}

// Events returns the stream of decoded inbound events. Per-room order
// matches server send order; cross-room events may interleave.
func (c *Channel) Events() <-chan wire.Inbound {
	return c.events
}

// Start dials the service and keeps the connection alive until the
// context is cancelled or Close is called.
func (c *Channel) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)
}

func (c *Channel) run(ctx context.Context) {
	defer close(c.done)
	backoff := initialBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		_ = c.machine.Transition(status.Connecting)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			c.logger.Warn("dial failed",
				zap.String("url", c.url),
				zap.Duration("retry_in", backoff),
				zap.Error(err))
			_ = c.machine.Transition(status.Reconnecting)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		backoff = initialBackoff
		_ = c.machine.Transition(status.Connected)
		c.logger.Info("connected", zap.String("url", c.url))

		// Synthesized event: the server does not send one, but the
		// engine must refresh rooms and unread counts on every
		// (re)connect.
		c.deliver(ctx, wire.Inbound{Name: wire.EvConnected})

		c.readLoop(ctx, conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}
		_ = c.machine.Transition(status.Reconnecting)
		c.logger.Info("connection lost, reconnecting")
	}
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("read failed", zap.Error(err))
			}
			return
		}

		evt, err := wire.Decode(raw)
		if err != nil {
			// Malformed or unknown events are dropped, never fatal.
			c.logger.Warn("dropping undecodable event", zap.Error(err))
			continue
		}
		c.deliver(ctx, evt)
	}
}

func (c *Channel) deliver(ctx context.Context, evt wire.Inbound) {
	select {
	case c.events <- evt:
	case <-ctx.Done():
	}
}

// Emit sends an outbound frame. Fire-and-forget: delivery confirmation
// arrives, if at all, as a later inbound event.
func (c *Channel) Emit(f wire.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(f); err != nil {
		return err
	}
	return nil
}

// Close tears the connection down and stops the reconnect loop.
func (c *Channel) Close() {
	if c.cancel == nil {
		_ = c.machine.Transition(status.Closed)
		return
	}
	c.cancel()
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()
	<-c.done
	_ = c.machine.Transition(status.Closed)
}
