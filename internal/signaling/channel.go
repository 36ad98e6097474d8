package signaling

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/kota4976/buildup-call/internal/util"
)

// ErrChannelClosed is returned by Send when the WebSocket is no longer open.
// Sends are never queued or retried — the caller decides whether to abort.
var ErrChannelClosed = errors.New("signaling channel is not open")

// Channel adapts a chat WebSocket into a signaling channel: it serializes
// outbound control messages and dispatches inbound ones by their type tag.
type Channel struct {
	conn *websocket.Conn

	writeMu sync.Mutex // guards WriteJSON — gorilla allows one writer at a time

	mu       sync.Mutex
	closed   bool
	onSignal func(Message)
	onChat   func(Message)
}

// NewChannel wraps an established WebSocket connection.
func NewChannel(conn *websocket.Conn) *Channel {
	return &Channel{conn: conn}
}

// OnSignal registers the handler for call-signaling messages
// (offer/answer/ice-candidate/reject/end). Must be set before Listen.
func (c *Channel) OnSignal(fn func(Message)) {
	c.mu.Lock()
	c.onSignal = fn
	c.mu.Unlock()
}

// OnChat registers the handler for chat frames (message/pong/error).
// Optional; unhandled chat frames are dropped.
func (c *Channel) OnChat(fn func(Message)) {
	c.mu.Lock()
	c.onChat = fn
	c.mu.Unlock()
}

// Send writes a message to the WebSocket, guarded by a mutex. It fails with
// ErrChannelClosed once the read loop has observed a closed connection.
func (c *Channel) Send(msg Message) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrChannelClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("signaling send: %w", err)
	}
	util.Stats.AddSent()
	return nil
}

// SendChat sends a plain chat message into the conversation.
func (c *Channel) SendChat(body string) error {
	return c.Send(Message{Type: MsgTypeChat, Body: body})
}

// Ping sends a liveness probe; the relay answers with a pong frame.
func (c *Channel) Ping() error {
	return c.Send(Message{Type: MsgTypePing})
}

// Listen runs the read loop until the connection closes or ctx is cancelled.
// Each inbound message is dispatched to the matching handler; messages with
// an unrecognized type are ignored, not treated as errors.
func (c *Channel) Listen(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		c.Close()
	}()

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.markClosed()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("signaling read: %w", err)
		}
		util.Stats.AddRecv()

		c.mu.Lock()
		onSignal, onChat := c.onSignal, c.onChat
		c.mu.Unlock()

		switch {
		case msg.IsSignal():
			if onSignal != nil {
				onSignal(msg)
			}
		case msg.Type == MsgTypeChat, msg.Type == MsgTypePong, msg.Type == MsgTypeError:
			if onChat != nil {
				onChat(msg)
			}
		default:
			util.LogDebug("ignoring message with unknown type %q", msg.Type)
		}
	}
}

// Close shuts down the WebSocket. Safe to call more than once.
func (c *Channel) Close() error {
	c.markClosed()
	return c.conn.Close()
}

func (c *Channel) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}
