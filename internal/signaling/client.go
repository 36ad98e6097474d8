package signaling

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
)

// Connect dials the relay's chat endpoint and returns a ready Channel.
// The URL should carry the conversation id and auth token as query
// parameters, e.g.:
//
//	wss://api.example.com/ws/chat?conversation_id=...&token=...
func Connect(ctx context.Context, url string) (*Channel, error) {
	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relay: %w", err)
	}
	return NewChannel(conn), nil
}
