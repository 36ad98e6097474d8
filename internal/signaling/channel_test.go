package signaling

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newTestRelay runs an in-process WebSocket endpoint and hands the upgraded
// connection to the given handler. Returns the ws:// URL to dial.
func newTestRelay(t *testing.T, handler func(*websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

type msgCollector struct {
	mu   sync.Mutex
	msgs []Message
}

func (c *msgCollector) add(m Message) {
	c.mu.Lock()
	c.msgs = append(c.msgs, m)
	c.mu.Unlock()
}

func (c *msgCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func (c *msgCollector) snapshot() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.msgs...)
}

func waitCount(t *testing.T, c *msgCollector, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for c.count() < want {
		if time.Now().After(deadline) {
			t.Fatalf("received %d messages, want %d", c.count(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestListenDispatchesByType(t *testing.T) {
	ready := make(chan struct{})
	url := newTestRelay(t, func(conn *websocket.Conn) {
		defer conn.Close()
		frames := []Message{
			{Type: MsgTypeOffer, SDP: "v=0", ConversationID: "conv-1", SenderID: "u2"},
			{Type: MsgTypeCandidate, Candidate: []byte(`{"candidate":"c1"}`)},
			{Type: MsgTypeChat, Body: "hi", SenderName: "Bea"},
			{Type: "presence"}, // unknown type, must be ignored
			{Type: MsgTypeEnd, ConversationID: "conv-1"},
		}
		for _, f := range frames {
			if err := conn.WriteJSON(f); err != nil {
				t.Errorf("server write: %v", err)
				return
			}
		}
		<-ready
	})
	defer close(ready)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := Connect(ctx, url)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer ch.Close()

	signals, chats := &msgCollector{}, &msgCollector{}
	ch.OnSignal(signals.add)
	ch.OnChat(chats.add)

	go func() { _ = ch.Listen(ctx) }()

	waitCount(t, signals, 3)
	waitCount(t, chats, 1)

	got := signals.snapshot()
	if got[0].Type != MsgTypeOffer || got[0].SDP != "v=0" || got[0].SenderID != "u2" {
		t.Fatalf("signal[0] = %+v", got[0])
	}
	if got[1].Type != MsgTypeCandidate || string(got[1].Candidate) != `{"candidate":"c1"}` {
		t.Fatalf("signal[1] = %+v", got[1])
	}
	if got[2].Type != MsgTypeEnd {
		t.Fatalf("signal[2] = %+v", got[2])
	}
	if chat := chats.snapshot()[0]; chat.Body != "hi" || chat.SenderName != "Bea" {
		t.Fatalf("chat = %+v", chat)
	}
}

func TestSendReachesRelay(t *testing.T) {
	received := make(chan Message, 1)
	url := newTestRelay(t, func(conn *websocket.Conn) {
		defer conn.Close()
		var m Message
		if err := conn.ReadJSON(&m); err != nil {
			t.Errorf("server read: %v", err)
			return
		}
		received <- m
	})

	ch, err := Connect(context.Background(), url)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer ch.Close()

	err = ch.Send(Message{
		Type:           MsgTypeOffer,
		SDP:            "v=0",
		ConversationID: "conv-1",
		TargetUserID:   "u2",
		IsVideo:        true,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case m := <-received:
		if m.Type != MsgTypeOffer || m.SDP != "v=0" || m.TargetUserID != "u2" || !m.IsVideo {
			t.Fatalf("relay received %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("relay never received the message")
	}
}

func TestSendAfterCloseFails(t *testing.T) {
	url := newTestRelay(t, func(conn *websocket.Conn) {
		defer conn.Close()
		// Drain until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	ch, err := Connect(context.Background(), url)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := ch.Send(Message{Type: MsgTypePing}); !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("Send after close = %v, want ErrChannelClosed", err)
	}
}

func TestListenStopsOnContextCancel(t *testing.T) {
	url := newTestRelay(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := Connect(ctx, url)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- ch.Listen(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Listen = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after cancel")
	}

	if err := ch.Send(Message{Type: MsgTypePing}); !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("Send after cancelled Listen = %v, want ErrChannelClosed", err)
	}
}
