package host

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mirren/bunnymo-bridge-go/internal/domain"
	"go.uber.org/zap"
)

// echoHost upgrades one connection, pushes a single message event, and holds
// the socket open until the client closes it.
func echoHost(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		event := Event{
			Type:    EventTypeMessage,
			Message: &domain.ChatMessage{ID: "m1", Text: "hello"},
		}
		if err := conn.WriteJSON(event); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestWebSocketConnectReceiveDisconnect(t *testing.T) {
	srv := echoHost(t)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	ws := NewWebSocket(wsURL, 1, 10*time.Millisecond, zap.NewNop())
	received := make(chan *domain.ChatMessage, 1)
	unsub := ws.OnMessage(func(msg *domain.ChatMessage) {
		received <- msg
	})
	defer unsub()

	if err := ws.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !ws.IsConnected() {
		t.Error("not connected after Connect")
	}

	select {
	case msg := <-received:
		if msg.Text != "hello" || msg.ID != "m1" {
			t.Errorf("message = %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message event received")
	}

	// Disconnect races the listener's blocking read on the same conn; the
	// handoff must be clean and must not trigger a reconnect.
	if err := ws.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if got := ws.GetState(); got != WSStateDisconnected {
		t.Errorf("state = %s, want %s", got, WSStateDisconnected)
	}

	time.Sleep(50 * time.Millisecond)
	if got := ws.GetState(); got != WSStateDisconnected {
		t.Errorf("state after shutdown settled = %s, want %s", got, WSStateDisconnected)
	}
}

func TestWebSocketDisconnectWithoutConnect(t *testing.T) {
	ws := NewWebSocket("ws://127.0.0.1:1/ws", 1, 10*time.Millisecond, zap.NewNop())
	if err := ws.Disconnect(); err != nil {
		t.Errorf("Disconnect on idle socket: %v", err)
	}
	if got := ws.GetState(); got != WSStateDisconnected {
		t.Errorf("state = %s, want %s", got, WSStateDisconnected)
	}
}
