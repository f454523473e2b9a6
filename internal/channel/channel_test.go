package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gfranca/papo/internal/status"
	"github.com/gfranca/papo/internal/wire"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// testServer upgrades one connection and hands it to fn.
func testServer(t *testing.T, fn func(conn *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		fn(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnectDeliversSynthesizedEvent(t *testing.T) {
	url := testServer(t, func(conn *websocket.Conn) {
		// Keep the connection open until the client closes it.
		_, _, _ = conn.ReadMessage()
	})

	c := New(url, status.NewMachine(nil), zap.NewNop())
	c.Start(context.Background())
	defer c.Close()

	select {
	case evt := <-c.Events():
		if evt.Name != wire.EvConnected {
			t.Errorf("first event = %s, want connected", evt.Name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for connected event")
	}
}

func TestInboundFrameDecoded(t *testing.T) {
	url := testServer(t, func(conn *websocket.Conn) {
		frame := wire.Frame{
			Event: "marked-read",
			Data:  json.RawMessage(`{"room_id":"1_2","user_id":"2"}`),
		}
		if err := conn.WriteJSON(frame); err != nil {
			t.Errorf("write: %v", err)
		}
		_, _, _ = conn.ReadMessage()
	})

	c := New(url, status.NewMachine(nil), zap.NewNop())
	c.Start(context.Background())
	defer c.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt := <-c.Events():
			if evt.Name == wire.EvConnected {
				continue
			}
			if evt.Name != wire.EvMarkedRead {
				t.Fatalf("event = %s, want marked-read", evt.Name)
			}
			if evt.Marked.RoomID != "1_2" || evt.Marked.UserID != "2" {
				t.Fatalf("payload = %+v", evt.Marked)
			}
			return
		case <-deadline:
			t.Fatal("timeout waiting for marked-read event")
		}
	}
}

func TestEmitWritesFrame(t *testing.T) {
	got := make(chan wire.Frame, 1)
	url := testServer(t, func(conn *websocket.Conn) {
		var f wire.Frame
		if err := conn.ReadJSON(&f); err == nil {
			got <- f
		}
	})

	c := New(url, status.NewMachine(nil), zap.NewNop())
	c.Start(context.Background())
	defer c.Close()

	// Wait until connected before emitting.
	select {
	case <-c.Events():
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for connect")
	}

	if err := c.Emit(wire.GetRooms("5")); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	select {
	case f := <-got:
		if f.Event != wire.OpGetRooms {
			t.Errorf("server saw event %q, want get-rooms", f.Event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for server to receive frame")
	}
}

func TestEmitWhileDisconnected(t *testing.T) {
	c := New("ws://127.0.0.1:1/ws", status.NewMachine(nil), zap.NewNop())
	if err := c.Emit(wire.GetRooms("5")); err != ErrNotConnected {
		t.Errorf("Emit() error = %v, want ErrNotConnected", err)
	}
}

func TestUnknownInboundEventDropped(t *testing.T) {
	url := testServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(wire.Frame{Event: "presence-changed", Data: json.RawMessage(`{}`)})
		_ = conn.WriteJSON(wire.Frame{Event: "mark-read-ack", Data: json.RawMessage(`{"room_id":"1_2"}`)})
		_, _, _ = conn.ReadMessage()
	})

	c := New(url, status.NewMachine(nil), zap.NewNop())
	c.Start(context.Background())
	defer c.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt := <-c.Events():
			if evt.Name == wire.EvConnected {
				continue
			}
			// The unknown frame must have been skipped.
			if evt.Name != wire.EvMarkReadAck {
				t.Fatalf("event = %s, want mark-read-ack", evt.Name)
			}
			return
		case <-deadline:
			t.Fatal("timeout waiting for ack event")
		}
	}
}
