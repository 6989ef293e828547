package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockWSServer runs the handler once per websocket connection.
func mockWSServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConn_DialSendDisconnect(t *testing.T) {
	received := make(chan []byte, 16)
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- raw
		}
	})
	defer server.Close()

	c := NewConn(wsURL(server))
	if c.Send([]byte("{}")) {
		t.Fatal("Send returned true before dial")
	}

	if err := c.Dial(context.Background()); err != nil {
		t.Fatalf("dial: %v", err)
	}
	if !c.IsConnected() {
		t.Fatal("IsConnected false after dial")
	}
	if c.State() != StateConnected {
		t.Fatalf("state = %s, want connected", c.State())
	}

	if !c.Send([]byte(`{"ping":1}`)) {
		t.Fatal("Send returned false on open transport")
	}
	select {
	case raw := <-received:
		if string(raw) != `{"ping":1}` {
			t.Errorf("server received %q", raw)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("frame never reached the server")
	}

	c.Disconnect()
	if c.IsConnected() {
		t.Error("IsConnected true after disconnect")
	}
	if c.Send([]byte("{}")) {
		t.Error("Send returned true after disconnect")
	}
}

func TestConn_StateListenerOnServerClose(t *testing.T) {
	release := make(chan struct{})
	server := mockWSServer(t, func(conn *websocket.Conn) {
		<-release // then the deferred Close drops the transport
	})
	defer server.Close()

	c := NewConn(wsURL(server))
	states := make(chan State, 8)
	remove := c.OnStateChange(func(s State) { states <- s })
	defer remove()

	if err := c.Dial(context.Background()); err != nil {
		t.Fatalf("dial: %v", err)
	}
	close(release)

	waitFor(t, "disconnected state", func() bool { return c.State() == StateDisconnected })

	var saw []State
	for len(states) > 0 {
		saw = append(saw, <-states)
	}
	want := []State{StateConnecting, StateConnected, StateDisconnected}
	if len(saw) != len(want) {
		t.Fatalf("state sequence %v, want %v", saw, want)
	}
	for i := range want {
		if saw[i] != want[i] {
			t.Fatalf("state sequence %v, want %v", saw, want)
		}
	}
}

func TestConn_DialFailure(t *testing.T) {
	c := NewConn("ws://127.0.0.1:1/ws")
	err := c.Dial(context.Background())
	if !IsTransport(err) {
		t.Fatalf("want transport fault, got %v", err)
	}
	if c.State() != StateError {
		t.Errorf("state = %s after failed dial, want error", c.State())
	}
	// no automatic retry is scheduled; the caller decides
	if c.IsConnected() {
		t.Error("IsConnected true after failed dial")
	}
}

func TestConn_FramesReachHandler(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"msg_type":"tick"}`))
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	c := NewConn(wsURL(server))
	frames := make(chan []byte, 1)
	c.SetFrameHandler(func(raw []byte) { frames <- raw })

	if err := c.Dial(context.Background()); err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Disconnect()

	select {
	case raw := <-frames:
		if string(raw) != `{"msg_type":"tick"}` {
			t.Errorf("handler received %q", raw)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("inbound frame never reached the handler")
	}
}
