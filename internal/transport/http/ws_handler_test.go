package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"advisor-chat/internal/app"
	"advisor-chat/internal/infra/memory"
	"github.com/gorilla/websocket"
)

type stubTransport struct{}

func (stubTransport) Request(_ context.Context, method, path string, _ any) (json.RawMessage, error) {
	switch {
	case method == http.MethodPost && path == "/ai/ask":
		return json.RawMessage(`{"formattedContent":"Save 10% first","tips":["Automate transfers"],"conversationId":"c1"}`), nil
	case method == http.MethodGet && path == "/ai/conversations":
		return json.RawMessage(`[{"id":"c1","title":"Saving","updatedAt":"2025-01-15T09:30:00Z"}]`), nil
	}
	return nil, errors.New("unexpected request " + method + " " + path)
}

type blockingTransport struct {
	started chan struct{}
	release chan struct{}
}

func (b blockingTransport) Request(_ context.Context, method, path string, _ any) (json.RawMessage, error) {
	if method != http.MethodPost || path != "/ai/ask" {
		return nil, errors.New("unexpected request " + method + " " + path)
	}
	b.started <- struct{}{}
	<-b.release
	return json.RawMessage(`{"answer":"Eventually"}`), nil
}

func newTestServer(t *testing.T) (*httptest.Server, *memory.SessionStore) {
	t.Helper()
	return newTestServerWith(t, stubTransport{})
}

func newTestServerWith(t *testing.T, transport app.Transport) (*httptest.Server, *memory.SessionStore) {
	t.Helper()
	store := memory.NewSessionStore(func(string) *app.ConversationSession {
		return app.NewConversationSession(transport, memory.NewIdentityStore(""), app.SessionConfig{Welcome: "Welcome!"})
	})
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", NewWSHandler(store, nil).ServeWS)
	return httptest.NewServer(mux), store
}

func TestWebSocketAskFlow(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	conn := dial(t, server, "client-1")
	defer conn.Close()

	typ, payload := readNext(conn, t)
	if typ != "state" {
		t.Fatalf("expected initial state, got %s", typ)
	}
	if msgs := payload["messages"].([]any); len(msgs) != 1 {
		t.Fatalf("expected welcome message only, got %v", msgs)
	}

	if err := conn.WriteJSON(map[string]any{"type": "ask", "payload": map[string]any{"text": "How do I save?"}}); err != nil {
		t.Fatalf("write ask: %v", err)
	}

	for i := 0; i < 10; i++ {
		typ, payload = readNext(conn, t)
		if typ != "state" {
			t.Fatalf("expected state, got %s (%v)", typ, payload)
		}
		msgs := payload["messages"].([]any)
		if len(msgs) == 3 && payload["status"] == "ready" {
			last := msgs[2].(map[string]any)
			if last["content"] != "Save 10% first.\n\n• Automate transfers" {
				t.Fatalf("unexpected answer %q", last["content"])
			}
			if payload["conversationId"] != "c1" {
				t.Fatalf("expected adopted conversation id, got %v", payload["conversationId"])
			}
			return
		}
	}
	t.Fatalf("never observed the answered state")
}

func TestWebSocketListAndErrors(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	conn := dial(t, server, "client-2")
	defer conn.Close()
	readNext(conn, t)

	if err := conn.WriteJSON(map[string]any{"type": "list"}); err != nil {
		t.Fatalf("write list: %v", err)
	}
	typ, raw := readUntil(conn, t, "conversations")
	list := raw.([]any)
	if typ != "conversations" || len(list) != 1 || list[0].(map[string]any)["id"] != "c1" {
		t.Fatalf("unexpected conversations %v", raw)
	}

	if err := conn.WriteJSON(map[string]any{"type": "ask", "payload": map[string]any{"text": "   "}}); err != nil {
		t.Fatalf("write ask: %v", err)
	}
	if _, raw := readUntil(conn, t, "error"); !strings.Contains(raw.(map[string]any)["message"].(string), "empty") {
		t.Fatalf("expected empty question error, got %v", raw)
	}

	if err := conn.WriteJSON(map[string]any{"type": "dance"}); err != nil {
		t.Fatalf("write unknown: %v", err)
	}
	if _, raw := readUntil(conn, t, "error"); raw.(map[string]any)["message"] != "unsupported message type" {
		t.Fatalf("unexpected error %v", raw)
	}
}

func TestWebSocketReleasesIdleSession(t *testing.T) {
	server, store := newTestServer(t)
	defer server.Close()

	conn := dial(t, server, "client-3")
	readNext(conn, t)
	if store.Len() != 1 {
		t.Fatalf("expected one live session, got %d", store.Len())
	}
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for store.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("session was not released after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocketReleasesSessionAfterPendingAnswer(t *testing.T) {
	transport := blockingTransport{started: make(chan struct{}, 1), release: make(chan struct{})}
	server, store := newTestServerWith(t, transport)
	defer server.Close()

	conn := dial(t, server, "client-4")
	readNext(conn, t)
	if err := conn.WriteJSON(map[string]any{"type": "ask", "payload": map[string]any{"text": "Still there?"}}); err != nil {
		t.Fatalf("write ask: %v", err)
	}
	select {
	case <-transport.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("ask never reached the advisor")
	}
	conn.Close()

	// the pending answer keeps the session alive past the disconnect
	time.Sleep(100 * time.Millisecond)
	if store.Len() != 1 {
		t.Fatalf("expected session to survive while the answer is pending, got %d", store.Len())
	}

	close(transport.release)
	deadline := time.Now().Add(2 * time.Second)
	for store.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("session was not released once the answer landed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocketRequiresClientID(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	resp, err := http.Get(server.URL + "/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func dial(t *testing.T, server *httptest.Server, clientID string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws?clientId=" + clientID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readNext(conn *websocket.Conn, t *testing.T) (string, map[string]any) {
	t.Helper()
	typ, payload := readRaw(conn, t)
	m, _ := payload.(map[string]any)
	return typ, m
}

func readUntil(conn *websocket.Conn, t *testing.T, want string) (string, any) {
	t.Helper()
	for i := 0; i < 20; i++ {
		typ, payload := readRaw(conn, t)
		if typ == want {
			return typ, payload
		}
	}
	t.Fatalf("no %s message received", want)
	return "", nil
}

func readRaw(conn *websocket.Conn, t *testing.T) (string, any) {
	t.Helper()
	var msg struct {
		Type    string `json:"type"`
		Payload any    `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	return msg.Type, msg.Payload
}
