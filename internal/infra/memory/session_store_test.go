package memory

import (
	"context"
	"encoding/json"
	"testing"

	"advisor-chat/internal/app"
)

type nopTransport struct{}

func (nopTransport) Request(context.Context, string, string, any) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func TestSessionStoreLifecycle(t *testing.T) {
	created := 0
	store := NewSessionStore(func(clientID string) *app.ConversationSession {
		created++
		return app.NewConversationSession(nopTransport{}, NewIdentityStore(""), app.SessionConfig{})
	})

	session := store.GetOrCreate("client-1")
	if session == nil {
		t.Fatalf("expected session")
	}
	if again := store.GetOrCreate("client-1"); again != session || created != 1 {
		t.Fatalf("expected the same session to be reused")
	}

	_, cancel := session.Subscribe()
	store.DeleteIfIdle("client-1")
	if _, ok := store.Get("client-1"); !ok {
		t.Fatalf("expected watched session to stay")
	}

	cancel()
	store.DeleteIfIdle("client-1")
	if _, ok := store.Get("client-1"); ok {
		t.Fatalf("expected idle session removed")
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d", store.Len())
	}
}

func TestIdentityStore(t *testing.T) {
	ctx := context.Background()
	store := NewIdentityStore("c1")

	if id, _ := store.Load(ctx); id != "c1" {
		t.Fatalf("expected initial id, got %q", id)
	}
	_ = store.Save(ctx, "c2")
	if id, _ := store.Load(ctx); id != "c2" {
		t.Fatalf("expected c2, got %q", id)
	}
	_ = store.Clear(ctx)
	if id, _ := store.Load(ctx); id != "" {
		t.Fatalf("expected cleared id, got %q", id)
	}
}
