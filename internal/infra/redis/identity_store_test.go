package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestIdentityStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewIdentityStore(newClient(mr), "client-1", time.Minute)

	if id, err := store.Load(ctx); err != nil || id != "" {
		t.Fatalf("expected empty id for unknown client, got %q, %v", id, err)
	}

	if err := store.Save(ctx, "c9"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got, _ := mr.Get("advisor:conversation:client-1"); got != "c9" {
		t.Fatalf("expected redis key to hold c9, got %q", got)
	}
	if ttl := mr.TTL("advisor:conversation:client-1"); ttl != time.Minute {
		t.Fatalf("expected ttl of a minute, got %s", ttl)
	}
	if id, _ := store.Load(ctx); id != "c9" {
		t.Fatalf("expected c9, got %q", id)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if mr.Exists("advisor:conversation:client-1") {
		t.Fatalf("expected redis key to be removed")
	}
}

func TestIdentityStoreExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewIdentityStore(newClient(mr), "client-1", time.Minute)
	_ = store.Save(ctx, "c9")

	mr.FastForward(2 * time.Minute)
	if id, _ := store.Load(ctx); id != "" {
		t.Fatalf("expected expired id, got %q", id)
	}
}
