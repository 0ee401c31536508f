package memory

import (
	"context"
	"sync"
)

// IdentityStore keeps the active conversation id in process memory.
// It does not survive restarts; use the sqlite or redis stores for that.
type IdentityStore struct {
	mu sync.RWMutex
	id string
}

func NewIdentityStore(initial string) *IdentityStore {
	return &IdentityStore{id: initial}
}

func (s *IdentityStore) Load(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id, nil
}

func (s *IdentityStore) Save(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = conversationID
	return nil
}

func (s *IdentityStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = ""
	return nil
}
