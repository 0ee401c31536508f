package memory

import (
	"sync"

	"advisor-chat/internal/app"
)

// SessionFactory builds the session for a newly seen client.
type SessionFactory func(clientID string) *app.ConversationSession

// SessionStore is an in-process app.SessionRepository keyed by client id.
type SessionStore struct {
	factory SessionFactory

	mu       sync.RWMutex
	sessions map[string]*app.ConversationSession
}

func NewSessionStore(factory SessionFactory) *SessionStore {
	return &SessionStore{
		factory:  factory,
		sessions: make(map[string]*app.ConversationSession),
	}
}

func (s *SessionStore) GetOrCreate(clientID string) *app.ConversationSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[clientID]; ok {
		return session
	}
	session := s.factory(clientID)
	s.sessions[clientID] = session
	return session
}

func (s *SessionStore) Get(clientID string) (*app.ConversationSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[clientID]
	return session, ok
}

// DeleteIfIdle evicts the client's session once nobody watches it and no
// question is pending. The persisted conversation id survives eviction.
func (s *SessionStore) DeleteIfIdle(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[clientID]; ok && session.IsIdle() {
		delete(s.sessions, clientID)
	}
}

// Len reports how many sessions are live.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
