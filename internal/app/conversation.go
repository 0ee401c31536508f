package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"advisor-chat/internal/answer"
	"advisor-chat/internal/domain"
	"advisor-chat/internal/metrics"
	"advisor-chat/internal/timestamp"
	"github.com/google/uuid"
)

// Transport performs authenticated requests against the advisor backend.
// Retries, TLS and timeouts belong to the implementation.
type Transport interface {
	Request(ctx context.Context, method, path string, body any) (json.RawMessage, error)
}

// IdentityStore persists the active conversation id across reloads.
type IdentityStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, conversationID string) error
	Clear(ctx context.Context) error
}

// SessionRepository abstracts where per-client conversation sessions live.
type SessionRepository interface {
	GetOrCreate(clientID string) *ConversationSession
	Get(clientID string) (*ConversationSession, bool)
	DeleteIfIdle(clientID string)
}

const (
	askPath           = "/ai/ask"
	conversationsPath = "/ai/conversations"

	// WelcomeMessageID identifies the greeting shown before any exchange.
	WelcomeMessageID = "welcome"
	DefaultWelcome   = "Hi! I'm your money coach. Ask me anything about budgeting, saving or investing."
)

// SessionConfig tunes a ConversationSession. Zero values pick defaults.
type SessionConfig struct {
	Welcome string
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
	NewID   func() string
	// AllowConcurrentSends lifts the single in-flight send guard (test harnesses only).
	AllowConcurrentSends bool
}

// ConversationSession owns one conversation identity and its ordered message list.
type ConversationSession struct {
	transport       Transport
	identity        IdentityStore
	logger          *slog.Logger
	metrics         *metrics.Metrics
	clock           timestamp.Normalizer
	now             func() time.Time
	newID           func() string
	welcome         string
	allowConcurrent bool

	mu             sync.Mutex
	conversationID string
	messages       []domain.Message
	historyLoaded  bool
	status         domain.SessionStatus
	restored       bool
	// generation changes on every explicit identity switch; results of
	// requests issued under an older generation are discarded.
	generation  uint64
	loading     bool
	loadingGen  uint64
	sending     int
	subscribers map[chan domain.ConversationState]struct{}
}

func NewConversationSession(transport Transport, identity IdentityStore, cfg SessionConfig) *ConversationSession {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.NewString() }
	}
	if strings.TrimSpace(cfg.Welcome) == "" {
		cfg.Welcome = DefaultWelcome
	}
	s := &ConversationSession{
		transport:       transport,
		identity:        identity,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
		clock:           timestamp.Normalizer{Now: cfg.Now},
		now:             cfg.Now,
		newID:           cfg.NewID,
		welcome:         cfg.Welcome,
		allowConcurrent: cfg.AllowConcurrentSends,
		status:          domain.StatusFresh,
		subscribers:     make(map[chan domain.ConversationState]struct{}),
	}
	s.messages = []domain.Message{s.welcomeMessage()}
	return s
}

// Restore reads the persisted conversation id on first use, then makes sure
// the active conversation's history is loaded. Renderers call it on every
// connect, so an id adopted since the last load gets its server copy.
func (s *ConversationSession) Restore(ctx context.Context) {
	s.mu.Lock()
	if !s.restored {
		s.restored = true
		id, err := s.identity.Load(ctx)
		if err != nil {
			s.logger.Warn("failed to read persisted conversation id", "error", err)
		}
		if id = strings.TrimSpace(id); id != "" && s.conversationID == "" {
			s.conversationID = id
			s.broadcastLocked()
		}
	}
	s.mu.Unlock()

	s.EnsureHistory(ctx)
}

// EnsureHistory fetches the active conversation's history unless it was
// already loaded (or is loading) for the current identity. A fetched history
// replaces the message list; only messages appended while the fetch was in
// flight are kept after it. Failures and empty histories leave the list untouched.
func (s *ConversationSession) EnsureHistory(ctx context.Context) {
	s.mu.Lock()
	id := s.conversationID
	if id == "" || s.historyLoaded || (s.loading && s.loadingGen == s.generation) {
		s.mu.Unlock()
		return
	}
	gen := s.generation
	mark := len(s.messages)
	s.loading = true
	s.loadingGen = gen
	s.status = domain.StatusLoadingHistory
	s.broadcastLocked()
	s.mu.Unlock()

	raw, err := s.transport.Request(ctx, http.MethodGet, historyPath(id), nil)
	var history []domain.Message
	if err == nil {
		history = s.expandHistory(raw)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || id != s.conversationID {
		s.logger.Info("discarding stale history", "conversation_id", id, "active_conversation_id", s.conversationID)
		s.metrics.HistoryLoad(metrics.HistoryStale)
		if gen == s.generation {
			// same generation, but the backend issued a new id meanwhile
			s.loading = false
			s.settleLocked()
			s.broadcastLocked()
		}
		return
	}

	s.loading = false
	s.historyLoaded = true
	switch {
	case err != nil:
		s.logger.Warn("history unavailable", "conversation_id", id, "error", err)
		s.metrics.HistoryLoad(metrics.HistoryFailed)
	case len(history) == 0:
		s.metrics.HistoryLoad(metrics.HistoryEmpty)
	default:
		s.messages = replaceHistory(history, s.messages, mark)
		s.metrics.HistoryLoad(metrics.HistoryLoaded)
	}
	s.settleLocked()
	s.broadcastLocked()
}

type askRequest struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversationId,omitempty"`
}

// SendQuestion appends the user's message, asks the advisor and appends the
// answer, or an error message when the exchange fails. The returned error is
// informational; the conversation stays usable either way.
func (s *ConversationSession) SendQuestion(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ErrEmptyQuestion
	}

	s.mu.Lock()
	if s.sending > 0 && !s.allowConcurrent {
		s.mu.Unlock()
		return domain.ErrSendInFlight
	}
	s.sending++
	gen := s.generation
	conversationID := s.conversationID
	s.appendLocked(domain.Message{
		ID:        "user-" + s.newID(),
		Role:      domain.RoleUser,
		Content:   text,
		Timestamp: s.now(),
	})
	s.status = domain.StatusSending
	s.broadcastLocked()
	s.mu.Unlock()

	raw, err := s.transport.Request(ctx, http.MethodPost, askPath, askRequest{
		Question:       text,
		ConversationID: conversationID,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sending--

	if gen != s.generation {
		s.logger.Info("discarding answer for inactive conversation", "conversation_id", conversationID)
		s.metrics.StaleSend()
		s.settleLocked()
		s.broadcastLocked()
		return nil
	}

	if err != nil {
		s.metrics.TransportFailure()
		s.failLocked(err.Error())
		return fmt.Errorf("ask advisor: %w", err)
	}

	payload := answer.DecodePayload(raw)
	sections := answer.Extract(payload)
	if sections.IsEmpty() {
		s.logger.Warn("advisor payload had no usable content", "conversation_id", conversationID)
		s.metrics.MalformedPayload()
		s.failLocked(domain.ErrMalformedPayload.Error())
		return domain.ErrMalformedPayload
	}

	messageID := idString(payload["messageId"])
	if messageID == "" {
		messageID = idString(payload["id"])
	}
	if messageID == "" {
		messageID = s.newID()
	}
	s.appendLocked(domain.Message{
		ID:        "assistant-" + messageID,
		Role:      domain.RoleAssistant,
		Content:   answer.Assemble(sections, stringField(payload, "content")),
		Timestamp: s.stamp(payload["createdAt"], messageID),
	})

	if issued := stringField(payload, "conversationId"); issued != "" && issued != s.conversationID {
		s.adoptLocked(ctx, issued)
	}
	s.settleLocked()
	s.broadcastLocked()
	return nil
}

// StartNewConversation forgets the active conversation and shows only the welcome message.
func (s *ConversationSession) StartNewConversation(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.identity.Clear(ctx)
	s.resetLocked("")
	s.broadcastLocked()
	if err != nil {
		s.logger.Warn("failed to clear persisted conversation id", "error", err)
		return fmt.Errorf("clear conversation id: %w", err)
	}
	return nil
}

// SelectConversation makes id the active conversation and loads its history.
func (s *ConversationSession) SelectConversation(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return s.StartNewConversation(ctx)
	}

	s.mu.Lock()
	err := s.identity.Save(ctx, id)
	s.resetLocked(id)
	s.broadcastLocked()
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("failed to persist conversation id", "conversation_id", id, "error", err)
	}
	s.EnsureHistory(ctx)
	if err != nil {
		return fmt.Errorf("persist conversation id: %w", err)
	}
	return nil
}

// DeleteConversation removes a conversation on the backend. Deleting the
// active conversation starts a new one.
func (s *ConversationSession) DeleteConversation(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	if _, err := s.transport.Request(ctx, http.MethodDelete, conversationPath(id), nil); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	s.mu.Lock()
	active := id == s.conversationID
	s.mu.Unlock()

	if active {
		return s.StartNewConversation(ctx)
	}
	return nil
}

// ListConversations fetches the backend's conversation list.
func (s *ConversationSession) ListConversations(ctx context.Context) ([]domain.ConversationSummary, error) {
	raw, err := s.transport.Request(ctx, http.MethodGet, conversationsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	records := decodeRecords(raw, "conversations")
	out := make([]domain.ConversationSummary, 0, len(records))
	for _, rec := range records {
		id := idString(rec["id"])
		if id == "" {
			continue
		}
		updated := rec["updatedAt"]
		if updated == nil {
			updated = rec["lastMessageAt"]
		}
		if updated == nil {
			updated = rec["createdAt"]
		}
		out = append(out, domain.ConversationSummary{
			ID:        id,
			Title:     stringField(rec, "title"),
			UpdatedAt: s.stamp(updated, id),
		})
	}
	return out, nil
}

// State returns a copy of the session's current state.
func (s *ConversationSession) State() domain.ConversationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel receiving a state snapshot after every transition.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *ConversationSession) Subscribe() (<-chan domain.ConversationState, func()) {
	ch := make(chan domain.ConversationState, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	// sent under the lock so no broadcast overtakes it; the buffer is empty
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// IsIdle reports whether nobody watches the session and no question is pending.
func (s *ConversationSession) IsIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers) == 0 && s.sending == 0
}

func (s *ConversationSession) resetLocked(id string) {
	s.generation++
	s.conversationID = id
	s.messages = []domain.Message{s.welcomeMessage()}
	s.historyLoaded = false
	s.loading = false
	s.status = domain.StatusFresh
}

func (s *ConversationSession) adoptLocked(ctx context.Context, id string) {
	if err := s.identity.Save(ctx, id); err != nil {
		s.logger.Warn("failed to persist conversation id", "conversation_id", id, "error", err)
	}
	s.conversationID = id
	s.historyLoaded = false
}

// failLocked appends an error message and returns the session to ready.
func (s *ConversationSession) failLocked(reason string) {
	s.appendLocked(domain.Message{
		ID:        "error-" + s.newID(),
		Role:      domain.RoleError,
		Content:   reason,
		Timestamp: s.now(),
	})
	s.status = domain.StatusError
	s.broadcastLocked()
	s.settleLocked()
	s.broadcastLocked()
}

func (s *ConversationSession) settleLocked() {
	switch {
	case s.sending > 0:
		s.status = domain.StatusSending
	case s.loading && s.loadingGen == s.generation:
		s.status = domain.StatusLoadingHistory
	default:
		s.status = domain.StatusReady
	}
}

func (s *ConversationSession) appendLocked(msg domain.Message) {
	s.messages = append(s.messages, msg)
	s.metrics.MessageAppended(string(msg.Role))
}

func (s *ConversationSession) welcomeMessage() domain.Message {
	return domain.Message{
		ID:        WelcomeMessageID,
		Role:      domain.RoleAssistant,
		Content:   s.welcome,
		Timestamp: s.now(),
	}
}

func (s *ConversationSession) stamp(raw any, ref string) time.Time {
	res := s.clock.Parse(raw)
	if res.Epoch {
		s.logger.Warn("advisor sent a unix epoch timestamp", "ref", ref)
	}
	return res.Time
}

func (s *ConversationSession) broadcastLocked() {
	state := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- state:
		default:
			// drop the oldest snapshot so slow renderers only see the latest state
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
}

func (s *ConversationSession) snapshotLocked() domain.ConversationState {
	messages := make([]domain.Message, len(s.messages))
	copy(messages, s.messages)
	return domain.ConversationState{
		ConversationID: s.conversationID,
		Messages:       messages,
		HistoryLoaded:  s.historyLoaded,
		Status:         s.status,
	}
}

// expandHistory turns each backend record into a user and an assistant message
// sharing the record id.
func (s *ConversationSession) expandHistory(raw json.RawMessage) []domain.Message {
	records := decodeRecords(raw, "messages")
	out := make([]domain.Message, 0, len(records)*2)
	for i, rec := range records {
		id := idString(rec["id"])
		if id == "" {
			id = "h" + strconv.Itoa(i)
		}
		at := s.stamp(rec["createdAt"], id)

		if question := stringField(rec, "question"); question != "" {
			out = append(out, domain.Message{
				ID:        "user-" + id,
				Role:      domain.RoleUser,
				Content:   question,
				Timestamp: at,
			})
		}

		reply := domain.Message{
			ID:        "assistant-" + id,
			Role:      domain.RoleAssistant,
			Content:   historyContent(rec),
			Timestamp: at,
		}
		if reply.Content == "" {
			reply.Role = domain.RoleError
			reply.Content = domain.ErrMalformedPayload.Error()
		}
		out = append(out, reply)
	}
	return out
}

// historyContent renders a stored answer; older records keep the whole
// answer, possibly as fenced JSON, in content.
func historyContent(rec answer.Payload) string {
	content := stringField(rec, "content")
	if text := answer.Assemble(answer.Extract(rec), ""); text != "" {
		return text
	}
	return answer.Assemble(answer.Extract(answer.Payload{"answerJson": content}), content)
}

// replaceHistory returns history followed by the messages appended to current
// after index mark.
func replaceHistory(history, current []domain.Message, mark int) []domain.Message {
	if mark > len(current) {
		mark = len(current)
	}
	merged := make([]domain.Message, 0, len(history)+len(current)-mark)
	merged = append(merged, history...)
	return append(merged, current[mark:]...)
}

func decodeRecords(raw json.RawMessage, key string) []answer.Payload {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil
	}
	var items []any
	switch v := decoded.(type) {
	case []any:
		items = v
	case map[string]any:
		if list, ok := v[key].([]any); ok {
			items = list
		} else if list, ok := v["data"].([]any); ok {
			items = list
		}
	}
	out := make([]answer.Payload, 0, len(items))
	for _, item := range items {
		if rec, ok := item.(map[string]any); ok {
			out = append(out, rec)
		}
	}
	return out
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		return id.String()
	}
	return ""
}

func stringField(p answer.Payload, key string) string {
	s, _ := p[key].(string)
	return strings.TrimSpace(s)
}

func conversationPath(id string) string {
	return conversationsPath + "/" + url.PathEscape(id)
}

func historyPath(id string) string {
	return conversationPath(id) + "/messages"
}
