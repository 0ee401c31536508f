package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"advisor-chat/internal/app"
	"advisor-chat/internal/domain"
	"github.com/gorilla/websocket"
)

// WSHandler bridges a renderer to its client's ConversationSession: state
// snapshots are pushed as they change, actions arrive as inbound messages.
type WSHandler struct {
	sessions app.SessionRepository
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(sessions app.SessionRepository, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		sessions: sessions,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type askPayload struct {
	Text string `json:"text"`
}

type conversationPayload struct {
	ConversationID string `json:"conversationId"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and serves the session of the clientId query parameter.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		http.Error(w, "missing clientId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	session := h.sessions.GetOrCreate(clientID)
	updates, cancel := session.Subscribe()
	defer h.sessions.DeleteIfIdle(clientID)
	defer cancel()

	// actions outlive the socket so an answer in flight still lands in the session
	actionCtx := context.WithoutCancel(r.Context())

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	var wg sync.WaitGroup

	reply := func(msg outboundMessage) {
		select {
		case send <- msg:
		case <-closeSignals:
		}
	}
	replyError := func(err error) {
		reply(outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		for {
			select {
			case msg := <-send:
				if err := conn.WriteJSON(msg); err != nil {
					h.logger.Debug("ws write failed", "client_id", clientID, "error", err)
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for {
			select {
			case state, ok := <-updates:
				if !ok {
					return
				}
				reply(outboundMessage{Type: "state", Payload: state})
			case <-closeSignals:
				return
			}
		}
	}()

	go session.Restore(actionCtx)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "ask":
			var payload askPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				replyError(errors.New("invalid ask payload"))
				continue
			}
			go func() {
				err := session.SendQuestion(actionCtx, payload.Text)
				// other failures already surface as an error message in the conversation
				if errors.Is(err, domain.ErrEmptyQuestion) || errors.Is(err, domain.ErrSendInFlight) {
					replyError(err)
				}
				// the socket may have gone while the answer was pending
				select {
				case <-closeSignals:
					h.sessions.DeleteIfIdle(clientID)
				default:
				}
			}()
		case "new":
			if err := session.StartNewConversation(actionCtx); err != nil {
				replyError(err)
			}
		case "select", "delete":
			var payload conversationPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				replyError(errors.New("invalid conversation payload"))
				continue
			}
			action := session.SelectConversation
			if inbound.Type == "delete" {
				action = session.DeleteConversation
			}
			go func() {
				if err := action(actionCtx, payload.ConversationID); err != nil {
					replyError(err)
				}
			}()
		case "list":
			go func() {
				list, err := session.ListConversations(actionCtx)
				if err != nil {
					replyError(err)
					return
				}
				reply(outboundMessage{Type: "conversations", Payload: list})
			}()
		default:
			replyError(errors.New("unsupported message type"))
		}
	}

	close(closeSignals)
	wg.Wait()
}
