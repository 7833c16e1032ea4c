package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lawsonmobiletax/crm-server/internal/assistant"
	"github.com/lawsonmobiletax/crm-server/internal/auth"
	"github.com/lawsonmobiletax/crm-server/internal/domain"
	"github.com/lawsonmobiletax/crm-server/internal/pkg/httputil"
	"github.com/lawsonmobiletax/crm-server/internal/pkg/logger"
)

// HandleCreateChatSession starts a new assistant conversation.
//
//	POST /api/assistant/sessions
func (h *Handlers) HandleCreateChatSession(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	var req struct {
		Message string `json:"message"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}

	chat, err := h.assistant.StartSession(r.Context(), session.OrgID, session.UserID, req.Message)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, chat)
}

// HandleListChatSessions lists the caller's conversations.
//
//	GET /api/assistant/sessions
func (h *Handlers) HandleListChatSessions(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	sessions, err := h.assistant.ListSessions(r.Context(), session.OrgID, session.UserID)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if sessions == nil {
		sessions = []domain.ChatSession{}
	}
	httputil.OK(w, map[string]interface{}{"data": sessions})
}

// HandleChatHistory returns a conversation's messages, oldest first.
//
//	GET /api/assistant/sessions/{sessionID}/messages
func (h *Handlers) HandleChatHistory(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	messages, err := h.assistant.History(r.Context(), session.OrgID, sessionID)
	if err != nil {
		if errors.Is(err, assistant.ErrSessionNotFound) {
			httputil.NotFound(w, "chat session not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"data": messages})
}

// HandleChat streams the assistant's reply as server-sent events: one
// `chunk` event per model delta, then a final `done` event carrying the
// persisted message. With no sessionId in the body a new conversation is
// started and announced in a `session` event before any chunks.
//
//	POST /api/assistant/chat
func (h *Handlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	var req struct {
		SessionID string `json:"sessionId"`
		Message   string `json:"message"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.InternalError(w, errors.New("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sessionID := req.SessionID
	if sessionID == "" {
		chat, err := h.assistant.StartSession(r.Context(), session.OrgID, session.UserID, req.Message)
		if err != nil {
			writeSSE(w, "error", map[string]string{"error": "could not start conversation"})
			flusher.Flush()
			return
		}
		sessionID = chat.ID
		writeSSE(w, "session", chat)
		flusher.Flush()
	}

	wroteEvent := false
	msg, err := h.assistant.Chat(r.Context(), session.OrgID, sessionID, req.Message, func(text string) {
		writeSSE(w, "chunk", map[string]string{"text": text})
		flusher.Flush()
		wroteEvent = true
	})
	if err != nil {
		// Headers may already be on the wire; surface the error as an
		// SSE event once streaming has started.
		if wroteEvent {
			writeSSE(w, "error", map[string]string{"error": err.Error()})
			flusher.Flush()
			return
		}
		switch {
		case errors.Is(err, assistant.ErrSessionNotFound):
			writeSSE(w, "error", map[string]string{"error": "chat session not found"})
		case errors.Is(err, assistant.ErrDisabled):
			writeSSE(w, "error", map[string]string{"error": "assistant not configured"})
		case errors.Is(err, assistant.ErrEmptyMessage):
			writeSSE(w, "error", map[string]string{"error": "message must not be empty"})
		default:
			logger.Error("assistant chat failed", "error", err.Error())
			writeSSE(w, "error", map[string]string{"error": "assistant request failed"})
		}
		flusher.Flush()
		return
	}

	writeSSE(w, "done", msg)
	flusher.Flush()
}

func writeSSE(w http.ResponseWriter, event string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, raw)
}
