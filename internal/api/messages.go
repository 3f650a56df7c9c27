package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/skvil/piertotum/internal/state"
	"github.com/skvil/piertotum/internal/wsstatus"
)

// MessageHandler groups the /messages HTTP handlers.
type MessageHandler struct {
	engine *state.Engine
	hub    *wsstatus.Hub
	logger *zap.Logger
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(engine *state.Engine, hub *wsstatus.Hub, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{engine: engine, hub: hub, logger: logger.Named("message_handler")}
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

// Send handles POST /messages/send.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := h.engine.Send(req.From, req.To, req.Content, req.Type)
	if err != nil {
		WriteEngineError(w, err)
		return
	}

	h.hub.Publish(wsstatus.Event{Type: wsstatus.EventMessageSent, AgentID: req.To})
	Ok(w, envelope{"ok": true, "messageId": id})
}

type broadcastRequest struct {
	From    string `json:"from"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

// Broadcast handles POST /messages/broadcast.
func (h *MessageHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sentTo, err := h.engine.Broadcast(req.From, req.Content, req.Type)
	if err != nil {
		WriteEngineError(w, err)
		return
	}

	h.hub.Publish(wsstatus.Event{Type: wsstatus.EventMessageBroadcast, AgentID: req.From})
	Ok(w, envelope{"ok": true, "sentTo": sentTo})
}

// Read handles GET /messages/{id}?unread=bool&limit=N.
func (h *MessageHandler) Read(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	unread := r.URL.Query().Get("unread") == "true"
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	messages, hasMore, err := h.engine.Read(id, unread, limit)
	if err != nil {
		WriteEngineError(w, err)
		return
	}

	Ok(w, envelope{"messages": messages, "total": len(messages), "hasMore": hasMore})
}

type ackRequest struct {
	IDs []string `json:"ids"`
}

// Ack handles POST /messages/{id}/ack.
func (h *MessageHandler) Ack(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ackRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	acked, err := h.engine.Ack(id, req.IDs)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	Ok(w, envelope{"ok": true, "acked": acked})
}

// Clear handles DELETE /messages/{id}.
func (h *MessageHandler) Clear(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	cleared, err := h.engine.ClearMessages(id)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	Ok(w, envelope{"ok": true, "cleared": cleared})
}
