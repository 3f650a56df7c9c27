package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/skvil/piertotum/internal/state"
)

// ContextHandler groups the /context HTTP handlers.
type ContextHandler struct {
	engine *state.Engine
	logger *zap.Logger
}

// NewContextHandler creates a new ContextHandler.
func NewContextHandler(engine *state.Engine, logger *zap.Logger) *ContextHandler {
	return &ContextHandler{engine: engine, logger: logger.Named("context_handler")}
}

type setContextRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	SetBy string `json:"setBy"`
}

// Set handles POST /context.
func (h *ContextHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req setContextRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.engine.SetContext(req.Key, req.Value, req.SetBy); err != nil {
		WriteEngineError(w, err)
		return
	}
	Ok(w, envelope{"ok": true, "key": req.Key})
}

// List handles GET /context.
func (h *ContextHandler) List(w http.ResponseWriter, r *http.Request) {
	Ok(w, envelope{"contexts": h.engine.ListContexts()})
}

// Get handles GET /context/{key}.
func (h *ContextHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	entry, err := h.engine.GetContext(key)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	Ok(w, envelope{
		"value":     entry.Value,
		"setBy":     entry.SetBy,
		"setByName": entry.SetByName,
		"timestamp": entry.Timestamp,
	})
}

// Delete handles DELETE /context/{key}. Idempotent.
func (h *ContextHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	h.engine.DeleteContext(key)
	Ok(w, envelope{"ok": true})
}
