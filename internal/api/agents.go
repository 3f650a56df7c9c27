package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/skvil/piertotum/internal/state"
	"github.com/skvil/piertotum/internal/wsstatus"
)

// AgentHandler groups the /agents HTTP handlers.
type AgentHandler struct {
	engine *state.Engine
	hub    *wsstatus.Hub
	logger *zap.Logger
}

// NewAgentHandler creates a new AgentHandler.
func NewAgentHandler(engine *state.Engine, hub *wsstatus.Hub, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{engine: engine, hub: hub, logger: logger.Named("agent_handler")}
}

type registerRequest struct {
	AgentID string `json:"agentId"`
	Name    string `json:"name"`
	Project string `json:"project"`
	Path    string `json:"path"`
}

// Register handles POST /agents/register.
func (h *AgentHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	total, err := h.engine.Register(req.AgentID, req.Name, req.Project, req.Path)
	if err != nil {
		WriteEngineError(w, err)
		return
	}

	h.hub.Publish(wsstatus.Event{Type: wsstatus.EventAgentRegistered, AgentID: req.AgentID})
	Ok(w, envelope{"ok": true, "agentId": req.AgentID, "totalAgents": total})
}

// List handles GET /agents.
func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	st := h.engine.Status()
	Ok(w, envelope{"agents": st.Agents})
}

// Heartbeat handles POST /agents/{id}/heartbeat.
func (h *AgentHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.engine.Heartbeat(id); err != nil {
		WriteEngineError(w, err)
		return
	}
	Ok(w, envelope{"ok": true})
}

// Deregister handles DELETE /agents/{id}. Idempotent: deregistering an
// already-unknown agent still succeeds.
func (h *AgentHandler) Deregister(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.engine.Deregister(id)
	h.hub.Publish(wsstatus.Event{Type: wsstatus.EventAgentDeregistered, AgentID: id})
	Ok(w, envelope{"ok": true})
}
