package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/skvil/piertotum/internal/state"
)

// StatusHandler serves GET /status.
type StatusHandler struct {
	engine *state.Engine
	logger *zap.Logger
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(engine *state.Engine, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{engine: engine, logger: logger.Named("status_handler")}
}

// Get handles GET /status.
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	st := h.engine.Status()
	Ok(w, envelope{
		"broker":           "skvil-piertotum",
		"uptime":           st.Uptime.Seconds(),
		"agents":           st.Agents,
		"totalAgents":      st.TotalAgents,
		"totalContextKeys": st.TotalContextKeys,
	})
}
