package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/skvil/piertotum/internal/wsstatus"
)

// WSStatusHandler upgrades GET /ws/status connections to the live
// dashboard feed. It runs alongside the operator console, read-only,
// with no effect on broker state.
type WSStatusHandler struct {
	hub    *wsstatus.Hub
	logger *zap.Logger
}

// NewWSStatusHandler creates a new WSStatusHandler.
func NewWSStatusHandler(hub *wsstatus.Hub, logger *zap.Logger) *WSStatusHandler {
	return &WSStatusHandler{hub: hub, logger: logger.Named("wsstatus_handler")}
}

// Serve handles GET /ws/status.
func (h *WSStatusHandler) Serve(w http.ResponseWriter, r *http.Request) {
	client, err := wsstatus.NewClient(h.hub, w, r, h.logger)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client.Run()
}
