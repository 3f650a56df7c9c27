package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/skvil/piertotum/internal/state"
	"github.com/skvil/piertotum/internal/wsstatus"
)

// RouterConfig holds all dependencies needed to build the HTTP router.
type RouterConfig struct {
	Engine   *state.Engine
	Hub      *wsstatus.Hub
	Registry *prometheus.Registry
	Logger   *zap.Logger
}

// NewRouter builds and returns the fully configured Chi router. Every
// agent, message, context, and status route is registered under the
// bare root — there is no auth layer, since this broker is meant to run
// on a trusted LAN among coding-agent instances.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	agentHandler := NewAgentHandler(cfg.Engine, cfg.Hub, cfg.Logger)
	messageHandler := NewMessageHandler(cfg.Engine, cfg.Hub, cfg.Logger)
	contextHandler := NewContextHandler(cfg.Engine, cfg.Logger)
	statusHandler := NewStatusHandler(cfg.Engine, cfg.Logger)
	wsHandler := NewWSStatusHandler(cfg.Hub, cfg.Logger)

	r.Post("/agents/register", agentHandler.Register)
	r.Get("/agents", agentHandler.List)
	r.Post("/agents/{id}/heartbeat", agentHandler.Heartbeat)
	r.Delete("/agents/{id}", agentHandler.Deregister)

	r.Post("/messages/send", messageHandler.Send)
	r.Post("/messages/broadcast", messageHandler.Broadcast)
	r.Get("/messages/{id}", messageHandler.Read)
	r.Post("/messages/{id}/ack", messageHandler.Ack)
	r.Delete("/messages/{id}", messageHandler.Clear)

	r.Post("/context", contextHandler.Set)
	r.Get("/context", contextHandler.List)
	r.Get("/context/{key}", contextHandler.Get)
	r.Delete("/context/{key}", contextHandler.Delete)

	r.Get("/status", statusHandler.Get)

	r.Get("/ws/status", wsHandler.Serve)
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		ErrJSON(w, http.StatusNotFound, "route not found", state.KindNotFound.String())
	})

	return r
}
