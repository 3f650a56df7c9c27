// Package lifecycle manages the worker's connection to the broker:
// initial registration, the heartbeat ticker, broker-restart recovery,
// and graceful shutdown draining. There is no persistent stream to
// reconnect with backoff — every call is an independent HTTP
// request/response, so the only failure handling needed is the
// heartbeat's NotFound → re-register trigger.
package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/skvil/piertotum/internal/worker/client"
)

const (
	// HeartbeatPeriod is how often the worker reports liveness.
	HeartbeatPeriod = 30 * time.Second
	// DeregisterTimeout bounds the best-effort Deregister call on shutdown.
	DeregisterTimeout = 3 * time.Second
	// ShutdownDrain bounds how long shutdown waits for in-flight processing.
	ShutdownDrain = 10 * time.Second
)

// Config holds the identity a worker registers under.
type Config struct {
	AgentID string
	Name    string
	Project string
	Path    string

	// HeartbeatPeriod overrides how often RunHeartbeat ticks. Zero means
	// the production default, HeartbeatPeriod (the package constant).
	// Tests inject a short period here to drive RunHeartbeat itself
	// through a real tick instead of calling the RPCs directly.
	HeartbeatPeriod time.Duration
}

// Drainer is implemented by the autonomous loop: it reports whether a
// message is currently being processed, so shutdown can wait for it.
type Drainer interface {
	Processing() bool
}

// Manager owns the Register → heartbeat → shutdown sequence.
type Manager struct {
	cfg    Config
	rpc    *client.Client
	logger *zap.Logger
}

// New creates a Manager.
func New(cfg Config, rpc *client.Client, logger *zap.Logger) *Manager {
	return &Manager{cfg: cfg, rpc: rpc, logger: logger.Named("lifecycle")}
}

// Start performs the initial registration (best-effort — a failure logs
// a warning but does not stop the worker; later RPC calls will surface
// the same failure on their own if registration never succeeds).
func (m *Manager) Start(ctx context.Context) {
	if _, err := m.rpc.Register(ctx, m.cfg.AgentID, m.cfg.Name, m.cfg.Project, m.cfg.Path); err != nil {
		m.logger.Warn("initial registration failed", zap.Error(err))
	} else {
		m.logger.Info("registered with broker", zap.String("agent_id", m.cfg.AgentID))
	}
}

// RunHeartbeat runs the heartbeat ticker until ctx is cancelled. On a
// NotFound response it re-registers automatically — this recovers from a
// broker restart, since the worker is the authoritative source of truth
// for its own registration.
func (m *Manager) RunHeartbeat(ctx context.Context) error {
	period := m.cfg.HeartbeatPeriod
	if period <= 0 {
		period = HeartbeatPeriod
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := m.rpc.Heartbeat(ctx, m.cfg.AgentID); err != nil {
				if err.Kind == client.KindNotFound {
					m.logger.Warn("heartbeat NotFound — broker restart detected, re-registering")
					if _, rerr := m.rpc.Register(ctx, m.cfg.AgentID, m.cfg.Name, m.cfg.Project, m.cfg.Path); rerr != nil {
						m.logger.Warn("re-registration failed", zap.Error(rerr))
					}
					continue
				}
				m.logger.Debug("heartbeat failed", zap.Error(err))
			}
		}
	}
}

// RunGroup runs the heartbeat loop alongside an additional set of
// cooperating loops (typically the autonomous poll loop), returning
// when any of them fails or ctx is cancelled.
func (m *Manager) RunGroup(ctx context.Context, extra ...func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.RunHeartbeat(gctx) })
	for _, fn := range extra {
		g.Go(func() error { return fn(gctx) })
	}
	return g.Wait()
}

// Shutdown drains in-flight processing, marks the agent offline in the
// shared context, and deregisters — each step best-effort so a slow or
// unreachable broker never blocks process exit.
func (m *Manager) Shutdown(drainer Drainer) {
	deadline := time.Now().Add(ShutdownDrain)
	for drainer != nil && drainer.Processing() && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	statusCtx, cancel := context.WithTimeout(context.Background(), DeregisterTimeout)
	defer cancel()
	if err := m.rpc.SetContext(statusCtx, m.cfg.AgentID+"-status", "offline", m.cfg.AgentID); err != nil {
		m.logger.Debug("best-effort offline status failed", zap.Error(err))
	}

	deregCtx, deregCancel := context.WithTimeout(context.Background(), DeregisterTimeout)
	defer deregCancel()
	if err := m.rpc.Deregister(deregCtx, m.cfg.AgentID); err != nil {
		m.logger.Debug("best-effort deregister failed", zap.Error(err))
	}
}
