// Package reaper runs the broker's periodic stale-agent eviction.
//
// It is the only mechanism that evicts an agent based on elapsed time —
// a failed Heartbeat call alone never self-evicts. The three-strikes
// threshold (90s = 3 × the 30s heartbeat period) tolerates one lost
// heartbeat and a slow network round trip without flapping.
//
// Runs as a single gocron job in singleton mode so overlapping ticks (a
// slow previous pass) never run concurrently.
package reaper

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/skvil/piertotum/internal/state"
	"github.com/skvil/piertotum/internal/wsstatus"
)

// Period is how often the reaper tick runs.
const Period = 30 * time.Second

// Reaper wraps gocron and periodically evicts stale agents from an
// Engine. The zero value is not usable — create instances with New.
type Reaper struct {
	cron   gocron.Scheduler
	engine *state.Engine
	hub    *wsstatus.Hub
	logger *zap.Logger
}

// New creates a Reaper bound to engine. hub may be nil, in which case
// reaped agents are only logged, not published to the live dashboard
// feed. Call Start to begin ticking.
func New(engine *state.Engine, hub *wsstatus.Hub, logger *zap.Logger) (*Reaper, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("reaper: failed to create gocron scheduler: %w", err)
	}
	return &Reaper{
		cron:   s,
		engine: engine,
		hub:    hub,
		logger: logger.Named("reaper"),
	}, nil
}

// Start schedules the reap tick at Period in singleton mode and starts
// the underlying gocron scheduler.
func (r *Reaper) Start() error {
	_, err := r.cron.NewJob(
		gocron.DurationJob(Period),
		gocron.NewTask(r.tick),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("reaper: failed to schedule tick: %w", err)
	}
	r.cron.Start()
	r.logger.Info("reaper started", zap.Duration("period", Period))
	return nil
}

// Stop gracefully shuts down the reaper, waiting for an in-flight tick
// to finish.
func (r *Reaper) Stop() error {
	if err := r.cron.Shutdown(); err != nil {
		return fmt.Errorf("reaper: shutdown error: %w", err)
	}
	return nil
}

// tick evicts every agent whose lastSeen exceeds state.StaleAgentThreshold.
func (r *Reaper) tick() {
	reaped := r.engine.ReapStale(time.Now())
	if len(reaped) == 0 {
		return
	}
	r.logger.Info("reaped stale agents",
		zap.Strings("agent_ids", reaped),
		zap.Int("count", len(reaped)),
	)
	if r.hub == nil {
		return
	}
	for _, id := range reaped {
		r.hub.Publish(wsstatus.Event{Type: wsstatus.EventAgentReaped, AgentID: id})
	}
}
