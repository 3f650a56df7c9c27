// Package metrics exposes the broker's state as Prometheus metrics. It
// implements prometheus.Collector directly rather than using promauto
// gauges updated ad hoc from handlers: the engine is already the single
// source of truth for agent/queue/context counts, so Collect simply reads
// it at scrape time. Only the two monotonic counters (messages sent,
// messages dropped) are tracked separately, since those are events, not
// point-in-time state.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/skvil/piertotum/internal/state"
)

var (
	agentsTotalDesc = prometheus.NewDesc(
		"skvil_agents_total", "Number of currently registered agents.", nil, nil)
	contextKeysTotalDesc = prometheus.NewDesc(
		"skvil_context_keys_total", "Number of keys in the shared context store.", nil, nil)
	queueDepthDesc = prometheus.NewDesc(
		"skvil_queue_depth", "Number of messages currently queued for an agent.", []string{"agent"}, nil)
	messagesSentDesc = prometheus.NewDesc(
		"skvil_messages_sent_total", "Total number of messages successfully enqueued.", nil, nil)
	messagesDroppedDesc = prometheus.NewDesc(
		"skvil_messages_dropped_total", "Total number of messages silently dropped by queue overflow.", nil, nil)
)

// EngineCollector adapts a *state.Engine to prometheus.Collector.
type EngineCollector struct {
	engine *state.Engine
}

// NewEngineCollector wraps engine for Prometheus collection.
func NewEngineCollector(engine *state.Engine) *EngineCollector {
	return &EngineCollector{engine: engine}
}

func (c *EngineCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- agentsTotalDesc
	ch <- contextKeysTotalDesc
	ch <- queueDepthDesc
	ch <- messagesSentDesc
	ch <- messagesDroppedDesc
}

func (c *EngineCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.engine.Status()

	ch <- prometheus.MustNewConstMetric(agentsTotalDesc, prometheus.GaugeValue, float64(st.TotalAgents))
	ch <- prometheus.MustNewConstMetric(contextKeysTotalDesc, prometheus.GaugeValue, float64(st.TotalContextKeys))

	for _, a := range st.Agents {
		depth, _, _ := c.engine.Read(a.ID, false, state.MaxMessagesPerAgent)
		ch <- prometheus.MustNewConstMetric(queueDepthDesc, prometheus.GaugeValue, float64(len(depth)), a.ID)
	}

	sent, dropped := c.engine.Counters()
	ch <- prometheus.MustNewConstMetric(messagesSentDesc, prometheus.CounterValue, float64(sent))
	ch <- prometheus.MustNewConstMetric(messagesDroppedDesc, prometheus.CounterValue, float64(dropped))
}
