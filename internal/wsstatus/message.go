// Package wsstatus implements a read-only live status feed for the
// broker: a single-writer pub/sub hub that broadcasts agent and message
// lifecycle events to any attached dashboard over a WebSocket
// connection.
//
// It does not replace the operator console — it is a passive observer,
// useful for a browser-based dashboard watching the broker live.
package wsstatus

// EventType identifies the kind of event carried by an Event.
type EventType string

const (
	EventAgentRegistered   EventType = "agent.registered"
	EventAgentDeregistered EventType = "agent.deregistered"
	EventAgentReaped       EventType = "agent.reaped"
	EventMessageSent       EventType = "message.sent"
	EventMessageBroadcast  EventType = "message.broadcast"
)

// Event is the envelope for every frame sent to connected dashboards.
type Event struct {
	Type    EventType `json:"type"`
	AgentID string    `json:"agent_id,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}
