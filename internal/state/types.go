package state

import "time"

// MessageType is one of the recognized message content kinds. Unknown
// values on the wire are coerced to MessageTypeText — see normalizeType.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeCode     MessageType = "code"
	MessageTypeSchema   MessageType = "schema"
	MessageTypeEndpoint MessageType = "endpoint"
	MessageTypeConfig   MessageType = "config"
)

// normalizeType coerces any unrecognized type string to MessageTypeText.
func normalizeType(t string) MessageType {
	switch MessageType(t) {
	case MessageTypeText, MessageTypeCode, MessageTypeSchema, MessageTypeEndpoint, MessageTypeConfig:
		return MessageType(t)
	default:
		return MessageTypeText
	}
}

// Agent is a registered coding-agent instance.
type Agent struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Project      string    `json:"project"`
	Path         string    `json:"path"`
	RegisteredAt time.Time `json:"registeredAt"`
	LastSeen     time.Time `json:"lastSeen"`
}

// Message is a single entry in an agent's queue.
type Message struct {
	ID        string      `json:"id"`
	From      string      `json:"from"`
	FromName  string      `json:"fromName"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Read      bool        `json:"read"`
}

// ContextEntry is a single key's value in the shared ContextStore.
type ContextEntry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	SetBy     string    `json:"setBy"`
	SetByName string    `json:"setByName"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentStatus is a single row of Status()'s agent listing.
type AgentStatus struct {
	Agent
	UnreadMessages int `json:"unreadMessages"`
}

// Status is the broker-wide snapshot returned by Engine.Status.
type Status struct {
	Uptime           time.Duration `json:"uptime"`
	Agents           []AgentStatus `json:"agents"`
	TotalAgents      int           `json:"totalAgents"`
	TotalContextKeys int           `json:"totalContextKeys"`
}

// ContextSummary is a single row of ListContexts' output — the value
// itself is omitted, leaving {key, setBy, setByName, timestamp}.
type ContextSummary struct {
	Key       string    `json:"key"`
	SetBy     string    `json:"setBy"`
	SetByName string    `json:"setByName"`
	Timestamp time.Time `json:"timestamp"`
}
