package state

import "time"

// Quota constants. These are the only numbers the engine enforces;
// RPC-layer policy (e.g. the worker tool's lower Read limit) lives above
// this package.
const (
	MaxAgents              = 100
	MaxMessagesPerAgent    = 200
	MaxContextKeys         = 1000
	MaxContextValueSize    = 100 * 1024
	MaxMessageContentSize  = 512 * 1024
	StaleAgentThreshold    = 90 * time.Second
	DefaultReadLimit       = 50
)

// BrokerSender is the reserved sender id used by operator-originated
// messages. Send/Broadcast callers bearing this id bypass the
// sender-must-be-registered check.
const BrokerSender = "broker"
