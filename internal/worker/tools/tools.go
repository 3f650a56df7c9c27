// Package tools exposes the worker's public API as a set of named
// operations for the host coding agent to call: a thin wrapper around
// the worker's RPC client and autonomous loop.
package tools

import (
	"context"

	"github.com/skvil/piertotum/internal/worker/autoloop"
	"github.com/skvil/piertotum/internal/worker/client"
)

// maxReadLimit bounds how many messages a single ReadMessages tool call
// can request, independent of whatever limit the broker itself accepts.
const maxReadLimit = 50

// Tools is the thin adapter the host coding agent drives. Apart from
// ReadMessages' limit clamp, every method forwards to the RPC client or
// reads the autonomous loop's state; no method turns the loop on or off.
type Tools struct {
	agentID string
	rpc     *client.Client
	loop    *autoloop.Loop
}

// New creates a Tools surface bound to agentID.
func New(agentID string, rpc *client.Client, loop *autoloop.Loop) *Tools {
	return &Tools{agentID: agentID, rpc: rpc, loop: loop}
}

// SendMessage sends content to another agent.
func (t *Tools) SendMessage(ctx context.Context, to, content, msgType string) (string, error) {
	id, err := t.rpc.Send(ctx, t.agentID, to, content, msgType)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ReadMessages reads this agent's own queue. limit is clamped to
// maxReadLimit regardless of what the caller requests.
func (t *Tools) ReadMessages(ctx context.Context, unreadOnly bool, limit int) ([]client.RegisteredMessage, bool, error) {
	if limit <= 0 || limit > maxReadLimit {
		limit = maxReadLimit
	}
	messages, hasMore, err := t.rpc.Read(ctx, t.agentID, unreadOnly, limit)
	if err != nil {
		return nil, false, err
	}
	return messages, hasMore, nil
}

// AckMessages acknowledges the given message ids.
func (t *Tools) AckMessages(ctx context.Context, messageIDs []string) (int, error) {
	acked, err := t.rpc.Ack(ctx, t.agentID, messageIDs)
	if err != nil {
		return 0, err
	}
	return acked, nil
}

// SetContext writes a shared key-value pair, attributed to this agent.
func (t *Tools) SetContext(ctx context.Context, key, value string) error {
	if err := t.rpc.SetContext(ctx, key, value, t.agentID); err != nil {
		return err
	}
	return nil
}

// AutonomousStatus reports whether the autonomous loop is still active
// and, if not, why it self-disabled.
func (t *Tools) AutonomousStatus() (enabled bool, disableReason string) {
	if t.loop == nil {
		return false, "autonomous mode not configured"
	}
	return t.loop.Enabled(), t.loop.DisableReason()
}
