package state

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine is the broker's authoritative in-memory state: the Agents
// registry, per-agent message Queues, and the shared ContextStore.
//
// # Locking discipline
//
// A single coarse mutex guards all three collections. Register creates
// an Agent and its Queue as one atomic step; Deregister destroys both as
// one atomic step — neither must ever be observed half-done, which a
// per-collection lock could allow. Every exported method that touches
// the collections holds the lock for all of that access (argument checks
// that need no state may run before it; Counters reads atomics and takes
// no lock) and returns stable copies to callers, never references into
// the live maps (see Read, Status, ListContexts).
//
// The zero value is not usable — create instances with New.
type Engine struct {
	mu      sync.Mutex
	agents  map[string]*Agent
	queues  map[string][]Message
	context map[string]*ContextEntry

	startedAt time.Time
	logger    *zap.Logger

	// sentTotal and droppedTotal are monotonic event counters read by the
	// metrics package; they are not part of the data model proper, so
	// they live outside mu (atomic, not mutex-guarded).
	sentTotal    atomic.Int64
	droppedTotal atomic.Int64
}

// New creates an empty Engine.
func New(logger *zap.Logger) *Engine {
	return &Engine{
		agents:    make(map[string]*Agent),
		queues:    make(map[string][]Message),
		context:   make(map[string]*ContextEntry),
		startedAt: time.Now(),
		logger:    logger.Named("state"),
	}
}

// Register creates or refreshes an agent. If id already exists, its
// metadata is overwritten and lastSeen refreshed, but its Queue is left
// untouched — this is what makes Register idempotent and lets a worker
// recover its queue by re-registering after a broker restart. Returns the
// total number of registered agents after the call.
func (e *Engine) Register(id, name, project, path string) (int, error) {
	if id == "" {
		return 0, invalidArgument("id must not be empty")
	}
	if name == "" {
		return 0, invalidArgument("name must not be empty")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	if existing, ok := e.agents[id]; ok {
		existing.Name = name
		existing.Project = project
		existing.Path = path
		existing.LastSeen = now
		return len(e.agents), nil
	}

	if len(e.agents) >= MaxAgents {
		return 0, resourceExhausted("max agents (%d) reached", MaxAgents)
	}

	e.agents[id] = &Agent{
		ID:           id,
		Name:         name,
		Project:      project,
		Path:         path,
		RegisteredAt: now,
		LastSeen:     now,
	}
	if _, ok := e.queues[id]; !ok {
		e.queues[id] = nil
	}

	return len(e.agents), nil
}

// Heartbeat refreshes an agent's lastSeen. Returns NotFound if the agent
// is not registered — this is the signal the worker uses to detect a
// broker restart and trigger re-registration.
func (e *Engine) Heartbeat(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.agents[id]
	if !ok {
		return notFound("agent %q is not registered", id)
	}
	a.LastSeen = time.Now()
	return nil
}

// Deregister removes an agent and destroys its Queue. Idempotent: no
// error if the agent is already absent.
func (e *Engine) Deregister(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deregisterLocked(id)
}

func (e *Engine) deregisterLocked(id string) {
	delete(e.agents, id)
	delete(e.queues, id)
}

// Send enqueues a single message from "from" to "to" and returns the
// generated message id.
func (e *Engine) Send(from, to, content, msgType string) (string, error) {
	if from == "" || to == "" || content == "" {
		return "", invalidArgument("from, to and content must all be non-empty")
	}
	if len(content) > MaxMessageContentSize {
		return "", payloadTooLarge("content exceeds %d bytes", MaxMessageContentSize)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	fromName, err := e.resolveSenderLocked(from)
	if err != nil {
		return "", err
	}
	if _, ok := e.agents[to]; !ok {
		return "", notFound("recipient %q is not registered", to)
	}

	msg := Message{
		ID:        e.newMessageIDLocked(),
		From:      from,
		FromName:  fromName,
		Content:   content,
		Type:      normalizeType(msgType),
		Timestamp: time.Now(),
		Read:      false,
	}
	e.enqueueLocked(to, msg)
	return msg.ID, nil
}

// Broadcast enqueues one message, with per-recipient generated ids, to
// every registered agent except from. Returns the number actually sent.
func (e *Engine) Broadcast(from, content, msgType string) (int, error) {
	if from == "" || content == "" {
		return 0, invalidArgument("from and content must both be non-empty")
	}
	if len(content) > MaxMessageContentSize {
		return 0, payloadTooLarge("content exceeds %d bytes", MaxMessageContentSize)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	fromName, err := e.resolveSenderLocked(from)
	if err != nil {
		return 0, err
	}

	mtype := normalizeType(msgType)
	sent := 0
	for id := range e.agents {
		if id == from {
			continue
		}
		msg := Message{
			ID:        e.newMessageIDLocked(),
			From:      from,
			FromName:  fromName,
			Content:   content,
			Type:      mtype,
			Timestamp: time.Now(),
			Read:      false,
		}
		e.enqueueLocked(id, msg)
		sent++
	}
	return sent, nil
}

// resolveSenderLocked validates that "from" is either the reserved
// broker literal or a currently registered agent, and returns its
// display name. Caller must hold e.mu.
func (e *Engine) resolveSenderLocked(from string) (string, error) {
	if from == BrokerSender {
		return "Operador", nil
	}
	sender, ok := e.agents[from]
	if !ok {
		return "", invalidArgument("sender %q is not registered", from)
	}
	return sender.Name, nil
}

// enqueueLocked appends msg to agentID's queue, dropping the oldest
// messages until the queue fits MaxMessagesPerAgent (spec invariant 3).
// Caller must hold e.mu.
func (e *Engine) enqueueLocked(agentID string, msg Message) {
	e.sentTotal.Add(1)
	q := append(e.queues[agentID], msg)
	if overflow := len(q) - MaxMessagesPerAgent; overflow > 0 {
		e.logger.Debug("queue overflow, dropping oldest messages",
			zap.String("agent_id", agentID),
			zap.Int("dropped", overflow),
		)
		e.droppedTotal.Add(int64(overflow))
		q = q[overflow:]
	}
	e.queues[agentID] = q
}

// Counters returns the cumulative number of messages enqueued and the
// cumulative number dropped by queue overflow, for metrics reporting.
func (e *Engine) Counters() (sent, dropped int64) {
	return e.sentTotal.Load(), e.droppedTotal.Load()
}

// Read returns a snapshot of agentID's queue, optionally filtered to
// unread messages, bounded by limit. It never mutates the Read flag —
// delivery and acknowledgement are deliberately separate operations.
func (e *Engine) Read(agentID string, unreadOnly bool, limit int) ([]Message, bool, error) {
	if limit <= 0 {
		limit = DefaultReadLimit
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.agents[agentID]; !ok {
		return nil, false, notFound("agent %q is not registered", agentID)
	}

	var filtered []Message
	for _, m := range e.queues[agentID] {
		if unreadOnly && m.Read {
			continue
		}
		filtered = append(filtered, m)
	}

	hasMore := len(filtered) > limit
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	out := make([]Message, len(filtered))
	copy(out, filtered)
	return out, hasMore, nil
}

// Ack marks every message in agentID's queue whose id is present in
// messageIDs as read. Unknown ids are silently ignored. Returns the
// number of messages whose Read flag actually transitioned false→true.
func (e *Engine) Ack(agentID string, messageIDs []string) (int, error) {
	if len(messageIDs) == 0 {
		return 0, invalidArgument("messageIds must not be empty")
	}

	want := make(map[string]struct{}, len(messageIDs))
	for _, id := range messageIDs {
		want[id] = struct{}{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	acked := 0
	q := e.queues[agentID]
	for i := range q {
		if _, ok := want[q[i].ID]; !ok {
			continue
		}
		if !q[i].Read {
			q[i].Read = true
			acked++
		}
	}
	return acked, nil
}

// ClearMessages truncates agentID's queue. Fails NotFound if the agent
// is not registered.
func (e *Engine) ClearMessages(agentID string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.agents[agentID]; !ok {
		return 0, notFound("agent %q is not registered", agentID)
	}
	cleared := len(e.queues[agentID])
	e.queues[agentID] = nil
	return cleared, nil
}

// SetContext writes key=value into the shared ContextStore, recording
// setBy's resolved display name as it exists at write time (a snapshot —
// it does not track later renames of setBy's agent).
func (e *Engine) SetContext(key, value, setBy string) error {
	if key == "" {
		return invalidArgument("key must not be empty")
	}
	if len(value) > MaxContextValueSize {
		return payloadTooLarge("value exceeds %d bytes", MaxContextValueSize)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	setByName := setBy
	if a, ok := e.agents[setBy]; ok {
		setByName = a.Name
	}

	if _, exists := e.context[key]; !exists && len(e.context) >= MaxContextKeys {
		return resourceExhausted("max context keys (%d) reached", MaxContextKeys)
	}

	e.context[key] = &ContextEntry{
		Key:       key,
		Value:     value,
		SetBy:     setBy,
		SetByName: setByName,
		Timestamp: time.Now(),
	}
	return nil
}

// GetContext returns a copy of the entry stored under key.
func (e *Engine) GetContext(key string) (ContextEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.context[key]
	if !ok {
		return ContextEntry{}, notFound("context key %q not found", key)
	}
	return *entry, nil
}

// ListContexts returns every key's summary (key, setBy, setByName,
// timestamp — values are omitted; use GetContext to fetch one).
func (e *Engine) ListContexts() []ContextSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]ContextSummary, 0, len(e.context))
	for _, entry := range e.context {
		out = append(out, ContextSummary{
			Key:       entry.Key,
			SetBy:     entry.SetBy,
			SetByName: entry.SetByName,
			Timestamp: entry.Timestamp,
		})
	}
	return out
}

// DeleteContext removes key. Idempotent: no error if absent.
func (e *Engine) DeleteContext(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.context, key)
}

// Status returns a point-in-time snapshot of the broker's state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	agents := make([]AgentStatus, 0, len(e.agents))
	for id, a := range e.agents {
		unread := 0
		for _, m := range e.queues[id] {
			if !m.Read {
				unread++
			}
		}
		agents = append(agents, AgentStatus{Agent: *a, UnreadMessages: unread})
	}

	return Status{
		Uptime:           time.Since(e.startedAt),
		Agents:           agents,
		TotalAgents:      len(e.agents),
		TotalContextKeys: len(e.context),
	}
}

// ReapStale evicts every agent whose lastSeen is older than
// StaleAgentThreshold, destroying its metadata and queue, and returns
// their ids. This is the only time-based eviction mechanism — a failed
// Heartbeat alone never self-evicts.
func (e *Engine) ReapStale(now time.Time) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var reaped []string
	for id, a := range e.agents {
		if now.Sub(a.LastSeen) > StaleAgentThreshold {
			reaped = append(reaped, id)
		}
	}
	for _, id := range reaped {
		e.deregisterLocked(id)
	}
	return reaped
}

// AgentCount reports the number of currently registered agents.
func (e *Engine) AgentCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.agents)
}

// AgentIDs returns the ids of every currently registered agent, in no
// particular order.
func (e *Engine) AgentIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.agents))
	for id := range e.agents {
		ids = append(ids, id)
	}
	return ids
}

// newMessageIDLocked generates a broker-wide unique message id: a
// base36 wall-clock timestamp followed by an 8-character random suffix
// drawn from a uuid. Collision probability is negligible within a
// process lifetime. Caller must hold e.mu (not required for
// correctness, but keeps all id generation co-located with the lock
// that makes Send/Broadcast atomic).
func (e *Engine) newMessageIDLocked() string {
	ts := strconv.FormatInt(time.Now().UnixNano(), 36)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return ts + "-" + suffix
}
