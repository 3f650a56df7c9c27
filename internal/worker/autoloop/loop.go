// Package autoloop implements the worker's autonomous processing loop:
// poll, sample, reply, ACK, with a single-flight guard and
// capability-driven self-disablement.
package autoloop

import (
	"context"
	"fmt"
	"regexp"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/skvil/piertotum/internal/state"
	"github.com/skvil/piertotum/internal/worker/client"
)

const (
	readLimit       = 10
	maxOutputTokens = 8192
	resetReply      = "RESET ACK | nenhuma tarefa ativa no momento"
	taskPreviewLen  = 60
)

// resetPattern matches a RESET command at the start of a message: the
// literal word followed by whitespace or a colon. No leading whitespace
// is tolerated and bare "RESET" with nothing after it does not match.
var resetPattern = regexp.MustCompile(`^RESET[\s:]`)

// Config holds the identity and tuning the loop runs with.
type Config struct {
	AgentID      string
	PollInterval time.Duration
}

// Loop owns the autonomous processing state machine.
type Loop struct {
	cfg     Config
	rpc     *client.Client
	sampler Sampler
	logger  *zap.Logger

	enabled       atomic.Bool
	processing    atomic.Bool
	disableReason atomic.Value // string
}

// New creates a Loop, enabled by default.
func New(cfg Config, rpc *client.Client, sampler Sampler, logger *zap.Logger) *Loop {
	l := &Loop{cfg: cfg, rpc: rpc, sampler: sampler, logger: logger.Named("autoloop")}
	l.enabled.Store(true)
	l.disableReason.Store("")
	return l
}

// Processing implements lifecycle.Drainer.
func (l *Loop) Processing() bool { return l.processing.Load() }

// Enabled reports whether the loop is still active.
func (l *Loop) Enabled() bool { return l.enabled.Load() }

// DisableReason returns why the loop self-disabled, if it has.
func (l *Loop) DisableReason() string {
	v, _ := l.disableReason.Load().(string)
	return v
}

// Run ticks at cfg.PollInterval until ctx is cancelled or the loop
// self-disables (a CapabilityMissing signal from the host). A clean
// self-disablement returns nil — the worker keeps running (heartbeat
// continues), it simply stops polling.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.tick(ctx)
			if !l.enabled.Load() {
				l.logger.Warn("autonomous loop self-disabled", zap.String("reason", l.DisableReason()))
				return nil
			}
		}
	}
}

// tick runs exactly one poll-and-process pass. processing is set
// synchronously at entry, before any suspension point — this is the
// sole re-entrancy guard. Implementations that set it after the first
// await are buggy.
func (l *Loop) tick(ctx context.Context) {
	if !l.processing.CompareAndSwap(false, true) {
		return // a processing pass is already in flight
	}
	defer l.processing.Store(false)

	if !l.sampler.SupportsSampling(ctx) {
		l.enabled.Store(false)
		l.disableReason.Store("client did not advertise sampling capability")
		return
	}

	messages, _, err := l.rpc.Read(ctx, l.cfg.AgentID, true, readLimit)
	if err != nil {
		l.logger.Debug("read failed, retrying next tick", zap.Error(err))
		return
	}

	for _, msg := range messages {
		if l.isReset(msg.Content) {
			l.handleReset(ctx, msg)
			continue
		}

		if !l.processMessage(ctx, msg) {
			// CapabilityMissing fired mid-batch: stop processing this
			// batch. Remaining messages stay unread in the broker
			// queue; the Loop never re-enables itself, and Run stops
			// ticking once it sees it disabled.
			return
		}
	}
}

func (l *Loop) isReset(content string) bool {
	return resetPattern.MatchString(content)
}

func (l *Loop) handleReset(ctx context.Context, msg client.RegisteredMessage) {
	l.setStatus(ctx, "idle")
	if l.canReplyTo(msg.From) {
		l.sendReply(ctx, msg.From, resetReply, string(state.MessageTypeText))
	}
	l.ack(ctx, msg.ID)
}

// processMessage handles one non-RESET message. Returns false if the
// CapabilityMissing self-disablement fired, signalling the caller to
// abandon the rest of the batch.
func (l *Loop) processMessage(ctx context.Context, msg client.RegisteredMessage) bool {
	l.setStatus(ctx, fmt.Sprintf("busy | task: %s | início: %s", preview(msg.Content, taskPreviewLen), time.Now().Format("15:04:05")))

	prompt := buildPrompt(msg.From, msg.FromName, string(msg.Type), msg.Timestamp, msg.Content)
	result, err := l.sampler.Sample(ctx, prompt, systemPrompt, maxOutputTokens)

	switch {
	case err != nil && client.IsCapabilityMissing(err):
		l.enabled.Store(false)
		l.disableReason.Store(err.Error())
		// No failure reply: the capability is gone, any reply would also fail.
		l.setStatus(ctx, "idle")
		l.ack(ctx, msg.ID)
		return false

	case err != nil:
		if l.canReplyTo(msg.From) {
			l.sendReply(ctx, msg.From, "ERROR: "+err.Error(), string(state.MessageTypeText))
		}

	case !result.IsText:
		if l.canReplyTo(msg.From) {
			l.sendReply(ctx, msg.From, "[unsupported content type in sampling response]", string(state.MessageTypeText))
		}

	default:
		if l.canReplyTo(msg.From) {
			replyType := string(msg.Type)
			if msg.Type == state.MessageTypeConfig {
				replyType = string(state.MessageTypeText)
			}
			l.sendReply(ctx, msg.From, result.Text, replyType)
		}
	}

	l.setStatus(ctx, "idle")
	l.ack(ctx, msg.ID)
	return true
}

// canReplyTo reports whether a reply to sender would not loop back
// through this worker's own processor: workers must refuse to reply to
// "broker" or to themselves.
func (l *Loop) canReplyTo(sender string) bool {
	return sender != state.BrokerSender && sender != l.cfg.AgentID
}

func (l *Loop) sendReply(ctx context.Context, to, content, msgType string) {
	if _, err := l.rpc.Send(ctx, l.cfg.AgentID, to, content, msgType); err != nil {
		l.logger.Debug("reply send failed", zap.String("to", to), zap.Error(err))
	}
}

func (l *Loop) ack(ctx context.Context, messageID string) {
	if _, err := l.rpc.Ack(ctx, l.cfg.AgentID, []string{messageID}); err != nil {
		l.logger.Debug("ack failed", zap.String("message_id", messageID), zap.Error(err))
	}
}

func (l *Loop) setStatus(ctx context.Context, status string) {
	if err := l.rpc.SetContext(ctx, l.cfg.AgentID+"-status", status, l.cfg.AgentID); err != nil {
		l.logger.Debug("status update failed", zap.Error(err))
	}
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
