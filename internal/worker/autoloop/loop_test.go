package autoloop

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/skvil/piertotum/internal/worker/client"
)

// fakeBroker serves just enough of the broker's RPC surface for the
// loop's tick to run against: one unread message, then empty.
type fakeBroker struct {
	mu     sync.Mutex
	served bool
	acked  []string
	sent   []string

	// resetContent, when set, is used as the single served message's
	// content instead of the default "hello" — used to drive the RESET
	// path without a second fake broker implementation.
	resetContent string
}

func (f *fakeBroker) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case r.Method == "GET" && !f.served:
			f.served = true
			content := f.resetContent
			if content == "" {
				content = "hello"
			}
			w.Write([]byte(`{"data":{"messages":[{"id":"m1","from":"b","fromName":"B","content":"` + content + `","type":"text","timestamp":"2026-01-01T00:00:00Z","read":false}],"hasMore":false}}`))
		case r.Method == "GET":
			w.Write([]byte(`{"data":{"messages":[],"hasMore":false}}`))
		case r.URL.Path == "/messages/send":
			var req map[string]string
			json.NewDecoder(r.Body).Decode(&req)
			f.sent = append(f.sent, req["content"])
			w.Write([]byte(`{"data":{"ok":true,"messageId":"r1"}}`))
		case r.URL.Path == "/context":
			w.Write([]byte(`{"data":{"ok":true}}`))
		default:
			var req struct {
				IDs []string `json:"ids"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			f.acked = append(f.acked, req.IDs...)
			w.Write([]byte(`{"data":{"ok":true,"acked":1}}`))
		}
	}
}

type fakeSampler struct {
	supports bool
	result   SampleResult
	err      error
}

func (f fakeSampler) SupportsSampling(ctx context.Context) bool { return f.supports }
func (f fakeSampler) Sample(ctx context.Context, prompt, system string, maxTokens int) (SampleResult, error) {
	return f.result, f.err
}

func TestTickProcessesMessageAndAcks(t *testing.T) {
	broker := &fakeBroker{}
	srv := httptest.NewServer(broker.handler())
	defer srv.Close()

	rpc := client.New(srv.URL, zap.NewNop())
	sampler := fakeSampler{supports: true, result: SampleResult{Text: "hi back", IsText: true}}
	loop := New(Config{AgentID: "w", PollInterval: time.Hour}, rpc, sampler, zap.NewNop())

	loop.tick(t.Context())

	broker.mu.Lock()
	defer broker.mu.Unlock()
	if len(broker.acked) != 1 || broker.acked[0] != "m1" {
		t.Fatalf("expected m1 acked, got %v", broker.acked)
	}
	if len(broker.sent) != 1 || broker.sent[0] != "hi back" {
		t.Fatalf("expected reply sent, got %v", broker.sent)
	}
	if !loop.Enabled() {
		t.Fatal("loop should remain enabled after a successful tick")
	}
}

func TestTickSelfDisablesOnUnsupportedSampling(t *testing.T) {
	broker := &fakeBroker{}
	srv := httptest.NewServer(broker.handler())
	defer srv.Close()

	rpc := client.New(srv.URL, zap.NewNop())
	sampler := fakeSampler{supports: false}
	loop := New(Config{AgentID: "w", PollInterval: time.Hour}, rpc, sampler, zap.NewNop())

	loop.tick(t.Context())

	if loop.Enabled() {
		t.Fatal("expected loop to self-disable")
	}
	if loop.DisableReason() == "" {
		t.Fatal("expected a disable reason to be recorded")
	}
}

func TestTickPoisonMessageAlwaysAcksAndReplies(t *testing.T) {
	broker := &fakeBroker{}
	srv := httptest.NewServer(broker.handler())
	defer srv.Close()

	rpc := client.New(srv.URL, zap.NewNop())
	sampler := fakeSampler{supports: true, err: errors.New("boom")}
	loop := New(Config{AgentID: "w", PollInterval: time.Hour}, rpc, sampler, zap.NewNop())

	loop.tick(t.Context())

	broker.mu.Lock()
	defer broker.mu.Unlock()
	if len(broker.acked) != 1 || broker.acked[0] != "m1" {
		t.Fatalf("expected the poison message to be acked exactly once, got %v", broker.acked)
	}
	if len(broker.sent) != 1 || !strings.HasPrefix(broker.sent[0], "ERROR: ") {
		t.Fatalf("expected an ERROR reply, got %v", broker.sent)
	}
	if !loop.Enabled() {
		t.Fatal("a non-capability sampling error must not self-disable the loop")
	}
}

func TestTickCapabilityMissingErrorSelfDisablesWithoutReply(t *testing.T) {
	broker := &fakeBroker{}
	srv := httptest.NewServer(broker.handler())
	defer srv.Close()

	rpc := client.New(srv.URL, zap.NewNop())
	sampler := fakeSampler{supports: true, err: errors.New("rpc error: -32601 Method not found")}
	loop := New(Config{AgentID: "w", PollInterval: time.Hour}, rpc, sampler, zap.NewNop())

	loop.tick(t.Context())

	broker.mu.Lock()
	defer broker.mu.Unlock()
	if loop.Enabled() {
		t.Fatal("expected loop to self-disable on a capability-missing sampling error")
	}
	if len(broker.sent) != 0 {
		t.Fatalf("expected no reply on capability-missing disablement, got %v", broker.sent)
	}
	if len(broker.acked) != 1 || broker.acked[0] != "m1" {
		t.Fatalf("expected the message still acked before disabling, got %v", broker.acked)
	}
}

func TestTickResetMessageRepliesWithoutSampling(t *testing.T) {
	broker := &fakeBroker{resetContent: "RESET: please"}
	srv := httptest.NewServer(broker.handler())
	defer srv.Close()

	rpc := client.New(srv.URL, zap.NewNop())
	// No sampling call should occur for a RESET message; a sampler that
	// always errors proves the loop never invokes it on this path.
	sampler := fakeSampler{supports: true, err: errors.New("should not be called")}
	loop := New(Config{AgentID: "w", PollInterval: time.Hour}, rpc, sampler, zap.NewNop())

	loop.tick(t.Context())

	broker.mu.Lock()
	defer broker.mu.Unlock()
	if len(broker.sent) != 1 || broker.sent[0] != resetReply {
		t.Fatalf("expected the fixed RESET ACK reply, got %v", broker.sent)
	}
	if len(broker.acked) != 1 || broker.acked[0] != "m1" {
		t.Fatalf("expected the RESET message acked, got %v", broker.acked)
	}
}

func TestTickSingleFlightGuard(t *testing.T) {
	broker := &fakeBroker{}
	srv := httptest.NewServer(broker.handler())
	defer srv.Close()

	rpc := client.New(srv.URL, zap.NewNop())
	loop := New(Config{AgentID: "w", PollInterval: time.Hour}, rpc, fakeSampler{supports: true}, zap.NewNop())

	loop.processing.Store(true)
	loop.tick(t.Context()) // must return immediately without clearing processing

	if !loop.processing.Load() {
		t.Fatal("concurrent tick must not clear an in-flight processing guard")
	}
}
