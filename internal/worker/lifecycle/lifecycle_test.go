package lifecycle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/skvil/piertotum/internal/worker/client"
)

// fakeBroker tracks calls to /agents/register, /agents/{id}/heartbeat,
// /context, and DELETE /agents/{id} just enough to drive the lifecycle
// manager's recovery and shutdown sequences.
type fakeBroker struct {
	mu                sync.Mutex
	registrations     int
	heartbeats        int
	heartbeatNotFound bool
	contexts          []string
	deregistered      bool
}

func (f *fakeBroker) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/agents/register":
			f.registrations++
			w.Write([]byte(`{"data":{"ok":true,"totalAgents":1}}`))
		case r.Method == http.MethodPost && r.URL.Path == "/agents/a/heartbeat":
			f.heartbeats++
			if f.heartbeatNotFound {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"error":{"message":"agent not registered","kind":"not_found"}}`))
				return
			}
			w.Write([]byte(`{"data":{"ok":true}}`))
		case r.Method == http.MethodPost && r.URL.Path == "/context":
			var req map[string]string
			json.NewDecoder(r.Body).Decode(&req)
			f.contexts = append(f.contexts, req["value"])
			w.Write([]byte(`{"data":{"ok":true}}`))
		case r.Method == http.MethodDelete:
			f.deregistered = true
			w.Write([]byte(`{"data":{"ok":true}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"message":"not found","kind":"not_found"}}`))
		}
	}
}

func TestStartRegistersOnce(t *testing.T) {
	broker := &fakeBroker{}
	srv := httptest.NewServer(broker.handler())
	defer srv.Close()

	rpc := client.New(srv.URL, zap.NewNop())
	mgr := New(Config{AgentID: "a", Name: "A", Project: "p", Path: "/tmp"}, rpc, zap.NewNop())
	mgr.Start(t.Context())

	broker.mu.Lock()
	defer broker.mu.Unlock()
	if broker.registrations != 1 {
		t.Fatalf("expected exactly one registration, got %d", broker.registrations)
	}
}

// staticDrainer lets the test control Processing() without a real
// autoloop.Loop.
type staticDrainer struct{ processing bool }

func (d staticDrainer) Processing() bool { return d.processing }

func TestShutdownSetsOfflineAndDeregisters(t *testing.T) {
	broker := &fakeBroker{}
	srv := httptest.NewServer(broker.handler())
	defer srv.Close()

	rpc := client.New(srv.URL, zap.NewNop())
	mgr := New(Config{AgentID: "a", Name: "A", Project: "p", Path: "/tmp"}, rpc, zap.NewNop())

	mgr.Shutdown(staticDrainer{processing: false})

	broker.mu.Lock()
	defer broker.mu.Unlock()
	if !broker.deregistered {
		t.Fatal("expected shutdown to deregister the agent")
	}
	if len(broker.contexts) != 1 || broker.contexts[0] != "offline" {
		t.Fatalf("expected an offline status write, got %v", broker.contexts)
	}
}

func TestShutdownWaitsForDrainBeforeDeregistering(t *testing.T) {
	broker := &fakeBroker{}
	srv := httptest.NewServer(broker.handler())
	defer srv.Close()

	rpc := client.New(srv.URL, zap.NewNop())
	mgr := New(Config{AgentID: "a", Name: "A", Project: "p", Path: "/tmp"}, rpc, zap.NewNop())

	drainer := &toggleDrainer{}
	drainer.processing.Store(true)
	go func() {
		time.Sleep(30 * time.Millisecond)
		drainer.processing.Store(false)
	}()

	start := time.Now()
	mgr.Shutdown(drainer)
	if time.Since(start) < 20*time.Millisecond {
		t.Fatal("expected Shutdown to wait for in-flight processing to clear")
	}

	broker.mu.Lock()
	defer broker.mu.Unlock()
	if !broker.deregistered {
		t.Fatal("expected shutdown to deregister once draining finished")
	}
}

type toggleDrainer struct {
	processing atomic.Bool
}

func (d *toggleDrainer) Processing() bool { return d.processing.Load() }

// TestHeartbeatNotFoundTriggersReregister drives RunHeartbeat itself
// through a real ticker: a NotFound response to Heartbeat is the
// broker-restart signal that must trigger a fresh Register call. The
// period is injected short via Config so the test doesn't wait out the
// production 30s default.
func TestHeartbeatNotFoundTriggersReregister(t *testing.T) {
	broker := &fakeBroker{heartbeatNotFound: true}
	srv := httptest.NewServer(broker.handler())
	defer srv.Close()

	rpc := client.New(srv.URL, zap.NewNop())
	mgr := New(Config{
		AgentID:         "a",
		Name:            "A",
		Project:         "p",
		Path:            "/tmp",
		HeartbeatPeriod: 20 * time.Millisecond,
	}, rpc, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- mgr.RunHeartbeat(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunHeartbeat returned an error: %v", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("RunHeartbeat did not return after context cancellation")
	}

	broker.mu.Lock()
	defer broker.mu.Unlock()
	if broker.heartbeats == 0 {
		t.Fatal("expected at least one heartbeat tick")
	}
	if broker.registrations == 0 {
		t.Fatal("expected NotFound to trigger at least one re-registration")
	}
}
