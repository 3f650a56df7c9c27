package client

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestRegisterAndHeartbeat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/agents/register":
			w.Write([]byte(`{"data":{"ok":true,"agentId":"a","totalAgents":1}}`))
		case "/agents/a/heartbeat":
			w.Write([]byte(`{"data":{"ok":true}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"message":"not found","kind":"not_found"}}`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL, zap.NewNop())

	total, err := c.Register(t.Context(), "a", "A", "p", "/tmp")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected totalAgents=1, got %d", total)
	}

	if err := c.Heartbeat(t.Context(), "a"); err != nil {
		t.Fatalf("heartbeat failed: %v", err)
	}
}

func TestHeartbeatNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"message":"agent not registered","kind":"not_found"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, zap.NewNop())

	err := c.Heartbeat(t.Context(), "ghost")
	if err == nil || err.Kind != KindNotFound {
		t.Fatalf("expected not_found error, got %v", err)
	}
}

func TestIsCapabilityMissing(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"rpc error: -32601 method not found", true},
		{"Method not found: sampling/create", true},
		{"host does not support sampling", true},
		{"connection refused", false},
	}
	for _, tc := range cases {
		err := newError(KindUnknown, "%s", tc.msg)
		if got := IsCapabilityMissing(err); got != tc.want {
			t.Errorf("IsCapabilityMissing(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}
