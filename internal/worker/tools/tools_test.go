package tools

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/skvil/piertotum/internal/worker/client"
)

func TestSendMessageForwardsToClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"ok":true,"messageId":"m1"}}`))
	}))
	defer srv.Close()

	rpc := client.New(srv.URL, zap.NewNop())
	tl := New("a", rpc, nil)

	id, err := tl.SendMessage(t.Context(), "b", "hi", "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "m1" {
		t.Fatalf("expected message id m1, got %q", id)
	}
}

func TestReadMessagesClampsLimitTo50(t *testing.T) {
	var observedLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		observedLimit = r.URL.Query().Get("limit")
		w.Write([]byte(`{"data":{"messages":[],"hasMore":false}}`))
	}))
	defer srv.Close()

	rpc := client.New(srv.URL, zap.NewNop())
	tl := New("a", rpc, nil)

	if _, _, err := tl.ReadMessages(t.Context(), false, 500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if observedLimit != "50" {
		t.Fatalf("expected limit clamped to 50, broker observed %q", observedLimit)
	}
}

func TestAutonomousStatusWithoutLoopConfigured(t *testing.T) {
	tl := New("a", client.New("http://unused", zap.NewNop()), nil)

	enabled, reason := tl.AutonomousStatus()
	if enabled {
		t.Fatal("expected disabled status when no loop is configured")
	}
	if reason == "" {
		t.Fatal("expected a non-empty disable reason")
	}
}
