package console

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/skvil/piertotum/internal/state"
)

func TestTargetedSendDeliversFromBroker(t *testing.T) {
	e := state.New(zap.NewNop())
	e.Register("b", "B", "p", "/tmp")

	var out bytes.Buffer
	c := New(e, strings.NewReader(""), &out, zap.NewNop())
	c.handle("@b hello there")

	messages, _, err := e.Read("b", true, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 1 || messages[0].Content != "hello there" || messages[0].From != state.BrokerSender {
		t.Fatalf("unexpected messages: %+v", messages)
	}
}

func TestBroadcastReachesAllAgents(t *testing.T) {
	e := state.New(zap.NewNop())
	e.Register("a", "A", "p", "/tmp")
	e.Register("b", "B", "p", "/tmp")

	var out bytes.Buffer
	c := New(e, strings.NewReader(""), &out, zap.NewNop())
	c.handle("status update")

	for _, id := range []string{"a", "b"} {
		messages, _, err := e.Read(id, true, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(messages) != 1 {
			t.Fatalf("expected agent %s to receive the broadcast, got %v", id, messages)
		}
	}
	if !strings.Contains(out.String(), "broadcast to 2 agents") {
		t.Fatalf("expected broadcast confirmation, got %q", out.String())
	}
}

func TestHelpCommandListsUsage(t *testing.T) {
	e := state.New(zap.NewNop())
	var out bytes.Buffer
	c := New(e, strings.NewReader(""), &out, zap.NewNop())
	c.handle("/help")

	if !strings.Contains(out.String(), "/agents") {
		t.Fatalf("expected help text to mention /agents, got %q", out.String())
	}
}
