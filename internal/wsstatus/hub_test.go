package wsstatus

import (
	"context"
	"testing"
	"time"
)

func TestHubPublishDeliversToSubscriber(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &Client{hub: hub, send: make(chan Event, 1)}
	hub.Subscribe(client)

	// Give the event loop a moment to process the registration.
	deadline := time.After(time.Second)
	for hub.ConnectedCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("client never registered")
		default:
		}
	}

	hub.Publish(Event{Type: EventAgentRegistered, AgentID: "a"})

	select {
	case ev := <-client.send:
		if ev.AgentID != "a" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected event was not delivered")
	}
}

func TestHubUnsubscribeClosesSendChannel(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &Client{hub: hub, send: make(chan Event, 1)}
	hub.Subscribe(client)

	// Register and unregister arrive on separate channels, so wait for
	// the registration to land before unsubscribing.
	deadline := time.After(time.Second)
	for hub.ConnectedCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("client never registered")
		default:
		}
	}
	hub.Unsubscribe(client)

	select {
	case _, ok := <-client.send:
		if ok {
			t.Fatal("expected send channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel was never closed")
	}
}
