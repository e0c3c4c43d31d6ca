package events

import (
	"testing"
	"time"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	h := NewHub(4)
	ch, cancel := h.Subscribe()
	defer cancel()

	h.Publish(AgentEvent, []byte(`{"sessionId":"s1","event":{"type":"agent_start"}}`))

	select {
	case ev := <-ch:
		if ev.Type != AgentEvent || ev.ID != 1 {
			t.Fatalf("unexpected event: %+v", ev)
		}
		if string(ev.Data) != `{"sessionId":"s1","event":{"type":"agent_start"}}` {
			t.Fatalf("data = %s", ev.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestPublishCodeAndNull(t *testing.T) {
	h := NewHub(4)
	ev := h.Publish(AgentTerminated, []byte("3"))
	if string(ev.Data) != "3" || ev.ID != 1 {
		t.Fatalf("data = %s", ev.Data)
	}
	if ev := h.Publish(AgentTerminated, nil); string(ev.Data) != "null" {
		t.Fatalf("empty data should be null, got %s", ev.Data)
	}
}

func TestRingOverwritesOldest(t *testing.T) {
	h := NewHub(3)
	for i := 0; i < 5; i++ {
		h.Publish(AgentEvent, []byte(`{}`))
	}
	all := h.SnapshotSince(0)
	if len(all) != 3 || all[0].ID != 3 || all[2].ID != 5 {
		t.Fatalf("unexpected snapshot: %+v", all)
	}
	since := h.SnapshotSince(4)
	if len(since) != 1 || since[0].ID != 5 {
		t.Fatalf("unexpected SnapshotSince(4): %+v", since)
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub(10)
	_, cancel := h.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			h.Publish(AgentEvent, []byte(`{}`))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a full subscriber")
	}
}

func TestCancelClosesChannel(t *testing.T) {
	h := NewHub(1)
	ch, cancel := h.Subscribe()
	if h.Subscribers() != 1 {
		t.Fatalf("subscribers = %d", h.Subscribers())
	}
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
	if h.Subscribers() != 0 {
		t.Fatalf("subscribers = %d", h.Subscribers())
	}
}
