package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/atlasbio/atlas-search/pkg/types"
)

func testEvent() Event {
	return Event{
		Fingerprint: "fp-1",
		Type:        types.QueryTypeSequence,
		Result:      json.RawMessage(`{"ERR1":{"percent":100}}`),
		CompletedAt: time.Now(),
	}
}

// failingNotifier fails delivery for one specific requester
type failingNotifier struct {
	failFor   string
	delivered []string
}

func (f *failingNotifier) Emit(_ context.Context, requester string, _ Event) error {
	if requester == f.failFor {
		return errors.New("connection refused")
	}
	f.delivered = append(f.delivered, requester)
	return nil
}

func TestFanOutDeliversToAllWaiters(t *testing.T) {
	n := &failingNotifier{}
	count := FanOut(context.Background(), n, []string{"alice", "bob", "carol"}, testEvent())
	if count != 3 {
		t.Errorf("delivered = %d, want 3", count)
	}
}

func TestFanOutIsolatesFailures(t *testing.T) {
	n := &failingNotifier{failFor: "bob"}
	count := FanOut(context.Background(), n, []string{"alice", "bob", "carol"}, testEvent())
	if count != 2 {
		t.Errorf("delivered = %d, want 2", count)
	}
	if len(n.delivered) != 2 || n.delivered[0] != "alice" || n.delivered[1] != "carol" {
		t.Errorf("delivered = %v, want [alice carol]", n.delivered)
	}
}

func TestFanOutEmptyWaiters(t *testing.T) {
	n := &failingNotifier{}
	if count := FanOut(context.Background(), n, nil, testEvent()); count != 0 {
		t.Errorf("delivered = %d, want 0", count)
	}
}

func TestHubSubscribeAndEmit(t *testing.T) {
	hub := NewHub(4)
	ch, cancel := hub.Subscribe("alice")
	defer cancel()

	event := testEvent()
	if err := hub.Emit(context.Background(), "alice", event); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	select {
	case got := <-ch:
		if got.Fingerprint != event.Fingerprint {
			t.Errorf("Fingerprint = %q, want %q", got.Fingerprint, event.Fingerprint)
		}
	case <-time.After(time.Second):
		t.Fatal("event never arrived")
	}
}

func TestHubEmitWithoutSubscriberIsNoop(t *testing.T) {
	hub := NewHub(4)
	if err := hub.Emit(context.Background(), "nobody", testEvent()); err != nil {
		t.Errorf("Emit: %v", err)
	}
}

func TestHubFullBufferDrops(t *testing.T) {
	hub := NewHub(1)
	ch, cancel := hub.Subscribe("alice")
	defer cancel()

	ctx := context.Background()
	if err := hub.Emit(ctx, "alice", testEvent()); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	// Buffer is full now, second emit drops without blocking
	if err := hub.Emit(ctx, "alice", testEvent()); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(ch) != 1 {
		t.Errorf("buffered = %d, want 1", len(ch))
	}
}

func TestHubCancelRemovesSubscription(t *testing.T) {
	hub := NewHub(4)
	ch, cancel := hub.Subscribe("alice")
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
	// Emitting after cancel is a no-op
	if err := hub.Emit(context.Background(), "alice", testEvent()); err != nil {
		t.Errorf("Emit after cancel: %v", err)
	}
}
