package notify

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/atlasbio/atlas-search/pkg/types"
)

// EventKind distinguishes the deliveries a requester can receive
type EventKind string

const (
	// KindAttached confirms the requester joined an in-flight search
	KindAttached EventKind = "attached"
	// KindComplete carries the finished result to a drained waiter
	KindComplete EventKind = "complete"
)

// Event describes one delivery to a requester. Result and CompletedAt
// are set only on complete events.
type Event struct {
	Kind        EventKind
	Fingerprint string
	Type        types.QueryType
	Result      json.RawMessage
	CompletedAt time.Time
}

// Notifier delivers a completion event to a single requester
type Notifier interface {
	Emit(ctx context.Context, requester string, event Event) error
}

// FanOut delivers the event to every waiter exactly once. A failed
// delivery is logged and skipped so one bad waiter cannot block the
// rest. Returns the number of successful deliveries.
func FanOut(ctx context.Context, n Notifier, waiters []string, event Event) int {
	delivered := 0
	for _, requester := range waiters {
		if err := n.Emit(ctx, requester, event); err != nil {
			log.Printf("notify: delivery to %s failed for %s: %v", requester, event.Fingerprint, err)
			continue
		}
		delivered++
	}
	return delivered
}

// LogNotifier writes deliveries to the process log. Useful as a
// default sink when no subscriber transport is configured.
type LogNotifier struct{}

func (LogNotifier) Emit(_ context.Context, requester string, event Event) error {
	log.Printf("notify: search %s complete for %s", event.Fingerprint, requester)
	return nil
}

// Hub is an in-process Notifier that hands events to subscribed
// requesters over buffered channels. Events for requesters with no
// subscription, or with a full buffer, are dropped.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]chan Event
	size int
}

// NewHub creates a hub whose per-requester buffers hold size events
func NewHub(size int) *Hub {
	if size <= 0 {
		size = 16
	}
	return &Hub{
		subs: make(map[string]chan Event),
		size: size,
	}
}

// Subscribe returns the event channel for a requester, creating it on
// first use. The cancel function removes the subscription.
func (h *Hub) Subscribe(requester string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.subs[requester]
	if !ok {
		ch = make(chan Event, h.size)
		h.subs[requester] = ch
	}

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if cur, ok := h.subs[requester]; ok && cur == ch {
			delete(h.subs, requester)
			close(ch)
		}
	}
	return ch, cancel
}

func (h *Hub) Emit(_ context.Context, requester string, event Event) error {
	h.mu.RLock()
	ch, ok := h.subs[requester]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	select {
	case ch <- event:
		return nil
	default:
		log.Printf("notify: buffer full for %s, dropping event %s", requester, event.Fingerprint)
		return nil
	}
}

var _ Notifier = (*Hub)(nil)
var _ Notifier = LogNotifier{}
