// Package notify is the in-process change feed. The engine publishes an
// event whenever canonical data changes; collaborators such as the MCP
// server subscribe or poll, with no coupling to the engine's lifecycle.
package notify

import (
	"sync"
	"time"
)

// Kind classifies a change event.
type Kind string

const (
	KindArtifactChanged Kind = "artifact_changed"
	KindImportCompleted Kind = "import_completed"
	KindSyncCompleted   Kind = "sync_completed"
	KindMigration       Kind = "migration"
)

// Event is one published change.
type Event struct {
	Kind       Kind      `json:"kind"`
	ArtifactID string    `json:"artifactId,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Time       time.Time `json:"time"`
}

// Hub fans events out to subscribers. Publishing never blocks: a subscriber
// that stops draining loses events, not the publisher.
type Hub struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
	last Event
	seen bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Subscribe registers a buffered listener. The returned cancel function
// removes the subscription and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers e to every subscriber with room in its buffer.
func (h *Hub) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = e
	h.seen = true
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Last returns the most recent event for pollers.
func (h *Hub) Last() (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last, h.seen
}
