// Package broadcast fans enrichment progress events out to subscribers,
// one logical stream per BOM.
package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/bom-enrich/internal/model"
)

// defaultBuffer is the per-subscriber channel depth. A subscriber that
// falls this far behind starts losing events; the reconnect contract
// (snapshot first, then stream) makes that recoverable.
const defaultBuffer = 64

// Subscriber is one consumer of a BOM's event stream.
type Subscriber struct {
	ID     string
	BOMID  string
	Events <-chan model.ProgressEvent

	ch chan model.ProgressEvent
}

// Hub multiplexes per-item progress events into per-BOM streams. Publish
// never blocks: slow subscribers drop events instead of stalling the
// pipeline.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[string]*Subscriber
	buffer int
	closed bool

	dropped atomic.Int64
}

// NewHub creates a hub with the default per-subscriber buffer.
func NewHub() *Hub {
	return &Hub{
		topics: make(map[string]map[string]*Subscriber),
		buffer: defaultBuffer,
	}
}

// Subscribe registers a new consumer for the BOM's stream. The caller must
// Unsubscribe when done or the subscriber leaks.
func (h *Hub) Subscribe(bomID string) *Subscriber {
	ch := make(chan model.ProgressEvent, h.buffer)
	sub := &Subscriber{
		ID:     uuid.NewString(),
		BOMID:  bomID,
		Events: ch,
		ch:     ch,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return sub
	}
	if h.topics[bomID] == nil {
		h.topics[bomID] = make(map[string]*Subscriber)
	}
	h.topics[bomID][sub.ID] = sub
	return sub
}

// Unsubscribe removes a consumer and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.topics[sub.BOMID]
	if !ok {
		return
	}
	if _, ok := subs[sub.ID]; !ok {
		return
	}
	delete(subs, sub.ID)
	if len(subs) == 0 {
		delete(h.topics, sub.BOMID)
	}
	close(sub.ch)
}

// Publish delivers a copy of the event to every current subscriber of the
// BOM. Delivery to a full subscriber is dropped, never blocked on.
func (h *Hub) Publish(bomID string, event model.ProgressEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for _, sub := range h.topics[bomID] {
		select {
		case sub.ch <- event:
		default:
			h.dropped.Add(1)
			zap.L().Debug("dropping progress event for slow subscriber",
				zap.String("bom_id", bomID),
				zap.String("subscriber_id", sub.ID),
				zap.String("type", string(event.Type)),
			)
		}
	}
}

// Dropped returns the total number of events discarded because a
// subscriber's buffer was full.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// SubscriberCount returns how many consumers are attached to a BOM.
func (h *Hub) SubscriberCount(bomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[bomID])
}

// Close shuts down the hub and closes every subscriber channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, subs := range h.topics {
		for _, sub := range subs {
			close(sub.ch)
		}
	}
	h.topics = make(map[string]map[string]*Subscriber)
}
