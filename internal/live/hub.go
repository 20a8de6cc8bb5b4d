// Package live fans tally-changed signals out to the viewers of a room.
// Viewers hold room-scoped subscriptions; signals arrive from this
// instance's own vote inserts and, through the broker bus, from other
// instances. Signals carry no payload — each delivery prompts a full tally
// recompute, which makes repeated and out-of-order delivery harmless.
package live

import (
	"context"
	"log/slog"
	"sync"

	"github.com/votehall/apiserver/internal/mq"
)

// Hub tracks per-room subscriber sets.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[chan struct{}]struct{}
	bus    *mq.Bus
	logger *slog.Logger
}

// NewHub constructs a Hub. bus may be nil, in which case signals only reach
// viewers connected to this instance.
func NewHub(bus *mq.Bus, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:  make(map[string]map[chan struct{}]struct{}),
		bus:    bus,
		logger: logger,
	}
}

// Run consumes the broker bus and dispatches to local subscribers until ctx
// is cancelled. It returns immediately when no bus is configured.
func (h *Hub) Run(ctx context.Context) error {
	if h.bus == nil {
		return nil
	}
	err := h.bus.SubscribeTally(ctx, func(_ context.Context, event mq.TallyEvent) error {
		h.notify(event.RoomID)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		h.logger.Error("live channel subscription ended", "error", err)
	}
	return err
}

// Publish signals that a room's tally changed. Local viewers are notified
// directly; the bus, when configured, carries the signal to other
// instances. A duplicate notification to local viewers via the bus echo is
// fine — recompute is idempotent.
func (h *Hub) Publish(ctx context.Context, roomID string) error {
	h.notify(roomID)
	if h.bus == nil {
		return nil
	}
	if err := h.bus.PublishTally(ctx, mq.TallyEvent{RoomID: roomID}); err != nil {
		h.logger.Warn("failed to publish tally event", "room_id", roomID, "error", err)
		return err
	}
	return nil
}

// Subscribe registers a viewer for a room. The returned channel coalesces
// signals (buffer of one); the cancel func releases the subscription and
// must be called when the viewer disconnects.
func (h *Hub) Subscribe(roomID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	subscribers := h.rooms[roomID]
	if subscribers == nil {
		subscribers = make(map[chan struct{}]struct{})
		h.rooms[roomID] = subscribers
	}
	subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if subscribers, ok := h.rooms[roomID]; ok {
			delete(subscribers, ch)
			if len(subscribers) == 0 {
				delete(h.rooms, roomID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) notify(roomID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.rooms[roomID] {
		select {
		case ch <- struct{}{}:
		default:
			// Subscriber already has a pending signal; one recompute
			// covers any number of missed events.
		}
	}
}
