package router

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bmease/race-spoilers/pkg/model"
	"github.com/bmease/race-spoilers/pkg/registry"
)

// DefaultBuffer is the per-subscriber queue length used when NewHub is
// given a non-positive size.
const DefaultBuffer = 16

// Hub tracks connected subscribers and broadcasts block state updates to
// them. Delivery is best effort: a subscriber whose queue is full misses
// the update.
type Hub struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]chan Message
	buffer int
	log    zerolog.Logger
}

var _ registry.Notifier = (*Hub)(nil)

// NewHub returns an empty Hub.
func NewHub(buffer int, logger *zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	h := &Hub{
		subs:   make(map[uuid.UUID]chan Message),
		buffer: buffer,
		log:    zerolog.Nop(),
	}
	if logger != nil {
		h.log = logger.With().Str("component", "hub").Logger()
	}
	return h
}

// Subscribe registers a new subscriber. The channel is closed by
// Unsubscribe.
func (h *Hub) Subscribe() (uuid.UUID, <-chan Message) {
	id := uuid.New()
	ch := make(chan Message, h.buffer)

	h.mu.Lock()
	h.subs[id] = ch
	n := len(h.subs)
	h.mu.Unlock()

	h.log.Debug().Str("subscriber", id.String()).Int("subscribers", n).Msg("subscribed")
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown ids are
// ignored.
func (h *Hub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	ch, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
		close(ch)
	}
	n := len(h.subs)
	h.mu.Unlock()

	if ok {
		h.log.Debug().Str("subscriber", id.String()).Int("subscribers", n).Msg("unsubscribed")
	}
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Post broadcasts an UPDATE_BLOCKED_RACE notification. It never blocks.
func (h *Hub) Post(_ context.Context, u model.Update) {
	msg := Message{Type: UpdateBlockedRace, Payload: u}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- msg:
		default:
			h.log.Warn().Str("subscriber", id.String()).Msg("subscriber queue full, dropping update")
		}
	}
}
