package server

import (
	"sync"

	"github.com/rs/zerolog/log"
	contractx "github.com/wshadow/advisor-engine/engine/contract"
)

// Channel is the write side of one advisor connection.
type Channel interface {
	Send(event contractx.Event) error
}

// Hub owns the set of open channels. Register and Unregister are idempotent;
// a failed delivery unregisters the channel lazily instead of raising.
type Hub struct {
	mu       sync.RWMutex
	channels map[Channel]struct{}
}

func NewHub() *Hub {
	return &Hub{channels: make(map[Channel]struct{})}
}

func (h *Hub) Register(ch Channel) {
	if ch == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.channels[ch] = struct{}{}
}

func (h *Hub) Unregister(ch Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.channels, ch)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels)
}

// SendTo delivers one event to one channel. Sending to an unregistered
// channel is a no-op; a delivery failure unregisters the channel.
func (h *Hub) SendTo(ch Channel, event contractx.Event) {
	h.mu.RLock()
	_, ok := h.channels[ch]
	h.mu.RUnlock()
	if !ok {
		return
	}

	if err := ch.Send(event); err != nil {
		log.Debug().Err(err).Str("event", event.Type).Msg("channel send failed, unregistering")
		h.Unregister(ch)
	}
}

// Broadcast delivers one event to every registered channel. Failures are
// collected and unregistered without aborting delivery to the rest.
func (h *Hub) Broadcast(event contractx.Event) {
	h.mu.RLock()
	snapshot := make([]Channel, 0, len(h.channels))
	for ch := range h.channels {
		snapshot = append(snapshot, ch)
	}
	h.mu.RUnlock()

	var dead []Channel
	for _, ch := range snapshot {
		if err := ch.Send(event); err != nil {
			dead = append(dead, ch)
		}
	}
	for _, ch := range dead {
		h.Unregister(ch)
	}
}

// SinkFor adapts the hub into an EventSink scoped to one channel.
func (h *Hub) SinkFor(ch Channel) contractx.EventSink {
	return contractx.SinkFunc(func(event contractx.Event) {
		h.SendTo(ch, event)
	})
}
