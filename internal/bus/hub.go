package bus

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// UpdateHub routes inbound updates to the session owning their
// (account, chat) pair. Each pair has at most one subscriber; updates for
// pairs with no subscriber are dropped, never buffered.
type UpdateHub struct {
	subs    map[string]chan Update
	mu      sync.RWMutex
	seq     atomic.Uint64
	bufSize int
}

// NewUpdateHub creates an UpdateHub with the given per-subscriber buffer
// size. If bufSize is 0, defaults to 16.
func NewUpdateHub(bufSize int) *UpdateHub {
	if bufSize <= 0 {
		bufSize = 16
	}
	return &UpdateHub{
		subs:    make(map[string]chan Update),
		bufSize: bufSize,
	}
}

// Subscribe registers the caller as the sole consumer for key and returns
// its update stream. A second Subscribe for the same key replaces the
// previous stream.
func (h *UpdateHub) Subscribe(key string) <-chan Update {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan Update, h.bufSize)
	h.subs[key] = ch
	return ch
}

// Unsubscribe removes the consumer for key. Subsequent publishes to the
// key are dropped.
func (h *UpdateHub) Unsubscribe(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, key)
}

// Publish stamps the update with its arrival sequence and delivers it to
// the subscriber for its pair, if any. Delivery never blocks: if the
// subscriber's buffer is full the update is dropped with a warning.
func (h *UpdateHub) Publish(u Update) {
	u.Seq = h.seq.Add(1)

	h.mu.RLock()
	ch, ok := h.subs[u.PairKey()]
	h.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case ch <- u:
	default:
		slog.Warn("bus: subscriber buffer full, dropping update",
			"pair", u.PairKey(), "seq", u.Seq)
	}
}
