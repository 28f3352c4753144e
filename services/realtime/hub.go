// Package realtimesvc fans data changes out to live subscribers, such as websocket clients.
package realtimesvc

import (
	"sync"
	"sync/atomic"

	"github.com/orgalumni/alumni/core"
)

const defaultBufferSize = 32

// Hub is an in-process change publisher.
// Publish never blocks: a subscriber whose buffer is full misses the change.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscription]struct{}
	closed      bool
	bufferSize  int

	dropped atomic.Uint64
}

var _ core.Publisher = (*Hub)(nil)

type Subscription struct {
	hub *Hub
	ch  chan core.Change
}

// C returns the channel receiving the changes. It is closed on Unsubscribe or when the hub closes.
func (s *Subscription) C() <-chan core.Change { return s.ch }

// Unsubscribe stops the deliveries. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.hub.remove(s)
}

func NewHub(bufferSize ...int) *Hub {
	size := defaultBufferSize
	if len(bufferSize) > 0 && bufferSize[0] > 0 {
		size = bufferSize[0]
	}
	return &Hub{
		subscribers: make(map[*Subscription]struct{}),
		bufferSize:  size,
	}
}

// Subscribe registers a new subscriber. On a closed hub the subscription channel is already closed.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{hub: h, ch: make(chan core.Change, h.bufferSize)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub
	}
	h.subscribers[sub] = struct{}{}
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub.ch)
	}
}

func (h *Hub) Publish(change core.Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers {
		select {
		case sub.ch <- change:
		default: // drop if channel full
			h.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Dropped returns how many deliveries were skipped because of full buffers.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close ends every subscription. Later publications are discarded.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subscribers {
		delete(h.subscribers, sub)
		close(sub.ch)
	}
}
