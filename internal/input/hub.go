package input

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Hub fans key events out to subscribers. Subscribers are called in
// subscription order on the goroutine that publishes.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]func(KeyEvent)
	next int
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]func(KeyEvent))}
}

// Subscribe registers fn. The returned function removes it and may be called
// more than once, including from inside fn.
func (h *Hub) Subscribe(fn func(KeyEvent)) (func(), error) {
	if fn == nil {
		return nil, errors.New("nil key event handler")
	}
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}, nil
}

// Publish delivers ev to the current subscribers.
func (h *Hub) Publish(ev KeyEvent) {
	h.mu.RLock()
	ids := make([]int, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(KeyEvent), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, h.subs[id])
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Run publishes events until ctx is done or events is closed.
func (h *Hub) Run(ctx context.Context, events <-chan KeyEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.Publish(ev)
		}
	}
}
