// Package fanout distributes values to every active subscriber, in publish order,
// without dropping. A slow subscriber applies backpressure to Publish.
package fanout

import (
	"context"
	"errors"
	"sync"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = errors.New("fanout: hub closed")

// Hub handles active subscriptions. Safe for concurrent use.
type Hub[T any] struct {
	mu     sync.RWMutex
	subs   map[*subscription[T]]struct{}
	buffer int
	closed bool
}

type subscription[T any] struct {
	ch   chan T
	done chan struct{}
	once sync.Once

	mu     sync.Mutex // serializes send against close(ch)
	closed bool
}

// New creates a hub whose subscriber channels hold buffer values.
func New[T any](buffer int) *Hub[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub[T]{
		subs:   make(map[*subscription[T]]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber. The channel is closed when cancel is called,
// ctx is done or the hub is closed. cancel may be called any number of times.
func (h *Hub[T]) Subscribe(ctx context.Context) (<-chan T, func(), error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, nil, ErrClosed
	}
	sub := &subscription[T]{
		ch:   make(chan T, h.buffer),
		done: make(chan struct{}),
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() { h.remove(sub) }
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-sub.done:
			}
		}()
	}
	return sub.ch, cancel, nil
}

// Publish delivers v to every current subscriber. Callers that need a global
// order must serialize their Publish calls.
func (h *Hub[T]) Publish(v T) {
	h.mu.RLock()
	subs := make([]*subscription[T], 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		s.send(v)
	}
}

// Len returns the number of active subscribers.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription and rejects new ones.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := make([]*subscription[T], 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		h.remove(s)
	}
}

func (h *Hub[T]) remove(sub *subscription[T]) {
	sub.once.Do(func() {
		close(sub.done)

		h.mu.Lock()
		delete(h.subs, sub)
		h.mu.Unlock()

		sub.mu.Lock()
		sub.closed = true
		close(sub.ch)
		sub.mu.Unlock()
	})
}

func (s *subscription[T]) send(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- v:
	case <-s.done:
	}
}
