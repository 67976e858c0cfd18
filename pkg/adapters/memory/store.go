package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/framecast/internal/fanout"
	"github.com/aretw0/framecast/pkg/domain"
	"github.com/aretw0/framecast/pkg/ports"
)

// Store implements ports.EventStore in memory.
// Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	counts domain.ActionCounts
	events []domain.ActionEvent
	hub    *fanout.Hub[domain.ActionEvent]
	closed bool
}

var _ ports.EventStore = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithCounts seeds the store as if the given number of events had already been committed.
func WithCounts(counts domain.ActionCounts) Option {
	return func(s *Store) {
		for k, v := range counts {
			if k.Valid() && v > 0 {
				s.counts[k] = v
			}
		}
	}
}

// NewStore creates a new in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		counts: domain.NewActionCounts(),
		hub:    fanout.New[domain.ActionEvent](fanout.DefaultBuffer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append commits an event and pushes it to subscribers.
func (s *Store) Append(ctx context.Context, kind domain.ActionKind) (domain.ActionEvent, error) {
	if !kind.Valid() {
		return domain.ActionEvent{}, fmt.Errorf("%w: %q", domain.ErrUnknownAction, kind)
	}

	// Publishing under the lock keeps delivery in commit order.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ActionEvent{}, domain.ErrStoreClosed
	}

	ev := domain.NewActionEvent(kind)
	s.counts[kind]++
	ev.Seq = s.counts[kind]
	s.events = append(s.events, ev)

	s.hub.Publish(ev)
	return ev, nil
}

// Count returns the committed total for kind.
func (s *Store) Count(ctx context.Context, kind domain.ActionKind) (int64, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: %q", domain.ErrUnknownAction, kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, domain.ErrStoreClosed
	}
	return s.counts[kind], nil
}

// Subscribe registers a listener for newly committed events.
func (s *Store) Subscribe(ctx context.Context) (<-chan domain.ActionEvent, ports.CancelFunc, error) {
	ch, cancel, err := s.hub.Subscribe(ctx)
	if err != nil {
		return nil, nil, domain.ErrStoreClosed
	}
	return ch, cancel, nil
}

// Events returns a copy of the events committed through Append.
func (s *Store) Events() []domain.ActionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ActionEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Close ends all subscriptions.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.hub.Close()
	return nil
}
