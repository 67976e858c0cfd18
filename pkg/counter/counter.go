// Package counter keeps live download and share totals.
//
// A Counter seeds itself from the event store (Initialize), then follows pushed
// events (Subscribe). Recording an action only appends to the store: the local
// total moves when the store pushes the event back, so every replica converges
// on the same numbers.
package counter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/framecast/internal/logging"
	"github.com/aretw0/framecast/pkg/domain"
	"github.com/aretw0/framecast/pkg/ports"
)

var (
	// ErrAlreadySubscribed is returned when Subscribe is called while a subscription is active.
	ErrAlreadySubscribed = errors.New("counter: already subscribed")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("counter: closed")
)

// Unsubscribe stops applying pushed events. Safe to call more than once.
type Unsubscribe func()

// Counter holds the in-memory totals. Safe for concurrent use.
type Counter struct {
	store  ports.EventStore
	logger *slog.Logger
	hooks  domain.LifecycleHooks

	mu       sync.Mutex
	counts   domain.ActionCounts
	baseline domain.ActionCounts
	sub      *subscription
	watchers map[int]chan domain.ActionCounts
	nextID   int
	closed   bool
	done     chan struct{}
}

type subscription struct {
	once    sync.Once
	cancel  ports.CancelFunc // guarded by Counter.mu; nil until the store confirms
	stopped bool             // guarded by Counter.mu
}

type Option func(*Counter)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Counter) {
		c.logger = logger
	}
}

// WithHooks registers OnRecord and OnCounts callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Counter) {
		c.hooks = hooks
	}
}

// New creates a counter over store. Totals start at zero.
func New(store ports.EventStore, opts ...Option) *Counter {
	c := &Counter{
		store:    store,
		logger:   logging.NewNop(),
		counts:   domain.NewActionCounts(),
		baseline: domain.NewActionCounts(),
		watchers: make(map[int]chan domain.ActionCounts),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize queries the store total for every kind. A failed query leaves that
// kind at its current value and is reported as a *domain.FetchError; the counter
// stays usable. Totals never decrease.
func (c *Counter) Initialize(ctx context.Context) (domain.ActionCounts, error) {
	fetched := make(map[domain.ActionKind]int64, len(domain.ActionKinds))
	var errs []error
	for _, kind := range domain.ActionKinds {
		n, err := c.store.Count(ctx, kind)
		if err != nil {
			c.logger.Warn("Failed to fetch action count", "kind", kind, "error", err)
			errs = append(errs, &domain.FetchError{Kind: kind, Err: err})
			continue
		}
		fetched[kind] = n
	}

	c.mu.Lock()
	for kind, n := range fetched {
		if n > c.counts[kind] {
			c.counts[kind] = n
		}
		if n > c.baseline[kind] {
			c.baseline[kind] = n
		}
	}
	snapshot := c.publishLocked()
	c.mu.Unlock()

	c.emitCounts(ctx, snapshot)
	c.logger.Debug("Action counts initialized", "download", snapshot[domain.ActionDownload], "share", snapshot[domain.ActionShare])
	return snapshot, errors.Join(errs...)
}

// Subscribe starts applying pushed events: +1 per event, in store order.
// Events already included in the last Initialize snapshot are skipped.
// The slot is reserved before the store is contacted, so totals stay readable
// while the store handshake is in flight.
func (c *Counter) Subscribe(ctx context.Context) (Unsubscribe, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.sub != nil {
		c.mu.Unlock()
		return nil, ErrAlreadySubscribed
	}
	sub := &subscription{}
	c.sub = sub
	c.mu.Unlock()

	events, cancel, err := c.store.Subscribe(ctx)

	c.mu.Lock()
	if err != nil {
		if c.sub == sub {
			c.sub = nil
		}
		c.mu.Unlock()
		return nil, fmt.Errorf("counter: subscribe: %w", err)
	}
	if sub.stopped {
		// Closed while the store was subscribing.
		c.mu.Unlock()
		cancel()
		return nil, ErrClosed
	}
	sub.cancel = cancel
	c.mu.Unlock()

	go c.consume(ctx, sub, events)

	return func() { c.stop(sub) }, nil
}

func (c *Counter) consume(ctx context.Context, sub *subscription, events <-chan domain.ActionEvent) {
	for ev := range events {
		snapshot, changed := c.apply(sub, ev)
		if changed {
			c.emitCounts(ctx, snapshot)
		}
	}

	c.mu.Lock()
	if c.sub == sub {
		c.sub = nil
	}
	c.mu.Unlock()
}

func (c *Counter) apply(sub *subscription, ev domain.ActionEvent) (domain.ActionCounts, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sub.stopped || !ev.Kind.Valid() {
		return nil, false
	}
	if ev.Seq != 0 && ev.Seq <= c.baseline[ev.Kind] {
		c.logger.Debug("Skipping event already in snapshot", "kind", ev.Kind, "seq", ev.Seq)
		return nil, false
	}
	c.counts[ev.Kind]++
	return c.publishLocked(), true
}

func (c *Counter) stop(sub *subscription) {
	sub.once.Do(func() {
		c.mu.Lock()
		sub.stopped = true
		if c.sub == sub {
			c.sub = nil
		}
		cancel := sub.cancel
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	})
}

// RecordAction appends one event of kind to the store. The local total is not
// touched. A failure is logged and returned as a *domain.RecordError.
func (c *Counter) RecordAction(ctx context.Context, kind domain.ActionKind) error {
	_, err := c.store.Append(ctx, kind)
	if err != nil {
		err = &domain.RecordError{Kind: kind, Err: err}
		c.logger.Warn("Failed to record action", "kind", kind, "error", err)
	} else {
		c.logger.Debug("Action recorded", "kind", kind)
	}
	if c.hooks.OnRecord != nil {
		c.hooks.OnRecord(ctx, &domain.RecordEvent{Kind: kind, Err: err})
	}
	return err
}

// Counts returns a copy of the current totals.
func (c *Counter) Counts() domain.ActionCounts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts.Clone()
}

// Watch streams a snapshot now and after every change. Slow readers only see
// the latest snapshot. The channel closes when ctx is done or the counter closes.
func (c *Counter) Watch(ctx context.Context) <-chan domain.ActionCounts {
	ch := make(chan domain.ActionCounts, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch
	}
	id := c.nextID
	c.nextID++
	c.watchers[id] = ch
	ch <- c.counts.Clone()
	c.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-c.done:
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if w, ok := c.watchers[id]; ok {
			delete(c.watchers, id)
			close(w)
		}
	}()
	return ch
}

// publishLocked pushes a snapshot to every watcher, replacing any unread one.
func (c *Counter) publishLocked() domain.ActionCounts {
	snapshot := c.counts.Clone()
	for _, w := range c.watchers {
		select {
		case w <- snapshot.Clone():
			continue
		default:
		}
		select {
		case <-w:
		default:
		}
		select {
		case w <- snapshot.Clone():
		default:
		}
	}
	return snapshot
}

func (c *Counter) emitCounts(ctx context.Context, snapshot domain.ActionCounts) {
	if c.hooks.OnCounts != nil {
		c.hooks.OnCounts(ctx, snapshot)
	}
}

// Close stops the subscription and closes every watcher. Idempotent.
func (c *Counter) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	sub := c.sub
	for id, w := range c.watchers {
		delete(c.watchers, id)
		close(w)
	}
	c.mu.Unlock()

	if sub != nil {
		c.stop(sub)
	}
}
