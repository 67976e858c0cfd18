package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/framecast/internal/logging"
	"github.com/aretw0/framecast/pkg/domain"
	"github.com/aretw0/framecast/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// subscriptionBuffer is the capacity of each subscriber channel.
const subscriptionBuffer = 64

// Store implements ports.EventStore using Redis.
//
// Layout (with the default prefix):
//
//	framecast:count:<kind>   INCR counter, the aggregate
//	framecast:events         XADD stream, the append-only log
//	framecast:events:new     PUBLISH channel, the push notification
type Store struct {
	client *backend.Client
	prefix string
	logger *slog.Logger

	appendMu sync.Mutex // keeps commit order == publish order for this process

	mu     sync.Mutex
	subs   map[int]context.CancelFunc
	nextID int
	closed bool
}

var _ ports.EventStore = (*Store)(nil)

type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithLogger sets the logger used for undecodable notifications.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "framecast:",
		logger: logging.NewNop(),
		subs:   make(map[int]context.CancelFunc),
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) countKey(kind domain.ActionKind) string {
	return s.prefix + "count:" + string(kind)
}

func (s *Store) streamKey() string {
	return s.prefix + "events"
}

func (s *Store) channel() string {
	return s.prefix + "events:new"
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Append commits the event to the stream and counter atomically, then publishes it.
// A publish failure is reported even though the event is committed; the next
// reconciliation picks it up.
func (s *Store) Append(ctx context.Context, kind domain.ActionKind) (domain.ActionEvent, error) {
	if !kind.Valid() {
		return domain.ActionEvent{}, fmt.Errorf("%w: %q", domain.ErrUnknownAction, kind)
	}
	if s.isClosed() {
		return domain.ActionEvent{}, domain.ErrStoreClosed
	}

	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	ev := domain.NewActionEvent(kind)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, s.countKey(kind))
	pipe.XAdd(ctx, &backend.XAddArgs{
		Stream: s.streamKey(),
		Values: map[string]interface{}{
			"id":          ev.ID,
			"action_type": string(kind),
			"at":          ev.At.Format(time.RFC3339Nano),
		},
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.ActionEvent{}, fmt.Errorf("failed to append to redis: %w", err)
	}
	ev.Seq = incr.Val()

	payload, err := json.Marshal(ev)
	if err != nil {
		return ev, fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel(), payload).Err(); err != nil {
		return ev, fmt.Errorf("failed to publish event: %w", err)
	}
	return ev, nil
}

// Count reads the aggregate counter for kind.
func (s *Store) Count(ctx context.Context, kind domain.ActionKind) (int64, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: %q", domain.ErrUnknownAction, kind)
	}
	if s.isClosed() {
		return 0, domain.ErrStoreClosed
	}
	n, err := s.client.Get(ctx, s.countKey(kind)).Int64()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get count from redis: %w", err)
	}
	return n, nil
}

// Subscribe listens on the notification channel. The subscription is confirmed
// before Subscribe returns, so every event published afterwards is delivered.
func (s *Store) Subscribe(ctx context.Context) (<-chan domain.ActionEvent, ports.CancelFunc, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, domain.ErrStoreClosed
	}
	subCtx, stop := context.WithCancel(ctx)
	id := s.nextID
	s.nextID++
	s.subs[id] = stop
	s.mu.Unlock()

	pubsub := s.client.Subscribe(subCtx, s.channel())
	if _, err := pubsub.Receive(subCtx); err != nil {
		_ = pubsub.Close()
		s.forget(id)
		stop()
		return nil, nil, fmt.Errorf("failed to subscribe to redis: %w", err)
	}

	out := make(chan domain.ActionEvent, subscriptionBuffer)
	msgs := pubsub.Channel()

	go func() {
		defer close(out)
		defer s.forget(id)
		defer func() {
			if err := pubsub.Close(); err != nil {
				s.logger.Debug("Redis pubsub close failed", "error", err)
			}
		}()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev domain.ActionEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil || !ev.Kind.Valid() {
					s.logger.Warn("Redis: dropping undecodable event", "channel", msg.Channel, "error", err)
					continue
				}
				select {
				case out <- ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.forget(id)
			stop()
		})
	}
	return out, cancel, nil
}

// Recent returns up to limit events from the log, newest first.
func (s *Store) Recent(ctx context.Context, limit int64) ([]domain.ActionEvent, error) {
	msgs, err := s.client.XRevRangeN(ctx, s.streamKey(), "+", "-", limit).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read events from redis: %w", err)
	}
	events := make([]domain.ActionEvent, 0, len(msgs))
	for _, m := range msgs {
		ev := domain.ActionEvent{}
		ev.ID, _ = m.Values["id"].(string)
		kind, _ := m.Values["action_type"].(string)
		ev.Kind = domain.ActionKind(kind)
		if at, ok := m.Values["at"].(string); ok {
			ev.At, _ = time.Parse(time.RFC3339Nano, at)
		}
		events = append(events, ev)
	}
	return events, nil
}

// Close ends all subscriptions and closes the redis client.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	stops := make([]context.CancelFunc, 0, len(s.subs))
	for id, stop := range s.subs {
		stops = append(stops, stop)
		delete(s.subs, id)
	}
	s.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	return s.client.Close()
}

func (s *Store) forget(id int) {
	s.mu.Lock()
	delete(s.subs, id)
	s.mu.Unlock()
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
