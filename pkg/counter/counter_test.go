package counter_test

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/framecast/pkg/adapters/memory"
	"github.com/aretw0/framecast/pkg/counter"
	"github.com/aretw0/framecast/pkg/domain"
	"github.com/aretw0/framecast/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

// scriptedStore lets tests push arbitrary events and inject failures.
type scriptedStore struct {
	mu        sync.Mutex
	counts    map[domain.ActionKind]int64
	countErr  map[domain.ActionKind]error
	appendErr error
	events    chan domain.ActionEvent
	cancels   int
}

func newScriptedStore() *scriptedStore {
	return &scriptedStore{
		counts:   map[domain.ActionKind]int64{},
		countErr: map[domain.ActionKind]error{},
		events:   make(chan domain.ActionEvent, 16),
	}
}

func (s *scriptedStore) Append(_ context.Context, kind domain.ActionKind) (domain.ActionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return domain.ActionEvent{}, s.appendErr
	}
	s.counts[kind]++
	return domain.ActionEvent{ID: "x", Kind: kind, Seq: s.counts[kind]}, nil
}

func (s *scriptedStore) Count(_ context.Context, kind domain.ActionKind) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.countErr[kind]; err != nil {
		return 0, err
	}
	return s.counts[kind], nil
}

func (s *scriptedStore) Subscribe(context.Context) (<-chan domain.ActionEvent, ports.CancelFunc, error) {
	return s.events, func() {
		s.mu.Lock()
		s.cancels++
		s.mu.Unlock()
	}, nil
}

func (s *scriptedStore) Close() error { return nil }

func (s *scriptedStore) cancelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancels
}

func countsEqual(c *counter.Counter, download, share int64) func() bool {
	return func() bool {
		got := c.Counts()
		return got[domain.ActionDownload] == download && got[domain.ActionShare] == share
	}
}

func TestCounter_RecordedDownloadArrivesOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(memory.WithCounts(map[domain.ActionKind]int64{
		domain.ActionDownload: 41,
		domain.ActionShare:    7,
	}))
	defer store.Close()

	c := counter.New(store)
	defer c.Close()

	initial, err := c.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(41), initial[domain.ActionDownload])
	assert.Equal(t, int64(7), initial[domain.ActionShare])

	unsubscribe, err := c.Subscribe(ctx)
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, c.RecordAction(ctx, domain.ActionDownload))

	require.Eventually(t, countsEqual(c, 42, 7), waitFor, 5*time.Millisecond)
	assert.Never(t, func() bool {
		return c.Counts()[domain.ActionDownload] != 42
	}, 50*time.Millisecond, 5*time.Millisecond, "event must be applied exactly once")
}

func TestCounter_RecordDoesNotIncrementLocally(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	defer store.Close()

	c := counter.New(store)
	defer c.Close()

	require.NoError(t, c.RecordAction(ctx, domain.ActionShare))
	assert.Zero(t, c.Counts()[domain.ActionShare], "only pushed events move the total")

	n, err := store.Count(ctx, domain.ActionShare)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCounter_InitializeFailsSoft(t *testing.T) {
	store := newScriptedStore()
	store.counts[domain.ActionDownload] = 12
	store.countErr[domain.ActionShare] = errors.New("connection refused")

	c := counter.New(store)
	defer c.Close()

	got, err := c.Initialize(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetch)

	var fetchErr *domain.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, domain.ActionShare, fetchErr.Kind)

	assert.Equal(t, int64(12), got[domain.ActionDownload])
	assert.Equal(t, int64(0), got[domain.ActionShare])

	// Still usable.
	unsubscribe, err := c.Subscribe(context.Background())
	require.NoError(t, err)
	defer unsubscribe()
	store.events <- domain.ActionEvent{Kind: domain.ActionShare}
	require.Eventually(t, countsEqual(c, 12, 1), waitFor, 5*time.Millisecond)
}

func TestCounter_BothFetchesFail(t *testing.T) {
	store := newScriptedStore()
	store.countErr[domain.ActionDownload] = errors.New("timeout")
	store.countErr[domain.ActionShare] = errors.New("timeout")

	c := counter.New(store)
	got, err := c.Initialize(context.Background())
	assert.ErrorIs(t, err, domain.ErrFetch)
	assert.Equal(t, domain.NewActionCounts(), got)
}

func TestCounter_InitializeNeverDecreases(t *testing.T) {
	store := newScriptedStore()
	store.counts[domain.ActionDownload] = 5

	c := counter.New(store)
	defer c.Close()
	_, err := c.Initialize(context.Background())
	require.NoError(t, err)

	store.mu.Lock()
	store.counts[domain.ActionDownload] = 3
	store.mu.Unlock()

	got, err := c.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), got[domain.ActionDownload])
}

func TestCounter_SkipsEventsInSnapshot(t *testing.T) {
	store := newScriptedStore()
	store.counts[domain.ActionDownload] = 10

	c := counter.New(store)
	defer c.Close()
	_, err := c.Initialize(context.Background())
	require.NoError(t, err)

	unsubscribe, err := c.Subscribe(context.Background())
	require.NoError(t, err)
	defer unsubscribe()

	store.events <- domain.ActionEvent{Kind: domain.ActionDownload, Seq: 9}
	store.events <- domain.ActionEvent{Kind: domain.ActionDownload, Seq: 10}
	store.events <- domain.ActionEvent{Kind: domain.ActionDownload, Seq: 11}
	store.events <- domain.ActionEvent{Kind: domain.ActionShare}
	store.events <- domain.ActionEvent{Kind: domain.ActionKind("like"), Seq: 99}

	require.Eventually(t, countsEqual(c, 11, 1), waitFor, 5*time.Millisecond)
}

func TestCounter_UnsubscribeIsIdempotent(t *testing.T) {
	store := newScriptedStore()
	c := counter.New(store)
	defer c.Close()

	unsubscribe, err := c.Subscribe(context.Background())
	require.NoError(t, err)

	store.events <- domain.ActionEvent{Kind: domain.ActionDownload}
	require.Eventually(t, countsEqual(c, 1, 0), waitFor, 5*time.Millisecond)

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 1, store.cancelCount())

	store.events <- domain.ActionEvent{Kind: domain.ActionDownload}
	assert.Never(t, func() bool {
		return c.Counts()[domain.ActionDownload] != 1
	}, 50*time.Millisecond, 5*time.Millisecond)
}

func TestCounter_SingleActiveSubscription(t *testing.T) {
	store := memory.NewStore()
	defer store.Close()
	c := counter.New(store)
	defer c.Close()

	unsubscribe, err := c.Subscribe(context.Background())
	require.NoError(t, err)

	_, err = c.Subscribe(context.Background())
	assert.ErrorIs(t, err, counter.ErrAlreadySubscribed)

	unsubscribe()
	again, err := c.Subscribe(context.Background())
	require.NoError(t, err)
	again()
}

func TestCounter_RecordFailure(t *testing.T) {
	store := newScriptedStore()
	store.appendErr = errors.New("read-only replica")

	var (
		mu     sync.Mutex
		events []*domain.RecordEvent
	)
	c := counter.New(store, counter.WithHooks(domain.LifecycleHooks{
		OnRecord: func(_ context.Context, ev *domain.RecordEvent) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		},
	}))

	err := c.RecordAction(context.Background(), domain.ActionShare)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRecord)

	var recordErr *domain.RecordError
	require.ErrorAs(t, err, &recordErr)
	assert.Equal(t, domain.ActionShare, recordErr.Kind)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.ErrorIs(t, events[0].Err, domain.ErrRecord)
}

func TestCounter_RecordUnknownKind(t *testing.T) {
	store := memory.NewStore()
	defer store.Close()
	c := counter.New(store)

	err := c.RecordAction(context.Background(), domain.ActionKind("like"))
	assert.ErrorIs(t, err, domain.ErrRecord)
	assert.ErrorIs(t, err, domain.ErrUnknownAction)
}

func TestCounter_Watch(t *testing.T) {
	store := newScriptedStore()
	store.counts[domain.ActionShare] = 2
	c := counter.New(store)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	updates := c.Watch(ctx)

	select {
	case snap := <-updates:
		assert.Equal(t, int64(0), snap[domain.ActionShare])
	case <-time.After(waitFor):
		t.Fatal("no initial snapshot")
	}

	_, err := c.Initialize(context.Background())
	require.NoError(t, err)

	select {
	case snap := <-updates:
		assert.Equal(t, int64(2), snap[domain.ActionShare])
	case <-time.After(waitFor):
		t.Fatal("no update after Initialize")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-updates:
			return !ok
		default:
			return false
		}
	}, waitFor, 5*time.Millisecond)
}

func TestCounter_WatchKeepsLatest(t *testing.T) {
	store := newScriptedStore()
	c := counter.New(store)
	defer c.Close()

	updates := c.Watch(context.Background())
	unsubscribe, err := c.Subscribe(context.Background())
	require.NoError(t, err)
	defer unsubscribe()

	for i := 0; i < 5; i++ {
		store.events <- domain.ActionEvent{Kind: domain.ActionDownload}
	}
	require.Eventually(t, countsEqual(c, 5, 0), waitFor, 5*time.Millisecond)

	snap := <-updates
	assert.Equal(t, int64(5), snap[domain.ActionDownload])
}

func TestCounter_Close(t *testing.T) {
	store := newScriptedStore()
	c := counter.New(store)

	unsubscribe, err := c.Subscribe(context.Background())
	require.NoError(t, err)
	updates := c.Watch(context.Background())
	<-updates

	c.Close()
	c.Close()
	unsubscribe()
	assert.Equal(t, 1, store.cancelCount())

	_, ok := <-updates
	assert.False(t, ok)

	_, err = c.Subscribe(context.Background())
	assert.ErrorIs(t, err, counter.ErrClosed)

	closed := c.Watch(context.Background())
	_, ok = <-closed
	assert.False(t, ok)
}

// gatedStore blocks Subscribe until released, like a slow network handshake.
type gatedStore struct {
	*scriptedStore
	entered chan struct{}
	release chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		scriptedStore: newScriptedStore(),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
}

func (s *gatedStore) Subscribe(ctx context.Context) (<-chan domain.ActionEvent, ports.CancelFunc, error) {
	close(s.entered)
	<-s.release
	return s.scriptedStore.Subscribe(ctx)
}

type subscribeResult struct {
	unsubscribe counter.Unsubscribe
	err         error
}

func subscribeAsync(c *counter.Counter) <-chan subscribeResult {
	out := make(chan subscribeResult, 1)
	go func() {
		unsubscribe, err := c.Subscribe(context.Background())
		out <- subscribeResult{unsubscribe, err}
	}()
	return out
}

func TestCounter_SubscribeDoesNotBlockReaders(t *testing.T) {
	store := newGatedStore()
	store.counts[domain.ActionDownload] = 7
	c := counter.New(store)
	defer c.Close()

	pending := subscribeAsync(c)
	<-store.entered

	// The handshake is still in flight; readers and seeding must not wait on it.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Counts()
		_, _ = c.Initialize(context.Background())
		<-c.Watch(context.Background())
	}()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("counter blocked while the store was subscribing")
	}
	assert.Equal(t, int64(7), c.Counts()[domain.ActionDownload])

	_, err := c.Subscribe(context.Background())
	assert.ErrorIs(t, err, counter.ErrAlreadySubscribed)

	close(store.release)
	res := <-pending
	require.NoError(t, res.err)

	store.events <- domain.ActionEvent{Kind: domain.ActionDownload, Seq: 8}
	require.Eventually(t, countsEqual(c, 8, 0), waitFor, 5*time.Millisecond)
	res.unsubscribe()
}

func TestCounter_CloseDuringSubscribe(t *testing.T) {
	store := newGatedStore()
	c := counter.New(store)

	pending := subscribeAsync(c)
	<-store.entered
	c.Close()
	close(store.release)

	res := <-pending
	assert.ErrorIs(t, res.err, counter.ErrClosed)
	assert.Nil(t, res.unsubscribe)
	assert.Equal(t, 1, store.cancelCount(), "store subscription must be released")
}

func TestCounter_CloseReleasesWatchers(t *testing.T) {
	c := counter.New(newScriptedStore())

	before := runtime.NumGoroutine()
	var updates []<-chan domain.ActionCounts
	for i := 0; i < 20; i++ {
		updates = append(updates, c.Watch(context.Background()))
	}
	c.Close()

	for _, ch := range updates {
		for range ch {
		}
	}
	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, waitFor, 5*time.Millisecond, "watch goroutines outlived Close")
}
