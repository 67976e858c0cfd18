package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/framecast/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// contractTimeout bounds how long the contract waits for pushed events.
const contractTimeout = 2 * time.Second

// RunEventStoreContract runs a suite of tests to verify that an EventStore implementation
// adheres to the defined interface contract. The store must be open and must not be
// shared with other writers while the suite runs; it is not closed.
func RunEventStoreContract(t *testing.T, store EventStore) {
	ctx := context.Background()

	t.Run("Append and Count", func(t *testing.T) {
		downloads, err := store.Count(ctx, domain.ActionDownload)
		require.NoError(t, err)
		shares, err := store.Count(ctx, domain.ActionShare)
		require.NoError(t, err)

		ev, err := store.Append(ctx, domain.ActionDownload)
		require.NoError(t, err, "Append should not return error")
		assert.NotEmpty(t, ev.ID)
		assert.Equal(t, domain.ActionDownload, ev.Kind)
		assert.False(t, ev.At.IsZero())
		if ev.Seq != 0 {
			assert.Equal(t, downloads+1, ev.Seq, "Seq must be the per-kind total after commit")
		}

		_, err = store.Append(ctx, domain.ActionDownload)
		require.NoError(t, err)
		_, err = store.Append(ctx, domain.ActionShare)
		require.NoError(t, err)

		got, err := store.Count(ctx, domain.ActionDownload)
		require.NoError(t, err)
		assert.Equal(t, downloads+2, got)

		got, err = store.Count(ctx, domain.ActionShare)
		require.NoError(t, err)
		assert.Equal(t, shares+1, got)
	})

	t.Run("Unknown Kind", func(t *testing.T) {
		_, err := store.Append(ctx, domain.ActionKind("like"))
		assert.ErrorIs(t, err, domain.ErrUnknownAction)

		_, err = store.Count(ctx, domain.ActionKind("like"))
		assert.ErrorIs(t, err, domain.ErrUnknownAction)
	})

	t.Run("Subscribe Delivers In Order", func(t *testing.T) {
		events, cancel, err := store.Subscribe(ctx)
		require.NoError(t, err)
		defer cancel()

		want := []domain.ActionKind{domain.ActionDownload, domain.ActionShare, domain.ActionDownload}
		ids := make([]string, 0, len(want))
		for _, k := range want {
			ev, err := store.Append(ctx, k)
			require.NoError(t, err)
			ids = append(ids, ev.ID)
		}

		for i, k := range want {
			select {
			case ev, ok := <-events:
				require.True(t, ok, "channel closed early")
				assert.Equal(t, k, ev.Kind, "event %d", i)
				assert.Equal(t, ids[i], ev.ID, "event %d", i)
			case <-time.After(contractTimeout):
				t.Fatalf("timed out waiting for event %d", i)
			}
		}
	})

	t.Run("Fan Out", func(t *testing.T) {
		a, cancelA, err := store.Subscribe(ctx)
		require.NoError(t, err)
		defer cancelA()
		b, cancelB, err := store.Subscribe(ctx)
		require.NoError(t, err)
		defer cancelB()

		ev, err := store.Append(ctx, domain.ActionShare)
		require.NoError(t, err)

		for _, ch := range []<-chan domain.ActionEvent{a, b} {
			select {
			case got := <-ch:
				assert.Equal(t, ev.ID, got.ID)
			case <-time.After(contractTimeout):
				t.Fatal("subscriber did not receive event")
			}
		}
	})

	t.Run("Cancel Is Idempotent", func(t *testing.T) {
		events, cancel, err := store.Subscribe(ctx)
		require.NoError(t, err)

		cancel()
		cancel()

		requireClosed(t, events)
	})

	t.Run("Context Cancel Closes Channel", func(t *testing.T) {
		subCtx, stop := context.WithCancel(ctx)
		events, cancel, err := store.Subscribe(subCtx)
		require.NoError(t, err)
		defer cancel()

		stop()
		requireClosed(t, events)
	})
}

func requireClosed(t *testing.T, events <-chan domain.ActionEvent) {
	t.Helper()
	deadline := time.After(contractTimeout)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription channel was not closed")
		}
	}
}
