package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/framecast/pkg/adapters/sqlite"
	"github.com/aretw0/framecast/pkg/domain"
	"github.com/aretw0/framecast/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_Contract(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "events.db"))
	ports.RunEventStoreContract(t, store)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	ctx := context.Background()

	first, err := sqlite.Open(path)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := first.Append(ctx, domain.ActionDownload)
		require.NoError(t, err)
	}
	require.NoError(t, first.Close())

	second := openStore(t, path)
	n, err := second.Count(ctx, domain.ActionDownload)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	ev, err := second.Append(ctx, domain.ActionDownload)
	require.NoError(t, err)
	assert.Equal(t, int64(4), ev.Seq)
}

func TestSQLiteStore_Recent(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "events.db"))
	ctx := context.Background()

	a, err := store.Append(ctx, domain.ActionShare)
	require.NoError(t, err)
	b, err := store.Append(ctx, domain.ActionDownload)
	require.NoError(t, err)

	events, err := store.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, b.ID, events[0].ID)

	events, err = store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, a.ID, events[1].ID)
	assert.Equal(t, domain.ActionShare, events[1].Kind)
}

func TestSQLiteStore_Closed(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err = store.Append(context.Background(), domain.ActionShare)
	assert.ErrorIs(t, err, domain.ErrStoreClosed)
	_, err = store.Count(context.Background(), domain.ActionShare)
	assert.ErrorIs(t, err, domain.ErrStoreClosed)
	_, _, err = store.Subscribe(context.Background())
	assert.ErrorIs(t, err, domain.ErrStoreClosed)
}
