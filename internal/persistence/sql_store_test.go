package persistence

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "editor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLStore_GetSetDelete(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, found, err := store.Get(ctx, "subtitle-lock-a")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "subtitle-lock-a", []byte(`{"locked":true}`)))
	require.NoError(t, store.Set(ctx, "subtitle-lock-a", []byte(`{"locked":false}`)))

	v, found, err := store.Get(ctx, "subtitle-lock-a")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"locked":false}`, string(v))

	require.NoError(t, store.Delete(ctx, "subtitle-lock-a"))
	_, found, err = store.Get(ctx, "subtitle-lock-a")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLStore_CompareAndSwap(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	ok, err := store.CompareAndSwap(ctx, "k", nil, []byte("pending"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.CompareAndSwap(ctx, "k", nil, []byte("pending"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.CompareAndSwap(ctx, "k", []byte("stale"), []byte("done"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.CompareAndSwap(ctx, "k", []byte("pending"), []byte("done"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.CompareAndSwap(ctx, "k", []byte("done"), nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.CompareAndSwap(ctx, "k", nil, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLStore_CompareAndSwap_SingleWinner(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.CompareAndSwap(ctx, "race", nil, []byte("pending"))
			if err == nil && ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestSQLStore_MigrationsAreIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "editor.db")
	first, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(context.Background(), "k", []byte("v")))
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	v, found, err := second.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v", string(v))
}

func TestSQLStore_Directory(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertUser(ctx, 1, 100))
	require.NoError(t, store.UpsertUser(ctx, 2, 200))
	require.NoError(t, store.UpsertChannel(ctx, 10, 100))
	require.NoError(t, store.UpsertVideo(ctx, "6f1c2a7e-4b7d-4c1e-9a0f-2b3c4d5e6f70", 10))

	channel, found, err := store.ChannelOfVideo(ctx, "6f1c2a7e-4b7d-4c1e-9a0f-2b3c4d5e6f70")
	require.NoError(t, err)
	require.True(t, found)
	assert.EqualValues(t, 10, channel)

	_, found, err = store.ChannelOfVideo(ctx, "00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.False(t, found)

	ok, err := store.CanAccessChannel(ctx, 1, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.CanAccessChannel(ctx, 2, 10)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{driver: DriverPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := &SQLStore{driver: DriverSQLite}
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}
