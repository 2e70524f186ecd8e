package editlock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/subtitle-editor/internal/kvstore"
)

func TestManager_GetDefaultsToUnlocked(t *testing.T) {
	m := NewManager(kvstore.NewMemoryStore(), nil)

	lock, err := m.Get(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, Lock{Locked: false, Changed: ""}, lock)
}

func TestManager_HeartbeatThenGet(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(kvstore.NewMemoryStore(), func() time.Time { return now })
	ctx := context.Background()

	written, err := m.Heartbeat(ctx, "v1", true)
	require.NoError(t, err)
	assert.Equal(t, Lock{Locked: true, Changed: "2024-05-01T12:00:00Z"}, written)

	got, err := m.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, written, got)

	released, err := m.Heartbeat(ctx, "v1", false)
	require.NoError(t, err)
	assert.False(t, released.Locked)
	assert.NotEmpty(t, released.Changed)
}

func TestManager_GetIgnoresMalformedRecord(t *testing.T) {
	store := kvstore.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), Key("v1"), []byte("{broken")))

	lock, err := NewManager(store, nil).Get(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, Lock{}, lock)
}

func TestIsHeldByOther(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) string { return now.Add(-d).Format(time.RFC3339) }

	assert.True(t, IsHeldByOther(Lock{Locked: true, Changed: at(10 * time.Second)}, now))
	assert.False(t, IsHeldByOther(Lock{Locked: true, Changed: at(61 * time.Second)}, now))
	assert.False(t, IsHeldByOther(Lock{Locked: false, Changed: at(time.Second)}, now))
	assert.False(t, IsHeldByOther(Lock{Locked: true, Changed: ""}, now))
	assert.False(t, IsHeldByOther(Lock{Locked: true, Changed: "yesterday"}, now))
}

func TestParseLocked(t *testing.T) {
	assert.True(t, ParseLocked([]byte(`{"locked":true}`)))
	assert.False(t, ParseLocked([]byte(`{"locked":false}`)))
	assert.False(t, ParseLocked([]byte(`{"locked":"true"}`)))
	assert.False(t, ParseLocked([]byte(`{"locked":1}`)))
	assert.False(t, ParseLocked([]byte(`{}`)))
	assert.False(t, ParseLocked([]byte(`not json`)))
}
