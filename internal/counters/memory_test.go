package counters

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Increment(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	n, err := store.Increment(ctx, "hits")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.IncrementBy(ctx, "hits", 4)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	v, err := store.GetInt64(ctx, "hits")
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)
}

func TestMemoryStore_MissingKeyReadsZero(t *testing.T) {
	store := NewMemoryStore()

	v, err := store.GetInt64(context.Background(), "absent")
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestMemoryStore_Expiration(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.Now = func() time.Time { return now }
	ctx := context.Background()

	_, err := store.Increment(ctx, "hits")
	require.NoError(t, err)
	require.NoError(t, store.SetExpiration(ctx, "hits", now.Add(time.Minute)))

	v, err := store.GetInt64(ctx, "hits")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	now = now.Add(2 * time.Minute)
	v, err = store.GetInt64(ctx, "hits")
	require.NoError(t, err)
	assert.Zero(t, v, "expired counter should read as zero")

	// Incrementing after expiry starts a fresh counter.
	n, err := store.Increment(ctx, "hits")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryStore_SetGet(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.Now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "plan", "free", time.Minute))

	v, err := store.Get(ctx, "plan")
	require.NoError(t, err)
	assert.Equal(t, "free", v)

	now = now.Add(2 * time.Minute)
	v, err = store.Get(ctx, "plan")
	require.NoError(t, err)
	assert.Empty(t, v)
}
