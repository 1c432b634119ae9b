package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/14kear/voteGateBot/internal/kv"
)

func TestStore_SetGet(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v", 0))

	value, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestStore_Expiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := NewWithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))

	_, err := store.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(time.Minute)

	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	// A zero TTL never expires.
	require.NoError(t, store.Set(ctx, "forever", "v", 0))
	now = now.Add(24 * time.Hour)

	value, err := store.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, "v", value)
}

func TestStore_IncrKeepsTTL(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := NewWithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "n", "0", time.Minute))

	n, err := store.Incr(ctx, "n")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.Incr(ctx, "n")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	now = now.Add(time.Minute)

	_, err = store.Get(ctx, "n")
	assert.ErrorIs(t, err, kv.ErrNotFound, "incr does not extend the original TTL")
}

func TestStore_IncrMissingKeyStartsAtOne(t *testing.T) {
	store := New()

	n, err := store.Incr(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStore_Delete(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", "1", 0))
	require.NoError(t, store.Set(ctx, "b", "2", 0))

	require.NoError(t, store.Delete(ctx, "a", "b", "missing"))

	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, kv.ErrNotFound)
	_, err = store.Get(ctx, "b")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}
