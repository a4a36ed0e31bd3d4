package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryHashTTLExpiry(t *testing.T) {
	m := NewMemory()
	now := time.Unix(1000, 0)
	m.SetClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, m.HSet(ctx, "k", map[string]string{"a": "1"}, 10*time.Second))

	_, ok, err := m.HGetAll(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(11 * time.Second)
	_, ok, err = m.HGetAll(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "hash must be gone after its TTL")
}

func TestMemorySetOperations(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.SAdd(ctx, "s", "a", 0))
	require.NoError(t, m.SAdd(ctx, "s", "b", 0))

	members, err := m.SMembers(ctx, "s")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, members)

	require.NoError(t, m.SRem(ctx, "s", "a"))
	members, err = m.SMembers(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, members)
}

func TestMemoryHGetSingleField(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.HSet(ctx, "k", map[string]string{"location": "dc1"}, 0))

	v, ok, err := m.HGet(ctx, "k", "location")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dc1", v)

	_, ok, err = m.HGet(ctx, "k", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryFlushPrefix(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.HSet(ctx, "netring:member:a", map[string]string{"x": "1"}, 0))
	require.NoError(t, m.HSet(ctx, "netring:member:b", map[string]string{"x": "2"}, 0))
	require.NoError(t, m.HSet(ctx, "other:c", map[string]string{"x": "3"}, 0))

	n, err := m.FlushPrefix(ctx, "netring:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, ok, err := m.HGetAll(ctx, "other:c")
	require.NoError(t, err)
	assert.True(t, ok, "keys outside the prefix must survive")
}

func TestMemoryExpireRefreshesTTL(t *testing.T) {
	m := NewMemory()
	now := time.Unix(1000, 0)
	m.SetClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, m.HSet(ctx, "k", map[string]string{"a": "1"}, 10*time.Second))
	now = now.Add(8 * time.Second)
	require.NoError(t, m.Expire(ctx, "k", 10*time.Second))
	now = now.Add(8 * time.Second)

	_, ok, err := m.HGetAll(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok, "refreshed TTL must keep the key alive")
}
