package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, NamespaceUserFeatures, "user-1", map[string]interface{}{"first_seen": "2026-03-01"}, 0))

	got, err := s.Get(ctx, NamespaceUserFeatures, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", got["first_seen"])
}

func TestMemoryStore_MissingKeyIsNilNotError(t *testing.T) {
	got, err := NewMemoryStore().Get(context.Background(), NamespaceUserFeatures, "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_NamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, NamespaceUserFeatures, "k", map[string]interface{}{"a": 1}, 0))

	got, err := s.Get(ctx, NamespaceSessions, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, NamespaceSignals, "k", map[string]interface{}{"a": 1}, time.Minute))

	got, err := s.Get(ctx, NamespaceSignals, "k")
	require.NoError(t, err)
	require.NotNil(t, got)

	now = now.Add(2 * time.Minute)
	got, err = s.Get(ctx, NamespaceSignals, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_CallerCannotMutateStoredState(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	original := map[string]interface{}{"a": "one"}
	require.NoError(t, s.Set(ctx, NamespaceUserFeatures, "k", original, 0))
	original["a"] = "mutated"

	got, err := s.Get(ctx, NamespaceUserFeatures, "k")
	require.NoError(t, err)
	assert.Equal(t, "one", got["a"])

	got["a"] = "mutated again"
	fresh, err := s.Get(ctx, NamespaceUserFeatures, "k")
	require.NoError(t, err)
	assert.Equal(t, "one", fresh["a"])
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, NamespaceUserFeatures, "k", map[string]interface{}{"a": 1}, 0))
	require.NoError(t, s.Delete(ctx, NamespaceUserFeatures, "k"))

	got, err := s.Get(ctx, NamespaceUserFeatures, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}
