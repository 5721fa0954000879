package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "livebind.sqlite")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)

	_, ok, err := s.Load(ctx, "counter", "g1")
	require.NoError(t, err)
	assert.False(t, ok)

	values := map[string]any{"count": 3, "label": "three", "tags": []string{"a", "b"}}
	require.NoError(t, s.Save(ctx, "counter", "g1", values))

	got, ok, err := s.Load(ctx, "counter", "g1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"count": 3.0, "label": "three", "tags": []any{"a", "b"}}, got)

	require.NoError(t, s.Save(ctx, "counter", "g1", map[string]any{"count": 4}))
	got, _, _ = s.Load(ctx, "counter", "g1")
	assert.Equal(t, map[string]any{"count": 4.0}, got)

	_, ok, _ = s.Load(ctx, "todos", "g1")
	assert.False(t, ok, "snapshots are scoped by component")
}

func TestGroupsAndDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)

	groups := make(map[string]bool)
	for i := 0; i < 5; i++ {
		g := gofakeit.UUID()
		groups[g] = true
		require.NoError(t, s.Save(ctx, "counter", g, map[string]any{"name": gofakeit.Name()}))
	}
	require.NoError(t, s.Save(ctx, "other", "x", map[string]any{}))

	listed, err := s.Groups(ctx, "counter")
	require.NoError(t, err)
	assert.Len(t, listed, 5)
	for _, g := range listed {
		assert.True(t, groups[g], g)
	}

	require.NoError(t, s.Delete(ctx, "counter", listed[0]))
	listed, _ = s.Groups(ctx, "counter")
	assert.Len(t, listed, 4)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	s, path := openTemp(t)
	require.NoError(t, s.Save(ctx, "counter", "g", map[string]any{"count": 1}))
	require.NoError(t, s.Close())

	again, err := Open(ctx, path)
	require.NoError(t, err, "migrations are idempotent")
	defer again.Close()

	got, ok, err := again.Load(ctx, "counter", "g")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.0, got["count"])
}
