package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/portsdriver/internal/storage"
)

func backends(t *testing.T) map[string]storage.Backend {
	t.Helper()

	bolt, err := storage.OpenBolt(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	dir, err := storage.OpenDir(filepath.Join(t.TempDir(), "local"))
	require.NoError(t, err)

	all := map[string]storage.Backend{
		"memory": storage.NewMemory(),
		"bolt":   bolt,
		"dir":    dir,
	}
	t.Cleanup(func() {
		for _, b := range all {
			_ = b.Close()
		}
	})
	return all
}

func TestBackendRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := b.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, b.Set(ctx, "k", "v"))
			v, ok, err := b.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "v", v)

			require.NoError(t, b.Set(ctx, "k", ""))
			v, ok, err = b.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, ok, "empty values are still present")
			assert.Empty(t, v)

			require.NoError(t, b.Set(ctx, "weird/key with spaces", "x"))
			v, _, err = b.Get(ctx, "weird/key with spaces")
			require.NoError(t, err)
			assert.Equal(t, "x", v)

			require.NoError(t, b.Remove(ctx, "k"))
			require.NoError(t, b.Remove(ctx, "k"))
			_, ok, err = b.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestBackendCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, b.Set(ctx, "k", "v"), context.Canceled)
			_, _, err := b.Get(ctx, "k")
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestBoltPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "local.db")

	b, err := storage.OpenBolt(path)
	require.NoError(t, err)
	require.NoError(t, b.Set(ctx, "k", "v"))
	require.NoError(t, b.Close())

	b, err = storage.OpenBolt(path)
	require.NoError(t, err)
	defer b.Close()

	v, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestOpen(t *testing.T) {
	b, err := storage.Open("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &storage.Memory{}, b)

	_, err = storage.Open("bolt", "")
	assert.ErrorIs(t, err, storage.ErrEmptyPath)

	_, err = storage.Open("redis", "x")
	assert.ErrorIs(t, err, storage.ErrUnknownBackend)
}

func TestMemoryClosed(t *testing.T) {
	m := storage.NewMemory()
	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Set(context.Background(), "k", "v"), storage.ErrClosed)
}
