package storage_test

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/portsdriver/internal/storage"
)

type changeLog struct {
	mu      sync.Mutex
	changes []storage.Change
}

func (l *changeLog) add(c storage.Change) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, c)
}

func (l *changeLog) snapshot() []storage.Change {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]storage.Change(nil), l.changes...)
}

func TestHubNotifiesOtherSessions(t *testing.T) {
	ctx := context.Background()
	hub := storage.NewHub(storage.NewMemory())
	defer hub.Close()

	a, b := hub.Session(), hub.Session()
	assert.NotEqual(t, a.Origin(), b.Origin())

	var seenA, seenB changeLog
	a.Subscribe(seenA.add)
	b.Subscribe(seenB.add)

	require.NoError(t, a.Set(ctx, "k", "v"))

	assert.Empty(t, seenA.snapshot(), "a session is not told about its own changes")
	require.Len(t, seenB.snapshot(), 1)
	got := seenB.snapshot()[0]
	assert.Equal(t, "k", got.Key)
	require.NotNil(t, got.Value)
	assert.Equal(t, "v", *got.Value)
	assert.Equal(t, a.Origin(), got.Origin)

	v, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestHubSkipsNoopChanges(t *testing.T) {
	ctx := context.Background()
	hub := storage.NewHub(storage.NewMemory())
	a, b := hub.Session(), hub.Session()

	var seen changeLog
	b.Subscribe(seen.add)

	require.NoError(t, a.Set(ctx, "k", "v"))
	require.NoError(t, a.Set(ctx, "k", "v"))
	require.NoError(t, a.Remove(ctx, "missing"))
	require.NoError(t, a.Remove(ctx, "k"))

	changes := seen.snapshot()
	require.Len(t, changes, 2)
	assert.NotNil(t, changes[0].Value)
	assert.Nil(t, changes[1].Value, "removal reports a nil value")
}

func TestHubUnsubscribe(t *testing.T) {
	ctx := context.Background()
	hub := storage.NewHub(storage.NewMemory())
	a, b := hub.Session(), hub.Session()

	var seen changeLog
	cancel := b.Subscribe(seen.add)
	cancel()
	cancel()

	require.NoError(t, a.Set(ctx, "k", "v"))
	assert.Empty(t, seen.snapshot())
}

func TestHubWatchUnsupported(t *testing.T) {
	hub := storage.NewHub(storage.NewMemory())
	ok, err := hub.Watch()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDirWatchReportsExternalEdits(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "local")
	dir, err := storage.OpenDir(path)
	require.NoError(t, err)

	hub := storage.NewHub(dir)
	defer hub.Close()

	ok, err := hub.Watch()
	require.NoError(t, err)
	require.True(t, ok)

	a := hub.Session()
	var seen changeLog
	a.Subscribe(seen.add)

	// A write through the hub is not echoed back by the watcher.
	require.NoError(t, a.Set(ctx, "own", "1"))

	// Another process writes a key directly.
	name := filepath.Join(path, hex.EncodeToString([]byte("theme"))+".val")
	require.NoError(t, os.WriteFile(name, []byte("dark"), 0o600))

	require.Eventually(t, func() bool {
		for _, c := range seen.snapshot() {
			if c.Key == "theme" && c.Value != nil && *c.Value == "dark" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	for _, c := range seen.snapshot() {
		assert.NotEqual(t, "own", c.Key, "own writes must not be reported")
		assert.Equal(t, storage.External, c.Origin)
	}
}
