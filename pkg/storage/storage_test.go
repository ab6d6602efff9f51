package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]BlobStore {
	t.Helper()
	ctx := context.Background()

	local, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	sqlite, err := NewSQLiteStorage(ctx, filepath.Join(t.TempDir(), "radar.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]BlobStore{
		"local":  local,
		"sqlite": sqlite,
		"memory": NewMemoryStorage(),
	}
}

func TestBlobStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(ctx, "@radar_subscriptions")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Set(ctx, "@radar_subscriptions", []byte(`[{"id":"1"}]`)))
			got, err := store.Get(ctx, "@radar_subscriptions")
			require.NoError(t, err)
			assert.Equal(t, `[{"id":"1"}]`, string(got))

			// Overwrite replaces the value
			require.NoError(t, store.Set(ctx, "@radar_subscriptions", []byte(`[]`)))
			got, err = store.Get(ctx, "@radar_subscriptions")
			require.NoError(t, err)
			assert.Equal(t, `[]`, string(got))

			// Keys are independent
			require.NoError(t, store.Set(ctx, "@user_preferences", []byte(`{}`)))
			got, err = store.Get(ctx, "@radar_subscriptions")
			require.NoError(t, err)
			assert.Equal(t, `[]`, string(got))

			require.NoError(t, store.Remove(ctx, "@radar_subscriptions"))
			_, err = store.Get(ctx, "@radar_subscriptions")
			assert.ErrorIs(t, err, ErrNotFound)

			// Removing twice is fine
			assert.NoError(t, store.Remove(ctx, "@radar_subscriptions"))
		})
	}
}

func TestMemoryStorageCopiesBlobs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	blob := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", blob))
	blob[0] = 'z'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestLocalStorageSanitizesKeys(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set(context.Background(), "../escape/key", []byte("x")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "__escape_key.json", entries[0].Name())
}

func TestNewSelectsBackend(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, &Config{Type: StorageTypeMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, s)

	s, err = New(ctx, &Config{Type: StorageTypeLocal, LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = New(ctx, &Config{Type: "ftp"})
	assert.Error(t, err)
}
