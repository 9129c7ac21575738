package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorePutAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "/uploads/audio/")
	require.NoError(t, err)

	obj, err := store.Put(context.Background(), ".WAV", strings.NewReader("RIFF...."), 1024)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(obj.URL, "/uploads/audio/"))
	assert.True(t, strings.HasSuffix(obj.Key, ".wav"))
	assert.EqualValues(t, 8, obj.Size)

	_, err = os.Stat(filepath.Join(dir, obj.Key))
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), obj.URL))
	_, err = os.Stat(filepath.Join(dir, obj.Key))
	assert.True(t, os.IsNotExist(err))

	// Deleting twice or outside the prefix is harmless.
	require.NoError(t, store.Delete(context.Background(), obj.URL))
	require.NoError(t, store.Delete(context.Background(), "/etc/passwd"))
}

func TestLocalStoreRejectsOversized(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "/uploads/audio")
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "mp3", strings.NewReader(strings.Repeat("x", 11)), 10)
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	obj, err := store.Put(context.Background(), "", strings.NewReader("abc"), 10)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(obj.Key, ".webm"))
	assert.True(t, store.Has(obj.URL))

	require.NoError(t, store.Delete(context.Background(), obj.URL))
	assert.False(t, store.Has(obj.URL))
}
