package kvstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.SetItem(ctx, KeyAuthToken, "tok-1"))
	got, err := store.GetItem(ctx, KeyAuthToken)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got)

	require.NoError(t, store.RemoveItem(ctx, KeyAuthToken))
	got, err = store.GetItem(ctx, KeyAuthToken)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileStoreMissingKeyReadsAsAbsent(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	got, err := store.GetItem(context.Background(), "neverSet")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileStoreRemoveIsIdempotent(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.RemoveItem(context.Background(), KeyUserData))
	assert.NoError(t, store.RemoveItem(context.Background(), KeyUserData))
}

func TestFileStoreSanitizesKeys(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.SetItem(context.Background(), "../escape", "x"))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(entries[0].Name()), entries[0].Name())

	got, err := store.GetItem(context.Background(), "../escape")
	require.NoError(t, err)
	assert.Equal(t, "x", got)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.SetItem(ctx, KeyUserData, `{"id":7}`))
	got, _ := store.GetItem(ctx, KeyUserData)
	assert.Equal(t, `{"id":7}`, got)

	require.NoError(t, store.RemoveItem(ctx, KeyUserData))
	got, _ = store.GetItem(ctx, KeyUserData)
	assert.Empty(t, got)
}
