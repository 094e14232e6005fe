package dedupe

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_ColdStartReturnsEmptySet(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "seen.json"))

	set, err := store.Load(context.Background())

	require.NoError(t, err)
	assert.Zero(t, set.Len())
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	store := NewFileStore(path)
	ctx := context.Background()

	set := NewSeenSet()
	first := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	set.Add("fp-1", first)
	set.Add("fp-2", first.Add(time.Minute))

	require.NoError(t, store.Save(ctx, set))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
	assert.True(t, loaded.Has("fp-1"))
	assert.Equal(t, first, loaded.Entries()["fp-1"])
}

func TestFileStore_SaveReplacesPreviousState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	store := NewFileStore(path)
	ctx := context.Background()

	old := NewSeenSet()
	old.Add("stale", time.Now())
	require.NoError(t, store.Save(ctx, old))

	fresh := NewSeenSet()
	fresh.Add("current", time.Now())
	require.NoError(t, store.Save(ctx, fresh))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, loaded.Has("stale"))
	assert.True(t, loaded.Has("current"))
}

func TestFileStore_CorruptFileFailsLoudly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(path).Load(context.Background())

	assert.ErrorIs(t, err, ErrPersistence)
}

func TestFileStore_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "seen.json"))

	set := NewSeenSet()
	set.Add("fp", time.Now())
	require.NoError(t, store.Save(context.Background(), set))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "seen.json", entries[0].Name())
}
