package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traewellingwidget/traewellingwidget/internal/storage"
)

func TestLocal_WriteReadRemove(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.WriteFile(ctx, "profiles/0/authorization/access_token.json", []byte(`{"accessToken":"a"}`)))

	exists, err := store.Exists(ctx, "profiles/0/authorization/access_token.json")
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := store.ReadFile(ctx, "profiles/0/authorization/access_token.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"accessToken":"a"}`, string(data))

	modTime, err := store.ModTime(ctx, "profiles/0/authorization/access_token.json")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), modTime, 5*time.Second)

	require.NoError(t, store.Remove(ctx, "profiles/0/authorization/access_token.json"))
	_, err = store.ReadFile(ctx, "profiles/0/authorization/access_token.json")
	assert.ErrorIs(t, err, storage.ErrNotExist)
}

func TestLocal_RemoveMissingIsNoError(t *testing.T) {
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Remove(context.Background(), "nope.json"))
}

func TestLocal_ModTimeMissing(t *testing.T) {
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = store.ModTime(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotExist)
}

func TestLocal_PathsStayInsideBase(t *testing.T) {
	base := t.TempDir()
	store, err := storage.NewLocal(filepath.Join(base, "root"))
	require.NoError(t, err)

	require.NoError(t, store.WriteFile(context.Background(), "../escape.json", []byte("x")))

	_, err = os.Stat(filepath.Join(base, "escape.json"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(base, "root", "escape.json"))
	assert.NoError(t, err)
}

func TestLocal_MkdirAllAndSync(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.MkdirAll(ctx, "profiles/1/cache"))
	exists, err := store.Exists(ctx, "profiles/1/cache")
	require.NoError(t, err)
	assert.True(t, exists)

	assert.NoError(t, store.Sync(ctx, "profiles/1/cache"))
}
