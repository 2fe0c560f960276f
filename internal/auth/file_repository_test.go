package auth_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traewellingwidget/traewellingwidget/internal/auth"
	"github.com/traewellingwidget/traewellingwidget/internal/storage"
)

func TestFileTokenRepository(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := storage.NewLocal(dir)
	require.NoError(t, err)
	repo := auth.NewFileTokenRepository(store)

	_, err = repo.Get(ctx, "0")
	assert.ErrorIs(t, err, auth.ErrTokenNotFound)

	exp := time.Date(2024, 3, 10, 13, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(ctx, "0", &auth.Token{AccessToken: "a", RefreshToken: "r", ExpiresAt: &exp}))

	data, err := os.ReadFile(filepath.Join(dir, "profiles", "0", "authorization", "access_token.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"accessToken":"a","refreshToken":"r","expiresAt":"2024-03-10T13:00:00Z"}`, string(data))

	token, err := repo.Get(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, "a", token.AccessToken)
	assert.True(t, exp.Equal(*token.ExpiresAt))

	require.NoError(t, repo.Delete(ctx, "0"))
	_, err = repo.Get(ctx, "0")
	assert.ErrorIs(t, err, auth.ErrTokenNotFound)
}

func TestFileTokenRepository_AbsentValuesAreNull(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := storage.NewLocal(dir)
	require.NoError(t, err)
	repo := auth.NewFileTokenRepository(store)

	require.NoError(t, repo.Save(ctx, "0", &auth.Token{AccessToken: "a"}))

	data, err := os.ReadFile(filepath.Join(dir, "profiles", "0", "authorization", "access_token.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"accessToken":"a","refreshToken":null,"expiresAt":null}`, string(data))

	token, err := repo.Get(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, &auth.Token{AccessToken: "a"}, token)
	assert.False(t, token.HasRefreshToken())
}

func TestFileCodeVerifierRepository(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := storage.NewLocal(dir)
	require.NoError(t, err)
	repo := auth.NewFileCodeVerifierRepository(store)

	created := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(ctx, "1", &auth.CodeVerifier{CodeVerifier: "v", CreatedAt: created}))

	data, err := os.ReadFile(filepath.Join(dir, "profiles", "1", "authorization", "code_verifier.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"codeVerifier":"v","date":"2024-03-10T12:00:00Z"}`, string(data))

	v, err := repo.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "v", v.CodeVerifier)

	require.NoError(t, repo.Delete(ctx, "1"))
	_, err = repo.Get(ctx, "1")
	assert.ErrorIs(t, err, auth.ErrCodeVerifierNotFound)
}

func TestFileStateRepository_SharedDocument(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := storage.NewLocal(dir)
	require.NoError(t, err)
	repo := auth.NewFileStateRepository(store)

	created := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(ctx, &auth.StateEntry{Profile: "0", State: "s0", CreatedAt: created}))
	require.NoError(t, repo.Save(ctx, &auth.StateEntry{Profile: "1", State: "s1", CreatedAt: created}))

	data, err := os.ReadFile(filepath.Join(dir, "states.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"0": {"state":"s0","date":"2024-03-10T12:00:00Z"},
		"1": {"state":"s1","date":"2024-03-10T12:00:00Z"}
	}`, string(data))

	e, err := repo.FindByState(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "1", e.Profile)

	require.NoError(t, repo.Delete(ctx, "1"))
	_, err = repo.FindByState(ctx, "s1")
	assert.ErrorIs(t, err, auth.ErrStateNotFound)

	e, err = repo.Get(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, "s0", e.State)
}
