package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sync"

	"github.com/traewellingwidget/traewellingwidget/internal/storage"
)

const statesFile = "states.json"

func authorizationPath(profile, file string) string {
	return path.Join("profiles", profile, "authorization", file)
}

// readJSON syncs and decodes a file. missing is returned when the file does not exist.
func readJSON(ctx context.Context, store storage.Store, name string, v any, missing error) error {
	if err := store.Sync(ctx, name); err != nil {
		return fmt.Errorf("syncing %s: %w", name, err)
	}

	data, err := store.ReadFile(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return missing
		}
		return err
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", name, err)
	}
	return nil
}

func writeJSON(ctx context.Context, store storage.Store, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	return store.WriteFile(ctx, name, data)
}

// FileTokenRepository keeps tokens in profiles/{profile}/authorization/access_token.json.
type FileTokenRepository struct {
	store storage.Store
}

// NewFileTokenRepository creates a token repository on store.
func NewFileTokenRepository(store storage.Store) *FileTokenRepository {
	return &FileTokenRepository{store: store}
}

func (r *FileTokenRepository) Get(ctx context.Context, profile string) (*Token, error) {
	var token Token
	if err := readJSON(ctx, r.store, authorizationPath(profile, "access_token.json"), &token, ErrTokenNotFound); err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *FileTokenRepository) Save(ctx context.Context, profile string, token *Token) error {
	return writeJSON(ctx, r.store, authorizationPath(profile, "access_token.json"), token)
}

func (r *FileTokenRepository) Delete(ctx context.Context, profile string) error {
	return r.store.Remove(ctx, authorizationPath(profile, "access_token.json"))
}

// FileCodeVerifierRepository keeps verifiers in profiles/{profile}/authorization/code_verifier.json.
type FileCodeVerifierRepository struct {
	store storage.Store
}

// NewFileCodeVerifierRepository creates a verifier repository on store.
func NewFileCodeVerifierRepository(store storage.Store) *FileCodeVerifierRepository {
	return &FileCodeVerifierRepository{store: store}
}

func (r *FileCodeVerifierRepository) Get(ctx context.Context, profile string) (*CodeVerifier, error) {
	var v CodeVerifier
	if err := readJSON(ctx, r.store, authorizationPath(profile, "code_verifier.json"), &v, ErrCodeVerifierNotFound); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *FileCodeVerifierRepository) Save(ctx context.Context, profile string, verifier *CodeVerifier) error {
	return writeJSON(ctx, r.store, authorizationPath(profile, "code_verifier.json"), verifier)
}

func (r *FileCodeVerifierRepository) Delete(ctx context.Context, profile string) error {
	return r.store.Remove(ctx, authorizationPath(profile, "code_verifier.json"))
}

// FileStateRepository keeps every profile's pending state in one shared
// states.json document of the form {profile: {state, date}}.
type FileStateRepository struct {
	store storage.Store
	mu    sync.Mutex
}

// NewFileStateRepository creates a state repository on store.
func NewFileStateRepository(store storage.Store) *FileStateRepository {
	return &FileStateRepository{store: store}
}

func (r *FileStateRepository) load(ctx context.Context) (map[string]*StateEntry, error) {
	states := make(map[string]*StateEntry)
	if err := readJSON(ctx, r.store, statesFile, &states, ErrStateNotFound); err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return make(map[string]*StateEntry), nil
		}
		return nil, err
	}
	for profile, e := range states {
		e.Profile = profile
	}
	return states, nil
}

func (r *FileStateRepository) Get(ctx context.Context, profile string) (*StateEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	states, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	e, ok := states[profile]
	if !ok {
		return nil, ErrStateNotFound
	}
	return e, nil
}

func (r *FileStateRepository) FindByState(ctx context.Context, state string) (*StateEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	states, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range states {
		if e.State == state {
			return e, nil
		}
	}
	return nil, ErrStateNotFound
}

func (r *FileStateRepository) Save(ctx context.Context, entry *StateEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	states, err := r.load(ctx)
	if err != nil {
		return err
	}
	cpy := *entry
	states[entry.Profile] = &cpy
	return writeJSON(ctx, r.store, statesFile, states)
}

func (r *FileStateRepository) Delete(ctx context.Context, profile string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	states, err := r.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := states[profile]; !ok {
		return nil
	}
	delete(states, profile)
	return writeJSON(ctx, r.store, statesFile, states)
}
