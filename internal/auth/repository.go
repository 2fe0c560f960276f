package auth

import (
	"context"
	"errors"
	"sync"
)

// Repository errors.
var (
	ErrTokenNotFound        = errors.New("token not found")
	ErrCodeVerifierNotFound = errors.New("code verifier not found")
	ErrStateNotFound        = errors.New("state not found")
)

// TokenRepository persists one OAuth token per profile.
type TokenRepository interface {
	// Get returns the token of a profile, or ErrTokenNotFound.
	Get(ctx context.Context, profile string) (*Token, error)

	// Save stores the token of a profile, replacing any previous one.
	Save(ctx context.Context, profile string, token *Token) error

	// Delete removes the token of a profile.
	Delete(ctx context.Context, profile string) error
}

// CodeVerifierRepository persists the pending PKCE verifier per profile.
type CodeVerifierRepository interface {
	// Get returns the verifier record, or ErrCodeVerifierNotFound.
	// Expiry is left to the caller.
	Get(ctx context.Context, profile string) (*CodeVerifier, error)

	// Save stores the verifier record of a profile.
	Save(ctx context.Context, profile string, verifier *CodeVerifier) error

	// Delete removes the verifier record of a profile.
	Delete(ctx context.Context, profile string) error
}

// StateRepository persists the pending state entry per profile.
type StateRepository interface {
	// Get returns the entry registered for a profile, or ErrStateNotFound.
	Get(ctx context.Context, profile string) (*StateEntry, error)

	// FindByState returns the entry holding state, or ErrStateNotFound.
	FindByState(ctx context.Context, state string) (*StateEntry, error)

	// Save stores an entry, replacing the profile's previous one.
	Save(ctx context.Context, entry *StateEntry) error

	// Delete removes the entry of a profile.
	Delete(ctx context.Context, profile string) error
}

// InMemoryTokenRepository is an in-memory implementation of TokenRepository.
// This is intended for testing.
type InMemoryTokenRepository struct {
	mu     sync.RWMutex
	tokens map[string]*Token
}

// NewInMemoryTokenRepository creates a new in-memory token repository.
func NewInMemoryTokenRepository() *InMemoryTokenRepository {
	return &InMemoryTokenRepository{tokens: make(map[string]*Token)}
}

// Get returns a copy of the profile's token.
func (r *InMemoryTokenRepository) Get(_ context.Context, profile string) (*Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	token, ok := r.tokens[profile]
	if !ok {
		return nil, ErrTokenNotFound
	}

	tokenCopy := *token
	return &tokenCopy, nil
}

// Save stores a copy of token.
func (r *InMemoryTokenRepository) Save(_ context.Context, profile string, token *Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tokenCopy := *token
	r.tokens[profile] = &tokenCopy
	return nil
}

// Delete removes the profile's token.
func (r *InMemoryTokenRepository) Delete(_ context.Context, profile string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, profile)
	return nil
}

// InMemoryCodeVerifierRepository is an in-memory implementation of CodeVerifierRepository.
type InMemoryCodeVerifierRepository struct {
	mu        sync.RWMutex
	verifiers map[string]*CodeVerifier
}

// NewInMemoryCodeVerifierRepository creates a new in-memory verifier repository.
func NewInMemoryCodeVerifierRepository() *InMemoryCodeVerifierRepository {
	return &InMemoryCodeVerifierRepository{verifiers: make(map[string]*CodeVerifier)}
}

// Get returns a copy of the profile's verifier record.
func (r *InMemoryCodeVerifierRepository) Get(_ context.Context, profile string) (*CodeVerifier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.verifiers[profile]
	if !ok {
		return nil, ErrCodeVerifierNotFound
	}

	cpy := *v
	return &cpy, nil
}

// Save stores a copy of verifier.
func (r *InMemoryCodeVerifierRepository) Save(_ context.Context, profile string, verifier *CodeVerifier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *verifier
	r.verifiers[profile] = &cpy
	return nil
}

// Delete removes the profile's verifier record.
func (r *InMemoryCodeVerifierRepository) Delete(_ context.Context, profile string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.verifiers, profile)
	return nil
}

// InMemoryStateRepository is an in-memory implementation of StateRepository.
type InMemoryStateRepository struct {
	mu      sync.RWMutex
	entries map[string]*StateEntry // keyed by profile
}

// NewInMemoryStateRepository creates a new in-memory state repository.
func NewInMemoryStateRepository() *InMemoryStateRepository {
	return &InMemoryStateRepository{entries: make(map[string]*StateEntry)}
}

// Get returns a copy of the profile's entry.
func (r *InMemoryStateRepository) Get(_ context.Context, profile string) (*StateEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[profile]
	if !ok {
		return nil, ErrStateNotFound
	}

	cpy := *e
	return &cpy, nil
}

// FindByState returns a copy of the entry holding state.
func (r *InMemoryStateRepository) FindByState(_ context.Context, state string) (*StateEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.State == state {
			cpy := *e
			return &cpy, nil
		}
	}
	return nil, ErrStateNotFound
}

// Save stores a copy of entry.
func (r *InMemoryStateRepository) Save(_ context.Context, entry *StateEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *entry
	r.entries[entry.Profile] = &cpy
	return nil
}

// Delete removes the profile's entry.
func (r *InMemoryStateRepository) Delete(_ context.Context, profile string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, profile)
	return nil
}
