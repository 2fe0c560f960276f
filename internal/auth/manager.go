package auth

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// ManagerConfig holds the shared dependencies of all profile sessions.
type ManagerConfig struct {
	OAuth     OAuth2Client
	Tokens    TokenRepository
	Verifiers CodeVerifierRepository
	States    *StateRegistry
	Verifier  func() string
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Manager hands out sessions and resolves redirects that arrive without a
// known profile.
type Manager struct {
	cfg ManagerConfig
}

// NewManager creates a new session manager.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{cfg: cfg}
}

// Session returns the session of profile.
func (m *Manager) Session(profile string) *Session {
	return NewSession(SessionConfig{
		Profile:   profile,
		OAuth:     m.cfg.OAuth,
		Tokens:    m.cfg.Tokens,
		Verifiers: m.cfg.Verifiers,
		States:    m.cfg.States,
		Verifier:  m.cfg.Verifier,
		Logger:    m.cfg.Logger,
		Now:       m.cfg.Now,
	})
}

// CompleteCallback resolves the profile of a redirect through its state and
// completes that profile's flow. Unknown or expired states yield ErrStateMismatch.
func (m *Manager) CompleteCallback(ctx context.Context, params CallbackParams) (string, *Token, error) {
	if m.cfg.States == nil {
		return "", nil, ErrStateMismatch
	}

	profile, err := m.cfg.States.ProfileFromState(ctx, params.State)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return "", nil, ErrStateMismatch
		}
		return "", nil, err
	}

	token, err := m.Session(profile).FetchTokenFromQueryParameters(ctx, params, params.State)
	if err != nil {
		return profile, nil, err
	}
	return profile, token, nil
}
