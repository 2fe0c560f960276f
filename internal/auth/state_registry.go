package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// StateRegistryConfig holds configuration for the state registry.
type StateRegistryConfig struct {
	Repository StateRepository
	Logger     zerolog.Logger

	// NewState generates opaque state values. Default: random UUIDs
	NewState func() string

	// Now returns the current time. Default: time.Now
	Now func() time.Time
}

// StateRegistry correlates the opaque OAuth state of a pending authorization
// with the profile that started it. Entries live for FlowTTL and are consumed
// by the first successful lookup.
type StateRegistry struct {
	repo     StateRepository
	logger   zerolog.Logger
	newState func() string
	now      func() time.Time
}

// NewStateRegistry creates a new state registry.
func NewStateRegistry(cfg StateRegistryConfig) *StateRegistry {
	newState := cfg.NewState
	if newState == nil {
		newState = uuid.NewString
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &StateRegistry{
		repo:     cfg.Repository,
		logger:   cfg.Logger,
		newState: newState,
		now:      now,
	}
}

// Register generates a state for profile, replacing any pending one.
func (r *StateRegistry) Register(ctx context.Context, profile string) (string, error) {
	entry := &StateEntry{
		Profile:   profile,
		State:     r.newState(),
		CreatedAt: r.now(),
	}
	if err := r.repo.Save(ctx, entry); err != nil {
		return "", fmt.Errorf("saving state: %w", err)
	}
	return entry.State, nil
}

// StateForProfile returns the pending state of profile without consuming it.
// Expired entries are deleted and reported as ErrStateNotFound.
func (r *StateRegistry) StateForProfile(ctx context.Context, profile string) (string, error) {
	entry, err := r.repo.Get(ctx, profile)
	if err != nil {
		return "", err
	}
	if entry.Expired(r.now()) {
		if err := r.repo.Delete(ctx, profile); err != nil {
			return "", fmt.Errorf("deleting expired state: %w", err)
		}
		return "", ErrStateNotFound
	}
	return entry.State, nil
}

// ProfileFromState resolves state to its profile without consuming it; the
// entry is removed by Forget once the callback is handled. Unknown and
// expired states yield ErrStateNotFound.
func (r *StateRegistry) ProfileFromState(ctx context.Context, state string) (string, error) {
	if state == "" {
		return "", ErrStateNotFound
	}

	entry, err := r.repo.FindByState(ctx, state)
	if err != nil {
		return "", err
	}

	if entry.Expired(r.now()) {
		if err := r.repo.Delete(ctx, entry.Profile); err != nil {
			return "", fmt.Errorf("deleting expired state: %w", err)
		}
		r.logger.Debug().Str("profile", entry.Profile).Msg("discarded expired state")
		return "", ErrStateNotFound
	}
	return entry.Profile, nil
}

// Forget removes the pending state of profile.
func (r *StateRegistry) Forget(ctx context.Context, profile string) error {
	err := r.repo.Delete(ctx, profile)
	if errors.Is(err, ErrStateNotFound) {
		return nil
	}
	return err
}
