package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresTokenRepository is a PostgreSQL implementation of TokenRepository.
// It lets several devices share one profile's authorization.
type PostgresTokenRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTokenRepository creates a new PostgreSQL token repository.
func NewPostgresTokenRepository(pool *pgxpool.Pool) *PostgresTokenRepository {
	return &PostgresTokenRepository{pool: pool}
}

// Get returns the token of a profile.
func (r *PostgresTokenRepository) Get(ctx context.Context, profile string) (*Token, error) {
	query := `
		SELECT access_token, refresh_token, expires_at
		FROM oauth_tokens
		WHERE profile = $1
	`

	var token Token
	var refreshToken *string
	err := r.pool.QueryRow(ctx, query, profile).Scan(
		&token.AccessToken,
		&refreshToken,
		&token.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	if refreshToken != nil {
		token.RefreshToken = *refreshToken
	}

	return &token, nil
}

// Save upserts the token of a profile.
func (r *PostgresTokenRepository) Save(ctx context.Context, profile string, token *Token) error {
	query := `
		INSERT INTO oauth_tokens (profile, access_token, refresh_token, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (profile) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    refresh_token = EXCLUDED.refresh_token,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = NOW()
	`

	var refreshToken *string
	if token.RefreshToken != "" {
		refreshToken = &token.RefreshToken
	}

	_, err := r.pool.Exec(ctx, query, profile, token.AccessToken, refreshToken, token.ExpiresAt)
	return err
}

// Delete removes the token of a profile.
func (r *PostgresTokenRepository) Delete(ctx context.Context, profile string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM oauth_tokens WHERE profile = $1`, profile)
	return err
}

// PostgresCodeVerifierRepository is a PostgreSQL implementation of CodeVerifierRepository.
type PostgresCodeVerifierRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresCodeVerifierRepository creates a new PostgreSQL verifier repository.
func NewPostgresCodeVerifierRepository(pool *pgxpool.Pool) *PostgresCodeVerifierRepository {
	return &PostgresCodeVerifierRepository{pool: pool}
}

// Get returns the pending verifier of a profile.
func (r *PostgresCodeVerifierRepository) Get(ctx context.Context, profile string) (*CodeVerifier, error) {
	query := `
		SELECT code_verifier, created_at
		FROM oauth_code_verifiers
		WHERE profile = $1
	`

	var v CodeVerifier
	err := r.pool.QueryRow(ctx, query, profile).Scan(&v.CodeVerifier, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCodeVerifierNotFound
		}
		return nil, err
	}

	return &v, nil
}

// Save upserts the verifier of a profile.
func (r *PostgresCodeVerifierRepository) Save(ctx context.Context, profile string, verifier *CodeVerifier) error {
	query := `
		INSERT INTO oauth_code_verifiers (profile, code_verifier, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (profile) DO UPDATE
		SET code_verifier = EXCLUDED.code_verifier,
		    created_at = EXCLUDED.created_at
	`

	_, err := r.pool.Exec(ctx, query, profile, verifier.CodeVerifier, verifier.CreatedAt)
	return err
}

// Delete removes the verifier of a profile.
func (r *PostgresCodeVerifierRepository) Delete(ctx context.Context, profile string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM oauth_code_verifiers WHERE profile = $1`, profile)
	return err
}

// PostgresStateRepository is a PostgreSQL implementation of StateRepository.
type PostgresStateRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresStateRepository creates a new PostgreSQL state repository.
func NewPostgresStateRepository(pool *pgxpool.Pool) *PostgresStateRepository {
	return &PostgresStateRepository{pool: pool}
}

// Get returns the pending state entry of a profile.
func (r *PostgresStateRepository) Get(ctx context.Context, profile string) (*StateEntry, error) {
	return r.findOne(ctx, `
		SELECT profile, state, created_at
		FROM oauth_states
		WHERE profile = $1
	`, profile)
}

// FindByState returns the entry holding state.
func (r *PostgresStateRepository) FindByState(ctx context.Context, state string) (*StateEntry, error) {
	return r.findOne(ctx, `
		SELECT profile, state, created_at
		FROM oauth_states
		WHERE state = $1
	`, state)
}

func (r *PostgresStateRepository) findOne(ctx context.Context, query string, arg string) (*StateEntry, error) {
	var e StateEntry
	err := r.pool.QueryRow(ctx, query, arg).Scan(&e.Profile, &e.State, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStateNotFound
		}
		return nil, err
	}
	return &e, nil
}

// Save upserts the entry of a profile.
func (r *PostgresStateRepository) Save(ctx context.Context, entry *StateEntry) error {
	query := `
		INSERT INTO oauth_states (profile, state, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (profile) DO UPDATE
		SET state = EXCLUDED.state,
		    created_at = EXCLUDED.created_at
	`

	_, err := r.pool.Exec(ctx, query, entry.Profile, entry.State, entry.CreatedAt)
	return err
}

// Delete removes the entry of a profile.
func (r *PostgresStateRepository) Delete(ctx context.Context, profile string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM oauth_states WHERE profile = $1`, profile)
	return err
}
