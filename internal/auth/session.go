package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/traewellingwidget/traewellingwidget/internal/pkce"
)

// Predefined session errors.
var (
	// ErrAuthRequired is returned when the profile has no token and no flow in progress.
	ErrAuthRequired = errors.New("authentication required")

	// ErrAuthFlowInProgress is returned while a code verifier awaits its callback.
	ErrAuthFlowInProgress = errors.New("authentication flow in progress")

	// ErrAuthFlowStale is returned when the verifier of a callback is older than FlowTTL.
	ErrAuthFlowStale = errors.New("authentication flow expired")

	// ErrTokenRefreshFailed is returned when an expired token could not be refreshed.
	// The token is deleted, so the profile falls back to ErrAuthRequired.
	ErrTokenRefreshFailed = errors.New("token refresh failed")

	// ErrMissingRefreshToken is wrapped by ErrTokenRefreshFailed when the token has no refresh token.
	ErrMissingRefreshToken = errors.New("missing refresh token")

	// ErrStateMismatch is returned when a callback's state does not match the pending one.
	ErrStateMismatch = errors.New("state mismatch")

	// ErrMissingCode is returned when a redirect carries no authorization code.
	ErrMissingCode = errors.New("authorization code missing")

	// ErrAuthorizationDenied is returned when the redirect carries an OAuth error.
	ErrAuthorizationDenied = errors.New("authorization denied")
)

var tracer = otel.Tracer("github.com/traewellingwidget/traewellingwidget/internal/auth")

// SessionConfig holds the dependencies of a Session.
type SessionConfig struct {
	Profile   string
	OAuth     OAuth2Client
	Tokens    TokenRepository
	Verifiers CodeVerifierRepository

	// States correlates redirects with profiles. Optional.
	States *StateRegistry

	// Verifier generates PKCE verifiers. Default: pkce.Generator with crypto/rand
	Verifier func() string

	Logger zerolog.Logger

	// Now returns the current time. Default: time.Now
	Now func() time.Time
}

// Session is the authentication state machine of one profile:
// UNAUTHENTICATED, FLOW_STARTED, AUTHENTICATED and TOKEN_EXPIRED.
type Session struct {
	profile   string
	oauth     OAuth2Client
	tokens    TokenRepository
	verifiers CodeVerifierRepository
	states    *StateRegistry
	verifier  func() string
	logger    zerolog.Logger
	now       func() time.Time
}

// NewSession creates the session of cfg.Profile.
func NewSession(cfg SessionConfig) *Session {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger.With().Str("profile", cfg.Profile).Logger()

	verifier := cfg.Verifier
	if verifier == nil {
		gen := &pkce.Generator{
			OnFallback: func(err error) {
				logger.Warn().Err(err).Msg("secure random source failed, using weak fallback for code verifier")
			},
		}
		verifier = gen.GenerateCodeVerifier
	}

	return &Session{
		profile:   cfg.Profile,
		oauth:     cfg.OAuth,
		tokens:    cfg.Tokens,
		verifiers: cfg.Verifiers,
		states:    cfg.States,
		verifier:  verifier,
		logger:    logger,
		now:       now,
	}
}

// Profile returns the profile the session belongs to.
func (s *Session) Profile() string {
	return s.profile
}

// IsAuthenticated reports whether a token is stored, expired or not.
func (s *Session) IsAuthenticated(ctx context.Context) (bool, error) {
	_, err := s.tokens.Get(ctx, s.profile)
	if errors.Is(err, ErrTokenNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading token: %w", err)
	}
	return true, nil
}

// IsAuthenticationProcessStarted reports whether an unexpired code verifier
// is stored. A stale verifier is deleted and reported as absent. The verifier
// is not consumed.
func (s *Session) IsAuthenticationProcessStarted(ctx context.Context) (bool, error) {
	_, err := s.pendingVerifier(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrCodeVerifierNotFound), errors.Is(err, ErrAuthFlowStale):
		return false, nil
	default:
		return false, err
	}
}

// pendingVerifier loads the verifier, deleting it and returning
// ErrAuthFlowStale when it is older than FlowTTL.
func (s *Session) pendingVerifier(ctx context.Context) (*CodeVerifier, error) {
	v, err := s.verifiers.Get(ctx, s.profile)
	if err != nil {
		if errors.Is(err, ErrCodeVerifierNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("loading code verifier: %w", err)
	}

	if v.Expired(s.now()) {
		if err := s.verifiers.Delete(ctx, s.profile); err != nil {
			return nil, fmt.Errorf("deleting stale code verifier: %w", err)
		}
		s.logger.Debug().Time("created_at", v.CreatedAt).Msg("discarded stale code verifier")
		return nil, ErrAuthFlowStale
	}

	return v, nil
}

// State returns the current authentication state.
func (s *Session) State(ctx context.Context) (State, error) {
	token, err := s.tokens.Get(ctx, s.profile)
	switch {
	case err == nil:
		if token.Expired(s.now()) {
			return StateTokenExpired, nil
		}
		return StateAuthenticated, nil
	case !errors.Is(err, ErrTokenNotFound):
		return StateUnauthenticated, fmt.Errorf("loading token: %w", err)
	}

	started, err := s.IsAuthenticationProcessStarted(ctx)
	if err != nil {
		return StateUnauthenticated, err
	}
	if started {
		return StateFlowStarted, nil
	}
	return StateUnauthenticated, nil
}

// AuthorizeURL starts a flow with the given state: it generates and stores a
// fresh code verifier and returns the authorization URI carrying its challenge.
func (s *Session) AuthorizeURL(ctx context.Context, state string) (string, error) {
	record := &CodeVerifier{
		CodeVerifier: s.verifier(),
		CreatedAt:    s.now(),
	}
	if err := s.verifiers.Save(ctx, s.profile, record); err != nil {
		return "", fmt.Errorf("saving code verifier: %w", err)
	}

	s.logger.Info().Msg("authorization flow started")
	return s.oauth.AuthorizeURL(state, record.CodeVerifier), nil
}

// StartFlow registers a new state for the profile and returns the
// authorization URI. Without a state registry the URI carries no state.
func (s *Session) StartFlow(ctx context.Context) (string, error) {
	var state string
	if s.states != nil {
		var err error
		state, err = s.states.Register(ctx, s.profile)
		if err != nil {
			return "", err
		}
	}
	return s.AuthorizeURL(ctx, state)
}

// ExpectedState returns the pending state of the profile, or "" when none is
// registered. A callback for a session with a state registry is rejected
// unless a state is pending.
func (s *Session) ExpectedState(ctx context.Context) (string, error) {
	if s.states == nil {
		return "", nil
	}
	state, err := s.states.StateForProfile(ctx, s.profile)
	if errors.Is(err, ErrStateNotFound) {
		return "", nil
	}
	return state, err
}

// checkState matches the callback state against expectedState and, when a
// state registry is configured, against the profile's pending state.
func (s *Session) checkState(ctx context.Context, got, expectedState string) error {
	if expectedState != "" && got != expectedState {
		return ErrStateMismatch
	}
	if s.states == nil {
		return nil
	}

	pending, err := s.states.StateForProfile(ctx, s.profile)
	if errors.Is(err, ErrStateNotFound) {
		return ErrStateMismatch
	}
	if err != nil {
		return err
	}
	if got != pending {
		return ErrStateMismatch
	}
	return nil
}

// endFlow discards the code verifier and the pending state of the profile.
func (s *Session) endFlow(ctx context.Context) error {
	if err := s.verifiers.Delete(ctx, s.profile); err != nil {
		return fmt.Errorf("deleting code verifier: %w", err)
	}
	if s.states != nil {
		if err := s.states.Forget(ctx, s.profile); err != nil {
			s.logger.Warn().Err(err).Msg("failed to forget state")
		}
	}
	return nil
}

// FetchTokenFromQueryParameters completes the flow with the callback
// parameters. The callback state must equal expectedState when that is not
// empty, and the pending state when a state registry is configured. Once the
// code has been sent to the token endpoint the flow is over: the code verifier
// and the state are discarded whether the exchange succeeds or fails.
func (s *Session) FetchTokenFromQueryParameters(ctx context.Context, params CallbackParams, expectedState string) (*Token, error) {
	if err := s.checkState(ctx, params.State, expectedState); err != nil {
		return nil, err
	}
	if params.Code == "" {
		return nil, ErrMissingCode
	}

	v, err := s.pendingVerifier(ctx)
	if err != nil {
		if errors.Is(err, ErrCodeVerifierNotFound) {
			return nil, ErrAuthRequired
		}
		return nil, err
	}

	token, err := s.oauth.Exchange(ctx, params.Code, v.CodeVerifier)
	if err != nil {
		if endErr := s.endFlow(ctx); endErr != nil {
			s.logger.Warn().Err(endErr).Msg("failed to discard authorization flow")
		}
		s.logger.Warn().Err(err).Msg("authorization code exchange failed, the login has to be started again")
		return nil, err
	}

	if err := s.tokens.Save(ctx, s.profile, token); err != nil {
		return nil, fmt.Errorf("saving token: %w", err)
	}
	if err := s.endFlow(ctx); err != nil {
		return nil, err
	}

	s.logger.Info().Msg("authorization completed")
	return token, nil
}

// FetchTokenFromCodeRedirect parses a full redirect URL and completes the flow.
func (s *Session) FetchTokenFromCodeRedirect(ctx context.Context, redirectURL string, expectedState string) (*Token, error) {
	params, err := ParseRedirect(redirectURL)
	if err != nil {
		return nil, err
	}
	return s.FetchTokenFromQueryParameters(ctx, params, expectedState)
}

// ParseRedirect extracts the callback parameters of an authorization redirect.
func ParseRedirect(redirectURL string) (CallbackParams, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return CallbackParams{}, fmt.Errorf("parsing redirect: %w", err)
	}
	return ParseCallbackQuery(u.Query())
}

// ParseCallbackQuery validates the query of an authorization redirect.
func ParseCallbackQuery(q url.Values) (CallbackParams, error) {
	if e := q.Get("error"); e != "" {
		if desc := q.Get("error_description"); desc != "" {
			return CallbackParams{}, fmt.Errorf("%w: %s: %s", ErrAuthorizationDenied, e, desc)
		}
		return CallbackParams{}, fmt.Errorf("%w: %s", ErrAuthorizationDenied, e)
	}

	code := q.Get("code")
	if code == "" {
		return CallbackParams{}, ErrMissingCode
	}
	return CallbackParams{Code: code, State: q.Get("state")}, nil
}

// RefreshToken exchanges the refresh token of token for a new token and
// stores it. On any failure the stored token is deleted and the error wraps
// ErrTokenRefreshFailed.
func (s *Session) RefreshToken(ctx context.Context, token *Token) (*Token, error) {
	ctx, span := tracer.Start(ctx, "auth.RefreshToken")
	defer span.End()
	span.SetAttributes(attribute.String("profile", s.profile))

	if !token.HasRefreshToken() {
		return nil, s.refreshFailed(ctx, span, ErrMissingRefreshToken)
	}

	refreshed, err := s.oauth.Refresh(ctx, token.RefreshToken)
	if err != nil {
		return nil, s.refreshFailed(ctx, span, err)
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = token.RefreshToken
	}

	if err := s.tokens.Save(ctx, s.profile, refreshed); err != nil {
		return nil, fmt.Errorf("saving token: %w", err)
	}

	s.logger.Info().Msg("token refreshed")
	return refreshed, nil
}

func (s *Session) refreshFailed(ctx context.Context, span trace.Span, cause error) error {
	span.RecordError(cause)
	span.SetStatus(codes.Error, "refresh failed")

	if err := s.tokens.Delete(ctx, s.profile); err != nil {
		s.logger.Error().Err(err).Msg("failed to delete unusable token")
	}
	s.logger.Warn().Err(cause).Msg("token refresh failed, profile needs to authenticate again")

	return fmt.Errorf("%w: %w", ErrTokenRefreshFailed, cause)
}

// IsTokenValid reports whether a token is stored and not expired.
func (s *Session) IsTokenValid(ctx context.Context) (bool, error) {
	state, err := s.State(ctx)
	if err != nil {
		return false, err
	}
	return state == StateAuthenticated, nil
}

// ValidToken returns a usable token, refreshing an expired one first. Without
// a token it returns ErrAuthFlowInProgress or ErrAuthRequired.
func (s *Session) ValidToken(ctx context.Context) (*Token, error) {
	token, err := s.tokens.Get(ctx, s.profile)
	if err != nil {
		if !errors.Is(err, ErrTokenNotFound) {
			return nil, fmt.Errorf("loading token: %w", err)
		}
		started, err := s.IsAuthenticationProcessStarted(ctx)
		if err != nil {
			return nil, err
		}
		if started {
			return nil, ErrAuthFlowInProgress
		}
		return nil, ErrAuthRequired
	}

	if token.Expired(s.now()) {
		s.logger.Debug().Msg("token expired, refreshing")
		return s.RefreshToken(ctx, token)
	}
	return token, nil
}

// Logout forgets the token, the pending verifier and the pending state.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.tokens.Delete(ctx, s.profile); err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	if err := s.verifiers.Delete(ctx, s.profile); err != nil {
		return fmt.Errorf("deleting code verifier: %w", err)
	}
	if s.states != nil {
		if err := s.states.Forget(ctx, s.profile); err != nil {
			return fmt.Errorf("deleting state: %w", err)
		}
	}
	return nil
}
