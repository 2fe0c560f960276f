package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/traewellingwidget/traewellingwidget/internal/pkce"
)

// Default endpoint paths used when the client settings name none.
const (
	DefaultAuthorizationEndpoint = "/authorize"
	DefaultTokenEndpoint         = "/token"
)

// OAuth2Client is the part of an OAuth2 Authorization Code + PKCE client the
// session depends on.
type OAuth2Client interface {
	// AuthorizeURL builds the authorization URI for state and verifier.
	AuthorizeURL(state, verifier string) string

	// Exchange trades an authorization code for a token.
	Exchange(ctx context.Context, code, verifier string) (*Token, error)

	// Refresh obtains a new token with refreshToken.
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
}

// ClientConfig holds configuration for the OAuth client.
type ClientConfig struct {
	// Server is the base URL relative endpoints are resolved against.
	Server string

	// ClientID identifies the widget at the authorization server.
	ClientID string

	// ClientSecret is empty for public clients.
	ClientSecret string

	// AuthorizationEndpoint is absolute or relative to Server.
	// Default: /authorize on the server origin
	AuthorizationEndpoint string

	// TokenEndpoint is absolute or relative to Server.
	// Default: /token on the server origin
	TokenEndpoint string

	// RedirectURI is where the authorization server sends the user back to.
	RedirectURI string

	// Scopes requested during authorization.
	Scopes []string

	// HTTPClient performs token requests. Default: http.DefaultClient
	HTTPClient *http.Client

	Logger zerolog.Logger
}

// OAuthClient talks to an OAuth2 server using golang.org/x/oauth2.
type OAuthClient struct {
	config     oauth2.Config
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewOAuthClient resolves the endpoints and creates the client.
func NewOAuthClient(cfg ClientConfig) (*OAuthClient, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("oauth client id is required")
	}

	authURL, err := ResolveEndpoint(cfg.Server, cfg.AuthorizationEndpoint, DefaultAuthorizationEndpoint)
	if err != nil {
		return nil, fmt.Errorf("resolving authorization endpoint: %w", err)
	}
	tokenURL, err := ResolveEndpoint(cfg.Server, cfg.TokenEndpoint, DefaultTokenEndpoint)
	if err != nil {
		return nil, fmt.Errorf("resolving token endpoint: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OAuthClient{
		config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
				// Public clients send client_id in the form body.
				AuthStyle: oauth2.AuthStyleInParams,
			},
			RedirectURL: cfg.RedirectURI,
			Scopes:      cfg.Scopes,
		},
		httpClient: httpClient,
		logger:     cfg.Logger,
	}, nil
}

// ResolveEndpoint returns endpoint resolved against server. An empty endpoint
// falls back to fallback, which is resolved against the server origin.
func ResolveEndpoint(server, endpoint, fallback string) (string, error) {
	if endpoint == "" {
		endpoint = fallback
	}

	ref, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}

	if server == "" {
		return "", fmt.Errorf("relative endpoint %q without server", endpoint)
	}
	base, err := url.Parse(server)
	if err != nil {
		return "", err
	}
	if !base.IsAbs() {
		return "", fmt.Errorf("server %q is not an absolute URL", server)
	}

	return base.ResolveReference(ref).String(), nil
}

// AuthorizationEndpoint returns the resolved authorization endpoint.
func (c *OAuthClient) AuthorizationEndpoint() string {
	return c.config.Endpoint.AuthURL
}

// TokenEndpoint returns the resolved token endpoint.
func (c *OAuthClient) TokenEndpoint() string {
	return c.config.Endpoint.TokenURL
}

// AuthorizeURL builds the authorization URI carrying client_id,
// response_type=code, redirect_uri, scope, state and the S256 challenge of verifier.
func (c *OAuthClient) AuthorizeURL(state, verifier string) string {
	method, challenge := pkce.CodeChallenge(verifier)
	return c.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge_method", method),
		oauth2.SetAuthURLParam("code_challenge", challenge),
	)
}

// Exchange performs the authorization_code grant.
func (c *OAuthClient) Exchange(ctx context.Context, code, verifier string) (*Token, error) {
	tok, err := c.config.Exchange(c.context(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", describe(err))
	}

	c.logger.Debug().Bool("refresh_token", tok.RefreshToken != "").Msg("authorization code exchanged")
	return c.toToken(tok), nil
}

// Refresh performs the refresh_token grant. The previous refresh token is kept
// when the server does not rotate it.
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	// A token without access token is never valid, so the source always refreshes.
	src := c.config.TokenSource(c.context(ctx), &oauth2.Token{RefreshToken: refreshToken})

	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", describe(err))
	}

	return c.toToken(tok), nil
}

func (c *OAuthClient) context(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func (c *OAuthClient) toToken(tok *oauth2.Token) *Token {
	token := &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}

	switch {
	case !tok.Expiry.IsZero():
		exp := tok.Expiry
		token.ExpiresAt = &exp
	default:
		token.ExpiresAt = expiryFromAccessToken(tok.AccessToken)
	}

	return token
}

// describe adds the OAuth error code of a token endpoint rejection.
func describe(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return err
	}

	var parts []string
	if re.Response != nil {
		parts = append(parts, fmt.Sprintf("status %d", re.Response.StatusCode))
	}
	if re.ErrorCode != "" {
		parts = append(parts, re.ErrorCode)
	}
	if re.ErrorDescription != "" {
		parts = append(parts, re.ErrorDescription)
	}
	return fmt.Errorf("%s: %w", strings.Join(parts, ", "), err)
}
