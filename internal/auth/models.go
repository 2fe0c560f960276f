// Package auth implements the OAuth2 Authorization Code + PKCE session that
// authorizes a widget profile against Traewelling.
package auth

import (
	"encoding/json"
	"time"
)

// FlowTTL is how long a code verifier or a state entry stays usable after the
// authorization flow was started.
const FlowTTL = 10 * time.Minute

// Token is the OAuth token persisted for one profile.
type Token struct {
	AccessToken string `json:"accessToken"`

	// RefreshToken is empty when the server did not issue one.
	RefreshToken string `json:"refreshToken"`

	// ExpiresAt is nil when the expiry is unknown.
	ExpiresAt *time.Time `json:"expiresAt"`
}

// tokenJSON is the stored form of a Token: absent values are null.
type tokenJSON struct {
	AccessToken  string     `json:"accessToken"`
	RefreshToken *string    `json:"refreshToken"`
	ExpiresAt    *time.Time `json:"expiresAt"`
}

func (t Token) MarshalJSON() ([]byte, error) {
	out := tokenJSON{AccessToken: t.AccessToken, ExpiresAt: t.ExpiresAt}
	if t.RefreshToken != "" {
		out.RefreshToken = &t.RefreshToken
	}
	return json.Marshal(out)
}

func (t *Token) UnmarshalJSON(data []byte) error {
	var in tokenJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*t = Token{AccessToken: in.AccessToken, ExpiresAt: in.ExpiresAt}
	if in.RefreshToken != nil {
		t.RefreshToken = *in.RefreshToken
	}
	return nil
}

// Expired reports whether the token is past its expiry. Tokens without a
// known expiry never expire locally.
func (t *Token) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !t.ExpiresAt.After(now)
}

// HasRefreshToken reports whether the token can be refreshed.
func (t *Token) HasRefreshToken() bool {
	return t.RefreshToken != ""
}

// CodeVerifier is the PKCE verifier kept between starting the flow and the
// redirect callback.
type CodeVerifier struct {
	CodeVerifier string    `json:"codeVerifier"`
	CreatedAt    time.Time `json:"date"`
}

// Expired reports whether the verifier is older than FlowTTL.
func (v *CodeVerifier) Expired(now time.Time) bool {
	return now.Sub(v.CreatedAt) > FlowTTL
}

// StateEntry correlates an authorization attempt with the profile that started it.
type StateEntry struct {
	Profile   string    `json:"-"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"date"`
}

// Expired reports whether the entry is older than FlowTTL.
func (e *StateEntry) Expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > FlowTTL
}

// State is the authentication state of a profile.
type State int

const (
	StateUnauthenticated State = iota
	StateFlowStarted
	StateAuthenticated
	StateTokenExpired
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "UNAUTHENTICATED"
	case StateFlowStarted:
		return "FLOW_STARTED"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateTokenExpired:
		return "TOKEN_EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// CallbackParams are the query parameters of the authorization redirect.
type CallbackParams struct {
	Code  string
	State string
}
