package auth_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/traewellingwidget/traewellingwidget/internal/auth"
)

// tokenServer is a fake OAuth2 token endpoint.
type tokenServer struct {
	*httptest.Server

	mu       sync.Mutex
	forms    []url.Values
	status   int
	response string
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()

	ts := &tokenServer{
		status:   http.StatusOK,
		response: `{"access_token":"access-1","token_type":"Bearer","refresh_token":"refresh-1","expires_in":3600}`,
	}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = r.ParseForm()

		ts.mu.Lock()
		ts.forms = append(ts.forms, r.PostForm)
		status, body := ts.status, ts.response
		ts.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) respond(status int, body string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.status, ts.response = status, body
}

func (ts *tokenServer) lastForm(t *testing.T) url.Values {
	t.Helper()
	ts.mu.Lock()
	defer ts.mu.Unlock()
	require.NotEmpty(t, ts.forms, "token endpoint was not called")
	return ts.forms[len(ts.forms)-1]
}

func (ts *tokenServer) calls() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.forms)
}

func (ts *tokenServer) client(t *testing.T) *auth.OAuthClient {
	t.Helper()
	client, err := auth.NewOAuthClient(auth.ClientConfig{
		Server:                ts.URL + "/",
		ClientID:              "96",
		AuthorizationEndpoint: "/oauth/authorize",
		TokenEndpoint:         "/oauth/token",
		RedirectURI:           "http://localhost:8080/callback",
		Scopes:                []string{"read-statistics"},
		HTTPClient:            ts.Client(),
		Logger:                zerolog.Nop(),
	})
	require.NoError(t, err)
	return client
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	server    *tokenServer
	clock     *clock
	tokens    *auth.InMemoryTokenRepository
	verifiers *auth.InMemoryCodeVerifierRepository
	states    *auth.StateRegistry
	manager   *auth.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		server:    newTokenServer(t),
		clock:     newClock(),
		tokens:    auth.NewInMemoryTokenRepository(),
		verifiers: auth.NewInMemoryCodeVerifierRepository(),
	}
	f.states = auth.NewStateRegistry(auth.StateRegistryConfig{
		Repository: auth.NewInMemoryStateRepository(),
		Logger:     zerolog.Nop(),
		Now:        f.clock.Now,
	})
	f.manager = auth.NewManager(auth.ManagerConfig{
		OAuth:     f.server.client(t),
		Tokens:    f.tokens,
		Verifiers: f.verifiers,
		States:    f.states,
		Verifier:  func() string { return "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk" },
		Logger:    zerolog.Nop(),
		Now:       f.clock.Now,
	})
	return f
}

// statelessSession is a session without a state registry, as used when the
// redirect is pasted back by hand.
func (f *fixture) statelessSession(t *testing.T, profile string) *auth.Session {
	t.Helper()
	return auth.NewSession(auth.SessionConfig{
		Profile:   profile,
		OAuth:     f.server.client(t),
		Tokens:    f.tokens,
		Verifiers: f.verifiers,
		Verifier:  func() string { return "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk" },
		Logger:    zerolog.Nop(),
		Now:       f.clock.Now,
	})
}

func ptr[T any](v T) *T { return &v }
