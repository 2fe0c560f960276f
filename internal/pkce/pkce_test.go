package pkce_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/traewellingwidget/traewellingwidget/internal/pkce"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestGenerateCodeVerifier(t *testing.T) {
	verifier := pkce.GenerateCodeVerifier()

	// 32 bytes base64url without padding
	assert.Len(t, verifier, 43)
	assert.NotContains(t, verifier, "=")
	assert.NotContains(t, verifier, "+")
	assert.NotContains(t, verifier, "/")
}

func TestGenerateCodeVerifier_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		v := pkce.GenerateCodeVerifier()
		assert.False(t, seen[v], "verifier generated twice")
		seen[v] = true
	}
}

func TestGenerateCodeVerifier_FallsBackWhenSecureSourceFails(t *testing.T) {
	var fallbackErr error
	gen := pkce.Generator{
		Random:     failingReader{},
		OnFallback: func(err error) { fallbackErr = err },
	}

	verifier := gen.GenerateCodeVerifier()

	require.Error(t, fallbackErr)
	assert.Contains(t, fallbackErr.Error(), "entropy exhausted")
	assert.Len(t, verifier, 43)
}

func TestCodeChallenge_RFC7636Vector(t *testing.T) {
	// Appendix B of RFC 7636
	method, challenge := pkce.CodeChallenge("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk")

	assert.Equal(t, "S256", method)
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", challenge)
}

func TestCodeChallenge_DeterministicAndURLSafe(t *testing.T) {
	for i := 0; i < 20; i++ {
		verifier := pkce.GenerateCodeVerifier()

		_, first := pkce.CodeChallenge(verifier)
		_, second := pkce.CodeChallenge(verifier)

		assert.Equal(t, first, second)
		assert.False(t, strings.ContainsAny(first, "+/"))
		assert.False(t, strings.HasSuffix(first, "="))
	}
}

func TestCodeChallenge_MatchesOAuth2Library(t *testing.T) {
	verifier := pkce.GenerateCodeVerifier()

	_, challenge := pkce.CodeChallenge(verifier)

	assert.Equal(t, oauth2.S256ChallengeFromVerifier(verifier), challenge)
}
