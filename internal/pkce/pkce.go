// Package pkce generates Proof Key for Code Exchange verifiers and challenges.
package pkce

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	mathrand "math/rand/v2"

	"golang.org/x/oauth2"
)

const (
	// VerifierLength is the number of random bytes behind a code verifier.
	// 32 bytes encode to a 43 character verifier, the minimum RFC 7636 allows.
	VerifierLength = 32

	// MethodS256 is the only challenge method this package produces.
	MethodS256 = "S256"
)

// Generator produces code verifiers from a random source.
type Generator struct {
	// Random is the secure source. Defaults to crypto/rand.Reader.
	Random io.Reader

	// OnFallback is called when the secure source fails and the
	// generator falls back to math/rand.
	OnFallback func(err error)
}

// GenerateCodeVerifier returns 32 random bytes, base64url encoded without padding.
// Unlike oauth2.GenerateVerifier it does not panic when the source fails.
func (g Generator) GenerateCodeVerifier() string {
	src := g.Random
	if src == nil {
		src = rand.Reader
	}

	buf := make([]byte, VerifierLength)
	if _, err := io.ReadFull(src, buf); err != nil {
		if g.OnFallback != nil {
			g.OnFallback(fmt.Errorf("reading secure random source: %w", err))
		}
		for i := range buf {
			buf[i] = byte(mathrand.IntN(256)) //nolint:gosec // fallback when the secure source is unavailable
		}
	}

	return base64.RawURLEncoding.EncodeToString(buf)
}

// GenerateCodeVerifier uses the default Generator.
func GenerateCodeVerifier() string {
	return Generator{}.GenerateCodeVerifier()
}

// CodeChallenge returns the challenge method and the S256 challenge for verifier.
func CodeChallenge(verifier string) (method, challenge string) {
	return MethodS256, oauth2.S256ChallengeFromVerifier(verifier)
}
