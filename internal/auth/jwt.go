package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expiryFromAccessToken reads the exp claim of a JWT access token. Traewelling
// issues Passport JWTs, so a token response without expires_in still carries
// its expiry. The signature is not checked; the token is only inspected
// locally and never trusted for authorization decisions.
func expiryFromAccessToken(accessToken string) *time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return nil
	}
	if claims.ExpiresAt == nil {
		return nil
	}

	exp := claims.ExpiresAt.Time
	return &exp
}
