// Package jwt provides client-side inspection of access tokens.
//
// The backend is the sole verifier of its own tokens; the client never holds
// the signing key and must not pretend to validate. What it can do is read
// the registered claims of the token it was handed (subject, expiry, issue
// time) to drive UX decisions such as "show the session-about-to-expire
// hint". Nothing here is an authorization decision.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed is returned when the token is not a parseable JWT.
var ErrMalformed = errors.New("jwt: malformed token")

// Claims is the subset of registered claims the client cares about. Zero
// time values mean the claim was absent.
type Claims struct {
	Subject   string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Inspect decodes the claims of token without verifying its signature.
// Callers must treat the result as a hint, never as proof of validity.
func Inspect(token string) (*Claims, error) {
	var registered jwt.RegisteredClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &registered); err != nil {
		return nil, ErrMalformed
	}

	claims := &Claims{
		Subject: registered.Subject,
		Issuer:  registered.Issuer,
	}
	if registered.IssuedAt != nil {
		claims.IssuedAt = registered.IssuedAt.Time
	}
	if registered.ExpiresAt != nil {
		claims.ExpiresAt = registered.ExpiresAt.Time
	}
	return claims, nil
}

// ExpiresWithin reports whether the token's expiry claim falls inside the
// next window. Tokens without an expiry claim, and tokens that do not parse,
// are reported as not expiring so the 401 path stays the single authority.
func ExpiresWithin(token string, window time.Duration) bool {
	claims, err := Inspect(token)
	if err != nil || claims.ExpiresAt.IsZero() {
		return false
	}
	return time.Until(claims.ExpiresAt) <= window
}
