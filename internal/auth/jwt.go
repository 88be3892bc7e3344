// Package auth verifies the bearer tokens websocket subscribers present
// (internal/wsapi; the admin API checks no token), using
// github.com/golang-jwt/jwt/v5 in place of the
// teacher's hand-rolled HS256 parser (see DESIGN.md for why the library
// supersedes it here).
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingToken indicates the request carried no bearer token at all.
var ErrMissingToken = errors.New("missing bearer token")

// Claims is the subject and audience the engine cares about; jwt.RegisteredClaims
// already carries exp/iat/nbf validation via jwt.ParseWithClaims.
type Claims struct {
	jwt.RegisteredClaims
}

// Verifier validates compact JWTs signed with a shared HMAC secret.
type Verifier struct {
	secret []byte
	leeway time.Duration
}

// NewVerifier constructs a Verifier for the given shared secret and clock
// skew allowance.
func NewVerifier(secret string, leeway time.Duration) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	if leeway < 0 {
		leeway = 0
	}
	return &Verifier{secret: []byte(secret), leeway: leeway}, nil
}

// Verify parses and validates token, returning its claims. Expiry, not-before,
// and signature are all checked by jwt.ParseWithClaims; Subject must be
// non-empty since it is the client's logical identifier downstream.
func (v *Verifier) Verify(token string) (*Claims, error) {
	if v == nil || len(v.secret) == 0 {
		return nil, errors.New("verifier not initialised")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return v.secret, nil
	}, jwt.WithLeeway(v.leeway))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("token carries no subject")
	}
	return claims, nil
}
