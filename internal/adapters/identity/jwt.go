// Package identity resolves access tokens to user ids.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is returned for missing, malformed, expired or foreign
// tokens.
var ErrUnauthorized = errors.New("unauthorized")

const issuer = "liveboard"

// Claims carried by an access token.
type Claims struct {
	UserID int64 `json:"user_id"`

	jwt.RegisteredClaims
}

// JWT verifies and issues HS256 access tokens.
type JWT struct {
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

// NewJWT constructs a JWT with the shared secret.
func NewJWT(secret string, tokenTTL time.Duration) *JWT {
	return &JWT{secret: []byte(secret), tokenTTL: tokenTTL, now: time.Now}
}

// Resolve returns the user id of a valid token.
func (j *JWT) Resolve(_ context.Context, token string) (int64, error) {
	if token == "" {
		return 0, ErrUnauthorized
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return j.secret, nil
	}, jwt.WithTimeFunc(j.now), jwt.WithIssuer(issuer))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	c, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || c.UserID <= 0 {
		return 0, ErrUnauthorized
	}
	return c.UserID, nil
}

// Sign issues a token for userID.
func (j *JWT) Sign(userID int64) (string, time.Time, error) {
	now := j.now().UTC()
	expiresAt := now.Add(j.tokenTTL)
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return s, expiresAt, nil
}
