package service

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Purpose tags a signed token with the single action it authorizes. A token
// issued for one purpose never verifies for another.
type Purpose string

const (
	PurposeConfirmEmail  Purpose = "confirm-email"
	PurposeResetPassword Purpose = "reset-password"
	PurposeChangeEmail   Purpose = "change-email"

	// Session credentials are verified through the same path as
	// out-of-band tokens: signature first, then expiry, then purpose.
	PurposeSession    Purpose = "session"
	PurposeRemember   Purpose = "remember"
	PurposeOAuthState Purpose = "oauth-state"
)

// TokenClaims is what a signed token carries. Validity is purely a
// function of these signed contents plus the current time; there is no
// server-side revocation list. The actions a token authorizes are
// idempotent or self-invalidating, so strict single-use is not enforced.
type TokenClaims struct {
	jwt.RegisteredClaims

	Purpose Purpose `json:"pur"`
	// Payload carries purpose-specific data, e.g. the new address awaiting
	// confirmation for a change-email token.
	Payload string `json:"pld,omitempty"`
	// Fresh marks session credentials minted by an interactive login.
	Fresh bool `json:"fresh,omitempty"`
}

// TokenService issues and verifies purpose-bound, time-limited signed
// tokens. Tokens are opaque URL-safe strings, self-contained: no store
// lookup is needed to validate one structurally.
type TokenService struct {
	Secret []byte // process-wide signing key; missing key is fatal at startup
	Issuer string
}

// Issue produces a signed token binding userID, purpose, issue time and an
// optional payload. TTLs are purpose-specific and supplied by the caller
// from configuration.
func (s *TokenService) Issue(userID string, purpose Purpose, ttl time.Duration, payload string) (string, error) {
	return s.issue(userID, purpose, ttl, payload, false)
}

func (s *TokenService) issue(userID string, purpose Purpose, ttl time.Duration, payload string, fresh bool) (string, error) {
	now := time.Now().UTC()
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Purpose: purpose,
		Payload: payload,
		Fresh:   fresh,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
}

// Verify decodes token and checks, in order, signature, expiry and
// purpose. The signature check comes first so no field of a tampered token
// is ever acted on.
func (s *TokenService) Verify(token string, expected Purpose) (TokenClaims, error) {
	var claims TokenClaims

	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenMalformed
		}
		return s.Secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil || !parsed.Valid {
		return TokenClaims{}, ErrTokenMalformed
	}

	if claims.ExpiresAt == nil || time.Now().UTC().After(claims.ExpiresAt.Time) {
		return TokenClaims{}, ErrTokenExpired
	}
	if claims.Purpose != expected {
		return TokenClaims{}, ErrTokenPurposeMismatch
	}
	if s.Issuer != "" && claims.Issuer != s.Issuer {
		return TokenClaims{}, ErrTokenMalformed
	}
	return claims, nil
}

// Mailer delivers out-of-band links carrying signed tokens. The real
// transport is an external collaborator; LogMailer stands in when none is
// configured.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}
