package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()
	svc := newTestTokens()

	token, err := svc.Issue("user-1", PurposeConfirmEmail, time.Hour, "")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Verify(token, PurposeConfirmEmail)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, PurposeConfirmEmail, claims.Purpose)
}

func TestTokenPayload(t *testing.T) {
	t.Parallel()
	svc := newTestTokens()

	token, err := svc.Issue("user-1", PurposeChangeEmail, time.Hour, "new@example.com")
	require.NoError(t, err)

	claims, err := svc.Verify(token, PurposeChangeEmail)
	require.NoError(t, err)
	require.Equal(t, "new@example.com", claims.Payload)
}

func TestTokenExpired(t *testing.T) {
	t.Parallel()
	svc := newTestTokens()

	token, err := svc.Issue("user-1", PurposeResetPassword, -time.Minute, "")
	require.NoError(t, err)

	_, err = svc.Verify(token, PurposeResetPassword)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenPurposeMismatch(t *testing.T) {
	t.Parallel()
	svc := newTestTokens()

	token, err := svc.Issue("user-1", PurposeConfirmEmail, time.Hour, "")
	require.NoError(t, err)

	_, err = svc.Verify(token, PurposeResetPassword)
	require.ErrorIs(t, err, ErrTokenPurposeMismatch)
}

func TestTokenMalformed(t *testing.T) {
	t.Parallel()
	svc := newTestTokens()

	t.Run("garbage input", func(t *testing.T) {
		_, err := svc.Verify("not.a.token", PurposeConfirmEmail)
		require.ErrorIs(t, err, ErrTokenMalformed)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := &TokenService{Secret: []byte("a-different-secret"), Issuer: "parlor"}
		token, err := other.Issue("user-1", PurposeConfirmEmail, time.Hour, "")
		require.NoError(t, err)

		_, err = svc.Verify(token, PurposeConfirmEmail)
		require.ErrorIs(t, err, ErrTokenMalformed)
	})

	t.Run("tampered signature takes precedence over expiry", func(t *testing.T) {
		other := &TokenService{Secret: []byte("a-different-secret"), Issuer: "parlor"}
		token, err := other.Issue("user-1", PurposeConfirmEmail, -time.Minute, "")
		require.NoError(t, err)

		// Expired AND badly signed: the signature failure must win.
		_, err = svc.Verify(token, PurposeConfirmEmail)
		require.ErrorIs(t, err, ErrTokenMalformed)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := &TokenService{Secret: svc.Secret, Issuer: "someone-else"}
		token, err := other.Issue("user-1", PurposeConfirmEmail, time.Hour, "")
		require.NoError(t, err)

		_, err = svc.Verify(token, PurposeConfirmEmail)
		require.ErrorIs(t, err, ErrTokenMalformed)
	})
}
