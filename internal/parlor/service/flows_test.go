package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// captureMailer records the last mail instead of delivering it.
type captureMailer struct {
	to      string
	subject string
	body    string
	sent    int
}

func (m *captureMailer) Send(ctx context.Context, to, subject, body string) error {
	m.to, m.subject, m.body = to, subject, body
	m.sent++
	return nil
}

func newTestFlows(t *testing.T) (*FlowService, *captureMailer) {
	t.Helper()
	st := newTestStore(t)
	mailer := &captureMailer{}
	return &FlowService{
		Users:          &UserService{Store: st},
		Tokens:         newTestTokens(),
		Mailer:         mailer,
		BaseURL:        "http://localhost:8080",
		ConfirmTTL:     24 * time.Hour,
		ResetTTL:       time.Hour,
		ChangeEmailTTL: time.Hour,
	}, mailer
}

// tokenFromMail pulls the token out of the single link a flow mail carries.
func tokenFromMail(t *testing.T, body string) string {
	t.Helper()
	i := len(body) - 1
	for i >= 0 && body[i] != '=' {
		i--
	}
	require.GreaterOrEqual(t, i, 0, "mail carries no token link")
	return body[i+1:]
}

func TestConfirmEmailFlow(t *testing.T) {
	ctx := context.Background()
	flows, mailer := newTestFlows(t)

	user, err := flows.Users.Register(ctx, "alice@example.com", "Alice", "hunter2hunter2")
	require.NoError(t, err)

	require.NoError(t, flows.SendConfirmation(ctx, user))
	require.Equal(t, "alice@example.com", mailer.to)

	token := tokenFromMail(t, mailer.body)
	require.NoError(t, flows.ConfirmEmail(ctx, token))

	got, err := flows.Users.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, got.Confirmed)

	// Replaying the link re-confirms harmlessly.
	require.NoError(t, flows.ConfirmEmail(ctx, token))
}

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	flows, mailer := newTestFlows(t)
	creds := &CredentialService{Store: flows.Users.Store}

	_, err := flows.Users.Register(ctx, "alice@example.com", "Alice", "old-password-1")
	require.NoError(t, err)

	t.Run("unknown email sends nothing and reports nothing", func(t *testing.T) {
		require.NoError(t, flows.SendPasswordReset(ctx, "nobody@example.com"))
		require.Zero(t, mailer.sent)
	})

	t.Run("provider-only account sends nothing", func(t *testing.T) {
		_, err := flows.Users.CreateExternal(ctx, "ext@example.com", "External")
		require.NoError(t, err)
		require.NoError(t, flows.SendPasswordReset(ctx, "ext@example.com"))
		require.Zero(t, mailer.sent)
	})

	t.Run("reset replaces the password", func(t *testing.T) {
		require.NoError(t, flows.SendPasswordReset(ctx, "alice@example.com"))
		require.Equal(t, 1, mailer.sent)

		token := tokenFromMail(t, mailer.body)
		require.NoError(t, flows.ResetPassword(ctx, token, "new-password-1"))

		_, err := creds.Authenticate(ctx, "alice@example.com", "old-password-1")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = creds.Authenticate(ctx, "alice@example.com", "new-password-1")
		require.NoError(t, err)
	})

	t.Run("confirm token does not reset passwords", func(t *testing.T) {
		user, err := flows.Users.GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)

		wrong, err := flows.Tokens.Issue(user.ID, PurposeConfirmEmail, time.Hour, "")
		require.NoError(t, err)
		err = flows.ResetPassword(ctx, wrong, "sneaky-password")
		require.ErrorIs(t, err, ErrTokenPurposeMismatch)
	})
}

func TestEmailChangeFlow(t *testing.T) {
	ctx := context.Background()
	flows, mailer := newTestFlows(t)

	alice, err := flows.Users.Register(ctx, "alice@example.com", "Alice", "hunter2hunter2")
	require.NoError(t, err)
	_, err = flows.Users.Register(ctx, "bob@example.com", "Bob", "hunter2hunter2")
	require.NoError(t, err)

	t.Run("taken address is rejected up front", func(t *testing.T) {
		err := flows.RequestEmailChange(ctx, alice, "bob@example.com")
		require.ErrorIs(t, err, ErrDuplicateEmail)
	})

	t.Run("link goes to the new address and applies it", func(t *testing.T) {
		require.NoError(t, flows.RequestEmailChange(ctx, alice, "New-Alice@Example.com"))
		require.Equal(t, "new-alice@example.com", mailer.to)

		// Nothing changed yet.
		got, err := flows.Users.GetUserByID(ctx, alice.ID)
		require.NoError(t, err)
		require.Equal(t, "alice@example.com", got.Email)

		token := tokenFromMail(t, mailer.body)
		require.NoError(t, flows.ConfirmEmailChange(ctx, token))

		got, err = flows.Users.GetUserByID(ctx, alice.ID)
		require.NoError(t, err)
		require.Equal(t, "new-alice@example.com", got.Email)
	})
}
