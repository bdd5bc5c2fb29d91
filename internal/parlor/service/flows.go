package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quokkahq/parlor/internal/parlor/domain"
	"github.com/quokkahq/parlor/internal/parlor/metrics"
	"github.com/quokkahq/parlor/internal/parlor/store"
	"github.com/quokkahq/parlor/pkg/slogx"
)

// FlowService drives the out-of-band account flows: email confirmation,
// password reset and email change. Each leg mints a purpose-bound token,
// mails it as a link and later verifies it.
type FlowService struct {
	Users   *UserService
	Tokens  *TokenService
	Mailer  Mailer
	Metrics metrics.Recorder

	// BaseURL is the public origin links are built against.
	BaseURL string

	ConfirmTTL     time.Duration
	ResetTTL       time.Duration
	ChangeEmailTTL time.Duration
}

func (s *FlowService) recorder() metrics.Recorder {
	if s.Metrics == nil {
		return metrics.Noop{}
	}
	return s.Metrics
}

// verify wraps token verification with an observation of the outcome.
func (s *FlowService) verify(token string, purpose Purpose) (TokenClaims, error) {
	claims, err := s.Tokens.Verify(token, purpose)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	s.recorder().RecordTokenVerified(string(purpose), outcome)
	return claims, err
}

// SendConfirmation mails a confirm-email link to the user's current
// address. Safe to call repeatedly; each call mints a fresh token and older
// ones stay valid until they expire.
func (s *FlowService) SendConfirmation(ctx context.Context, user domain.User) error {
	token, err := s.Tokens.Issue(user.ID, PurposeConfirmEmail, s.ConfirmTTL, "")
	if err != nil {
		return fmt.Errorf("issue confirm token: %w", err)
	}
	s.recorder().RecordTokenIssued(string(PurposeConfirmEmail))
	link := fmt.Sprintf("%s/confirm?token=%s", s.BaseURL, token)
	return s.Mailer.Send(ctx, user.Email, "Confirm your email",
		"Follow this link to confirm your email address: "+link)
}

// ConfirmEmail verifies a confirm-email token and marks the account
// confirmed. Replayed tokens re-confirm harmlessly.
func (s *FlowService) ConfirmEmail(ctx context.Context, token string) error {
	claims, err := s.verify(token, PurposeConfirmEmail)
	if err != nil {
		return err
	}
	if err := s.Users.Confirm(ctx, claims.Subject); err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("email confirmed", slog.String("user_id", claims.Subject))
	return nil
}

// SendPasswordReset mails a reset link when the address belongs to an
// account with local credentials. Unknown addresses and provider-only
// accounts are silently skipped so the endpoint does not leak which emails
// exist.
func (s *FlowService) SendPasswordReset(ctx context.Context, email string) error {
	user, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if !user.HasLocalCredentials() {
		return nil
	}

	token, err := s.Tokens.Issue(user.ID, PurposeResetPassword, s.ResetTTL, "")
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}
	s.recorder().RecordTokenIssued(string(PurposeResetPassword))
	link := fmt.Sprintf("%s/reset?token=%s", s.BaseURL, token)
	return s.Mailer.Send(ctx, user.Email, "Reset your password",
		"Follow this link to choose a new password: "+link)
}

// ResetPassword verifies a reset-password token and replaces the account
// password. A token that outlives a successful reset still verifies; the
// action is self-invalidating in effect because the user holds the new
// password either way.
func (s *FlowService) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, err := s.verify(token, PurposeResetPassword)
	if err != nil {
		return err
	}
	if err := s.Users.ChangePassword(ctx, claims.Subject, newPassword); err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("password reset", slog.String("user_id", claims.Subject))
	return nil
}

// RequestEmailChange mails a change-email link to the proposed new address.
// The new address rides inside the signed token payload; nothing changes
// until the link is followed.
func (s *FlowService) RequestEmailChange(ctx context.Context, user domain.User, newEmail string) error {
	newEmail = NormalizeEmail(newEmail)

	// Fail early if the address is already taken; the constraint is
	// re-checked at confirm time.
	if _, err := s.Users.GetUserByEmail(ctx, newEmail); err == nil {
		return ErrDuplicateEmail
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	token, err := s.Tokens.Issue(user.ID, PurposeChangeEmail, s.ChangeEmailTTL, newEmail)
	if err != nil {
		return fmt.Errorf("issue change-email token: %w", err)
	}
	s.recorder().RecordTokenIssued(string(PurposeChangeEmail))
	link := fmt.Sprintf("%s/change-email?token=%s", s.BaseURL, token)
	return s.Mailer.Send(ctx, newEmail, "Confirm your new email",
		"Follow this link to confirm your new email address: "+link)
}

// ConfirmEmailChange verifies a change-email token and applies the address
// carried in its payload.
func (s *FlowService) ConfirmEmailChange(ctx context.Context, token string) error {
	claims, err := s.verify(token, PurposeChangeEmail)
	if err != nil {
		return err
	}
	if claims.Payload == "" {
		return ErrTokenMalformed
	}
	if err := s.Users.ChangeEmail(ctx, claims.Subject, claims.Payload); err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("email changed", slog.String("user_id", claims.Subject))
	return nil
}
