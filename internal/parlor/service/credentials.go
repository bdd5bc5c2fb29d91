package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/quokkahq/parlor/internal/parlor/domain"
	"github.com/quokkahq/parlor/internal/parlor/store"
	"github.com/quokkahq/parlor/pkg/cryptox"
	"github.com/quokkahq/parlor/pkg/slogx"
)

// dummyHash is verified against when the email is unknown or the account
// has no local password, so both paths cost a full argon2 run and stay
// indistinguishable from a wrong password.
const dummyHash = "$argon2id$v=19$m=19456,t=2,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

type CredentialService struct {
	Store store.Store
}

// Authenticate verifies a local email+password pair.
//
// Unknown email, provider-only account and wrong password all collapse into
// ErrInvalidCredentials. A locked account fails with ErrAccountLocked before
// the confirmed flag is consulted. An unconfirmed account authenticates
// successfully: "confirmed" is a permission-like flag the caller gates
// sensitive actions on, not a login gate.
func (s *CredentialService) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	l := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = cryptox.VerifyPassword(password, dummyHash)
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}

	hash := user.PasswordHash
	if hash == "" {
		hash = dummyHash
	}
	if cryptox.VerifyPassword(password, hash) != nil {
		l.Info("password verification failed", slog.String("user_id", user.ID))
		return domain.User{}, ErrInvalidCredentials
	}

	if user.Role.Name == domain.RoleLocked {
		l.Warn("login attempt on locked account", slog.String("user_id", user.ID))
		return domain.User{}, ErrAccountLocked
	}

	return user, nil
}

// RequireConfirmed is the gate callers apply before actions reserved for
// verified accounts.
func RequireConfirmed(user domain.User) error {
	if !user.Confirmed {
		return ErrAccountUnconfirmed
	}
	return nil
}
