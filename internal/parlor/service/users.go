package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quokkahq/parlor/internal/parlor/domain"
	"github.com/quokkahq/parlor/internal/parlor/store"
	"github.com/quokkahq/parlor/pkg/cryptox"
	"github.com/quokkahq/parlor/pkg/idx"
	"github.com/quokkahq/parlor/pkg/slogx"
)

// Profile field limits, matching the registration and profile forms.
const (
	MaxDisplayName = 64
	MaxBio         = 120
	MaxLink        = 128
	MinPassword    = 8
	MaxPassword    = 128
)

type UserService struct {
	Store store.Store

	// AdminEmail, when set, elevates the matching account to the
	// administrator role at creation time. One-shot bootstrap rule, not a
	// general mechanism.
	AdminEmail string
}

// NormalizeEmail case-folds and trims an email address. All lookups and
// writes go through this so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a locally-credentialed user. The account starts
// unconfirmed; confirmation happens out-of-band via a signed token.
func (s *UserService) Register(ctx context.Context, email, displayName, password string) (domain.User, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	return s.create(ctx, email, displayName, hash)
}

// CreateExternal creates a user with no local credentials. Used by the
// broker when a never-seen external identity signs in; the caller links the
// identity in the same transaction scope.
func (s *UserService) CreateExternal(ctx context.Context, email, displayName string) (domain.User, error) {
	return s.create(ctx, email, displayName, "")
}

func (s *UserService) create(ctx context.Context, email, displayName, passwordHash string) (domain.User, error) {
	l := slogx.FromContext(ctx)

	var user domain.User
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		user, err = s.createInTx(ctx, tx, email, displayName, passwordHash, false)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}

	l.Info("user created",
		slog.String("user_id", user.ID),
		slog.String("role", user.Role.Name),
	)
	return user, nil
}

// createInTx inserts a user inside an existing transaction. The broker uses
// it so resolve-then-create stays atomic with the identity link.
func (s *UserService) createInTx(ctx context.Context, tx store.Tx, email, displayName, passwordHash string, confirmed bool) (domain.User, error) {
	email = NormalizeEmail(email)

	role, err := tx.Roles().GetDefaultRole(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("resolve default role: %w", err)
	}
	if s.AdminEmail != "" && email == NormalizeEmail(s.AdminEmail) {
		role, err = tx.Roles().GetRoleByName(ctx, domain.RoleAdministrator)
		if err != nil {
			return domain.User{}, fmt.Errorf("resolve administrator role: %w", err)
		}
	}

	user := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		Confirmed:    confirmed,
		RoleID:       role.ID,
		Role:         role,
	}
	if err := tx.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrDuplicateEmail
		}
		return domain.User{}, err
	}
	return user, nil
}

// LinkIdentity attaches a (provider, subject id) pair to a user. Idempotent
// when the pair already resolves to the same user; fails with
// ErrIdentityAlreadyLinked when it resolves to a different one.
func (s *UserService) LinkIdentity(ctx context.Context, userID, provider, subjectID string) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		return linkIdentityTx(ctx, tx, userID, provider, subjectID)
	})
}

// linkIdentityTx is the transaction-scoped body of LinkIdentity, shared
// with the broker's resolve step.
func linkIdentityTx(ctx context.Context, tx store.Tx, userID, provider, subjectID string) error {
	existing, err := tx.Identities().GetByProviderSubject(ctx, provider, subjectID)
	switch {
	case err == nil:
		if existing.UserID == userID {
			return nil // already linked to this user
		}
		return ErrIdentityAlreadyLinked
	case errors.Is(err, store.ErrNotFound):
		// fall through to create
	default:
		return err
	}

	err = tx.Identities().CreateIdentity(ctx, domain.ExternalIdentity{
		ID:        idx.New().String(),
		Provider:  provider,
		SubjectID: subjectID,
		UserID:    userID,
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		// Lost a race with a concurrent link; the storage constraint is
		// the source of truth.
		return ErrIdentityAlreadyLinked
	}
	return err
}

// Confirm marks the user's email as verified. Re-confirming is a no-op.
func (s *UserService) Confirm(ctx context.Context, userID string) error {
	return s.Store.Users().SetConfirmed(ctx, userID, true)
}

// ChangePassword replaces the user's password hash.
func (s *UserService) ChangePassword(ctx context.Context, userID, newPassword string) error {
	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.Store.Users().UpdatePasswordHash(ctx, userID, hash)
}

// ChangeEmail applies a verified email change. The new address must have
// been carried in a signed change-email token.
func (s *UserService) ChangeEmail(ctx context.Context, userID, newEmail string) error {
	err := s.Store.Users().UpdateEmail(ctx, userID, NormalizeEmail(newEmail))
	if errors.Is(err, store.ErrAlreadyExists) {
		return ErrDuplicateEmail
	}
	return err
}

// UpdateProfile mutates the user's display name and optional profile
// fields.
func (s *UserService) UpdateProfile(ctx context.Context, userID, displayName, bio, website, github string) error {
	return s.Store.Users().UpdateProfile(ctx, userID, displayName, bio, website, github)
}

// GetUserByID fetches a user with their role populated.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, userID)
}

// GetUserByEmail fetches a user by normalized email.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.Store.Users().GetUserByEmail(ctx, NormalizeEmail(email))
}

// Identities lists the external identities linked to a user.
func (s *UserService) Identities(ctx context.Context, userID string) ([]domain.ExternalIdentity, error) {
	return s.Store.Identities().ListByUser(ctx, userID)
}
