package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quokkahq/parlor/internal/parlor/domain"
)

func TestRegister(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &UserService{Store: st}

	t.Run("creates an unconfirmed user with the default role", func(t *testing.T) {
		user, err := svc.Register(ctx, "Alice@Example.com", "Alice", "hunter2hunter2")
		require.NoError(t, err)

		require.Equal(t, "alice@example.com", user.Email)
		require.False(t, user.Confirmed)
		require.Equal(t, domain.RoleUser, user.Role.Name)
		require.True(t, user.HasLocalCredentials())
	})

	t.Run("rejects duplicate email case-insensitively", func(t *testing.T) {
		_, err := svc.Register(ctx, "ALICE@example.COM", "Other Alice", "hunter2hunter2")
		require.ErrorIs(t, err, ErrDuplicateEmail)
	})

	t.Run("elevates the configured admin email", func(t *testing.T) {
		admin := &UserService{Store: st, AdminEmail: "root@example.com"}
		user, err := admin.Register(ctx, "root@example.com", "Root", "hunter2hunter2")
		require.NoError(t, err)
		require.Equal(t, domain.RoleAdministrator, user.Role.Name)
		require.True(t, user.Can(domain.PermAdminister))
	})
}

func TestLinkIdentity(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &UserService{Store: st}

	alice, err := svc.Register(ctx, "alice@example.com", "Alice", "hunter2hunter2")
	require.NoError(t, err)
	bob, err := svc.Register(ctx, "bob@example.com", "Bob", "hunter2hunter2")
	require.NoError(t, err)

	t.Run("links a new identity", func(t *testing.T) {
		require.NoError(t, svc.LinkIdentity(ctx, alice.ID, "github", "gh-1001"))

		idents, err := svc.Identities(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, idents, 1)
		require.Equal(t, "github", idents[0].Provider)
		require.Equal(t, "gh-1001", idents[0].SubjectID)
	})

	t.Run("relinking the same pair is a no-op", func(t *testing.T) {
		require.NoError(t, svc.LinkIdentity(ctx, alice.ID, "github", "gh-1001"))

		idents, err := svc.Identities(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, idents, 1)
	})

	t.Run("pair owned by another user is rejected", func(t *testing.T) {
		err := svc.LinkIdentity(ctx, bob.ID, "github", "gh-1001")
		require.ErrorIs(t, err, ErrIdentityAlreadyLinked)
	})

	t.Run("same subject on another provider is distinct", func(t *testing.T) {
		require.NoError(t, svc.LinkIdentity(ctx, bob.ID, "google", "gh-1001"))
	})
}

func TestChangeEmail(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &UserService{Store: st}

	alice, err := svc.Register(ctx, "alice@example.com", "Alice", "hunter2hunter2")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "bob@example.com", "Bob", "hunter2hunter2")
	require.NoError(t, err)

	t.Run("applies a new address", func(t *testing.T) {
		require.NoError(t, svc.ChangeEmail(ctx, alice.ID, "Alice2@Example.com"))

		got, err := svc.GetUserByID(ctx, alice.ID)
		require.NoError(t, err)
		require.Equal(t, "alice2@example.com", got.Email)
	})

	t.Run("rejects an address already taken", func(t *testing.T) {
		err := svc.ChangeEmail(ctx, alice.ID, "BOB@example.com")
		require.ErrorIs(t, err, ErrDuplicateEmail)
	})
}

func TestConfirm(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &UserService{Store: st}

	user, err := svc.Register(ctx, "carol@example.com", "Carol", "hunter2hunter2")
	require.NoError(t, err)
	require.ErrorIs(t, RequireConfirmed(user), ErrAccountUnconfirmed)

	require.NoError(t, svc.Confirm(ctx, user.ID))

	got, err := svc.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, got.Confirmed)
	require.NoError(t, RequireConfirmed(got))

	// Re-confirming is harmless.
	require.NoError(t, svc.Confirm(ctx, user.ID))
}
