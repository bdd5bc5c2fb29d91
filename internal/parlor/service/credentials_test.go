package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quokkahq/parlor/internal/parlor/domain"
)

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	users := &UserService{Store: st}
	svc := &CredentialService{Store: st}

	alice, err := users.Register(ctx, "alice@example.com", "Alice", "correct horse battery")
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		got, err := svc.Authenticate(ctx, "alice@example.com", "correct horse battery")
		require.NoError(t, err)
		require.Equal(t, alice.ID, got.ID)
	})

	t.Run("email lookup is case-insensitive", func(t *testing.T) {
		got, err := svc.Authenticate(ctx, "ALICE@Example.Com", "correct horse battery")
		require.NoError(t, err)
		require.Equal(t, alice.ID, got.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "alice@example.com", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email is indistinguishable from wrong password", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "nobody@example.com", "whatever")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("provider-only account has no usable password", func(t *testing.T) {
		_, err := users.CreateExternal(ctx, "ext@example.com", "External")
		require.NoError(t, err)

		_, err = svc.Authenticate(ctx, "ext@example.com", "")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unconfirmed account still authenticates", func(t *testing.T) {
		got, err := svc.Authenticate(ctx, "alice@example.com", "correct horse battery")
		require.NoError(t, err)
		require.False(t, got.Confirmed)
	})

	t.Run("locked account is refused", func(t *testing.T) {
		locked, err := st.Roles().GetRoleByName(ctx, domain.RoleLocked)
		require.NoError(t, err)
		require.NoError(t, st.Users().UpdateRole(ctx, alice.ID, locked.ID))

		_, err = svc.Authenticate(ctx, "alice@example.com", "correct horse battery")
		require.ErrorIs(t, err, ErrAccountLocked)
	})
}
