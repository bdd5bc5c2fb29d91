package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quokkahq/parlor/internal/parlor/domain"
	"github.com/quokkahq/parlor/internal/parlor/store"
	"github.com/quokkahq/parlor/pkg/idx"
)

func newMigratedStore(t *testing.T) *Store {
	t.Helper()

	st, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func seedRole(t *testing.T, st *Store, name string, perms domain.Permission) domain.Role {
	t.Helper()

	role := domain.Role{
		ID:          idx.New().String(),
		Name:        name,
		Permissions: perms,
	}
	require.NoError(t, st.Roles().CreateRole(context.Background(), role))
	return role
}

func seedUser(t *testing.T, st *Store, email string, roleID string) domain.User {
	t.Helper()

	u := domain.User{
		ID:          idx.New().String(),
		Email:       email,
		DisplayName: "Test User",
		RoleID:      roleID,
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), u))
	return u
}

func TestMigrationsAreIdempotent(t *testing.T) {
	st := newMigratedStore(t)
	require.NoError(t, st.ApplyMigrations())
}

func TestIsEmpty(t *testing.T) {
	ctx := context.Background()
	st := newMigratedStore(t)

	empty, err := st.Roles().IsEmpty(ctx)
	require.NoError(t, err)
	require.True(t, empty)

	empty, err = st.Users().IsEmpty(ctx)
	require.NoError(t, err)
	require.True(t, empty)

	role := seedRole(t, st, "user", domain.PermFollow)
	seedUser(t, st, "first@example.com", role.ID)

	empty, err = st.Roles().IsEmpty(ctx)
	require.NoError(t, err)
	require.False(t, empty)

	empty, err = st.Users().IsEmpty(ctx)
	require.NoError(t, err)
	require.False(t, empty)
}

func TestUsersRepo(t *testing.T) {
	ctx := context.Background()
	st := newMigratedStore(t)
	role := seedRole(t, st, "user", domain.PermFollow|domain.PermComment)

	t.Run("round trip with role populated", func(t *testing.T) {
		u := seedUser(t, st, "alice@example.com", role.ID)

		got, err := st.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, "alice@example.com", got.Email)
		require.Equal(t, role.ID, got.Role.ID)
		require.True(t, got.Role.Grants(domain.PermComment))
		require.False(t, got.CreatedAt.IsZero())
	})

	t.Run("email unique case-insensitively", func(t *testing.T) {
		err := st.Users().CreateUser(ctx, domain.User{
			ID:          idx.New().String(),
			Email:       "ALICE@example.com",
			DisplayName: "Impostor",
			RoleID:      role.ID,
		})
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("lookup by email is case-insensitive", func(t *testing.T) {
		got, err := st.Users().GetUserByEmail(ctx, "Alice@EXAMPLE.com")
		require.NoError(t, err)
		require.Equal(t, "alice@example.com", got.Email)
	})

	t.Run("unknown user maps to ErrNotFound", func(t *testing.T) {
		_, err := st.Users().GetUserByID(ctx, idx.New().String())
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("update email collides with existing", func(t *testing.T) {
		bob := seedUser(t, st, "bob@example.com", role.ID)
		err := st.Users().UpdateEmail(ctx, bob.ID, "Alice@Example.com")
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})
}

func TestRolesRepoSetDefault(t *testing.T) {
	ctx := context.Background()
	st := newMigratedStore(t)

	a := seedRole(t, st, "a", 0)
	b := seedRole(t, st, "b", 0)

	require.NoError(t, st.Roles().SetDefault(ctx, a.ID))
	def, err := st.Roles().GetDefaultRole(ctx)
	require.NoError(t, err)
	require.Equal(t, a.ID, def.ID)

	// Moving the flag must not trip the single-default unique index.
	require.NoError(t, st.Roles().SetDefault(ctx, b.ID))
	def, err = st.Roles().GetDefaultRole(ctx)
	require.NoError(t, err)
	require.Equal(t, b.ID, def.ID)

	roles, err := st.Roles().ListAll(ctx)
	require.NoError(t, err)
	defaults := 0
	for _, r := range roles {
		if r.Default {
			defaults++
		}
	}
	require.Equal(t, 1, defaults)
}

func TestIdentitiesRepo(t *testing.T) {
	ctx := context.Background()
	st := newMigratedStore(t)
	role := seedRole(t, st, "user", 0)
	alice := seedUser(t, st, "alice@example.com", role.ID)
	bob := seedUser(t, st, "bob@example.com", role.ID)

	ident := domain.ExternalIdentity{
		ID:        idx.New().String(),
		Provider:  "github",
		SubjectID: "gh-1",
		UserID:    alice.ID,
	}
	require.NoError(t, st.Identities().CreateIdentity(ctx, ident))

	t.Run("resolves by provider and subject", func(t *testing.T) {
		got, err := st.Identities().GetByProviderSubject(ctx, "github", "gh-1")
		require.NoError(t, err)
		require.Equal(t, alice.ID, got.UserID)
	})

	t.Run("pair is unique across users", func(t *testing.T) {
		err := st.Identities().CreateIdentity(ctx, domain.ExternalIdentity{
			ID:        idx.New().String(),
			Provider:  "github",
			SubjectID: "gh-1",
			UserID:    bob.ID,
		})
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("same subject under another provider is fine", func(t *testing.T) {
		err := st.Identities().CreateIdentity(ctx, domain.ExternalIdentity{
			ID:        idx.New().String(),
			Provider:  "google",
			SubjectID: "gh-1",
			UserID:    bob.ID,
		})
		require.NoError(t, err)
	})

	t.Run("lists a user's identities", func(t *testing.T) {
		idents, err := st.Identities().ListByUser(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, idents, 1)
	})
}

func TestMessagesRepo(t *testing.T) {
	ctx := context.Background()
	st := newMigratedStore(t)
	role := seedRole(t, st, "user", domain.PermComment)
	alice := seedUser(t, st, "alice@example.com", role.ID)

	for _, body := range []string{"one", "two", "three"} {
		require.NoError(t, st.Messages().CreateMessage(ctx, domain.Message{
			ID:       idx.New().String(),
			AuthorID: alice.ID,
			Body:     body,
		}))
	}

	t.Run("lists newest first with a cap", func(t *testing.T) {
		msgs, err := st.Messages().ListMessages(ctx, 2)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
	})

	t.Run("delete removes the row", func(t *testing.T) {
		msgs, err := st.Messages().ListMessages(ctx, 10)
		require.NoError(t, err)
		target := msgs[0].ID

		require.NoError(t, st.Messages().DeleteMessage(ctx, target))
		_, err = st.Messages().GetMessageByID(ctx, target)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	st := newMigratedStore(t)
	role := seedRole(t, st, "user", 0)

	sentinel := store.ErrAlreadyExists
	err := st.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, domain.User{
			ID:          idx.New().String(),
			Email:       "tx@example.com",
			DisplayName: "Tx",
			RoleID:      role.ID,
		}); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	_, err = st.Users().GetUserByEmail(ctx, "tx@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}
