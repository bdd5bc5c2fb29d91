package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quokkahq/parlor/internal/parlor/domain"
)

func newTestSessions(t *testing.T) (*SessionManager, *UserService) {
	t.Helper()
	st := newTestStore(t)
	return &SessionManager{
		Tokens:      newTestTokens(),
		Store:       st,
		SessionTTL:  time.Hour,
		RememberTTL: 30 * 24 * time.Hour,
		FreshFor:    30 * time.Minute,
	}, &UserService{Store: st}
}

func TestSessionResolve(t *testing.T) {
	ctx := context.Background()
	sessions, users := newTestSessions(t)

	alice, err := users.Register(ctx, "alice@example.com", "Alice", "hunter2hunter2")
	require.NoError(t, err)

	t.Run("session token resolves fresh", func(t *testing.T) {
		token, err := sessions.IssueSession(alice)
		require.NoError(t, err)

		actor, sess, err := sessions.Resolve(ctx, token, "")
		require.NoError(t, err)
		require.NotNil(t, sess)
		require.True(t, sess.Fresh)
		require.False(t, sess.Remembered)
		require.False(t, actor.Anonymous())

		user, ok := actor.(domain.User)
		require.True(t, ok)
		require.Equal(t, alice.ID, user.ID)
	})

	t.Run("remember token restores stale", func(t *testing.T) {
		remember, err := sessions.IssueRemember(alice)
		require.NoError(t, err)

		actor, sess, err := sessions.Resolve(ctx, "", remember)
		require.NoError(t, err)
		require.NotNil(t, sess)
		require.False(t, sess.Fresh)
		require.True(t, sess.Remembered)
		require.False(t, actor.Anonymous())
	})

	t.Run("invalid session falls back to remember", func(t *testing.T) {
		remember, err := sessions.IssueRemember(alice)
		require.NoError(t, err)

		actor, sess, err := sessions.Resolve(ctx, "garbage", remember)
		require.NoError(t, err)
		require.NotNil(t, sess)
		require.True(t, sess.Remembered)
		require.False(t, actor.Anonymous())
	})

	t.Run("no credentials resolves to guest", func(t *testing.T) {
		actor, sess, err := sessions.Resolve(ctx, "", "")
		require.NoError(t, err)
		require.Nil(t, sess)
		require.True(t, actor.Anonymous())
		require.False(t, actor.Can(domain.PermComment))
	})

	t.Run("remember token never verifies as session", func(t *testing.T) {
		remember, err := sessions.IssueRemember(alice)
		require.NoError(t, err)

		// Presented in the session slot only, with no remember fallback.
		actor, sess, err := sessions.Resolve(ctx, remember, "")
		require.NoError(t, err)
		require.Nil(t, sess)
		require.True(t, actor.Anonymous())
	})

	t.Run("locked account resolves to guest", func(t *testing.T) {
		token, err := sessions.IssueSession(alice)
		require.NoError(t, err)

		locked, err := sessions.Store.Roles().GetRoleByName(ctx, domain.RoleLocked)
		require.NoError(t, err)
		require.NoError(t, sessions.Store.Users().UpdateRole(ctx, alice.ID, locked.ID))

		actor, sess, err := sessions.Resolve(ctx, token, "")
		require.NoError(t, err)
		require.Nil(t, sess)
		require.True(t, actor.Anonymous())
	})
}

func TestRequireFresh(t *testing.T) {
	t.Parallel()

	sessions := &SessionManager{FreshFor: 30 * time.Minute}

	t.Run("nil session is not authenticated", func(t *testing.T) {
		require.ErrorIs(t, sessions.RequireFresh(nil), ErrNotAuthenticated)
	})

	t.Run("fresh recent session passes", func(t *testing.T) {
		sess := &Session{Fresh: true, IssuedAt: time.Now()}
		require.NoError(t, sessions.RequireFresh(sess))
	})

	t.Run("remembered session requires reauthentication", func(t *testing.T) {
		sess := &Session{Fresh: false, Remembered: true, IssuedAt: time.Now()}
		require.ErrorIs(t, sessions.RequireFresh(sess), ErrReauthenticationRequired)
	})

	t.Run("aged session requires reauthentication", func(t *testing.T) {
		sess := &Session{Fresh: true, IssuedAt: time.Now().Add(-time.Hour)}
		require.ErrorIs(t, sessions.RequireFresh(sess), ErrReauthenticationRequired)
	})
}
