package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quokkahq/parlor/internal/parlor/store"
	"github.com/quokkahq/parlor/internal/parlor/store/drivers/sqlite"
	"github.com/quokkahq/parlor/pkg/cryptox"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "parlor-service-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

// newTestStore returns a migrated in-memory store with the role catalog
// seeded.
func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	require.NoError(t, (&RolesService{Store: st}).EnsureSeeded(context.Background()))
	return st
}

func newTestTokens() *TokenService {
	return &TokenService{
		Secret: []byte("test-signing-secret"),
		Issuer: "parlor",
	}
}
