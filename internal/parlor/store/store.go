package store

import (
	"context"
	"errors"

	"github.com/quokkahq/parlor/internal/parlor/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for
// now) implement this. Sub-repositories keep concerns tidy and let
// transactional code reuse the same method set.
type Store interface {
	Users() Users
	Roles() Roles
	Identities() Identities
	Messages() Messages

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, rolling back if fn returns
	// an error and committing otherwise. Preferred over Tx for multi-step
	// mutations that must be atomic.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user with their role populated.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail matches case-insensitively and populates the role.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by the app via ULID).
	// Returns ErrAlreadyExists when the email is taken, case-folded.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// UpdateEmail changes the stored email. Returns ErrAlreadyExists when
	// the new email is taken.
	UpdateEmail(ctx context.Context, userID string, email string) error

	// SetConfirmed flips the confirmed flag.
	SetConfirmed(ctx context.Context, userID string, confirmed bool) error

	// UpdateRole reassigns the user's role.
	UpdateRole(ctx context.Context, userID string, roleID string) error

	// UpdateProfile mutates display name and optional profile fields.
	UpdateProfile(ctx context.Context, userID, displayName, bio, website, github string) error

	// TouchLastSeen bumps last_seen_at to now.
	TouchLastSeen(ctx context.Context, userID string) error

	// IsEmpty reports whether there are no users.
	IsEmpty(ctx context.Context) (bool, error)
}

type Roles interface {
	GetRoleByID(ctx context.Context, id string) (domain.Role, error)
	GetRoleByName(ctx context.Context, name string) (domain.Role, error)

	// GetDefaultRole returns the single role flagged default.
	GetDefaultRole(ctx context.Context) (domain.Role, error)

	ListAll(ctx context.Context) ([]domain.Role, error)
	CreateRole(ctx context.Context, r domain.Role) error

	// UpdateRolePermissions replaces a role's bitmask.
	UpdateRolePermissions(ctx context.Context, roleID string, permissions domain.Permission) error

	// SetDefault flags roleID as the default role and clears the flag on
	// every other role. Callers run this inside a transaction.
	SetDefault(ctx context.Context, roleID string) error

	IsEmpty(ctx context.Context) (bool, error)
}

type Identities interface {
	// GetByProviderSubject resolves a (provider, subject id) pair.
	GetByProviderSubject(ctx context.Context, provider, subjectID string) (domain.ExternalIdentity, error)

	// ListByUser returns all identities linked to a user.
	ListByUser(ctx context.Context, userID string) ([]domain.ExternalIdentity, error)

	// CreateIdentity links an identity. Returns ErrAlreadyExists when the
	// (provider, subject id) pair is already linked.
	CreateIdentity(ctx context.Context, ident domain.ExternalIdentity) error
}

type Messages interface {
	CreateMessage(ctx context.Context, m domain.Message) error
	GetMessageByID(ctx context.Context, id string) (domain.Message, error)

	// ListMessages returns newest-first, at most limit rows.
	ListMessages(ctx context.Context, limit int) ([]domain.Message, error)

	DeleteMessage(ctx context.Context, id string) error
}
