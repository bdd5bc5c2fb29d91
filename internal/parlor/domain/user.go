package domain

import "time"

type User struct {
	ID           string
	Email        string // stored case-folded; uniqueness is case-insensitive
	DisplayName  string
	PasswordHash string // argon2 encoded; empty for provider-only accounts
	Confirmed    bool
	RoleID       string // Foreign key to roles table

	// Optional profile fields.
	Bio     string
	Website string
	GitHub  string

	CreatedAt  time.Time
	LastSeenAt time.Time
	UpdatedAt  time.Time

	// Role is populated when the user was loaded together with their role.
	// A zero Role grants nothing.
	Role Role
}

// Permissions returns the bitmask of the user's role.
func (u User) Permissions() Permission {
	return u.Role.Permissions
}

// Can reports whether the user's role grants p.
func (u User) Can(p Permission) bool {
	return u.Role.Grants(p)
}

// Anonymous reports whether this actor is unauthenticated. Users are never
// anonymous; see Guest.
func (u User) Anonymous() bool { return false }

// HasLocalCredentials reports whether the account can sign in with a
// password at all.
func (u User) HasLocalCredentials() bool { return u.PasswordHash != "" }
