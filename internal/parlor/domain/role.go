package domain

import "time"

// Well-known role names. The catalog is seeded idempotently at startup;
// roles are never created ad hoc per request.
const (
	RoleLocked        = "Locked"
	RoleUser          = "User"
	RoleModerator     = "Moderator"
	RoleAdministrator = "Administrator"
)

type Role struct {
	ID          string
	Name        string
	Permissions Permission // bitwise OR of granted Permission bits
	Default     bool       // exactly one role is flagged default
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Grants reports whether the role's bitmask includes every bit of p.
func (r Role) Grants(p Permission) bool {
	return r.Permissions&p == p
}
