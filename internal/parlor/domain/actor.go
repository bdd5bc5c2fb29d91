package domain

// Actor is whoever a request is currently attributed to: an authenticated
// User or a Guest. Both expose the same permission-check capability so
// authorization code never branches on the concrete type.
type Actor interface {
	Permissions() Permission
	Can(Permission) bool
	Anonymous() bool
}

// Guest stands in for requests with no authenticated user. It is never
// persisted and reports zero permissions.
type Guest struct{}

func (Guest) Permissions() Permission { return 0 }
func (Guest) Can(Permission) bool     { return false }
func (Guest) Anonymous() bool         { return true }
