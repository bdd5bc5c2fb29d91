package domain

import "time"

// ExternalIdentity links a provider-issued subject identifier to a local
// user. The (Provider, SubjectID) pair is unique across the system.
type ExternalIdentity struct {
	ID        string
	Provider  string // provider name, e.g. "github"
	SubjectID string // provider-issued stable identifier, not an email
	UserID    string
	CreatedAt time.Time
}
