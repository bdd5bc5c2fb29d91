package service

import "errors"

// Typed failures surfaced by the identity core. Callers map these to
// user-visible messages; none of them carry internal detail.
var (
	// Registration / identity store.
	ErrDuplicateEmail        = errors.New("duplicate_email")
	ErrIdentityAlreadyLinked = errors.New("identity_already_linked")

	// Credential authentication. ErrInvalidCredentials deliberately covers
	// both unknown email and wrong password so responses cannot be used to
	// enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrAccountLocked      = errors.New("account_locked")
	ErrAccountUnconfirmed = errors.New("account_unconfirmed")

	// Signed tokens.
	ErrTokenExpired         = errors.New("token_expired")
	ErrTokenMalformed       = errors.New("token_malformed")
	ErrTokenPurposeMismatch = errors.New("token_purpose_mismatch")

	// External identity broker.
	ErrUnknownProvider          = errors.New("unknown_provider")
	ErrProviderUnreachable      = errors.New("provider_unreachable")
	ErrProviderDenied           = errors.New("provider_denied")
	ErrProviderError            = errors.New("provider_error")
	ErrExchangeFailed           = errors.New("exchange_failed")
	ErrProfileFetchFailed       = errors.New("profile_fetch_failed")
	ErrEmailOwnedByLocalAccount = errors.New("email_owned_by_local_account")

	// Sessions.
	ErrReauthenticationRequired = errors.New("reauthentication_required")
	ErrNotAuthenticated         = errors.New("not_authenticated")

	// Authorization.
	ErrPermissionDenied = errors.New("permission_denied")

	// Messages.
	ErrMessageNotFound = errors.New("message_not_found")
	ErrInvalidMessage  = errors.New("invalid_message")
)
