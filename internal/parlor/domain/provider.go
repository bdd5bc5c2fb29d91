package domain

// Protocol selects the handshake shape a provider speaks.
type Protocol string

const (
	ProtocolOAuth1 Protocol = "1.0"
	ProtocolOAuth2 Protocol = "2.0"
)

// ProviderConfig describes one external identity provider. Loaded once at
// startup and passed by reference into the broker; read-only at runtime.
type ProviderConfig struct {
	Name         string
	Protocol     Protocol
	ClientID     string
	ClientSecret string

	// AuthURL is where the user's browser is sent to authorize.
	AuthURL string
	// TokenURL is the OAuth2 token endpoint or the OAuth1 access-token
	// endpoint.
	TokenURL string
	// RequestTokenURL is the OAuth1 temporary-credential endpoint. Empty
	// for OAuth2 providers.
	RequestTokenURL string
	// ProfileURL returns the authenticated subject's profile.
	ProfileURL string

	RedirectURI string
	Scopes      []string
}
