package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/quokkahq/parlor/internal/parlor/domain"
	"github.com/quokkahq/parlor/internal/parlor/service"
)

// Config is the process configuration, loaded from the environment.
type Config struct {
	Env       string `env:"ENV" envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	Port      int    `env:"PORT" envDefault:"8080"`

	// BaseURL is the public origin used in mailed links and provider
	// redirect URIs.
	BaseURL string `env:"PARLOR_BASE_URL" envDefault:"http://localhost:8080"`

	// SecretKey signs every token the service mints. Required outside dev;
	// dev generates an ephemeral one per process.
	SecretKey  string `env:"PARLOR_SECRET_KEY"`
	AdminEmail string `env:"PARLOR_ADMIN_EMAIL"`

	DatabaseFile string `env:"PARLOR_DATABASE_FILE" envDefault:"parlor.db"`
	PepperFile   string `env:"PARLOR_PEPPER_FILE" envDefault:"pepper"`

	// LinkPolicy decides what happens when a provider email collides with
	// an unlinked local account: reject or link.
	LinkPolicy string `env:"PARLOR_LINK_POLICY" envDefault:"reject"`

	SessionTTL     time.Duration `env:"PARLOR_SESSION_TTL" envDefault:"12h"`
	RememberTTL    time.Duration `env:"PARLOR_REMEMBER_TTL" envDefault:"720h"`
	FreshFor       time.Duration `env:"PARLOR_FRESH_FOR" envDefault:"30m"`
	ConfirmTTL     time.Duration `env:"PARLOR_CONFIRM_TTL" envDefault:"24h"`
	ResetTTL       time.Duration `env:"PARLOR_RESET_TTL" envDefault:"1h"`
	ChangeEmailTTL time.Duration `env:"PARLOR_CHANGE_EMAIL_TTL" envDefault:"1h"`
	OAuthStateTTL  time.Duration `env:"PARLOR_OAUTH_STATE_TTL" envDefault:"10m"`

	ProviderTimeout time.Duration `env:"PARLOR_PROVIDER_TIMEOUT" envDefault:"10s"`
	// ProviderRate caps outbound provider calls per second.
	ProviderRate float64 `env:"PARLOR_PROVIDER_RATE" envDefault:"10"`

	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`

	GoogleClientID      string `env:"PARLOR_GOOGLE_CLIENT_ID"`
	GoogleClientSecret  string `env:"PARLOR_GOOGLE_CLIENT_SECRET"`
	GitHubClientID      string `env:"PARLOR_GITHUB_CLIENT_ID"`
	GitHubClientSecret  string `env:"PARLOR_GITHUB_CLIENT_SECRET"`
	TwitterClientID     string `env:"PARLOR_TWITTER_CLIENT_ID"`
	TwitterClientSecret string `env:"PARLOR_TWITTER_CLIENT_SECRET"`
}

// LoadConfig reads configuration from the environment and validates it.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.Env != "dev" && cfg.SecretKey == "" {
		return Config{}, fmt.Errorf("PARLOR_SECRET_KEY is required outside dev")
	}

	switch service.LinkPolicy(cfg.LinkPolicy) {
	case service.LinkPolicyReject, service.LinkPolicyLink:
	default:
		return Config{}, fmt.Errorf("invalid PARLOR_LINK_POLICY %q", cfg.LinkPolicy)
	}

	return cfg, nil
}

// Providers builds the provider catalog from whichever credentials are
// configured. A provider with no client id is simply not offered.
func (cfg Config) Providers() map[string]domain.ProviderConfig {
	providers := make(map[string]domain.ProviderConfig)

	if cfg.GoogleClientID != "" {
		providers["google"] = domain.ProviderConfig{
			Name:         "google",
			Protocol:     domain.ProtocolOAuth2,
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			AuthURL:      "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL:     "https://oauth2.googleapis.com/token",
			ProfileURL:   "https://openidconnect.googleapis.com/v1/userinfo",
			RedirectURI:  cfg.BaseURL + "/v1/oauth/google/callback",
			Scopes:       []string{"openid", "email", "profile"},
		}
	}

	if cfg.GitHubClientID != "" {
		providers["github"] = domain.ProviderConfig{
			Name:         "github",
			Protocol:     domain.ProtocolOAuth2,
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			AuthURL:      "https://github.com/login/oauth/authorize",
			TokenURL:     "https://github.com/login/oauth/access_token",
			ProfileURL:   "https://api.github.com/user",
			RedirectURI:  cfg.BaseURL + "/v1/oauth/github/callback",
			Scopes:       []string{"user:email"},
		}
	}

	if cfg.TwitterClientID != "" {
		providers["twitter"] = domain.ProviderConfig{
			Name:            "twitter",
			Protocol:        domain.ProtocolOAuth1,
			ClientID:        cfg.TwitterClientID,
			ClientSecret:    cfg.TwitterClientSecret,
			RequestTokenURL: "https://api.twitter.com/oauth/request_token",
			AuthURL:         "https://api.twitter.com/oauth/authenticate",
			TokenURL:        "https://api.twitter.com/oauth/access_token",
			ProfileURL:      "https://api.twitter.com/1.1/account/verify_credentials.json?include_email=true",
			RedirectURI:     cfg.BaseURL + "/v1/oauth/twitter/callback",
		}
	}

	return providers
}
