package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/quokkahq/parlor/internal/parlor/domain"
	"github.com/quokkahq/parlor/internal/parlor/metrics"
	"github.com/quokkahq/parlor/internal/parlor/store"
	"github.com/quokkahq/parlor/pkg/slogx"
)

// LinkPolicy decides what happens when a provider reports an email already
// owned by a local account that has never linked this provider.
type LinkPolicy string

const (
	// LinkPolicyReject refuses the sign-in and tells the user to log in
	// locally first.
	LinkPolicyReject LinkPolicy = "reject"
	// LinkPolicyLink attaches the external identity to the existing local
	// account.
	LinkPolicyLink LinkPolicy = "link"
)

// HTTPDoer is the outbound client the broker talks to providers with.
// Production wires a safeurl-guarded client; tests substitute a plain one
// pointed at local fixtures.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// maxProviderBody bounds how much of a provider response the broker will
// read. Token and profile payloads are tiny; anything larger is hostile.
const maxProviderBody = 1 << 20

// Profile is the minimal identity a provider hands back after a completed
// handshake. SubjectID is the provider's stable user identifier; Email and
// DisplayName are best-effort.
type Profile struct {
	SubjectID   string
	Email       string
	DisplayName string
}

// Initiation is what the caller needs to send the browser off to the
// provider: the redirect target and the signed state credential to stash in
// a short-lived cookie.
type Initiation struct {
	RedirectURL string
	State       string
}

// Callback carries the parameters the provider appended to the redirect
// back. OAuth2 fills Code; OAuth1 fills Token and Verifier. ErrorCode is
// set when the provider reported failure instead.
type Callback struct {
	Code      string
	Token     string
	Verifier  string
	ErrorCode string
}

// statePayload rides inside the signed oauth-state credential. For OAuth1
// it also smuggles the temporary-token secret so the handshake needs no
// server-side state.
type statePayload struct {
	Provider   string `json:"prv"`
	LinkUserID string `json:"lnk,omitempty"`
	TempSecret string `json:"tmp,omitempty"`
}

// Broker drives the external-identity handshake: build the provider
// redirect, verify the return leg, exchange the authorization grant for an
// access credential, fetch the profile and resolve it to a local user.
type Broker struct {
	Providers map[string]domain.ProviderConfig

	Store  store.Store
	Users  *UserService
	Tokens *TokenService

	Client HTTPDoer
	// Limiter paces outbound provider calls. Exceeding it delays the call
	// rather than dropping it.
	Limiter     *rate.Limiter
	CallTimeout time.Duration
	StateTTL    time.Duration
	LinkPolicy  LinkPolicy

	Metrics metrics.Recorder
}

func (b *Broker) recorder() metrics.Recorder {
	if b.Metrics == nil {
		return metrics.Noop{}
	}
	return b.Metrics
}

// Provider returns the configuration for a registered provider name.
func (b *Broker) Provider(name string) (domain.ProviderConfig, error) {
	cfg, ok := b.Providers[name]
	if !ok {
		return domain.ProviderConfig{}, ErrUnknownProvider
	}
	return cfg, nil
}

// Initiate starts a handshake with the named provider. linkUserID is empty
// for a plain sign-in; when set, a successful handshake links the external
// identity to that user instead of signing anyone in.
//
// For OAuth2 providers this is a pure redirect build. OAuth1 providers
// require a server-to-server temporary-credential request first; if the
// provider cannot be reached that fails with ErrProviderUnreachable.
func (b *Broker) Initiate(ctx context.Context, providerName, linkUserID string) (Initiation, error) {
	cfg, err := b.Provider(providerName)
	if err != nil {
		return Initiation{}, err
	}

	payload := statePayload{Provider: cfg.Name, LinkUserID: linkUserID}

	switch cfg.Protocol {
	case domain.ProtocolOAuth2:
		state, err := b.signState(payload)
		if err != nil {
			return Initiation{}, err
		}
		return Initiation{
			RedirectURL: oauth2AuthorizeURL(cfg, state),
			State:       state,
		}, nil

	case domain.ProtocolOAuth1:
		tmp, err := b.oauth1RequestToken(ctx, cfg)
		if err != nil {
			return Initiation{}, err
		}
		payload.TempSecret = tmp.Secret
		state, err := b.signState(payload)
		if err != nil {
			return Initiation{}, err
		}
		return Initiation{
			RedirectURL: oauth1AuthorizeURL(cfg, tmp.Token),
			State:       state,
		}, nil
	}

	return Initiation{}, fmt.Errorf("provider %q: unsupported protocol %q", cfg.Name, cfg.Protocol)
}

// Complete finishes the handshake after the provider redirected back.
// stateToken is the signed credential minted by Initiate; cb carries the
// query parameters of the return leg. On success the resolved local user is
// returned along with the user id the state was link-bound to (empty for a
// sign-in).
func (b *Broker) Complete(ctx context.Context, providerName string, cb Callback, stateToken string) (domain.User, string, error) {
	l := slogx.FromContext(ctx)

	cfg, err := b.Provider(providerName)
	if err != nil {
		return domain.User{}, "", err
	}

	if cb.ErrorCode != "" {
		if cb.ErrorCode == "access_denied" {
			return domain.User{}, "", ErrProviderDenied
		}
		l.Warn("provider returned error",
			slog.String("provider", cfg.Name),
			slog.String("code", cb.ErrorCode),
		)
		return domain.User{}, "", ErrProviderError
	}

	payload, err := b.verifyState(stateToken)
	if err != nil {
		return domain.User{}, "", err
	}
	if payload.Provider != cfg.Name {
		return domain.User{}, "", ErrTokenMalformed
	}

	var profile Profile
	switch cfg.Protocol {
	case domain.ProtocolOAuth2:
		if cb.Code == "" {
			return domain.User{}, "", ErrProviderError
		}
		token, err := b.oauth2Exchange(ctx, cfg, cb.Code)
		if err != nil {
			return domain.User{}, "", err
		}
		profile, err = b.oauth2Profile(ctx, cfg, token)
		if err != nil {
			return domain.User{}, "", err
		}

	case domain.ProtocolOAuth1:
		if cb.Token == "" || cb.Verifier == "" {
			return domain.User{}, "", ErrProviderError
		}
		creds, err := b.oauth1Exchange(ctx, cfg, cb.Token, payload.TempSecret, cb.Verifier)
		if err != nil {
			return domain.User{}, "", err
		}
		profile, err = b.oauth1Profile(ctx, cfg, creds)
		if err != nil {
			return domain.User{}, "", err
		}

	default:
		return domain.User{}, "", fmt.Errorf("provider %q: unsupported protocol %q", cfg.Name, cfg.Protocol)
	}

	if profile.SubjectID == "" {
		return domain.User{}, "", ErrProfileFetchFailed
	}

	user, err := b.resolve(ctx, cfg.Name, profile, payload.LinkUserID)
	if err != nil {
		return domain.User{}, "", err
	}

	l.Info("external identity resolved",
		slog.String("provider", cfg.Name),
		slog.String("user_id", user.ID),
	)
	return user, payload.LinkUserID, nil
}

// resolve maps a fetched profile to a local user inside one transaction:
// known identity logs its owner in, a link-bound handshake links, and an
// unseen identity either attaches to a matching local account (per
// LinkPolicy) or creates a fresh user.
func (b *Broker) resolve(ctx context.Context, provider string, p Profile, linkUserID string) (domain.User, error) {
	var (
		user    domain.User
		created bool
	)
	err := b.Store.WithTx(ctx, func(tx store.Tx) error {
		ident, err := tx.Identities().GetByProviderSubject(ctx, provider, p.SubjectID)
		switch {
		case err == nil:
			if linkUserID != "" && ident.UserID != linkUserID {
				return ErrIdentityAlreadyLinked
			}
			user, err = tx.Users().GetUserByID(ctx, ident.UserID)
			return err
		case errors.Is(err, store.ErrNotFound):
			// first time this (provider, subject) is seen
		default:
			return err
		}

		if linkUserID != "" {
			if err := linkIdentityTx(ctx, tx, linkUserID, provider, p.SubjectID); err != nil {
				return err
			}
			user, err = tx.Users().GetUserByID(ctx, linkUserID)
			return err
		}

		email := NormalizeEmail(p.Email)
		if email != "" {
			existing, err := tx.Users().GetUserByEmail(ctx, email)
			switch {
			case err == nil:
				if b.LinkPolicy != LinkPolicyLink {
					return ErrEmailOwnedByLocalAccount
				}
				if err := linkIdentityTx(ctx, tx, existing.ID, provider, p.SubjectID); err != nil {
					return err
				}
				user = existing
				return nil
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
		}

		if email == "" {
			email = placeholderEmail(provider, p.SubjectID)
		}
		displayName := p.DisplayName
		if displayName == "" {
			displayName = provider + " user"
		}
		// Provider-reported addresses arrive verified; placeholders do not.
		confirmed := p.Email != ""

		user, err = b.Users.createInTx(ctx, tx, email, displayName, "", confirmed)
		if err != nil {
			return err
		}
		created = true
		return linkIdentityTx(ctx, tx, user.ID, provider, p.SubjectID)
	})
	if err != nil {
		// A concurrent handshake for the same subject can win the insert
		// race. Its outcome is equivalent, so fall through to a lookup.
		if errors.Is(err, ErrIdentityAlreadyLinked) && linkUserID == "" {
			ident, lerr := b.Store.Identities().GetByProviderSubject(ctx, provider, p.SubjectID)
			if lerr == nil {
				return b.Store.Users().GetUserByID(ctx, ident.UserID)
			}
		}
		return domain.User{}, err
	}
	if created {
		b.recorder().RecordRegistration(provider)
	}
	return user, nil
}

// placeholderEmail synthesizes an address for providers that report none.
// The .invalid TLD guarantees it never collides with a deliverable address;
// the user completes their email later.
func placeholderEmail(provider, subjectID string) string {
	return fmt.Sprintf("%s-%s@pending.invalid", provider, subjectID)
}

func (b *Broker) signState(p statePayload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	ttl := b.StateTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return b.Tokens.Issue("", PurposeOAuthState, ttl, string(raw))
}

func (b *Broker) verifyState(token string) (statePayload, error) {
	claims, err := b.Tokens.Verify(token, PurposeOAuthState)
	if err != nil {
		return statePayload{}, err
	}
	var p statePayload
	if err := json.Unmarshal([]byte(claims.Payload), &p); err != nil {
		return statePayload{}, ErrTokenMalformed
	}
	return p, nil
}

// call performs one paced, deadline-bounded provider request and returns
// the status and fully-read body.
func (b *Broker) call(ctx context.Context, req *http.Request) (int, []byte, error) {
	if b.Limiter != nil {
		if err := b.Limiter.Wait(ctx); err != nil {
			return 0, nil, err
		}
	}

	timeout := b.CallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := b.Client.Do(req.WithContext(ctx))
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}
