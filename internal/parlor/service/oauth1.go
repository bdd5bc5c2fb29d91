package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/quokkahq/parlor/internal/parlor/domain"
	"github.com/quokkahq/parlor/pkg/cryptox"
	"github.com/quokkahq/parlor/pkg/slogx"
)

// oauth1Credentials is a token/secret pair, used for both the temporary
// credentials of the first leg and the access credentials of the last.
type oauth1Credentials struct {
	Token  string
	Secret string
}

// oauth1AuthorizeURL builds the browser redirect carrying the temporary
// token.
func oauth1AuthorizeURL(cfg domain.ProviderConfig, tempToken string) string {
	q := url.Values{}
	q.Set("oauth_token", tempToken)
	return cfg.AuthURL + "?" + q.Encode()
}

// oauth1RequestToken performs the server-to-server temporary-credential
// request that opens an OAuth1 handshake. This is the one provider call
// made before the user ever leaves the site, so an unreachable provider
// surfaces as ErrProviderUnreachable rather than a mid-handshake failure.
func (b *Broker) oauth1RequestToken(ctx context.Context, cfg domain.ProviderConfig) (oauth1Credentials, error) {
	l := slogx.FromContext(ctx)

	extra := url.Values{}
	extra.Set("oauth_callback", cfg.RedirectURI)

	body, err := b.oauth1Call(ctx, cfg, http.MethodPost, cfg.RequestTokenURL, "", extra)
	if err != nil {
		l.Warn("temporary credential request failed",
			slog.String("provider", cfg.Name),
			slog.Any("error", err),
		)
		return oauth1Credentials{}, ErrProviderUnreachable
	}

	vals, err := url.ParseQuery(string(body))
	if err != nil || vals.Get("oauth_token") == "" || vals.Get("oauth_token_secret") == "" {
		return oauth1Credentials{}, ErrProviderUnreachable
	}
	return oauth1Credentials{
		Token:  vals.Get("oauth_token"),
		Secret: vals.Get("oauth_token_secret"),
	}, nil
}

// oauth1Exchange trades the verified temporary token for access
// credentials. tempSecret comes back out of the signed state credential.
func (b *Broker) oauth1Exchange(ctx context.Context, cfg domain.ProviderConfig, tempToken, tempSecret, verifier string) (oauth1Credentials, error) {
	l := slogx.FromContext(ctx)

	extra := url.Values{}
	extra.Set("oauth_token", tempToken)
	extra.Set("oauth_verifier", verifier)

	body, err := b.oauth1Call(ctx, cfg, http.MethodPost, cfg.TokenURL, tempSecret, extra)
	if err != nil {
		l.Warn("access token exchange failed",
			slog.String("provider", cfg.Name),
			slog.Any("error", err),
		)
		return oauth1Credentials{}, ErrExchangeFailed
	}

	vals, err := url.ParseQuery(string(body))
	if err != nil || vals.Get("oauth_token") == "" || vals.Get("oauth_token_secret") == "" {
		return oauth1Credentials{}, ErrExchangeFailed
	}
	return oauth1Credentials{
		Token:  vals.Get("oauth_token"),
		Secret: vals.Get("oauth_token_secret"),
	}, nil
}

// oauth1Profile fetches the subject's profile with a signed GET.
func (b *Broker) oauth1Profile(ctx context.Context, cfg domain.ProviderConfig, creds oauth1Credentials) (Profile, error) {
	l := slogx.FromContext(ctx)

	extra := url.Values{}
	extra.Set("oauth_token", creds.Token)

	body, err := b.oauth1Call(ctx, cfg, http.MethodGet, cfg.ProfileURL, creds.Secret, extra)
	if err != nil {
		l.Warn("profile fetch failed",
			slog.String("provider", cfg.Name),
			slog.Any("error", err),
		)
		return Profile{}, ErrProfileFetchFailed
	}

	profile, err := parseProfile(body)
	if err != nil {
		return Profile{}, ErrProfileFetchFailed
	}
	return profile, nil
}

// oauth1Call signs and performs one request against an OAuth1 endpoint.
// extra carries the oauth_* parameters specific to the leg (callback,
// token, verifier); tokenSecret is empty for the first leg.
func (b *Broker) oauth1Call(ctx context.Context, cfg domain.ProviderConfig, method, endpoint, tokenSecret string, extra url.Values) ([]byte, error) {
	params := url.Values{}
	params.Set("oauth_consumer_key", cfg.ClientID)
	params.Set("oauth_nonce", cryptox.MustGenerateToken(cryptox.TokenSize128))
	params.Set("oauth_signature_method", "HMAC-SHA1")
	params.Set("oauth_timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	params.Set("oauth_version", "1.0")
	for k, vs := range extra {
		for _, v := range vs {
			params.Set(k, v)
		}
	}

	// Query parameters on the endpoint join the signed parameter set; the
	// base-string URI itself carries no query (RFC 5849 section 3.4.1).
	baseURI := endpoint
	sigParams := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			sigParams.Set(k, v)
		}
	}
	if u, perr := url.Parse(endpoint); perr == nil && u.RawQuery != "" {
		for k, vs := range u.Query() {
			for _, v := range vs {
				sigParams.Set(k, v)
			}
		}
		u.RawQuery = ""
		baseURI = u.String()
	}

	sig := oauth1Signature(method, baseURI, sigParams, cfg.ClientSecret, tokenSecret)
	params.Set("oauth_signature", sig)

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", oauth1AuthorizationHeader(params))

	status, body, err := b.call(ctx, req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("endpoint returned status %d", status)
	}
	return body, nil
}

// oauth1Signature computes the RFC 5849 HMAC-SHA1 signature over the
// normalized request.
func oauth1Signature(method, endpoint string, params url.Values, consumerSecret, tokenSecret string) string {
	base := strings.Join([]string{
		strings.ToUpper(method),
		rfc3986Escape(endpoint),
		rfc3986Escape(normalizeParams(params)),
	}, "&")
	key := rfc3986Escape(consumerSecret) + "&" + rfc3986Escape(tokenSecret)

	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// normalizeParams percent-encodes and sorts the parameter pairs as the
// signature base string requires.
func normalizeParams(params url.Values) string {
	pairs := make([]string, 0, len(params))
	for k, vs := range params {
		for _, v := range vs {
			pairs = append(pairs, rfc3986Escape(k)+"="+rfc3986Escape(v))
		}
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "&")
}

// oauth1AuthorizationHeader renders the oauth_* parameters as an OAuth
// Authorization header.
func oauth1AuthorizationHeader(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if strings.HasPrefix(k, "oauth_") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", rfc3986Escape(k), rfc3986Escape(params.Get(k))))
	}
	return "OAuth " + strings.Join(parts, ", ")
}

// rfc3986Escape percent-encodes per the stricter rules of RFC 5849 §3.6:
// only unreserved characters survive.
func rfc3986Escape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '.', c == '_', c == '~':
			b.WriteByte(c)
		default:
			b.WriteString(fmt.Sprintf("%%%02X", c))
		}
	}
	return b.String()
}
