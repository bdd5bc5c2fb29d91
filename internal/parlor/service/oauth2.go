package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/quokkahq/parlor/internal/parlor/domain"
	"github.com/quokkahq/parlor/pkg/slogx"
)

// oauth2AuthorizeURL builds the provider's authorization redirect with the
// signed state riding along as the state parameter.
func oauth2AuthorizeURL(cfg domain.ProviderConfig, state string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", cfg.ClientID)
	q.Set("redirect_uri", cfg.RedirectURI)
	q.Set("state", state)
	if len(cfg.Scopes) > 0 {
		q.Set("scope", strings.Join(cfg.Scopes, " "))
	}
	return cfg.AuthURL + "?" + q.Encode()
}

// oauth2Exchange trades an authorization code for an access token at the
// provider's token endpoint. Any failure past this point collapses to
// ErrExchangeFailed; the handshake cannot be salvaged mid-flight.
func (b *Broker) oauth2Exchange(ctx context.Context, cfg domain.ProviderConfig, code string) (string, error) {
	l := slogx.FromContext(ctx)

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", cfg.RedirectURI)
	form.Set("client_id", cfg.ClientID)
	form.Set("client_secret", cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// GitHub answers form-encoded unless asked for JSON.
	req.Header.Set("Accept", "application/json")

	status, body, err := b.call(ctx, req)
	if err != nil {
		l.Warn("token exchange failed",
			slog.String("provider", cfg.Name),
			slog.Any("error", err),
		)
		return "", ErrExchangeFailed
	}
	if status != http.StatusOK {
		l.Warn("token endpoint rejected exchange",
			slog.String("provider", cfg.Name),
			slog.Int("status", status),
		)
		return "", ErrExchangeFailed
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		Error       string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.AccessToken == "" {
		return "", ErrExchangeFailed
	}
	return payload.AccessToken, nil
}

// oauth2Profile fetches the subject's profile with the access token as a
// bearer credential and normalizes the provider-specific field names.
func (b *Broker) oauth2Profile(ctx context.Context, cfg domain.ProviderConfig, accessToken string) (Profile, error) {
	l := slogx.FromContext(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.ProfileURL, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	status, body, err := b.call(ctx, req)
	if err != nil {
		l.Warn("profile fetch failed",
			slog.String("provider", cfg.Name),
			slog.Any("error", err),
		)
		return Profile{}, ErrProfileFetchFailed
	}
	if status != http.StatusOK {
		l.Warn("profile endpoint rejected request",
			slog.String("provider", cfg.Name),
			slog.Int("status", status),
		)
		return Profile{}, ErrProfileFetchFailed
	}

	profile, err := parseProfile(body)
	if err != nil {
		return Profile{}, ErrProfileFetchFailed
	}
	return profile, nil
}

// parseProfile pulls a Profile out of whichever field names the provider
// uses. Google reports sub/email/name, GitHub id/email/name/login, Twitter
// id_str/screen_name.
func parseProfile(body []byte) (Profile, error) {
	var raw struct {
		Sub        string          `json:"sub"`
		ID         json.RawMessage `json:"id"`
		IDStr      string          `json:"id_str"`
		Email      string          `json:"email"`
		Name       string          `json:"name"`
		Login      string          `json:"login"`
		ScreenName string          `json:"screen_name"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Profile{}, err
	}

	p := Profile{Email: raw.Email}

	switch {
	case raw.Sub != "":
		p.SubjectID = raw.Sub
	case raw.IDStr != "":
		p.SubjectID = raw.IDStr
	case len(raw.ID) > 0:
		// GitHub sends a JSON number; some providers quote it.
		p.SubjectID = strings.Trim(string(raw.ID), `"`)
	}

	switch {
	case raw.Name != "":
		p.DisplayName = raw.Name
	case raw.Login != "":
		p.DisplayName = raw.Login
	case raw.ScreenName != "":
		p.DisplayName = raw.ScreenName
	}

	if p.SubjectID == "" || p.SubjectID == "null" {
		return Profile{}, fmt.Errorf("profile missing subject id")
	}
	return p, nil
}
