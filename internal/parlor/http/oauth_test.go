package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quokkahq/parlor/internal/parlor/domain"
	"github.com/quokkahq/parlor/internal/parlor/metrics"
	"github.com/quokkahq/parlor/internal/parlor/service"
	"github.com/quokkahq/parlor/internal/parlor/store/drivers/sqlite"
)

// newTestOAuthHandler wires an OAuthHandler against an in-memory store and
// a fake OAuth2 provider that accepts the code "good-code".
func newTestOAuthHandler(t *testing.T) *OAuthHandler {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "provider-access-token"})
	})
	mux.HandleFunc("GET /profile", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": 4242, "email": "dev@example.com", "name": "Dev",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())
	require.NoError(t, (&service.RolesService{Store: st}).EnsureSeeded(context.Background()))

	tokens := &service.TokenService{Secret: []byte("test-signing-secret"), Issuer: "parlor"}
	broker := &service.Broker{
		Providers: map[string]domain.ProviderConfig{
			"github": {
				Name:         "github",
				Protocol:     domain.ProtocolOAuth2,
				ClientID:     "client-id",
				ClientSecret: "client-secret",
				AuthURL:      srv.URL + "/authorize",
				TokenURL:     srv.URL + "/token",
				ProfileURL:   srv.URL + "/profile",
				RedirectURI:  "http://localhost/v1/oauth/github/callback",
			},
		},
		Store:       st,
		Users:       &service.UserService{Store: st},
		Tokens:      tokens,
		Client:      srv.Client(),
		CallTimeout: 5 * time.Second,
		StateTTL:    10 * time.Minute,
		LinkPolicy:  service.LinkPolicyReject,
	}
	sessions := &service.SessionManager{
		Tokens:      tokens,
		Store:       st,
		SessionTTL:  time.Hour,
		RememberTTL: 24 * time.Hour,
		FreshFor:    30 * time.Minute,
	}

	return &OAuthHandler{Broker: broker, Sessions: sessions, Metrics: metrics.Noop{}}
}

// startHandshake runs HandleStart and returns the state cookie it set.
func startHandshake(t *testing.T, h *OAuthHandler) *http.Cookie {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/v1/oauth/github/start", nil)
	req.SetPathValue("provider", "github")
	rec := httptest.NewRecorder()
	h.HandleStart(rec, req)
	require.Equal(t, http.StatusFound, rec.Code)

	for _, c := range rec.Result().Cookies() {
		if c.Name == stateCookie {
			return c
		}
	}
	t.Fatal("no state cookie set")
	return nil
}

func TestOAuthCallbackStateBinding(t *testing.T) {
	h := newTestOAuthHandler(t)

	callback := func(query url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet,
			"/v1/oauth/github/callback?"+query.Encode(), nil)
		req.SetPathValue("provider", "github")
		if cookie != nil {
			req.AddCookie(cookie)
		}
		rec := httptest.NewRecorder()
		h.HandleCallback(rec, req)
		return rec
	}

	t.Run("query state without the cookie is rejected", func(t *testing.T) {
		// A validly signed state from some other browser must not complete
		// a login in this one.
		other := startHandshake(t, h)
		rec := callback(url.Values{"code": {"good-code"}, "state": {other.Value}}, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "state_invalid")
	})

	t.Run("query state differing from the cookie is rejected", func(t *testing.T) {
		mine := startHandshake(t, h)
		other := startHandshake(t, h)
		rec := callback(url.Values{"code": {"good-code"}, "state": {other.Value}}, mine)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "state_invalid")
	})

	t.Run("matching state and cookie completes the login", func(t *testing.T) {
		mine := startHandshake(t, h)
		rec := callback(url.Values{"code": {"good-code"}, "state": {mine.Value}}, mine)
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "dev@example.com", body["email"])

		var sess *http.Cookie
		for _, c := range rec.Result().Cookies() {
			if c.Name == sessionCookie {
				sess = c
			}
		}
		require.NotNil(t, sess, "successful callback issues a session cookie")
		require.NotEmpty(t, sess.Value)
	})
}
