package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/quokkahq/parlor/internal/parlor/metrics"
	"github.com/quokkahq/parlor/internal/parlor/service"
	"github.com/quokkahq/parlor/pkg/httpx"
	"github.com/quokkahq/parlor/pkg/slogx"
)

// OAuthHandler serves the browser-facing legs of the external-identity
// handshake.
type OAuthHandler struct {
	Broker   *service.Broker
	Sessions *service.SessionManager
	Metrics  metrics.Recorder

	SecureCookies bool
}

// HandleStart redirects the browser to the provider. An authenticated
// request with ?link=1 runs the handshake in link mode, attaching the
// provider identity to the current account instead of signing in.
func (h *OAuthHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	provider := r.PathValue("provider")

	linkUserID := ""
	if r.URL.Query().Get("link") == "1" {
		user, ok := UserFromContext(ctx)
		if !ok {
			httpx.WriteError(w, http.StatusUnauthorized, "authentication_required")
			return
		}
		linkUserID = user.ID
	}

	init, err := h.Broker.Initiate(ctx, provider, linkUserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownProvider):
			httpx.WriteError(w, http.StatusNotFound, "unknown_provider")
		case errors.Is(err, service.ErrProviderUnreachable):
			httpx.WriteError(w, http.StatusBadGateway, "provider_unreachable")
		default:
			log.Error("handshake initiation failed", "provider", provider, "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		}
		return
	}

	// The state credential rides in a short-lived cookie so the callback
	// can bind the return leg to this browser.
	setCookie(w, stateCookie, init.State, 10*time.Minute, h.SecureCookies)
	http.Redirect(w, r, init.RedirectURL, http.StatusFound)
}

// HandleCallback finishes the handshake after the provider redirects back,
// then issues a session for the resolved user. Link-mode handshakes keep
// the existing session and just report the linked account.
func (h *OAuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	provider := r.PathValue("provider")
	q := r.URL.Query()

	errorCode := q.Get("error")
	if errorCode == "" && q.Get("denied") != "" {
		// Twitter reports denial via ?denied=<token> instead of ?error.
		errorCode = "access_denied"
	}

	cb := service.Callback{
		Code:      q.Get("code"),
		Token:     q.Get("oauth_token"),
		Verifier:  q.Get("oauth_verifier"),
		ErrorCode: errorCode,
	}

	state := cookieValue(r, stateCookie)
	if s := q.Get("state"); s != "" {
		// The provider echoes the state it was handed at initiation. It must
		// match the credential stashed in this browser's cookie, otherwise
		// the return leg was started somewhere else (login CSRF).
		if s != state {
			clearCookie(w, stateCookie, h.SecureCookies)
			httpx.WriteError(w, http.StatusBadRequest, "state_invalid")
			return
		}
	}
	clearCookie(w, stateCookie, h.SecureCookies)

	user, linkedTo, err := h.Broker.Complete(ctx, provider, cb, state)
	if err != nil {
		h.Metrics.RecordBrokerLogin(provider, "failure")
		switch {
		case errors.Is(err, service.ErrUnknownProvider):
			httpx.WriteError(w, http.StatusNotFound, "unknown_provider")
		case errors.Is(err, service.ErrProviderDenied):
			httpx.WriteError(w, http.StatusForbidden, "provider_denied")
		case errors.Is(err, service.ErrProviderError):
			httpx.WriteError(w, http.StatusBadGateway, "provider_error")
		case errors.Is(err, service.ErrExchangeFailed),
			errors.Is(err, service.ErrProfileFetchFailed):
			httpx.WriteError(w, http.StatusBadGateway, "handshake_failed")
		case errors.Is(err, service.ErrEmailOwnedByLocalAccount):
			httpx.WriteError(w, http.StatusConflict, "email_owned_by_local_account")
		case errors.Is(err, service.ErrIdentityAlreadyLinked):
			httpx.WriteError(w, http.StatusConflict, "identity_already_linked")
		case isTokenError(err):
			httpx.WriteError(w, http.StatusBadRequest, "state_invalid")
		default:
			log.Error("handshake completion failed", "provider", provider, "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		}
		return
	}

	if linkedTo != "" {
		h.Metrics.RecordBrokerLogin(provider, "linked")
		httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
		return
	}

	token, err := h.Sessions.IssueSession(user)
	if err != nil {
		log.Error("session issue failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	setCookie(w, sessionCookie, token, h.Sessions.SessionTTL, h.SecureCookies)

	h.Metrics.RecordBrokerLogin(provider, "success")
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}
