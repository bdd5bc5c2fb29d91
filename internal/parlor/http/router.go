package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/quokkahq/parlor/internal/parlor/metrics"
	"github.com/quokkahq/parlor/internal/parlor/service"
	"github.com/quokkahq/parlor/internal/parlor/store"
	"github.com/quokkahq/parlor/pkg/httpx"
	"github.com/quokkahq/parlor/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store

	Credentials *service.CredentialService
	Users       *service.UserService
	Sessions    *service.SessionManager
	Broker      *service.Broker
	Messages    *service.MessageService
	Flows       *service.FlowService

	Metrics metrics.Recorder
	// Gatherer, when set, enables the /metrics scrape endpoint.
	Gatherer prometheus.Gatherer

	// SecureCookies marks session cookies Secure; off only in local dev.
	SecureCookies bool
}

func NewRouter(buildVersion string, st store.Store, sessions *service.SessionManager, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		Sessions:     sessions,
		logger:       logger,
		Metrics:      metrics.Noop{},
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		sessionMiddleware(r.Sessions),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerAccount()
	r.registerOAuth()
	r.registerProfile()
	r.registerMessages()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		Credentials:   r.Credentials,
		Users:         r.Users,
		Sessions:      r.Sessions,
		Metrics:       r.Metrics,
		SecureCookies: r.SecureCookies,
	}

	r.Mux.Handle("POST /v1/auth/login", http.HandlerFunc(h.HandleLogin))
	r.Mux.Handle("POST /v1/auth/logout", http.HandlerFunc(h.HandleLogout))
	r.Mux.Handle("POST /v1/auth/reauthenticate", requireUser(h.HandleReauthenticate))
	r.Mux.Handle("POST /v1/auth/password", requireUser(h.HandleChangePassword))
}

func (r *Router) registerAccount() {
	h := &AccountHandler{
		Users:   r.Users,
		Flows:   r.Flows,
		Metrics: r.Metrics,
	}

	r.Mux.Handle("POST /v1/account", http.HandlerFunc(h.HandleRegister))
	r.Mux.Handle("POST /v1/account/confirm", http.HandlerFunc(h.HandleConfirm))
	r.Mux.Handle("POST /v1/account/confirm/resend", requireUser(h.HandleResendConfirm))
	r.Mux.Handle("POST /v1/account/forgot-password", http.HandlerFunc(h.HandleForgotPassword))
	r.Mux.Handle("POST /v1/account/reset-password", http.HandlerFunc(h.HandleResetPassword))
	r.Mux.Handle("POST /v1/account/email", requireUser(h.HandleRequestEmailChange))
	r.Mux.Handle("POST /v1/account/email/confirm", http.HandlerFunc(h.HandleConfirmEmailChange))
}

func (r *Router) registerOAuth() {
	h := &OAuthHandler{
		Broker:        r.Broker,
		Sessions:      r.Sessions,
		Metrics:       r.Metrics,
		SecureCookies: r.SecureCookies,
	}

	r.Mux.Handle("GET /v1/oauth/{provider}/start", http.HandlerFunc(h.HandleStart))
	r.Mux.Handle("GET /v1/oauth/{provider}/callback", http.HandlerFunc(h.HandleCallback))
}

func (r *Router) registerProfile() {
	h := &ProfileHandler{Users: r.Users}

	r.Mux.Handle("GET /v1/profile", requireUser(h.HandleGet))
	r.Mux.Handle("PATCH /v1/profile", requireUser(h.HandleUpdate))
	r.Mux.Handle("GET /v1/profile/identities", requireUser(h.HandleIdentities))
}

func (r *Router) registerMessages() {
	h := &MessagesHandler{
		Messages: r.Messages,
		Metrics:  r.Metrics,
	}

	r.Mux.Handle("GET /v1/messages", http.HandlerFunc(h.HandleList))
	r.Mux.Handle("POST /v1/messages", requireUser(h.HandlePost))
	r.Mux.Handle("DELETE /v1/messages/{id}", requireUser(h.HandleDelete))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))

	if r.Gatherer != nil {
		r.Mux.Handle("GET /metrics", metrics.Handler(r.Gatherer))
	}
}
