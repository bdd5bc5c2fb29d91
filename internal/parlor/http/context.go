package http

import (
	"context"
	"net/http"

	"github.com/quokkahq/parlor/internal/parlor/domain"
	"github.com/quokkahq/parlor/internal/parlor/service"
	"github.com/quokkahq/parlor/pkg/httpx"
)

type contextKey string

const (
	actorKey   contextKey = "actor"
	sessionKey contextKey = "session"
)

// ActorFromContext returns the resolved actor for the request. Requests
// that never passed the session middleware count as anonymous.
func ActorFromContext(ctx context.Context) domain.Actor {
	if a, ok := ctx.Value(actorKey).(domain.Actor); ok {
		return a
	}
	return domain.Guest{}
}

// SessionFromContext returns the resolved session, nil for anonymous
// requests.
func SessionFromContext(ctx context.Context) *service.Session {
	s, _ := ctx.Value(sessionKey).(*service.Session)
	return s
}

// UserFromContext returns the authenticated user, reporting false for
// anonymous requests.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(actorKey).(domain.User)
	return u, ok
}

// sessionMiddleware resolves the request's cookies into an actor and
// session and stores both on the context. Resolution never fails the
// request; an unresolvable credential just leaves it anonymous.
func sessionMiddleware(sessions *service.SessionManager) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, sess, err := sessions.Resolve(r.Context(),
				cookieValue(r, sessionCookie),
				cookieValue(r, rememberCookie),
			)
			if err != nil {
				httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
				return
			}

			ctx := context.WithValue(r.Context(), actorKey, actor)
			if sess != nil {
				ctx = context.WithValue(ctx, sessionKey, sess)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireUser rejects anonymous requests before the handler runs.
func requireUser(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			httpx.WriteError(w, http.StatusUnauthorized, "authentication_required")
			return
		}
		next(w, r)
	})
}
