package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quokkahq/parlor/internal/parlor/domain"
	"github.com/quokkahq/parlor/internal/parlor/metrics"
	"github.com/quokkahq/parlor/internal/parlor/service"
	"github.com/quokkahq/parlor/pkg/httpx"
	"github.com/quokkahq/parlor/pkg/slogx"
)

// AuthHandler serves the interactive login lifecycle: login, logout,
// re-authentication and password change.
type AuthHandler struct {
	Credentials *service.CredentialService
	Users       *service.UserService
	Sessions    *service.SessionManager
	Metrics     metrics.Recorder

	SecureCookies bool
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Confirmed   bool   `json:"confirmed"`
	Role        string `json:"role"`
	Bio         string `json:"bio,omitempty"`
	Website     string `json:"website,omitempty"`
	GitHub      string `json:"github,omitempty"`
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request_body")
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	user, err := h.Credentials.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			h.Metrics.RecordLogin("invalid")
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials")
		case errors.Is(err, service.ErrAccountLocked):
			h.Metrics.RecordLogin("locked")
			httpx.WriteError(w, http.StatusForbidden, "account_locked")
		default:
			log.Error("login failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		}
		return
	}

	if err := h.issueSession(w, user, req.Remember); err != nil {
		log.Error("session issue failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	h.Metrics.RecordLogin("success")
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	// Session credentials are stateless; logout clears the browser's copy
	// and the tokens age out on their own.
	clearCookie(w, sessionCookie, h.SecureCookies)
	clearCookie(w, rememberCookie, h.SecureCookies)
	w.WriteHeader(http.StatusNoContent)
}

type reauthenticateRequest struct {
	Password string `json:"password"`
}

// HandleReauthenticate refreshes an authenticated-but-stale session back to
// fresh by re-checking the password. The remember-me credential is left
// untouched.
func (h *AuthHandler) HandleReauthenticate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	user, _ := UserFromContext(ctx)

	var req reauthenticateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request_body")
		return
	}

	if _, err := h.Credentials.Authenticate(ctx, user.Email, req.Password); err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	token, err := h.Sessions.IssueSession(user)
	if err != nil {
		log.Error("session issue failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	setCookie(w, sessionCookie, token, h.Sessions.SessionTTL, h.SecureCookies)
	w.WriteHeader(http.StatusNoContent)
}

type changePasswordRequest struct {
	NewPassword string `json:"new_password"`
}

// HandleChangePassword replaces the password of the authenticated user.
// Requires a fresh session; stale ones must re-authenticate first.
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	user, _ := UserFromContext(ctx)

	if err := h.Sessions.RequireFresh(SessionFromContext(ctx)); err != nil {
		httpx.WriteError(w, http.StatusForbidden, "reauthentication_required")
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request_body")
		return
	}
	if len(req.NewPassword) < service.MinPassword || len(req.NewPassword) > service.MaxPassword {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_password")
		return
	}

	if err := h.Users.ChangePassword(ctx, user.ID, req.NewPassword); err != nil {
		log.Error("password change failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) issueSession(w http.ResponseWriter, user domain.User, remember bool) error {
	token, err := h.Sessions.IssueSession(user)
	if err != nil {
		return err
	}
	setCookie(w, sessionCookie, token, h.Sessions.SessionTTL, h.SecureCookies)

	if remember {
		rt, err := h.Sessions.IssueRemember(user)
		if err != nil {
			return err
		}
		setCookie(w, rememberCookie, rt, h.Sessions.RememberTTL, h.SecureCookies)
	}
	return nil
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Confirmed:   u.Confirmed,
		Role:        u.Role.Name,
		Bio:         u.Bio,
		Website:     u.Website,
		GitHub:      u.GitHub,
	}
}
