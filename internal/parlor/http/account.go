package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/quokkahq/parlor/internal/parlor/metrics"
	"github.com/quokkahq/parlor/internal/parlor/service"
	"github.com/quokkahq/parlor/pkg/httpx"
	"github.com/quokkahq/parlor/pkg/slogx"
)

// AccountHandler serves registration and the token-mail flows.
type AccountHandler struct {
	Users   *service.UserService
	Flows   *service.FlowService
	Metrics metrics.Recorder
}

type registerRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request_body")
		return
	}

	req.DisplayName = strings.TrimSpace(req.DisplayName)
	switch {
	case req.Email == "" || !strings.Contains(req.Email, "@"):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_email")
		return
	case req.DisplayName == "" || len(req.DisplayName) > service.MaxDisplayName:
		httpx.WriteError(w, http.StatusBadRequest, "invalid_display_name")
		return
	case len(req.Password) < service.MinPassword || len(req.Password) > service.MaxPassword:
		httpx.WriteError(w, http.StatusBadRequest, "invalid_password")
		return
	}

	user, err := h.Users.Register(ctx, req.Email, req.DisplayName, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrDuplicateEmail) {
			httpx.WriteError(w, http.StatusConflict, "email_taken")
			return
		}
		log.Error("registration failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	if err := h.Flows.SendConfirmation(ctx, user); err != nil {
		// The account exists either way; confirmation can be re-sent.
		log.Warn("confirmation mail failed", "err", err)
	}

	h.Metrics.RecordRegistration("local")
	httpx.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

type tokenRequest struct {
	Token string `json:"token"`
}

func (h *AccountHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request_body")
		return
	}

	if err := h.Flows.ConfirmEmail(r.Context(), req.Token); err != nil {
		writeTokenError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountHandler) HandleResendConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := UserFromContext(ctx)

	if user.Confirmed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.Flows.SendConfirmation(ctx, user); err != nil {
		slogx.FromContext(ctx).Error("confirmation mail failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// HandleForgotPassword always answers 204 so the endpoint cannot be used to
// probe which addresses are registered.
func (h *AccountHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request_body")
		return
	}

	if err := h.Flows.SendPasswordReset(ctx, req.Email); err != nil {
		slogx.FromContext(ctx).Error("reset mail failed", "err", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *AccountHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request_body")
		return
	}
	if len(req.Password) < service.MinPassword || len(req.Password) > service.MaxPassword {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_password")
		return
	}

	if err := h.Flows.ResetPassword(ctx, req.Token, req.Password); err != nil {
		if isTokenError(err) {
			writeTokenError(w, err)
			return
		}
		log.Error("password reset failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type emailChangeRequest struct {
	NewEmail string `json:"new_email"`
}

func (h *AccountHandler) HandleRequestEmailChange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	user, _ := UserFromContext(ctx)

	var req emailChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request_body")
		return
	}
	if req.NewEmail == "" || !strings.Contains(req.NewEmail, "@") {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_email")
		return
	}

	if err := h.Flows.RequestEmailChange(ctx, user, req.NewEmail); err != nil {
		if errors.Is(err, service.ErrDuplicateEmail) {
			httpx.WriteError(w, http.StatusConflict, "email_taken")
			return
		}
		log.Error("email change request failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountHandler) HandleConfirmEmailChange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request_body")
		return
	}

	if err := h.Flows.ConfirmEmailChange(ctx, req.Token); err != nil {
		switch {
		case isTokenError(err):
			writeTokenError(w, err)
		case errors.Is(err, service.ErrDuplicateEmail):
			httpx.WriteError(w, http.StatusConflict, "email_taken")
		default:
			log.Error("email change failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func isTokenError(err error) bool {
	return errors.Is(err, service.ErrTokenExpired) ||
		errors.Is(err, service.ErrTokenMalformed) ||
		errors.Is(err, service.ErrTokenPurposeMismatch)
}

func writeTokenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrTokenExpired):
		httpx.WriteError(w, http.StatusBadRequest, "token_expired")
	case errors.Is(err, service.ErrTokenMalformed), errors.Is(err, service.ErrTokenPurposeMismatch):
		httpx.WriteError(w, http.StatusBadRequest, "token_invalid")
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
	}
}
