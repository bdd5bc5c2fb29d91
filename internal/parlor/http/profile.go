package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/quokkahq/parlor/internal/parlor/service"
	"github.com/quokkahq/parlor/pkg/httpx"
	"github.com/quokkahq/parlor/pkg/slogx"
)

// ProfileHandler serves the authenticated user's own profile.
type ProfileHandler struct {
	Users *service.UserService
}

func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
	Website     string `json:"website"`
	GitHub      string `json:"github"`
}

func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	user, _ := UserFromContext(ctx)

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request_body")
		return
	}

	req.DisplayName = strings.TrimSpace(req.DisplayName)
	switch {
	case req.DisplayName == "" || len(req.DisplayName) > service.MaxDisplayName:
		httpx.WriteError(w, http.StatusBadRequest, "invalid_display_name")
		return
	case len(req.Bio) > service.MaxBio:
		httpx.WriteError(w, http.StatusBadRequest, "invalid_bio")
		return
	case len(req.Website) > service.MaxLink || len(req.GitHub) > service.MaxLink:
		httpx.WriteError(w, http.StatusBadRequest, "invalid_link")
		return
	}

	if err := h.Users.UpdateProfile(ctx, user.ID, req.DisplayName, req.Bio, req.Website, req.GitHub); err != nil {
		log.Error("profile update failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type identityResponse struct {
	Provider  string    `json:"provider"`
	SubjectID string    `json:"subject_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *ProfileHandler) HandleIdentities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := UserFromContext(ctx)

	idents, err := h.Users.Identities(ctx, user.ID)
	if err != nil {
		slogx.FromContext(ctx).Error("identity list failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	out := make([]identityResponse, 0, len(idents))
	for _, id := range idents {
		out = append(out, identityResponse{
			Provider:  id.Provider,
			SubjectID: id.SubjectID,
			CreatedAt: id.CreatedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
