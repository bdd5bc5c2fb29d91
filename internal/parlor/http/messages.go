package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/quokkahq/parlor/internal/parlor/domain"
	"github.com/quokkahq/parlor/internal/parlor/metrics"
	"github.com/quokkahq/parlor/internal/parlor/service"
	"github.com/quokkahq/parlor/pkg/httpx"
	"github.com/quokkahq/parlor/pkg/slogx"
)

// MessagesHandler serves the message board.
type MessagesHandler struct {
	Messages *service.MessageService
	Metrics  metrics.Recorder
}

type messageResponse struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func toMessageResponse(m domain.Message) messageResponse {
	return messageResponse{
		ID:        m.ID,
		AuthorID:  m.AuthorID,
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
	}
}

func (h *MessagesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	msgs, err := h.Messages.List(ctx, limit)
	if err != nil {
		slogx.FromContext(ctx).Error("message list failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

type postMessageRequest struct {
	Body string `json:"body"`
}

func (h *MessagesHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	user, _ := UserFromContext(ctx)

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request_body")
		return
	}

	msg, err := h.Messages.Post(ctx, user, req.Body)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPermissionDenied):
			httpx.WriteError(w, http.StatusForbidden, "permission_denied")
		case errors.Is(err, service.ErrInvalidMessage):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_message")
		default:
			log.Error("message post failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		}
		return
	}

	h.Metrics.RecordMessagePosted()
	httpx.WriteJSON(w, http.StatusCreated, toMessageResponse(msg))
}

func (h *MessagesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	user, _ := UserFromContext(ctx)

	err := h.Messages.Delete(ctx, user, r.PathValue("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMessageNotFound):
			httpx.WriteError(w, http.StatusNotFound, "message_not_found")
		case errors.Is(err, service.ErrPermissionDenied):
			httpx.WriteError(w, http.StatusForbidden, "permission_denied")
		default:
			log.Error("message delete failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
