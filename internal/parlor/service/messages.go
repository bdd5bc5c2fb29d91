package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/quokkahq/parlor/internal/parlor/domain"
	"github.com/quokkahq/parlor/internal/parlor/store"
	"github.com/quokkahq/parlor/pkg/idx"
	"github.com/quokkahq/parlor/pkg/slogx"
)

type MessageService struct {
	Store store.Store
}

// Post publishes a message authored by user. Requires the comment
// permission; the body must be non-empty and at most
// domain.MaxMessageBody characters after trimming.
func (s *MessageService) Post(ctx context.Context, user domain.User, body string) (domain.Message, error) {
	if !user.Can(domain.PermComment) {
		return domain.Message{}, ErrPermissionDenied
	}

	body = strings.TrimSpace(body)
	if body == "" || len([]rune(body)) > domain.MaxMessageBody {
		return domain.Message{}, ErrInvalidMessage
	}

	msg := domain.Message{
		ID:       idx.New().String(),
		AuthorID: user.ID,
		Body:     body,
	}
	if err := s.Store.Messages().CreateMessage(ctx, msg); err != nil {
		return domain.Message{}, err
	}

	slogx.FromContext(ctx).Info("message posted",
		slog.String("message_id", msg.ID),
		slog.String("author_id", user.ID),
	)
	return msg, nil
}

// List returns the newest messages, capped at limit.
func (s *MessageService) List(ctx context.Context, limit int) ([]domain.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.Store.Messages().ListMessages(ctx, limit)
}

// Delete removes a message. Authors may delete their own; anyone with the
// moderate permission may delete any.
func (s *MessageService) Delete(ctx context.Context, user domain.User, messageID string) error {
	msg, err := s.Store.Messages().GetMessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMessageNotFound
		}
		return err
	}

	if msg.AuthorID != user.ID && !user.Can(domain.PermModerate) {
		return ErrPermissionDenied
	}

	if err := s.Store.Messages().DeleteMessage(ctx, messageID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMessageNotFound
		}
		return err
	}

	slogx.FromContext(ctx).Info("message deleted",
		slog.String("message_id", messageID),
		slog.String("actor_id", user.ID),
	)
	return nil
}
