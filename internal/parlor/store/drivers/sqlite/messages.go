package sqlite

import (
	"context"
	"time"

	"github.com/quokkahq/parlor/internal/parlor/domain"
)

type messagesRepo struct {
	q querier
}

const messageColumns = `id, author_id, body, created_at`

func scanMessage(row interface{ Scan(...any) error }) (domain.Message, error) {
	var m domain.Message
	err := row.Scan(&m.ID, &m.AuthorID, &m.Body, &m.CreatedAt)
	if err != nil {
		return domain.Message{}, mapNotFound(err)
	}
	return m, nil
}

func (r *messagesRepo) CreateMessage(ctx context.Context, m domain.Message) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO messages (id, author_id, body, created_at)
		VALUES (?, ?, ?, ?)`,
		m.ID, m.AuthorID, m.Body, time.Now().UTC(),
	)
	return mapConstraint(err)
}

func (r *messagesRepo) GetMessageByID(ctx context.Context, id string) (domain.Message, error) {
	return scanMessage(r.q.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = ?`, id))
}

func (r *messagesRepo) ListMessages(ctx context.Context, limit int) ([]domain.Message, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *messagesRepo) DeleteMessage(ctx context.Context, id string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	return err
}
