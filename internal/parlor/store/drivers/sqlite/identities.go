package sqlite

import (
	"context"
	"time"

	"github.com/quokkahq/parlor/internal/parlor/domain"
)

type identitiesRepo struct {
	q querier
}

const identityColumns = `id, provider, subject_id, user_id, created_at`

func scanIdentity(row interface{ Scan(...any) error }) (domain.ExternalIdentity, error) {
	var ident domain.ExternalIdentity
	err := row.Scan(&ident.ID, &ident.Provider, &ident.SubjectID, &ident.UserID, &ident.CreatedAt)
	if err != nil {
		return domain.ExternalIdentity{}, mapNotFound(err)
	}
	return ident, nil
}

func (r *identitiesRepo) GetByProviderSubject(ctx context.Context, provider, subjectID string) (domain.ExternalIdentity, error) {
	return scanIdentity(r.q.QueryRowContext(ctx, `
		SELECT `+identityColumns+` FROM external_identities
		WHERE provider = ? AND subject_id = ?`, provider, subjectID))
}

func (r *identitiesRepo) ListByUser(ctx context.Context, userID string) ([]domain.ExternalIdentity, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+identityColumns+` FROM external_identities
		WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var idents []domain.ExternalIdentity
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		idents = append(idents, ident)
	}
	return idents, rows.Err()
}

func (r *identitiesRepo) CreateIdentity(ctx context.Context, ident domain.ExternalIdentity) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO external_identities (id, provider, subject_id, user_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		ident.ID, ident.Provider, ident.SubjectID, ident.UserID, time.Now().UTC(),
	)
	return mapConstraint(err)
}
