package sqlite

import (
	"context"
	"time"

	"github.com/quokkahq/parlor/internal/parlor/domain"
)

type rolesRepo struct {
	q querier
}

const roleColumns = `id, name, permissions, is_default, created_at, updated_at`

func scanRole(row interface{ Scan(...any) error }) (domain.Role, error) {
	var r domain.Role
	err := row.Scan(&r.ID, &r.Name, &r.Permissions, &r.Default, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return domain.Role{}, mapNotFound(err)
	}
	return r, nil
}

func (r *rolesRepo) GetRoleByID(ctx context.Context, id string) (domain.Role, error) {
	return scanRole(r.q.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE id = ?`, id))
}

func (r *rolesRepo) GetRoleByName(ctx context.Context, name string) (domain.Role, error) {
	return scanRole(r.q.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE name = ?`, name))
}

func (r *rolesRepo) GetDefaultRole(ctx context.Context) (domain.Role, error) {
	return scanRole(r.q.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE is_default = 1`))
}

func (r *rolesRepo) ListAll(ctx context.Context) ([]domain.Role, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *rolesRepo) CreateRole(ctx context.Context, role domain.Role) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO roles (id, name, permissions, is_default, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		role.ID, role.Name, role.Permissions, role.Default, now, now,
	)
	return mapConstraint(err)
}

func (r *rolesRepo) UpdateRolePermissions(ctx context.Context, roleID string, permissions domain.Permission) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE roles SET permissions = ?, updated_at = ? WHERE id = ?`,
		permissions, time.Now().UTC(), roleID,
	)
	return err
}

func (r *rolesRepo) SetDefault(ctx context.Context, roleID string) error {
	now := time.Now().UTC()

	// Clear first so the partial unique index never sees two defaults.
	if _, err := r.q.ExecContext(ctx, `
		UPDATE roles SET is_default = 0, updated_at = ? WHERE is_default = 1 AND id != ?`,
		now, roleID,
	); err != nil {
		return err
	}

	_, err := r.q.ExecContext(ctx, `
		UPDATE roles SET is_default = 1, updated_at = ? WHERE id = ?`,
		now, roleID,
	)
	return mapConstraint(err)
}

func (r *rolesRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int64
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM roles`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}
