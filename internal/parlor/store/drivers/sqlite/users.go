package sqlite

import (
	"context"
	"time"

	"github.com/quokkahq/parlor/internal/parlor/domain"
)

type usersRepo struct {
	q querier
}

// userColumns selects the user row joined with its role so permission
// checks never need a second query.
const userColumns = `
	u.id, u.email, u.display_name, u.password_hash, u.confirmed, u.role_id,
	u.bio, u.website, u.github, u.created_at, u.last_seen_at, u.updated_at,
	r.id, r.name, r.permissions, r.is_default, r.created_at, r.updated_at`

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.Confirmed, &u.RoleID,
		&u.Bio, &u.Website, &u.GitHub, &u.CreatedAt, &u.LastSeenAt, &u.UpdatedAt,
		&u.Role.ID, &u.Role.Name, &u.Role.Permissions, &u.Role.Default,
		&u.Role.CreatedAt, &u.Role.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users u JOIN roles r ON r.id = u.role_id
		WHERE u.id = ?`, id)
	return scanUser(row)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users u JOIN roles r ON r.id = u.role_id
		WHERE lower(u.email) = lower(?)`, email)
	return scanUser(row)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (
			id, email, display_name, password_hash, confirmed, role_id,
			bio, website, github, created_at, last_seen_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.DisplayName, u.PasswordHash, u.Confirmed, u.RoleID,
		u.Bio, u.Website, u.GitHub, now, now, now,
	)
	return mapConstraint(err)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, time.Now().UTC(), userID,
	)
	return err
}

func (r *usersRepo) UpdateEmail(ctx context.Context, userID string, email string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE users SET email = ?, updated_at = ? WHERE id = ?`,
		email, time.Now().UTC(), userID,
	)
	return mapConstraint(err)
}

func (r *usersRepo) SetConfirmed(ctx context.Context, userID string, confirmed bool) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE users SET confirmed = ?, updated_at = ? WHERE id = ?`,
		confirmed, time.Now().UTC(), userID,
	)
	return err
}

func (r *usersRepo) UpdateRole(ctx context.Context, userID string, roleID string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE users SET role_id = ?, updated_at = ? WHERE id = ?`,
		roleID, time.Now().UTC(), userID,
	)
	return err
}

func (r *usersRepo) UpdateProfile(ctx context.Context, userID, displayName, bio, website, github string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE users SET display_name = ?, bio = ?, website = ?, github = ?, updated_at = ?
		WHERE id = ?`,
		displayName, bio, website, github, time.Now().UTC(), userID,
	)
	return err
}

func (r *usersRepo) TouchLastSeen(ctx context.Context, userID string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE users SET last_seen_at = ? WHERE id = ?`,
		time.Now().UTC(), userID,
	)
	return err
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int64
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}
