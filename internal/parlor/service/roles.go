package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quokkahq/parlor/internal/parlor/domain"
	"github.com/quokkahq/parlor/internal/parlor/store"
	"github.com/quokkahq/parlor/pkg/idx"
	"github.com/quokkahq/parlor/pkg/slogx"
)

// roleCatalog is the fixed set of roles seeded at initialization. Matched
// by name; permissions are overwritten on every seeding run so the catalog
// here is authoritative.
var roleCatalog = []struct {
	Name        string
	Permissions domain.Permission
	Default     bool
}{
	{domain.RoleLocked, 0, false},
	{domain.RoleUser, domain.PermFollow | domain.PermComment | domain.PermUpload, true},
	{domain.RoleModerator, domain.PermFollow | domain.PermComment | domain.PermUpload | domain.PermModerate, false},
	{domain.RoleAdministrator, domain.AllPermissions, false},
}

type RolesService struct {
	Store store.Store
}

// EnsureSeeded creates or updates the role catalog. Idempotent: roles are
// matched by name, permissions are upserted, and exactly one role ends up
// flagged default. Safe to run on every startup, concurrently with normal
// traffic.
func (s *RolesService) EnsureSeeded(ctx context.Context) error {
	l := slogx.FromContext(ctx)

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		fresh, err := tx.Roles().IsEmpty(ctx)
		if err != nil {
			return err
		}
		if fresh {
			l.Info("seeding role catalog into empty database")
		}

		var defaultID string

		for _, def := range roleCatalog {
			existing, err := tx.Roles().GetRoleByName(ctx, def.Name)
			switch {
			case err == nil:
				if existing.Permissions != def.Permissions {
					if err := tx.Roles().UpdateRolePermissions(ctx, existing.ID, def.Permissions); err != nil {
						return fmt.Errorf("update role %q: %w", def.Name, err)
					}
				}
				if def.Default {
					defaultID = existing.ID
				}

			case errors.Is(err, store.ErrNotFound):
				role := domain.Role{
					ID:          idx.New().String(),
					Name:        def.Name,
					Permissions: def.Permissions,
				}
				if err := tx.Roles().CreateRole(ctx, role); err != nil {
					return fmt.Errorf("create role %q: %w", def.Name, err)
				}
				l.Info("seeded role",
					slog.String("role", def.Name),
					slog.String("permissions", def.Permissions.String()),
				)
				if def.Default {
					defaultID = role.ID
				}

			default:
				return err
			}
		}

		if defaultID == "" {
			return fmt.Errorf("role catalog defines no default role")
		}
		return tx.Roles().SetDefault(ctx, defaultID)
	})
}

// DefaultRole returns the role assigned to newly created users. It always
// resolves once EnsureSeeded has run.
func (s *RolesService) DefaultRole(ctx context.Context) (domain.Role, error) {
	return s.Store.Roles().GetDefaultRole(ctx)
}

// GetRoleByName fetches a role from the catalog.
func (s *RolesService) GetRoleByName(ctx context.Context, name string) (domain.Role, error) {
	return s.Store.Roles().GetRoleByName(ctx, name)
}

// ListAll returns all roles in the system.
func (s *RolesService) ListAll(ctx context.Context) ([]domain.Role, error) {
	return s.Store.Roles().ListAll(ctx)
}
