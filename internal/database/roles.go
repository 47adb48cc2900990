package database

import (
	"chatapp-backend/internal/apperr"
	"chatapp-backend/internal/models"
	"chatapp-backend/internal/permissions"
	"context"
)

const DefaultRoleColor = "#99AAB5"

const roleColumns = "r.id, r.server_id, r.name, r.color, r.permissions"

func scanRole(row scanner, prefix ...any) (models.Role, error) {
	var role models.Role
	var mask int64
	dest := append(prefix, &role.ID, &role.ServerID, &role.Name, &role.Color, &mask)
	if err := row.Scan(dest...); err != nil {
		return models.Role{}, err
	}
	role.Permissions = permissions.Permission(mask)
	return role, nil
}

func (s *Store) CreateRole(ctx context.Context, serverID int64, name string, color string, mask permissions.Permission) (models.Role, error) {
	if color == "" {
		color = DefaultRoleColor
	}

	roleID, err := s.newID()
	if err != nil {
		return models.Role{}, err
	}

	_, err = s.db.ExecContext(ctx, "INSERT INTO roles (id, server_id, name, color, permissions) VALUES (?, ?, ?, ?, ?)",
		roleID, serverID, name, color, int64(mask))
	if err != nil {
		return models.Role{}, fail(err)
	}

	return models.Role{
		ID:          roleID,
		ServerID:    serverID,
		Name:        name,
		Color:       color,
		Permissions: mask,
	}, nil
}

func (s *Store) RoleByID(ctx context.Context, roleID int64) (models.Role, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+roleColumns+" FROM roles r WHERE r.id = ?", roleID)
	role, err := scanRole(row)
	if err != nil {
		return models.Role{}, notFoundOr(err, "Role not found")
	}
	return role, nil
}

func (s *Store) Roles(ctx context.Context, serverID int64) ([]models.Role, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+roleColumns+" FROM roles r WHERE r.server_id = ? ORDER BY r.id", serverID)
	if err != nil {
		return nil, fail(err)
	}
	defer rows.Close()

	roles := []models.Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fail(err)
		}
		roles = append(roles, role)
	}
	return roles, fail(rows.Err())
}

// DeleteRole also drops every assignment of the role
func (s *Store) DeleteRole(ctx context.Context, roleID int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM roles WHERE id = ?", roleID)
	if err != nil {
		return fail(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fail(err)
	}
	if affected == 0 {
		return apperr.NotFoundf("Role not found")
	}
	return nil
}
