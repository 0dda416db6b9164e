package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"credvault.org/internal/apperr"
	"credvault.org/internal/directory"
	"credvault.org/internal/ids"
)

func (s *Store) CreateUser(ctx context.Context, u directory.NewUser) (directory.User, error) {
	var out directory.User
	err := s.db.QueryRowContext(ctx, `
		insert into users (id, username, email, password_hash, role_id)
		values ($1, $2, $3, $4, $5)
		returning id, username, email, password_hash, role_id, created_at, updated_at
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.RoleID).
		Scan(&out.ID, &out.Username, &out.Email, &out.PasswordHash, &out.RoleID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return directory.User{}, translateConstraint(err)
	}
	return out, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]directory.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		select u.id, u.username, u.email, u.password_hash, u.role_id, u.created_at, u.updated_at, r.name
		from users u
		join roles r on r.id = u.role_id
		where u.deleted_at is null
		order by u.username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []directory.User
	for rows.Next() {
		var (
			u        directory.User
			roleName string
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.RoleID, &u.CreatedAt, &u.UpdatedAt, &roleName); err != nil {
			return nil, err
		}
		u.Role = &directory.Role{ID: u.RoleID, Name: roleName}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (directory.User, error) {
	return s.getUserBy(ctx, "u.id", id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (directory.User, error) {
	return s.getUserBy(ctx, "u.email", email)
}

func (s *Store) getUserBy(ctx context.Context, column, value string) (directory.User, error) {
	var (
		u        directory.User
		roleName string
	)
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		select u.id, u.username, u.email, u.password_hash, u.role_id, u.created_at, u.updated_at, r.name
		from users u
		join roles r on r.id = u.role_id
		where %s = $1 and u.deleted_at is null
	`, column), value).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.RoleID, &u.CreatedAt, &u.UpdatedAt, &roleName)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.User{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return directory.User{}, err
	}
	perms, err := s.rolePermissions(ctx, u.RoleID)
	if err != nil {
		return directory.User{}, err
	}
	u.Role = &directory.Role{ID: u.RoleID, Name: roleName, Permissions: perms}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, p directory.UserPatch) (directory.User, error) {
	var (
		setClauses []string
		args       []any
		idx        = 1
	)
	if p.Username != nil {
		setClauses = append(setClauses, fmt.Sprintf("username = $%d", idx))
		args = append(args, *p.Username)
		idx++
	}
	if p.Email != nil {
		setClauses = append(setClauses, fmt.Sprintf("email = $%d", idx))
		args = append(args, *p.Email)
		idx++
	}
	if p.PasswordHash != nil {
		setClauses = append(setClauses, fmt.Sprintf("password_hash = $%d", idx))
		args = append(args, *p.PasswordHash)
		idx++
	}
	if p.RoleID != nil {
		setClauses = append(setClauses, fmt.Sprintf("role_id = $%d", idx))
		args = append(args, *p.RoleID)
		idx++
	}
	if len(setClauses) > 0 {
		setClauses = append(setClauses, "updated_at = now()")
		query := fmt.Sprintf(`update users set %s where id = $%d and deleted_at is null`,
			strings.Join(setClauses, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return directory.User{}, translateConstraint(err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return directory.User{}, apperr.NotFound("user not found")
		}
	}
	return s.GetUser(ctx, id)
}

func (s *Store) GetRole(ctx context.Context, id string) (directory.Role, error) {
	var role directory.Role
	err := s.db.QueryRowContext(ctx, `select id, name from roles where id = $1`, id).
		Scan(&role.ID, &role.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Role{}, apperr.NotFound("role not found")
	}
	if err != nil {
		return directory.Role{}, err
	}
	perms, err := s.rolePermissions(ctx, role.ID)
	if err != nil {
		return directory.Role{}, err
	}
	role.Permissions = perms
	return role, nil
}

// UpsertRole creates or refreshes a role by name, upserting each permission
// by name and replacing the role's link set in one transaction.
func (s *Store) UpsertRole(ctx context.Context, name string, permissions []string) (directory.Role, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return directory.Role{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var roleID string
	err = tx.QueryRowContext(ctx, `
		insert into roles (id, name)
		values ($1, $2)
		on conflict (name) do update set name = excluded.name
		returning id
	`, ids.New(), name).Scan(&roleID)
	if err != nil {
		return directory.Role{}, translateConstraint(err)
	}

	if _, err := tx.ExecContext(ctx, `delete from role_permission_link where role_id = $1`, roleID); err != nil {
		return directory.Role{}, err
	}

	perms := make([]directory.Permission, 0, len(permissions))
	for _, permName := range permissions {
		var permID string
		err = tx.QueryRowContext(ctx, `
			insert into permissions (id, name)
			values ($1, $2)
			on conflict (name) do update set name = excluded.name
			returning id
		`, ids.New(), permName).Scan(&permID)
		if err != nil {
			return directory.Role{}, translateConstraint(err)
		}
		if _, err := tx.ExecContext(ctx, `
			insert into role_permission_link (role_id, permission_id)
			values ($1, $2)
			on conflict do nothing
		`, roleID, permID); err != nil {
			return directory.Role{}, err
		}
		perms = append(perms, directory.Permission{ID: permID, Name: permName})
	}

	if err := tx.Commit(); err != nil {
		return directory.Role{}, err
	}
	return directory.Role{ID: roleID, Name: name, Permissions: perms}, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]directory.Role, error) {
	rows, err := s.db.QueryContext(ctx, `select id, name from roles order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []directory.Role
	for rows.Next() {
		var role directory.Role
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, err
		}
		result = append(result, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range result {
		perms, err := s.rolePermissions(ctx, result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].Permissions = perms
	}
	return result, nil
}

func (s *Store) ListPermissions(ctx context.Context) ([]directory.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `select id, name from permissions order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []directory.Permission
	for rows.Next() {
		var p directory.Permission
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) rolePermissions(ctx context.Context, roleID string) ([]directory.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.id, p.name
		from role_permission_link l
		join permissions p on p.id = l.permission_id
		where l.role_id = $1
		order by p.name
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []directory.Permission
	for rows.Next() {
		var p directory.Permission
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
