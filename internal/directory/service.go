package directory

import (
	"context"
	"strings"

	"credvault.org/internal/apperr"
	"credvault.org/internal/auth"
	"credvault.org/internal/ids"
)

// Service validates directory operations and delegates persistence to Store.
type Service struct {
	store Store
}

// NewService wires a Service over the given store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// CreateUser registers a new operator account. The role must already exist.
func (s *Service) CreateUser(ctx context.Context, username, email, password, roleID string) (User, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	roleID = strings.TrimSpace(roleID)

	if username == "" {
		return User{}, apperr.Validation("username", "username is required")
	}
	if err := validateEmail(email); err != nil {
		return User{}, err
	}
	if roleID == "" {
		return User{}, apperr.Validation("role_id", "role_id is required")
	}
	if err := auth.ValidatePasswordComplexity(password); err != nil {
		return User{}, apperr.Validation("password", err.Error())
	}
	if _, err := s.store.GetRole(ctx, roleID); err != nil {
		return User{}, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return User{}, err
	}
	return s.store.CreateUser(ctx, NewUser{
		ID:           ids.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		RoleID:       roleID,
	})
}

// ListUsers returns all active users with their roles.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.store.ListUsers(ctx)
}

// GetUser fetches one user by id.
func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, apperr.Validation("id", "id is required")
	}
	return s.store.GetUser(ctx, id)
}

// UpdateUser applies the provided field changes to an existing user.
func (s *Service) UpdateUser(ctx context.Context, id string, upd UserUpdate) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, apperr.Validation("id", "id is required")
	}
	var patch UserPatch
	if upd.Username != nil {
		trimmed := strings.TrimSpace(*upd.Username)
		if trimmed == "" {
			return User{}, apperr.Validation("username", "username cannot be empty")
		}
		patch.Username = &trimmed
	}
	if upd.Email != nil {
		email := normalizeEmail(*upd.Email)
		if err := validateEmail(email); err != nil {
			return User{}, err
		}
		patch.Email = &email
	}
	if upd.Password != nil {
		if err := auth.ValidatePasswordComplexity(*upd.Password); err != nil {
			return User{}, apperr.Validation("password", err.Error())
		}
		hash, err := auth.HashPassword(*upd.Password)
		if err != nil {
			return User{}, err
		}
		patch.PasswordHash = &hash
	}
	if upd.RoleID != nil {
		roleID := strings.TrimSpace(*upd.RoleID)
		if roleID == "" {
			return User{}, apperr.Validation("role_id", "role_id cannot be empty")
		}
		if _, err := s.store.GetRole(ctx, roleID); err != nil {
			return User{}, err
		}
		patch.RoleID = &roleID
	}
	return s.store.UpdateUser(ctx, id, patch)
}

// Authenticate checks the email and password pair and returns the account on
// success. Failures are reported uniformly so callers cannot probe for
// registered emails.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return User{}, apperr.Unauthorized("Invalid credentials")
	}
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if apperr.StatusOf(err) == 404 {
			return User{}, apperr.Unauthorized("Invalid credentials")
		}
		return User{}, err
	}
	if !auth.VerifyPassword(u.PasswordHash, password) {
		return User{}, apperr.Unauthorized("Invalid credentials")
	}
	return u, nil
}

// AddRole creates or refreshes a role and its permission set. Both the role
// name and every permission must come from the known catalogs.
func (s *Service) AddRole(ctx context.Context, name string, permissions []string) (Role, error) {
	name = strings.TrimSpace(name)
	if !contains(KnownRoles(), name) {
		return Role{}, apperr.Validation("name", "unknown role name")
	}
	seen := make(map[string]struct{}, len(permissions))
	deduped := make([]string, 0, len(permissions))
	for _, p := range permissions {
		p = strings.TrimSpace(p)
		if !contains(KnownPermissions(), p) {
			return Role{}, apperr.Validation("permissions", "unknown permission name")
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		deduped = append(deduped, p)
	}
	return s.store.UpsertRole(ctx, name, deduped)
}

// ListRoles returns all roles with their permissions.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// ListPermissions returns the permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return apperr.Validation("email", "email is required")
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || !strings.Contains(email[at+1:], ".") {
		return apperr.Validation("email", "email is not valid")
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
