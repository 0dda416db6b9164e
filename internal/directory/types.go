// Package directory manages users and the role and permission catalog that
// backs authorization decisions.
package directory

import (
	"context"
	"time"
)

// Role names. A user owns exactly one role.
const (
	RoleAdmin         = "Admin"
	RoleTeamMember    = "Team Member"
	RoleTeamLeader    = "Team Leader"
	RoleAuditor       = "Auditor"
	RoleAccessManager = "Access Manager"
)

// Permission names. Roles carry a set of these.
const (
	PermCreateAwsCredentials = "Create Aws Credentials"
	PermUpdateAwsCredentials = "Update Aws Credentials"
	PermDeleteAwsCredentials = "Delete Aws Credentials"
	PermViewAwsCredentials   = "View Aws Credentials"
	PermViewAuditLogs        = "View Audit Logs"
	PermManageRoles          = "Manage Role And Permissions"
)

// KnownRoles lists every valid role name.
func KnownRoles() []string {
	return []string{RoleAdmin, RoleTeamMember, RoleTeamLeader, RoleAuditor, RoleAccessManager}
}

// KnownPermissions lists every valid permission name.
func KnownPermissions() []string {
	return []string{
		PermCreateAwsCredentials,
		PermUpdateAwsCredentials,
		PermDeleteAwsCredentials,
		PermViewAwsCredentials,
		PermViewAuditLogs,
		PermManageRoles,
	}
}

// User is an operator account. PasswordHash never crosses the HTTP boundary.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	RoleID       string     `json:"role_id"`
	Role         *Role      `json:"role,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"-"`
}

// Role groups permissions under an enumerated name.
type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions,omitempty"`
}

// Permission is a single named capability.
type Permission struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewUser carries the fields required to create a user.
type NewUser struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	RoleID       string
}

// UserUpdate carries optional field changes; nil means leave unchanged.
// Password is plaintext and never reaches the store: the service hashes
// it into a UserPatch.
type UserUpdate struct {
	Username *string
	Email    *string
	Password *string
	RoleID   *string
}

// UserPatch is the persisted form of a UserUpdate.
type UserPatch struct {
	Username     *string
	Email        *string
	PasswordHash *string
	RoleID       *string
}

// Store is the persistence surface the directory service depends on.
type Store interface {
	CreateUser(ctx context.Context, u NewUser) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UpdateUser(ctx context.Context, id string, p UserPatch) (User, error)
	GetRole(ctx context.Context, id string) (Role, error)
	UpsertRole(ctx context.Context, name string, permissions []string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
}
