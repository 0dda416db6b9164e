// Package iam defines the identity-provider surface consumed by the
// credential lifecycle orchestrator, and its AWS IAM implementation.
package iam

import "context"

// KeyStatus is the activation state of a programmatic access key.
type KeyStatus string

const (
	KeyStatusActive   KeyStatus = "Active"
	KeyStatusInactive KeyStatus = "Inactive"
)

// Valid reports whether s is one of the two provider-defined states.
func (s KeyStatus) Valid() bool {
	return s == KeyStatusActive || s == KeyStatusInactive
}

// AccessKey describes an existing access key attached to a provider user.
type AccessKey struct {
	ID       string
	Username string
	Status   KeyStatus
}

// CreatedAccessKey is the one-time response of CreateAccessKey; the secret
// is only ever returned here.
type CreatedAccessKey struct {
	ID       string
	Secret   string
	Username string
	Status   KeyStatus
}

// Client is the minimum identity-provider surface. Every call may fail with
// a provider status code which is preserved on the returned error.
type Client interface {
	CreateUser(ctx context.Context, username string) error
	DeleteUser(ctx context.Context, username string) error
	RenameUser(ctx context.Context, username, newUsername string) error

	CreateLoginProfile(ctx context.Context, username, password string, resetRequired bool) error
	UpdateLoginProfile(ctx context.Context, username, password string) error
	DeleteLoginProfile(ctx context.Context, username string) error
	// LoginProfileExists reports whether the user has a console login
	// profile; a missing profile is not an error.
	LoginProfileExists(ctx context.Context, username string) (bool, error)

	ListAccessKeys(ctx context.Context, username string) ([]AccessKey, error)
	CreateAccessKey(ctx context.Context, username string) (CreatedAccessKey, error)
	UpdateAccessKeyStatus(ctx context.Context, username, keyID string, status KeyStatus) error
	DeleteAccessKey(ctx context.Context, username, keyID string) error

	// ListAttachedPolicies returns the ARNs of managed policies attached to
	// the user; ListInlinePolicies returns inline policy names.
	ListAttachedPolicies(ctx context.Context, username string) ([]string, error)
	DetachPolicy(ctx context.Context, username, policyARN string) error
	ListInlinePolicies(ctx context.Context, username string) ([]string, error)
	DeleteInlinePolicy(ctx context.Context, username, policyName string) error
}
