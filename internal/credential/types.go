// Package credential orchestrates the lifecycle of cloud credentials,
// keeping the database mirror and the remote identity provider in agreement.
package credential

import (
	"context"
	"time"

	"credvault.org/internal/iam"
)

// ConsoleCredential is a username/password pair granting browser access to
// the identity provider. The database row owns expiry tracking; the provider
// owns actual access.
type ConsoleCredential struct {
	ID             string     `json:"id"`
	AwsUsername    string     `json:"aws_username"`
	AwsPassword    string     `json:"aws_password"`
	ExpirationTime time.Time  `json:"expiration_time"`
	CreatedBy      string     `json:"created_by"`
	UpdatedBy      *string    `json:"updated_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"-"`
}

// ProgrammaticCredential mirrors an access-key/secret pair issued by the
// identity provider.
type ProgrammaticCredential struct {
	ID           string        `json:"id"`
	AwsUsername  string        `json:"aws_username"`
	AwsAccessKey string        `json:"aws_access_key"`
	AwsSecretKey string        `json:"aws_secret_key"`
	Status       iam.KeyStatus `json:"status"`
	CreatedBy    string        `json:"created_by"`
	UpdatedBy    *string       `json:"updated_by"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	DeletedAt    *time.Time    `json:"-"`
}

// ConsoleUpdate carries the optional rotation fields for a console
// credential; nil means leave unchanged.
type ConsoleUpdate struct {
	NewUsername   *string
	NewPassword   *string
	NewExpiration *time.Time
}

// TxStore is the write surface available inside one database transaction.
type TxStore interface {
	InsertConsole(ctx context.Context, c ConsoleCredential) error
	UpdateConsole(ctx context.Context, c ConsoleCredential) error
}

// Store is the persistence surface the orchestrator depends on. InTx runs fn
// inside a transaction; a returned error rolls back every write fn made.
type Store interface {
	InTx(ctx context.Context, fn func(tx TxStore) error) error

	GetConsole(ctx context.Context, id string) (ConsoleCredential, error)
	ListConsole(ctx context.Context) ([]ConsoleCredential, error)
	// DeleteConsole soft-deletes the row; deleting an already-deleted row
	// is a no-op.
	DeleteConsole(ctx context.Context, id string) error
	ListExpiredConsole(ctx context.Context, now time.Time) ([]ConsoleCredential, error)

	InsertProgrammatic(ctx context.Context, c ProgrammaticCredential) error
	GetProgrammatic(ctx context.Context, id string) (ProgrammaticCredential, error)
	ListProgrammatic(ctx context.Context) ([]ProgrammaticCredential, error)
	SetProgrammaticStatus(ctx context.Context, id string, status iam.KeyStatus, updatedBy string) (ProgrammaticCredential, error)
	DeleteProgrammatic(ctx context.Context, id string) error
}
