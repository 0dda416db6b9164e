// Package pg implements the persistence interfaces over PostgreSQL.
package pg

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"credvault.org/internal/apperr"
	"credvault.org/internal/audit"
	"credvault.org/internal/credential"
	"credvault.org/internal/directory"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

type Store struct {
	db *sql.DB
}

var (
	_ directory.Store  = (*Store)(nil)
	_ credential.Store = (*Store)(nil)
	_ audit.Store      = (*Store)(nil)
)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle; used by tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// constraintFields names the input field behind each unique constraint so
// conflict errors can point at it.
var constraintFields = map[string]string{
	"users_username_key":                  "username",
	"users_email_key":                     "email",
	"roles_name_key":                      "name",
	"permissions_name_key":                "name",
	"aws_console_credentials_live_un_idx": "aws_username",
}

// translateConstraint maps unique violations to conflicts and foreign-key
// violations to not-found, the two signals the orchestrator distinguishes.
func translateConstraint(err error) error {
	if err == nil {
		return nil
	}
	pgErr, ok := maybePgError(err)
	if !ok {
		return err
	}
	switch pgErr.Code {
	case pgErrUniqueViolation:
		field := constraintFields[pgErr.ConstraintName]
		if field == "" {
			field = "resource"
		}
		return apperr.Conflict(field, field+" already exists")
	case pgErrForeignKeyViolation:
		return apperr.NotFound("referenced entity not found")
	}
	return err
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
