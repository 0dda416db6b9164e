package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"credvault.org/internal/apperr"
	"credvault.org/internal/credential"
	"credvault.org/internal/iam"
)

// txStore exposes the transactional write surface to the orchestrator. The
// identity-provider calls the orchestrator makes inside InTx are outside the
// transaction; only the row writes roll back.
type txStore struct {
	tx *sql.Tx
}

var _ credential.TxStore = (*txStore)(nil)

func (s *Store) InTx(ctx context.Context, fn func(tx credential.TxStore) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (t *txStore) InsertConsole(ctx context.Context, c credential.ConsoleCredential) error {
	_, err := t.tx.ExecContext(ctx, `
		insert into aws_console_credentials (id, aws_username, aws_password, expiration_time, created_by)
		values ($1, $2, $3, $4, $5)
	`, c.ID, c.AwsUsername, c.AwsPassword, c.ExpirationTime, c.CreatedBy)
	return translateConstraint(err)
}

func (t *txStore) UpdateConsole(ctx context.Context, c credential.ConsoleCredential) error {
	res, err := t.tx.ExecContext(ctx, `
		update aws_console_credentials
		set aws_username = $2, aws_password = $3, expiration_time = $4, updated_by = $5, updated_at = now()
		where id = $1 and deleted_at is null
	`, c.ID, c.AwsUsername, c.AwsPassword, c.ExpirationTime, c.UpdatedBy)
	if err != nil {
		return translateConstraint(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("console credential not found")
	}
	return nil
}

const consoleColumns = `id, aws_username, aws_password, expiration_time, created_by, updated_by, created_at, updated_at`

func scanConsole(row interface{ Scan(...any) error }) (credential.ConsoleCredential, error) {
	var (
		c         credential.ConsoleCredential
		updatedBy sql.NullString
	)
	err := row.Scan(&c.ID, &c.AwsUsername, &c.AwsPassword, &c.ExpirationTime, &c.CreatedBy, &updatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return credential.ConsoleCredential{}, err
	}
	if updatedBy.Valid {
		c.UpdatedBy = &updatedBy.String
	}
	return c, nil
}

func (s *Store) GetConsole(ctx context.Context, id string) (credential.ConsoleCredential, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+consoleColumns+`
		from aws_console_credentials
		where id = $1 and deleted_at is null
	`, id)
	c, err := scanConsole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return credential.ConsoleCredential{}, apperr.NotFound("console credential not found")
	}
	return c, err
}

func (s *Store) ListConsole(ctx context.Context) ([]credential.ConsoleCredential, error) {
	return s.queryConsole(ctx, `
		select `+consoleColumns+`
		from aws_console_credentials
		where deleted_at is null
		order by created_at desc
	`)
}

func (s *Store) ListExpiredConsole(ctx context.Context, now time.Time) ([]credential.ConsoleCredential, error) {
	return s.queryConsole(ctx, `
		select `+consoleColumns+`
		from aws_console_credentials
		where deleted_at is null and expiration_time < $1
		order by expiration_time
	`, now)
}

func (s *Store) queryConsole(ctx context.Context, query string, args ...any) ([]credential.ConsoleCredential, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []credential.ConsoleCredential
	for rows.Next() {
		c, err := scanConsole(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (s *Store) DeleteConsole(ctx context.Context, id string) error {
	// Already-deleted rows match nothing; the delete stays a no-op.
	_, err := s.db.ExecContext(ctx, `
		update aws_console_credentials
		set deleted_at = now()
		where id = $1 and deleted_at is null
	`, id)
	return err
}

func (s *Store) InsertProgrammatic(ctx context.Context, c credential.ProgrammaticCredential) error {
	_, err := s.db.ExecContext(ctx, `
		insert into aws_programmatic_credentials (id, aws_username, aws_access_key, aws_secret_key, status, created_by)
		values ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.AwsUsername, c.AwsAccessKey, c.AwsSecretKey, string(c.Status), c.CreatedBy)
	return translateConstraint(err)
}

const programmaticColumns = `id, aws_username, aws_access_key, aws_secret_key, status, created_by, updated_by, created_at, updated_at`

func scanProgrammatic(row interface{ Scan(...any) error }) (credential.ProgrammaticCredential, error) {
	var (
		c         credential.ProgrammaticCredential
		status    string
		updatedBy sql.NullString
	)
	err := row.Scan(&c.ID, &c.AwsUsername, &c.AwsAccessKey, &c.AwsSecretKey, &status, &c.CreatedBy, &updatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return credential.ProgrammaticCredential{}, err
	}
	c.Status = iam.KeyStatus(status)
	if updatedBy.Valid {
		c.UpdatedBy = &updatedBy.String
	}
	return c, nil
}

func (s *Store) GetProgrammatic(ctx context.Context, id string) (credential.ProgrammaticCredential, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+programmaticColumns+`
		from aws_programmatic_credentials
		where id = $1 and deleted_at is null
	`, id)
	c, err := scanProgrammatic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return credential.ProgrammaticCredential{}, apperr.NotFound("programmatic credential not found")
	}
	return c, err
}

func (s *Store) ListProgrammatic(ctx context.Context) ([]credential.ProgrammaticCredential, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+programmaticColumns+`
		from aws_programmatic_credentials
		where deleted_at is null
		order by created_at desc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []credential.ProgrammaticCredential
	for rows.Next() {
		c, err := scanProgrammatic(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (s *Store) SetProgrammaticStatus(ctx context.Context, id string, status iam.KeyStatus, updatedBy string) (credential.ProgrammaticCredential, error) {
	res, err := s.db.ExecContext(ctx, `
		update aws_programmatic_credentials
		set status = $2, updated_by = $3, updated_at = now()
		where id = $1 and deleted_at is null
	`, id, string(status), updatedBy)
	if err != nil {
		return credential.ProgrammaticCredential{}, translateConstraint(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return credential.ProgrammaticCredential{}, apperr.NotFound("programmatic credential not found")
	}
	return s.GetProgrammatic(ctx, id)
}

func (s *Store) DeleteProgrammatic(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		update aws_programmatic_credentials
		set deleted_at = now()
		where id = $1 and deleted_at is null
	`, id)
	return err
}
