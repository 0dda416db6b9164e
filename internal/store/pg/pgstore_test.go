package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"credvault.org/internal/apperr"
	"credvault.org/internal/audit"
	"credvault.org/internal/credential"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db), mock
}

func TestInsertConsoleUniqueViolationMapsToConflict(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("insert into aws_console_credentials").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "aws_console_credentials_live_un_idx"})
	mock.ExpectRollback()

	err := store.InTx(context.Background(), func(tx credential.TxStore) error {
		return tx.InsertConsole(context.Background(), credential.ConsoleCredential{ID: "c1", AwsUsername: "svc-test"})
	})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Field != "aws_username" {
		t.Fatalf("conflict does not name aws_username: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestInsertConsoleForeignKeyViolationMapsToNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("insert into aws_console_credentials").
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "aws_console_credentials_created_by_fkey"})
	mock.ExpectRollback()

	err := store.InTx(context.Background(), func(tx credential.TxStore) error {
		return tx.InsertConsole(context.Background(), credential.ConsoleCredential{ID: "c1", CreatedBy: "missing"})
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestInTxRollsBackWhenCallbackFails(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("insert into aws_console_credentials").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("remote call failed")
	err := store.InTx(context.Background(), func(tx credential.TxStore) error {
		if err := tx.InsertConsole(context.Background(), credential.ConsoleCredential{ID: "c1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want the callback error", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestInTxCommitsOnSuccess(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("insert into aws_console_credentials").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.InTx(context.Background(), func(tx credential.TxStore) error {
		return tx.InsertConsole(context.Background(), credential.ConsoleCredential{ID: "c1"})
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetConsoleRoundTrip(t *testing.T) {
	store, mock := newMockStore(t)
	expires := time.Date(2027, 3, 1, 12, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	mock.ExpectQuery("select (.+) from aws_console_credentials").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "aws_username", "aws_password", "expiration_time",
			"created_by", "updated_by", "created_at", "updated_at",
		}).AddRow("c1", "svc-test", "Sup3r$ecret", expires, "u1", nil, now, now))

	c, err := store.GetConsole(context.Background(), "c1")
	if err != nil {
		t.Fatalf("GetConsole: %v", err)
	}
	if c.AwsUsername != "svc-test" || !c.ExpirationTime.Equal(expires) {
		t.Fatalf("round trip mismatch: %+v", c)
	}
	if c.UpdatedBy != nil {
		t.Fatal("updated_by should be nil")
	}
}

func TestGetConsoleMissingRowIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select (.+) from aws_console_credentials").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "aws_username", "aws_password", "expiration_time",
			"created_by", "updated_by", "created_at", "updated_at",
		}))

	_, err := store.GetConsole(context.Background(), "missing")
	if apperr.StatusOf(err) != 404 {
		t.Fatalf("status = %d, want 404", apperr.StatusOf(err))
	}
}

func TestAuditSearchDefaultsToNewestFirst(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select count\\(\\*\\) from audit_logs").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("select (.+) from audit_logs\\s+order by created_at desc").
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "api_endpoint", "http_method", "request_payload",
			"response", "response_message", "response_status", "user_agent",
			"ip_address", "execution_duration", "created_at",
		}).AddRow("a1", nil, "/api/v1/users", "GET", "", "{}", "ok", 200, "curl", "127.0.0.1", 1.25, time.Now()))

	page, err := store.Search(context.Background(), audit.Query{CurrentPage: 1, RecordsPerPage: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if page.TotalRecords != 1 || len(page.Entries) != 1 {
		t.Fatalf("page = %+v", page)
	}
	if page.Entries[0].UserID != nil {
		t.Fatal("user_id should be nil for anonymous entries")
	}
}

func TestAuditSearchAppliesFilters(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select count\\(\\*\\) from audit_logs where").
		WithArgs("%/users%", "GET", 200).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("select (.+) from audit_logs\\s+where (.+) order by response_status desc").
		WithArgs("%/users%", "GET", 200, 25, 25).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "api_endpoint", "http_method", "request_payload",
			"response", "response_message", "response_status", "user_agent",
			"ip_address", "execution_duration", "created_at",
		}))

	_, err := store.Search(context.Background(), audit.Query{
		APIEndpoint:    "/users",
		HTTPMethod:     "get",
		ResponseStatus: 200,
		CurrentPage:    2,
		RecordsPerPage: 25,
		SortBy:         "response_status",
		SortDescending: true,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAuditAppend(t *testing.T) {
	store, mock := newMockStore(t)
	userID := "u1"
	mock.ExpectExec("insert into audit_logs").
		WithArgs("a1", &userID, "/api/v1/login", "POST", "{}", "{}", "ok", 200, "curl", "127.0.0.1", 3.5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Append(context.Background(), audit.Entry{
		ID:              "a1",
		UserID:          &userID,
		APIEndpoint:     "/api/v1/login",
		HTTPMethod:      "POST",
		RequestPayload:  "{}",
		Response:        "{}",
		ResponseMessage: "ok",
		ResponseStatus:  200,
		UserAgent:       "curl",
		IPAddress:       "127.0.0.1",
		ExecutionMillis: 3.5,
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
