package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/saasgate/internal/common"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var (
	insertQ      = `(?s)^\s*INSERT\s+INTO\s+refresh_tokens\s*\(user_id,\s*token,\s*expires_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*$`
	findQ        = `(?s)^\s*SELECT\s+id,\s*token,\s*user_id,\s*expires_at,\s*revoked_at,\s*created_at\s+FROM\s+refresh_tokens\s+WHERE\s+token\s*=\s*\$1\s*$`
	revokeQ      = `(?s)^\s*UPDATE\s+refresh_tokens\s+SET\s+revoked_at\s*=\s*\$2\s+WHERE\s+token\s*=\s*\$1\s+AND\s+revoked_at\s+IS\s+NULL\s*$`
	revokeAllQ   = `(?s)^\s*UPDATE\s+refresh_tokens\s+SET\s+revoked_at\s*=\s*\$2\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+revoked_at\s+IS\s+NULL\s*$`
	deleteExpQ   = `(?s)^\s*DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+expires_at\s*<\s*\$1\s*$`
	findColumns  = []string{"id", "token", "user_id", "expires_at", "revoked_at", "created_at"}
	fixedInstant = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
)

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	exp := fixedInstant.Add(7 * 24 * time.Hour)
	mock.ExpectExec(insertQ).
		WithArgs("u1", "tok123", exp).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), "u1", "tok123", exp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(insertQ).
		WithArgs("u1", "tok123", sqlmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), "u1", "tok123", fixedInstant)
	if err == nil || !regexp.MustCompile(`error performing sql request: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFind_LiveToken(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	exp := fixedInstant.Add(time.Hour)
	mock.ExpectQuery(findQ).
		WithArgs("tok123").
		WillReturnRows(sqlmock.NewRows(findColumns).AddRow("id1", "tok123", "u1", exp, nil, fixedInstant))

	got, err := repo.Find(context.Background(), "tok123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserID != "u1" || !got.ExpiresAt.Equal(exp) || got.Revoked() {
		t.Fatalf("unexpected row: %+v", got)
	}
}

func TestFind_RevokedToken(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(findQ).
		WithArgs("tok123").
		WillReturnRows(sqlmock.NewRows(findColumns).AddRow("id1", "tok123", "u1", fixedInstant.Add(time.Hour), fixedInstant, fixedInstant))

	got, err := repo.Find(context.Background(), "tok123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Revoked() || !got.RevokedAt.Equal(fixedInstant) {
		t.Fatalf("expected revoked token, got %+v", got)
	}
}

func TestFind_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(findQ).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.Find(context.Background(), "missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestFind_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(findQ).WithArgs("tok123").WillReturnError(errors.New("db err"))

	_, err := repo.Find(context.Background(), "tok123")
	if err == nil || errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected storage error distinct from not found, got %v", err)
	}
}

func TestRevoke_WinnerAndLoser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(revokeQ).WithArgs("tok123", fixedInstant).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(revokeQ).WithArgs("tok123", fixedInstant).WillReturnResult(sqlmock.NewResult(0, 0))

	won, err := repo.Revoke(context.Background(), "tok123", fixedInstant)
	if err != nil || !won {
		t.Fatalf("first revoke: won=%v err=%v", won, err)
	}
	won, err = repo.Revoke(context.Background(), "tok123", fixedInstant)
	if err != nil || won {
		t.Fatalf("second revoke must report already revoked: won=%v err=%v", won, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRevoke_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(revokeQ).WithArgs("tok123", fixedInstant).WillReturnError(errors.New("db err"))

	if _, err := repo.Revoke(context.Background(), "tok123", fixedInstant); err == nil {
		t.Fatal("expected error")
	}
}

func TestRevokeAllForUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(revokeAllQ).WithArgs("u1", fixedInstant).WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.RevokeAllForUser(context.Background(), "u1", fixedInstant)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("want 3 revoked, got %d", n)
	}
}

func TestDeleteExpired(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(deleteExpQ).WithArgs(fixedInstant).WillReturnResult(sqlmock.NewResult(0, 5))

	n, err := repo.DeleteExpired(context.Background(), fixedInstant)
	if err != nil || n != 5 {
		t.Fatalf("want 5 deleted, got %d (err=%v)", n, err)
	}
}
