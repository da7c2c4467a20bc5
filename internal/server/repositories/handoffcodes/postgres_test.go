package handoffcodes

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/saasgate/internal/common"
	"github.com/dmitrijs2005/saasgate/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

var now = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+oauth_handoff_codes\s*\(code,\s*user_id,\s*tenant_id,\s*return_path,\s*expires_at\)`).
		WithArgs("c0de", "u1", "t1", "/account", now.Add(time.Minute)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.HandoffCode{
		Code: "c0de", UserID: "u1", TenantID: "t1", ReturnPath: "/account", ExpiresAt: now.Add(time.Minute),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFind(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)SELECT\s+code,\s*user_id,\s*tenant_id,\s*return_path,\s*expires_at,\s*used_at,\s*created_at\s+FROM\s+oauth_handoff_codes\s+WHERE\s+code\s*=\s*\$1`
	cols := []string{"code", "user_id", "tenant_id", "return_path", "expires_at", "used_at", "created_at"}
	mock.ExpectQuery(q).WithArgs("c0de").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("c0de", "u1", "t1", "/", now.Add(time.Minute), now, now))
	mock.ExpectQuery(q).WithArgs("gone").WillReturnError(sql.ErrNoRows)

	c, err := repo.Find(context.Background(), "c0de")
	require.NoError(t, err)
	require.NotNil(t, c.UsedAt)
	assert.False(t, c.Redeemable(now))

	_, err = repo.Find(context.Background(), "gone")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMarkUsed_SingleUse(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)UPDATE\s+oauth_handoff_codes\s+SET\s+used_at\s*=\s*\$2\s+WHERE\s+code\s*=\s*\$1\s+AND\s+used_at\s+IS\s+NULL\s+AND\s+expires_at\s*>\s*\$2`
	mock.ExpectExec(q).WithArgs("c0de", now).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("c0de", now).WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkUsed(context.Background(), "c0de", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkUsed(context.Background(), "c0de", now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkUsed_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+oauth_handoff_codes`).WillReturnError(errors.New("down"))

	_, err := repo.MarkUsed(context.Background(), "c0de", now)
	assert.Error(t, err)
}

func TestDeleteExpired(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)DELETE\s+FROM\s+oauth_handoff_codes\s+WHERE\s+expires_at\s*<\s*\$1`).
		WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
