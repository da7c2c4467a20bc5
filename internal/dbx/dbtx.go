// Package dbx provides the small database abstractions shared by
// repositories: DBTX, satisfied by both *sql.DB and *sql.Tx, and helpers for
// running a unit of work inside a transaction.
package dbx

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of database/sql used by repositories.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx begins a transaction, runs fn with the transactional handle, and
// commits on success. It rolls back when fn returns an error or panics;
// panics are rethrown.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    _, err := tx.ExecContext(ctx, "UPDATE ...")
//	    return err
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// TxRunner runs fn as one unit of work. Services depend on it rather than on
// *sql.DB so that storage without transactions can be plugged in.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error
}

// SQLRunner runs units of work in database/sql transactions.
type SQLRunner struct {
	DB   *sql.DB
	Opts *sql.TxOptions
}

// RunInTx implements TxRunner on top of WithTx.
func (r SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	return WithTx(ctx, r.DB, r.Opts, fn)
}

// DirectRunner calls fn immediately with a nil handle. It backs stores whose
// single-row operations are already atomic (the in-memory repositories).
type DirectRunner struct{}

// RunInTx implements TxRunner.
func (DirectRunner) RunInTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	return fn(ctx, nil)
}

const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a PostgreSQL unique_violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
