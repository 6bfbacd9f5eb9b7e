// Package repositories holds the SQL implementations of domain repositories.
package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/turtacn/pkasolver/pkg/errors"
)

// queryExecutor abstracts sql.DB and sql.Tx
type queryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// scanner abstracts sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// dbError maps driver errors onto application codes. Context errors pass
// through so callers can tell a timeout from a broken database.
func dbError(err error, notFound error, msg string) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, sql.ErrNoRows):
		return notFound
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return errors.Wrap(err, errors.ErrCodeDatabaseError, msg)
	}
}

//Personal.AI order the ending
