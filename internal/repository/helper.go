package repository

import (
	"context"
	"database/sql"
	"time"
)

// querier is satisfied by both *sql.DB and *sql.Tx so repositories can run
// inside the caller's transaction when one is attached.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// unixTime converts stored unix seconds to a UTC time.
func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
