// Package types defines the minimal database interface repositories depend
// on, so the same query code runs whether it is bound to a *sql.DB, a
// *sql.Conn, or a *sql.Tx.
package types

import (
	"context"
	"database/sql"
)

// CoreDB defines a minimal database interface for executing SQL queries.
type CoreDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DBTX defines a database interface that supports query execution and
// transactions.
type DBTX interface {
	CoreDB
}
