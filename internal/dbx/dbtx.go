// Package dbx provides tiny DB abstractions shared by repositories:
// a minimal interface (DBTX) implemented by both *sql.DB and *sql.Tx,
// and helpers to run functions inside a transaction.
package dbx

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxFunc is the unit of work executed by WithTx.
type TxFunc func(ctx context.Context, tx DBTX) error

// WithTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown.
//
// Typical use:
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    _, err := tx.ExecContext(ctx, "UPDATE ...")
//	    return err
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn TxFunc) (err error) {
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

// WithDetachedTx is WithTx on a context that keeps ctx's values but not its
// cancellation, bounded by timeout instead. Once started, the transaction
// runs to commit or rollback even if the caller's ctx is cancelled.
// A non-positive timeout means no deadline.
func WithDetachedTx(ctx context.Context, db *sql.DB, timeout time.Duration, fn TxFunc) error {
	dctx, cancel := Detach(ctx, timeout)
	defer cancel()
	return WithTx(dctx, db, nil, fn)
}

// Detach returns a context that survives cancellation of ctx.
func Detach(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	dctx := context.WithoutCancel(ctx)
	if timeout <= 0 {
		return context.WithCancel(dctx)
	}
	return context.WithTimeout(dctx, timeout)
}
