// Package dbx holds the storage plumbing every repository builds on: the
// DBTX interface, which lets the same repository code run against a plain
// connection or a transaction, and a transaction helper.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX captures the query methods the repositories call. *sql.DB and
// *sql.Tx both satisfy it, so services decide where a transaction starts
// and repositories never have to know.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx opens a transaction on db and hands it to fn. It commits when fn
// returns nil, rolls back when fn returns an error, and rolls back before
// rethrowing when fn panics.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    repo := m.Votes(tx)
//	    if err := repo.DeleteByPollAndVoter(ctx, pollID, voterID); err != nil {
//	        return err
//	    }
//	    return repo.InsertMany(ctx, rows)
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
