// Package dbx holds the small database/sql helpers the SQL storage backend
// is built on: a DBTX interface satisfied by *sql.DB and *sql.Tx, a
// transaction runner and placeholder rebinding per dialect.
package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/common"
)

// DBTX lets the vault repositories run the same statements on a pool or
// inside the key-creation transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction and commits when fn returns nil.
// Failures to begin or commit are reported as common.ErrStorageUnavailable;
// errors from fn are returned as they are, joined with the rollback error if
// the rollback fails too. A panic in fn rolls back and is rethrown.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w: %w", common.ErrStorageUnavailable, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("commit transaction: %w: %w", common.ErrStorageUnavailable, cErr)
		}
	}()

	return fn(ctx, tx)
}
