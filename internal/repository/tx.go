package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// maxTxAttempts bounds how often a unit of work is replayed after a
// deadlock or lock wait timeout.
const maxTxAttempts = 3

// WithTx runs fn inside a transaction.  fn's error rolls the transaction
// back and is returned unchanged; a nil return commits.  Deadlocks and lock
// wait timeouts replay fn in a fresh transaction, and once the attempts are
// used up ErrConflict is returned.
func WithTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := runTx(ctx, db, fn)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("%w: %v", ErrConflict, lastErr)
}

func runTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
