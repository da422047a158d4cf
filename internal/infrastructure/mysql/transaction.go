package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type TxxBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// TxSettings bounds every write transaction: how long it may run and how
// many times lock contention may restart it.
type TxSettings struct {
	Timeout     time.Duration
	MaxAttempts int
}

var writeTxOptions = &sql.TxOptions{Isolation: sql.LevelRepeatableRead}

// InTx runs fn in a REPEATABLE READ transaction, retrying the whole
// transaction on deadlocks and lock wait timeouts.
func InTx(ctx context.Context, db TxBeginner, s TxSettings, logger *zap.Logger, fn func(ctx context.Context, tx *sql.Tx) error) error {
	return Retry(ctx, s.MaxAttempts, logger, func(ctx context.Context) error {
		txCtx, cancel := withTimeout(ctx, s.Timeout)
		defer cancel()

		tx, err := db.BeginTx(txCtx, writeTxOptions)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		// Rollback after Commit is a no-op.
		defer tx.Rollback()

		if err := fn(txCtx, tx); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing transaction: %w", err)
		}
		return nil
	})
}

// InTxx is InTx for sqlx callers.
func InTxx(ctx context.Context, db TxxBeginner, s TxSettings, logger *zap.Logger, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	return Retry(ctx, s.MaxAttempts, logger, func(ctx context.Context) error {
		txCtx, cancel := withTimeout(ctx, s.Timeout)
		defer cancel()

		tx, err := db.BeginTxx(txCtx, writeTxOptions)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback()

		if err := fn(txCtx, tx); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing transaction: %w", err)
		}
		return nil
	})
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
