package storage

import (
	"context"
	"errors"
	"fmt"
)

// WithSavepoint runs fn inside a savepoint of tx. When fn fails, only the
// statements issued by fn are undone and the transaction stays usable; the
// error from fn is returned unchanged.
func WithSavepoint(ctx context.Context, tx Tx, name string, fn func() error) error {
	if err := tx.Savepoint(ctx, name); err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}
	if err := fn(); err != nil {
		if rbErr := tx.RollbackTo(context.WithoutCancel(ctx), name); rbErr != nil {
			return errors.Join(err, fmt.Errorf("failed to roll back savepoint: %w", rbErr))
		}
		return err
	}
	if err := tx.Release(ctx, name); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

// InTx runs fn in a new transaction of p and commits when fn succeeds.
func InTx(ctx context.Context, p Provider, fn func(tx Tx) error) error {
	tx, err := p.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("failed to roll back: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
