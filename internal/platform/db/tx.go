package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const txKey contextKey = "db_tx"

// Runner executes a function inside a database transaction. Services
// depend on this interface rather than on the pool so tests can swap in
// a pass-through implementation.
type Runner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txRunner struct{ pool *pgxpool.Pool }

// NewRunner returns a Runner backed by the connection pool.
func NewRunner(pool *pgxpool.Pool) Runner { return &txRunner{pool: pool} }

// WithTx begins a transaction, stores it in the context for repositories
// to pick up, runs fn, and commits. Any error rolls the whole
// transaction back, so multi-step operations are all-or-nothing.
func (r *txRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// TxFromContext retrieves the active transaction, if any. Repositories
// route their statements through it so that writes issued inside a
// Runner.WithTx block share one transaction.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey).(pgx.Tx)
	return tx
}
