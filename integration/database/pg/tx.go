package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/orchestra/core/command"
)

// Beginner starts transactions. *pgxpool.Pool and pgx.Tx implement it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TxRunner runs units of work in pgx transactions and implements
// command.TxRunner. The transaction is stored in the context with WithTx.
// When the context already carries a transaction, a savepoint is used.
type TxRunner struct {
	db Beginner
}

// NewTxRunner creates a TxRunner over db.
func NewTxRunner(db Beginner) *TxRunner {
	return &TxRunner{db: db}
}

// InTx implements command.TxRunner.
func (r *TxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	var begin Beginner = r.db
	if outer, ok := TxFromContext(ctx); ok {
		begin = outer
	}

	tx, err := begin.Begin(ctx)
	if err != nil {
		return err
	}

	if err := fn(WithTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !IsTxClosedError(rbErr) {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit(ctx)
}

var _ command.TxRunner = (*TxRunner)(nil)
