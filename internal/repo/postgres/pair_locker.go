package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PairLocker serializes work on one profile pair with a transaction scoped
// advisory lock. The lock is released when the transaction ends.
type PairLocker struct {
	pool *pgxpool.Pool
	tx   *Transactor
}

func NewPairLocker(pool *pgxpool.Pool) *PairLocker {
	return &PairLocker{
		pool: pool,
		tx:   NewTransactor(pool),
	}
}

func (l *PairLocker) WithPairLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if key == "" {
		return fmt.Errorf("pair lock key is required")
	}

	return l.tx.InTx(ctx, func(ctx context.Context) error {
		q, err := conn(ctx, l.pool)
		if err != nil {
			return fmt.Errorf("acquire pair lock: %w", err)
		}
		if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return classify(fmt.Errorf("acquire pair lock: %w", err))
		}
		return fn(ctx)
	})
}
