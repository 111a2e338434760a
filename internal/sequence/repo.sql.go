package sequence

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds the counter table to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// Increment bumps the per-prefix counter row. The row lock taken by the upsert is held until the
// transaction ends, serialising concurrent writers on the same prefix.
func (r *txRepository) Increment(ctx context.Context, prefix string) (int64, error) {
	var n int64
	err := r.tx.QueryRow(ctx, `INSERT INTO document_sequences (prefix, last_number) VALUES ($1, 1)
ON CONFLICT (prefix) DO UPDATE SET last_number = document_sequences.last_number + 1, updated_at = NOW()
RETURNING last_number`, prefix).Scan(&n)
	return n, err
}
