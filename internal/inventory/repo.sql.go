package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting"
	"github.com/odyssey-erp/odyssey-pos/internal/catalog"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pos/internal/sequence"
)

// TxRepository exposes the stock tables inside a pipeline transaction.
type TxRepository interface {
	// GetPositionForUpdate locks the position row, creating an empty one when absent.
	GetPositionForUpdate(ctx context.Context, productID int64) (Position, error)
	InsertTransaction(ctx context.Context, entry Transaction) (Transaction, error)
	SavePosition(ctx context.Context, pos Position) error
	InsertAdjustment(ctx context.Context, adj Adjustment) (Adjustment, error)
}

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txScope struct {
	tx pgx.Tx
}

func (s txScope) Inventory() TxRepository { return NewTxRepository(s.tx) }
func (s txScope) Journal() accounting.TxRepository { return accounting.NewTxRepository(s.tx) }
func (s txScope) Catalog() catalog.TxRepository { return catalog.NewTxRepository(s.tx) }
func (s txScope) Sequences() sequence.TxRepository { return sequence.NewTxRepository(s.tx) }

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxScope) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, txScope{tx: tx})
	})
}

// GetPosition returns the stock level of one product; unknown products read as empty.
func (r *Repository) GetPosition(ctx context.Context, productID int64) (Position, error) {
	pos := Position{ProductID: productID}
	err := r.pool.QueryRow(ctx, `SELECT quantity, avg_cost, updated_at FROM inventory_positions WHERE product_id = $1`, productID).
		Scan(&pos.Quantity, &pos.AvgCost, &pos.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return pos, nil
	}
	return pos, err
}

// ListTransactions returns the newest stock log entries of a product in posting order.
func (r *Repository) ListTransactions(ctx context.Context, productID int64, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, qty_delta, unit_cost, kind, COALESCE(ref_type,''), COALESCE(ref_id,0), COALESCE(ref_number,''), note, oversold, balance_qty, created_at
FROM (
	SELECT * FROM inventory_transactions WHERE product_id = $1 ORDER BY id DESC LIMIT $2
) t ORDER BY id`, productID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanTransaction)
}

// FoldMismatches lists positions whose quantity differs from the sum of logged deltas.
func (r *Repository) FoldMismatches(ctx context.Context) ([]FoldMismatch, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.product_id, p.quantity, COALESCE(SUM(t.qty_delta), 0)
FROM inventory_positions p
LEFT JOIN inventory_transactions t ON t.product_id = p.product_id
GROUP BY p.product_id, p.quantity
HAVING p.quantity <> COALESCE(SUM(t.qty_delta), 0)
ORDER BY p.product_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (FoldMismatch, error) {
		var m FoldMismatch
		err := row.Scan(&m.ProductID, &m.PositionQty, &m.LoggedQty)
		return m, err
	})
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds the stock tables to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) GetPositionForUpdate(ctx context.Context, productID int64) (Position, error) {
	if _, err := r.tx.Exec(ctx, `INSERT INTO inventory_positions (product_id, quantity, avg_cost) VALUES ($1, 0, 0)
ON CONFLICT (product_id) DO NOTHING`, productID); err != nil {
		return Position{}, err
	}
	pos := Position{ProductID: productID}
	err := r.tx.QueryRow(ctx, `SELECT quantity, avg_cost, updated_at FROM inventory_positions WHERE product_id = $1 FOR UPDATE`, productID).
		Scan(&pos.Quantity, &pos.AvgCost, &pos.UpdatedAt)
	return pos, err
}

func (r *txRepository) InsertTransaction(ctx context.Context, entry Transaction) (Transaction, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO inventory_transactions (product_id, qty_delta, unit_cost, kind, ref_type, ref_id, ref_number, note, oversold, balance_qty, created_at)
VALUES ($1,$2,$3,$4,NULLIF($5,''),NULLIF($6,0),NULLIF($7,''),$8,$9,$10,$11) RETURNING id`,
		entry.ProductID, entry.QtyDelta, entry.UnitCost, string(entry.Kind), entry.RefType, entry.RefID, entry.RefNumber,
		entry.Note, entry.Oversold, entry.BalanceQty, entry.CreatedAt).Scan(&entry.ID)
	return entry, err
}

func (r *txRepository) SavePosition(ctx context.Context, pos Position) error {
	_, err := r.tx.Exec(ctx, `UPDATE inventory_positions SET quantity = $2, avg_cost = $3, updated_at = $4 WHERE product_id = $1`,
		pos.ProductID, pos.Quantity, pos.AvgCost, pos.UpdatedAt)
	return err
}

func (r *txRepository) InsertAdjustment(ctx context.Context, adj Adjustment) (Adjustment, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_adjustments (number, product_id, previous_qty, new_qty, delta, value, reason, journal_id, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		adj.Number, adj.ProductID, adj.PreviousQty, adj.NewQty, adj.Delta, adj.Value, adj.Reason, adj.JournalID, adj.CreatedBy, adj.CreatedAt).
		Scan(&adj.ID)
	return adj, err
}

func scanTransaction(row pgx.CollectableRow) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.ProductID, &t.QtyDelta, &t.UnitCost, &t.Kind, &t.RefType, &t.RefID, &t.RefNumber,
		&t.Note, &t.Oversold, &t.BalanceQty, &t.CreatedAt)
	return t, err
}
