package loyalty

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-pos/internal/catalog"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Repository reads the points log.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetCustomer loads the customer a balance belongs to.
func (r *Repository) GetCustomer(ctx context.Context, id int64) (catalog.Customer, error) {
	var c catalog.Customer
	err := r.pool.QueryRow(ctx, `SELECT id, name, credit_balance FROM customers WHERE id = $1`, id).Scan(&c.ID, &c.Name, &c.CreditBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Customer{}, shared.NotFound("customer", id)
	}
	return c, err
}

// LoyaltyHistory returns a customer's movements oldest first.
func (r *Repository) LoyaltyHistory(ctx context.Context, customerID int64) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, customer_id, points, sale_id, reason, created_at
FROM loyalty_transactions WHERE customer_id = $1 ORDER BY id`, customerID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Transaction, error) {
		var t Transaction
		err := row.Scan(&t.ID, &t.CustomerID, &t.Points, &t.SaleID, &t.Reason, &t.CreatedAt)
		return t, err
	})
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds loyalty_transactions to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) InsertLoyalty(ctx context.Context, t Transaction) (Transaction, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO loyalty_transactions (customer_id, points, sale_id, reason, created_at)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, t.CustomerID, t.Points, t.SaleID, t.Reason, t.CreatedAt).Scan(&t.ID)
	return t, err
}

func (r *txRepository) SalePoints(ctx context.Context, saleID int64) (int64, error) {
	var points int64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(points), 0) FROM loyalty_transactions WHERE sale_id = $1`, saleID).Scan(&points)
	return points, err
}
