package catalog

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Repository serves catalog lookups outside pipeline transactions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where += ` AND (name ILIKE $` + strconv.Itoa(len(args)) + ` OR sku ILIKE $` + strconv.Itoa(len(args)) + `)`
	}
	if filter.ActiveOnly {
		where += ` AND is_active`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.PerPage, shared.Pagination{Page: filter.Page, PerPage: filter.PerPage}.Offset())
	query := `SELECT id, sku, name, cost_price, selling_price, tax_percent, is_active FROM products` + where +
		` ORDER BY name, id LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Product, error) {
		var p Product
		err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.CostPrice, &p.SellingPrice, &p.TaxPercent, &p.IsActive)
		return p, err
	})
	return products, total, err
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT id, sku, name, cost_price, selling_price, tax_percent, is_active FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.SKU, &p.Name, &p.CostPrice, &p.SellingPrice, &p.TaxPercent, &p.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.NotFound("product", id)
	}
	return p, err
}

func (r *Repository) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	var c Customer
	err := r.pool.QueryRow(ctx, `SELECT id, name, credit_balance FROM customers WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.CreditBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, shared.NotFound("customer", id)
	}
	return c, err
}

func (r *Repository) GetVendor(ctx context.Context, id int64) (Vendor, error) {
	var v Vendor
	err := r.pool.QueryRow(ctx, `SELECT id, name, payable_balance FROM vendors WHERE id=$1`, id).
		Scan(&v.ID, &v.Name, &v.PayableBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return Vendor{}, shared.NotFound("vendor", id)
	}
	return v, err
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds catalog queries to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) GetProducts(ctx context.Context, ids []int64) (map[int64]Product, error) {
	out := make(map[int64]Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.tx.Query(ctx, `SELECT id, sku, name, cost_price, selling_price, tax_percent, is_active
FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.CostPrice, &p.SellingPrice, &p.TaxPercent, &p.IsActive); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, shared.NotFound("product", id)
		}
	}
	return out, nil
}

func (r *txRepository) GetCustomerForUpdate(ctx context.Context, id int64) (Customer, error) {
	var c Customer
	err := r.tx.QueryRow(ctx, `SELECT id, name, credit_balance FROM customers WHERE id=$1 FOR UPDATE`, id).
		Scan(&c.ID, &c.Name, &c.CreditBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, shared.NotFound("customer", id)
	}
	return c, err
}

func (r *txRepository) AdjustCustomerCredit(ctx context.Context, id int64, delta decimal.Decimal) error {
	tag, err := r.tx.Exec(ctx, `UPDATE customers SET credit_balance = credit_balance + $2, updated_at = NOW() WHERE id=$1`, id, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("customer", id)
	}
	return nil
}

func (r *txRepository) GetVendorForUpdate(ctx context.Context, id int64) (Vendor, error) {
	var v Vendor
	err := r.tx.QueryRow(ctx, `SELECT id, name, payable_balance FROM vendors WHERE id=$1 FOR UPDATE`, id).
		Scan(&v.ID, &v.Name, &v.PayableBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return Vendor{}, shared.NotFound("vendor", id)
	}
	return v, err
}

func (r *txRepository) AdjustVendorPayable(ctx context.Context, id int64, delta decimal.Decimal) error {
	tag, err := r.tx.Exec(ctx, `UPDATE vendors SET payable_balance = payable_balance + $2, updated_at = NOW() WHERE id=$1`, id, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("vendor", id)
	}
	return nil
}
