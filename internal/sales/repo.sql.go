package sales

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting"
	"github.com/odyssey-erp/odyssey-pos/internal/catalog"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/loyalty"
	"github.com/odyssey-erp/odyssey-pos/internal/payments"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pos/internal/register"
	"github.com/odyssey-erp/odyssey-pos/internal/sequence"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

const idempotencyModule = "sales"

// TxRepository exposes the sales tables inside a pipeline transaction.
type TxRepository interface {
	// ClaimIdempotencyKey fails with shared.ErrIdempotencyConflict when key was already used.
	ClaimIdempotencyKey(ctx context.Context, key string) error
	InsertSale(ctx context.Context, sale Sale) (Sale, error)
	GetSaleForUpdate(ctx context.Context, id int64) (Sale, error)
	// UpdateSale rewrites header totals, journal links and per-line cost and returned quantity.
	UpdateSale(ctx context.Context, sale Sale) error
	InsertReturn(ctx context.Context, ret Return) (Return, error)
}

// Repository persists sales in PostgreSQL.
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

func (s txScope) Sales() TxRepository { return NewTxRepository(s.tx) }
func (s txScope) Inventory() inventory.TxRepository { return inventory.NewTxRepository(s.tx) }
func (s txScope) Journal() accounting.TxRepository { return accounting.NewTxRepository(s.tx) }
func (s txScope) Catalog() catalog.TxRepository { return catalog.NewTxRepository(s.tx) }
func (s txScope) Register() register.TxRepository { return register.NewTxRepository(s.tx) }
func (s txScope) Loyalty() loyalty.TxRepository { return loyalty.NewTxRepository(s.tx) }
func (s txScope) Payments() payments.TxRepository { return payments.NewTxRepository(s.tx) }
func (s txScope) Sequences() sequence.TxRepository { return sequence.NewTxRepository(s.tx) }

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxScope) error) error {
	if r == nil {
		return errors.New("sales repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, txScope{tx: tx})
	})
}

// GetSale loads a sale and its lines.
func (r *Repository) GetSale(ctx context.Context, id int64) (Sale, error) {
	return loadSale(ctx, r.pool, id, false)
}

const saleColumns = `id, invoice_number, date, customer_id, cashier_id, register_session_id, subtotal, discount, tax,
cgst, sgst, igst, total, paid_amount, balance, payment_method, payment_status, status, inter_state,
sale_journal_id, cogs_journal_id, created_at`

const lineColumns = `id, sale_id, product_id, quantity, unit_price, cost_price, discount_percent, discount_amount,
tax_percent, base, tax, cgst, sgst, igst, line_total, returned_qty`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadSale(ctx context.Context, q querier, id int64, lock bool) (Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	rows, err := q.Query(ctx, query, id)
	if err != nil {
		return Sale{}, err
	}
	sale, err := pgx.CollectExactlyOneRow(rows, scanSale)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, shared.NotFound("sale", id)
	}
	if err != nil {
		return Sale{}, err
	}
	rows, err = q.Query(ctx, `SELECT `+lineColumns+` FROM sale_lines WHERE sale_id = $1 ORDER BY id`, id)
	if err != nil {
		return Sale{}, err
	}
	sale.Lines, err = pgx.CollectRows(rows, scanLine)
	return sale, err
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds the sales tables to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) ClaimIdempotencyKey(ctx context.Context, key string) error {
	return shared.ClaimIdempotencyKey(ctx, r.tx, key, idempotencyModule)
}

func (r *txRepository) InsertSale(ctx context.Context, sale Sale) (Sale, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO sales (invoice_number, date, customer_id, cashier_id, register_session_id, subtotal,
discount, tax, cgst, sgst, igst, total, paid_amount, balance, payment_method, payment_status, status, inter_state, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$19) RETURNING id`,
		sale.InvoiceNumber, sale.Date, sale.CustomerID, sale.CashierID, sale.RegisterSessionID, sale.Subtotal,
		sale.Discount, sale.Tax, sale.CGST, sale.SGST, sale.IGST, sale.Total, sale.PaidAmount, sale.Balance,
		sale.PaymentMethod, sale.PaymentStatus, string(sale.Status), sale.InterState, sale.CreatedAt).Scan(&sale.ID)
	if err != nil {
		return Sale{}, err
	}
	for i := range sale.Lines {
		l := &sale.Lines[i]
		l.SaleID = sale.ID
		err := r.tx.QueryRow(ctx, `INSERT INTO sale_lines (sale_id, product_id, quantity, unit_price, cost_price, discount_percent,
discount_amount, tax_percent, base, tax, cgst, sgst, igst, line_total, returned_qty)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15) RETURNING id`,
			l.SaleID, l.ProductID, l.Quantity, l.UnitPrice, l.CostPrice, l.DiscountPercent, l.DiscountAmount,
			l.TaxPercent, l.Base, l.Tax, l.CGST, l.SGST, l.IGST, l.LineTotal, l.ReturnedQty).Scan(&l.ID)
		if err != nil {
			return Sale{}, err
		}
	}
	return sale, nil
}

func (r *txRepository) GetSaleForUpdate(ctx context.Context, id int64) (Sale, error) {
	return loadSale(ctx, r.tx, id, true)
}

func (r *txRepository) UpdateSale(ctx context.Context, sale Sale) error {
	batch := &pgx.Batch{}
	batch.Queue(`UPDATE sales SET register_session_id = $2, paid_amount = $3, balance = $4, payment_status = $5, status = $6,
sale_journal_id = $7, cogs_journal_id = $8, updated_at = NOW() WHERE id = $1`,
		sale.ID, sale.RegisterSessionID, sale.PaidAmount, sale.Balance, sale.PaymentStatus, string(sale.Status),
		sale.SaleJournalID, sale.COGSJournalID)
	for _, l := range sale.Lines {
		batch.Queue(`UPDATE sale_lines SET cost_price = $2, returned_qty = $3 WHERE id = $1`, l.ID, l.CostPrice, l.ReturnedQty)
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txRepository) InsertReturn(ctx context.Context, ret Return) (Return, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO sale_returns (number, sale_id, subtotal, tax, cgst, sgst, igst, total, refund_method,
reason, journal_id, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) RETURNING id`,
		ret.Number, ret.SaleID, ret.Subtotal, ret.Tax, ret.CGST, ret.SGST, ret.IGST, ret.Total, ret.RefundMethod,
		ret.Reason, ret.JournalID, ret.CreatedBy, ret.CreatedAt).Scan(&ret.ID)
	if err != nil {
		return Return{}, err
	}
	for i := range ret.Items {
		item := &ret.Items[i]
		item.ReturnID = ret.ID
		err := r.tx.QueryRow(ctx, `INSERT INTO sale_return_items (return_id, sale_line_id, product_id, quantity, condition, restocked, amount)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
			item.ReturnID, item.SaleLineID, item.ProductID, item.Quantity, string(item.Condition), item.Restocked, item.Amount).
			Scan(&item.ID)
		if err != nil {
			return Return{}, err
		}
	}
	return ret, nil
}

func scanSale(row pgx.CollectableRow) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.InvoiceNumber, &s.Date, &s.CustomerID, &s.CashierID, &s.RegisterSessionID, &s.Subtotal,
		&s.Discount, &s.Tax, &s.CGST, &s.SGST, &s.IGST, &s.Total, &s.PaidAmount, &s.Balance, &s.PaymentMethod,
		&s.PaymentStatus, &s.Status, &s.InterState, &s.SaleJournalID, &s.COGSJournalID, &s.CreatedAt)
	return s, err
}

func scanLine(row pgx.CollectableRow) (Line, error) {
	var l Line
	err := row.Scan(&l.ID, &l.SaleID, &l.ProductID, &l.Quantity, &l.UnitPrice, &l.CostPrice, &l.DiscountPercent,
		&l.DiscountAmount, &l.TaxPercent, &l.Base, &l.Tax, &l.CGST, &l.SGST, &l.IGST, &l.LineTotal, &l.ReturnedQty)
	return l, err
}
