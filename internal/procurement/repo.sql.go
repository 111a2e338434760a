package procurement

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting"
	"github.com/odyssey-erp/odyssey-pos/internal/catalog"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pos/internal/sequence"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// TxRepository exposes purchase orders and receipts inside a transaction.
type TxRepository interface {
	InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error)
	GetPurchaseOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	// UpdatePurchaseOrder persists status and per-line received quantity.
	UpdatePurchaseOrder(ctx context.Context, po PurchaseOrder) error
	InsertReceipt(ctx context.Context, grn GoodsReceipt) (GoodsReceipt, error)
	LinkReceiptJournal(ctx context.Context, grnID, journalID int64) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a repository instance.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txScope struct {
	tx pgx.Tx
}

func (s txScope) Procurement() TxRepository { return NewTxRepository(s.tx) }
func (s txScope) Inventory() inventory.TxRepository { return inventory.NewTxRepository(s.tx) }
func (s txScope) Journal() accounting.TxRepository { return accounting.NewTxRepository(s.tx) }
func (s txScope) Catalog() catalog.TxRepository { return catalog.NewTxRepository(s.tx) }
func (s txScope) Sequences() sequence.TxRepository { return sequence.NewTxRepository(s.tx) }

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxScope) error) error {
	if r == nil {
		return errors.New("procurement repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, txScope{tx: tx})
	})
}

// GetPurchaseOrder loads an order and its lines.
func (r *Repository) GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return loadPurchaseOrder(ctx, r.pool, id, false)
}

// GetReceipt loads a goods receipt and its lines.
func (r *Repository) GetReceipt(ctx context.Context, id int64) (GoodsReceipt, error) {
	var grn GoodsReceipt
	err := r.pool.QueryRow(ctx, `SELECT id, number, po_id, vendor_id, inter_state, subtotal, tax, cgst, sgst, igst, total,
paid_amount, balance, payment_status, journal_id, created_by, created_at
FROM goods_receipts WHERE id = $1`, id).Scan(&grn.ID, &grn.Number, &grn.POID, &grn.VendorID, &grn.InterState,
		&grn.Subtotal, &grn.Tax, &grn.CGST, &grn.SGST, &grn.IGST, &grn.Total, &grn.PaidAmount, &grn.Balance,
		&grn.PaymentStatus, &grn.JournalID, &grn.CreatedBy, &grn.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return GoodsReceipt{}, shared.NotFound("goods receipt", id)
	}
	if err != nil {
		return GoodsReceipt{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, grn_id, product_id, po_line_id, received_qty, accepted_qty, unit_cost, tax_percent, base, tax
FROM goods_receipt_lines WHERE grn_id = $1 ORDER BY id`, id)
	if err != nil {
		return GoodsReceipt{}, err
	}
	grn.Lines, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (GRNLine, error) {
		var l GRNLine
		err := row.Scan(&l.ID, &l.GRNID, &l.ProductID, &l.POLineID, &l.ReceivedQty, &l.AcceptedQty, &l.UnitCost,
			&l.TaxPercent, &l.Base, &l.Tax)
		return l, err
	})
	return grn, err
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadPurchaseOrder(ctx context.Context, q querier, id int64, lock bool) (PurchaseOrder, error) {
	query := `SELECT id, number, vendor_id, status, total, created_by, created_at FROM purchase_orders WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	var po PurchaseOrder
	err := q.QueryRow(ctx, query, id).Scan(&po.ID, &po.Number, &po.VendorID, &po.Status, &po.Total, &po.CreatedBy, &po.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, shared.NotFound("purchase order", id)
	}
	if err != nil {
		return PurchaseOrder{}, err
	}
	rows, err := q.Query(ctx, `SELECT id, po_id, product_id, ordered_qty, received_qty, unit_cost
FROM purchase_order_lines WHERE po_id = $1 ORDER BY id`, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Lines, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (POLine, error) {
		var l POLine
		err := row.Scan(&l.ID, &l.POID, &l.ProductID, &l.OrderedQty, &l.ReceivedQty, &l.UnitCost)
		return l, err
	})
	return po, err
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds procurement tables to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_orders (number, vendor_id, status, total, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`, po.Number, po.VendorID, string(po.Status), po.Total, po.CreatedBy, po.CreatedAt).Scan(&po.ID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	for i := range po.Lines {
		l := &po.Lines[i]
		l.POID = po.ID
		if err := r.tx.QueryRow(ctx, `INSERT INTO purchase_order_lines (po_id, product_id, ordered_qty, received_qty, unit_cost)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, l.POID, l.ProductID, l.OrderedQty, l.ReceivedQty, l.UnitCost).Scan(&l.ID); err != nil {
			return PurchaseOrder{}, err
		}
	}
	return po, nil
}

func (r *txRepository) GetPurchaseOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	return loadPurchaseOrder(ctx, r.tx, id, true)
}

func (r *txRepository) UpdatePurchaseOrder(ctx context.Context, po PurchaseOrder) error {
	batch := &pgx.Batch{}
	batch.Queue(`UPDATE purchase_orders SET status = $2 WHERE id = $1`, po.ID, string(po.Status))
	for _, l := range po.Lines {
		batch.Queue(`UPDATE purchase_order_lines SET received_qty = $2 WHERE id = $1`, l.ID, l.ReceivedQty)
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txRepository) InsertReceipt(ctx context.Context, grn GoodsReceipt) (GoodsReceipt, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO goods_receipts (number, po_id, vendor_id, inter_state, subtotal, tax, cgst, sgst, igst, total,
paid_amount, balance, payment_status, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15) RETURNING id`,
		grn.Number, grn.POID, grn.VendorID, grn.InterState, grn.Subtotal, grn.Tax, grn.CGST, grn.SGST, grn.IGST, grn.Total,
		grn.PaidAmount, grn.Balance, grn.PaymentStatus, grn.CreatedBy, grn.CreatedAt).Scan(&grn.ID)
	if err != nil {
		return GoodsReceipt{}, err
	}
	for i := range grn.Lines {
		l := &grn.Lines[i]
		l.GRNID = grn.ID
		if err := r.tx.QueryRow(ctx, `INSERT INTO goods_receipt_lines (grn_id, product_id, po_line_id, received_qty, accepted_qty, unit_cost, tax_percent, base, tax)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`, l.GRNID, l.ProductID, l.POLineID, l.ReceivedQty, l.AcceptedQty,
			l.UnitCost, l.TaxPercent, l.Base, l.Tax).Scan(&l.ID); err != nil {
			return GoodsReceipt{}, err
		}
	}
	return grn, nil
}

func (r *txRepository) LinkReceiptJournal(ctx context.Context, grnID, journalID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE goods_receipts SET journal_id = $2 WHERE id = $1`, grnID, journalID)
	return err
}
