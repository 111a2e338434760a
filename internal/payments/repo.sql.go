package payments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting"
	"github.com/odyssey-erp/odyssey-pos/internal/catalog"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pos/internal/sequence"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// TxRepository stores payments and settles the referenced documents.
type TxRepository interface {
	InsertPayment(ctx context.Context, p Payment) (Payment, error)
	ListPayments(ctx context.Context, refType string, refID int64) ([]Payment, error)
	GetDocumentForUpdate(ctx context.Context, refType string, id int64) (Document, error)
	UpdateDocumentPayment(ctx context.Context, doc Document) error
}

// Repository persists payments in PostgreSQL.
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

func (s txScope) Payments() TxRepository { return NewTxRepository(s.tx) }
func (s txScope) Journal() accounting.TxRepository { return accounting.NewTxRepository(s.tx) }
func (s txScope) Catalog() catalog.TxRepository { return catalog.NewTxRepository(s.tx) }
func (s txScope) Sequences() sequence.TxRepository { return sequence.NewTxRepository(s.tx) }

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxScope) error) error {
	if r == nil {
		return errors.New("payments repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, txScope{tx: tx})
	})
}

// GetPayment loads one payment.
func (r *Repository) GetPayment(ctx context.Context, id int64) (Payment, error) {
	var p Payment
	err := r.pool.QueryRow(ctx, `SELECT id, number, direction, amount, method, ref_type, ref_id, journal_id, created_by, created_at
FROM payments WHERE id = $1`, id).Scan(&p.ID, &p.Number, &p.Direction, &p.Amount, &p.Method, &p.RefType, &p.RefID,
		&p.JournalID, &p.CreatedBy, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, shared.NotFound("payment", id)
	}
	return p, err
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds payment queries to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO payments (number, direction, amount, method, ref_type, ref_id, journal_id, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`, p.Number, string(p.Direction), p.Amount, p.Method, p.RefType, p.RefID,
		p.JournalID, p.CreatedBy, p.CreatedAt).Scan(&p.ID)
	return p, err
}

func (r *txRepository) ListPayments(ctx context.Context, refType string, refID int64) ([]Payment, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, number, direction, amount, method, ref_type, ref_id, journal_id, created_by, created_at
FROM payments WHERE ref_type = $1 AND ref_id = $2 ORDER BY id`, refType, refID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Payment, error) {
		var p Payment
		err := row.Scan(&p.ID, &p.Number, &p.Direction, &p.Amount, &p.Method, &p.RefType, &p.RefID,
			&p.JournalID, &p.CreatedBy, &p.CreatedAt)
		return p, err
	})
}

func (r *txRepository) GetDocumentForUpdate(ctx context.Context, refType string, id int64) (Document, error) {
	doc := Document{RefType: refType}
	var query string
	switch refType {
	case RefSale:
		query = `SELECT id, invoice_number, COALESCE(customer_id, 0), total, paid_amount, balance, status, payment_status
FROM sales WHERE id = $1 FOR UPDATE`
	case RefPurchase:
		query = `SELECT id, number, vendor_id, total, paid_amount, balance, '', payment_status
FROM goods_receipts WHERE id = $1 FOR UPDATE`
	default:
		return Document{}, shared.Validation("payments: unknown reference type %q", refType)
	}
	err := r.tx.QueryRow(ctx, query, id).Scan(&doc.ID, &doc.Number, &doc.PartyID, &doc.Total, &doc.Paid, &doc.Balance,
		&doc.Status, &doc.PaymentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, shared.NotFound(refType, id)
	}
	return doc, err
}

func (r *txRepository) UpdateDocumentPayment(ctx context.Context, doc Document) error {
	var err error
	switch doc.RefType {
	case RefSale:
		_, err = r.tx.Exec(ctx, `UPDATE sales SET paid_amount = $2, balance = $3, payment_status = $4, status = $5, updated_at = NOW() WHERE id = $1`,
			doc.ID, doc.Paid, doc.Balance, doc.PaymentStatus, doc.Status)
	case RefPurchase:
		_, err = r.tx.Exec(ctx, `UPDATE goods_receipts SET paid_amount = $2, balance = $3, payment_status = $4 WHERE id = $1`,
			doc.ID, doc.Paid, doc.Balance, doc.PaymentStatus)
	default:
		err = shared.Validation("payments: unknown reference type %q", doc.RefType)
	}
	return err
}
