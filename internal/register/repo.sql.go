package register

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pos/internal/sequence"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// TxRepository exposes register_sessions inside a transaction.
type TxRepository interface {
	InsertSession(ctx context.Context, session Session) (Session, error)
	GetSessionForUpdate(ctx context.Context, id int64) (Session, error)
	OpenSessionForUpdate(ctx context.Context, cashierID int64) (Session, bool, error)
	UpdateSession(ctx context.Context, session Session) error
}

const sessionColumns = `id, number, cashier_id, opened_at, closed_at, opening_cash, sales_count, cash_total, card_total, upi_total, credit_total, closing_cash, expected_cash, variance, status`

// Repository persists sessions in PostgreSQL.
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

func (s txScope) Register() TxRepository { return NewTxRepository(s.tx) }
func (s txScope) Sequences() sequence.TxRepository { return sequence.NewTxRepository(s.tx) }

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxScope) error) error {
	if r == nil {
		return errors.New("register repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, txScope{tx: tx})
	})
}

// GetSession loads one session.
func (r *Repository) GetSession(ctx context.Context, id int64) (Session, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sessionColumns+` FROM register_sessions WHERE id = $1`, id)
	if err != nil {
		return Session{}, err
	}
	session, err := pgx.CollectExactlyOneRow(rows, scanSession)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, shared.NotFound("register session", id)
	}
	return session, err
}

// ActiveSession returns the open session of a cashier.
func (r *Repository) ActiveSession(ctx context.Context, cashierID int64) (Session, bool, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sessionColumns+` FROM register_sessions WHERE cashier_id = $1 AND status = 'open'`, cashierID)
	if err != nil {
		return Session{}, false, err
	}
	session, err := pgx.CollectExactlyOneRow(rows, scanSession)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, false, nil
	}
	return session, err == nil, err
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds register_sessions to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) InsertSession(ctx context.Context, s Session) (Session, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO register_sessions (number, cashier_id, opened_at, opening_cash, status)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, s.Number, s.CashierID, s.OpenedAt, s.OpeningCash, string(s.Status)).Scan(&s.ID)
	if db.IsUniqueViolation(err, "uq_register_sessions_open_cashier") {
		return Session{}, ErrSessionOpen
	}
	return s, err
}

func (r *txRepository) GetSessionForUpdate(ctx context.Context, id int64) (Session, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+sessionColumns+` FROM register_sessions WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return Session{}, err
	}
	session, err := pgx.CollectExactlyOneRow(rows, scanSession)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, shared.NotFound("register session", id)
	}
	return session, err
}

func (r *txRepository) OpenSessionForUpdate(ctx context.Context, cashierID int64) (Session, bool, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+sessionColumns+` FROM register_sessions WHERE cashier_id = $1 AND status = 'open' FOR UPDATE`, cashierID)
	if err != nil {
		return Session{}, false, err
	}
	session, err := pgx.CollectExactlyOneRow(rows, scanSession)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, false, nil
	}
	return session, err == nil, err
}

func (r *txRepository) UpdateSession(ctx context.Context, s Session) error {
	_, err := r.tx.Exec(ctx, `UPDATE register_sessions SET closed_at = $2, sales_count = $3, cash_total = $4, card_total = $5,
upi_total = $6, credit_total = $7, closing_cash = $8, expected_cash = $9, variance = $10, status = $11
WHERE id = $1`, s.ID, s.ClosedAt, s.SalesCount, s.CashTotal, s.CardTotal, s.UPITotal, s.CreditTotal,
		s.ClosingCash, s.ExpectedCash, s.Variance, string(s.Status))
	return err
}

func scanSession(row pgx.CollectableRow) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.Number, &s.CashierID, &s.OpenedAt, &s.ClosedAt, &s.OpeningCash, &s.SalesCount,
		&s.CashTotal, &s.CardTotal, &s.UPITotal, &s.CreditTotal, &s.ClosingCash, &s.ExpectedCash, &s.Variance, &s.Status)
	return s, err
}
