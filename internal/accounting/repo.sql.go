package accounting

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pos/internal/sequence"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// TxRepository exposes the journal tables inside a transaction. It also allocates entry numbers.
type TxRepository interface {
	sequence.TxRepository
	GetAccounts(ctx context.Context, ids []int64) (map[int64]Account, error)
	InsertEntry(ctx context.Context, entry JournalEntry, lines []LineInput) (JournalEntry, error)
	GetEntryForUpdate(ctx context.Context, id int64) (JournalEntry, error)
	MarkPosted(ctx context.Context, id int64, at time.Time, actorID int64) error
	FindReversal(ctx context.Context, id int64) (int64, bool, error)
	LinkReversal(ctx context.Context, reversalID, originalID int64) error
}

// Repository persists accounting entities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("accounting repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// ListAccounts returns the chart of accounts ordered by code.
func (r *Repository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, type, parent_id, is_group, is_active, created_at, updated_at
FROM accounts ORDER BY code`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanAccount)
}

// GetEntry loads one entry with its lines.
func (r *Repository) GetEntry(ctx context.Context, id int64) (JournalEntry, error) {
	var entry JournalEntry
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		entry, err = loadEntry(ctx, tx, id, false)
		return err
	})
	return entry, err
}

// PostedLines returns posted lines dated on or before until, optionally for one account.
func (r *Repository) PostedLines(ctx context.Context, accountID int64, until time.Time) ([]reports.Line, error) {
	rows, err := r.pool.Query(ctx, `SELECT l.id, e.id, e.number, e.date, e.memo, l.account_id, l.debit, l.credit
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
WHERE e.posted AND e.date <= $1 AND ($2::bigint = 0 OR l.account_id = $2::bigint)
ORDER BY e.date, e.id, l.id`, until, accountID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (reports.Line, error) {
		var l reports.Line
		err := row.Scan(&l.LineID, &l.EntryID, &l.EntryNumber, &l.Date, &l.Memo, &l.AccountID, &l.Debit, &l.Credit)
		return l, err
	})
}

type txRepository struct {
	tx  pgx.Tx
	seq sequence.TxRepository
}

// NewTxRepository binds the journal tables to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx, seq: sequence.NewTxRepository(tx)}
}

func (r *txRepository) Increment(ctx context.Context, prefix string) (int64, error) {
	return r.seq.Increment(ctx, prefix)
}

func (r *txRepository) GetAccounts(ctx context.Context, ids []int64) (map[int64]Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, code, name, type, parent_id, is_group, is_active, created_at, updated_at
FROM accounts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	accounts, err := pgx.CollectRows(rows, scanAccount)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]Account, len(accounts))
	for _, a := range accounts {
		out[a.ID] = a
	}
	return out, nil
}

func (r *txRepository) InsertEntry(ctx context.Context, entry JournalEntry, lines []LineInput) (JournalEntry, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (number, date, entry_type, ref_type, ref_id, memo, posted, posted_at, posted_by, created_by, created_at)
VALUES ($1,$2,$3,NULLIF($4,''),NULLIF($5,0),$6,$7,$8,$9,$10,$11) RETURNING id`,
		entry.Number, entry.Date, string(entry.Type), entry.RefType, entry.RefID, entry.Memo,
		entry.Posted, entry.PostedAt, entry.PostedBy, entry.CreatedBy, entry.CreatedAt).Scan(&entry.ID)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = make([]JournalLine, 0, len(lines))
	for _, in := range lines {
		line := JournalLine{EntryID: entry.ID, AccountID: in.AccountID, Debit: shared.Round2(in.Debit), Credit: shared.Round2(in.Credit), Memo: in.Memo}
		if err := r.tx.QueryRow(ctx, `INSERT INTO journal_lines (entry_id, account_id, debit, credit, memo)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, entry.ID, line.AccountID, line.Debit, line.Credit, line.Memo).Scan(&line.ID); err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, nil
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, id int64) (JournalEntry, error) {
	return loadEntry(ctx, r.tx, id, true)
}

func (r *txRepository) MarkPosted(ctx context.Context, id int64, at time.Time, actorID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE journal_entries SET posted = TRUE, posted_at = $2, posted_by = $3 WHERE id = $1 AND NOT posted`, id, at, actorID)
	return err
}

func (r *txRepository) FindReversal(ctx context.Context, id int64) (int64, bool, error) {
	var reversalID int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM journal_entries WHERE reversal_of = $1`, id).Scan(&reversalID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return reversalID, true, nil
}

func (r *txRepository) LinkReversal(ctx context.Context, reversalID, originalID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE journal_entries SET reversal_of = $2 WHERE id = $1`, reversalID, originalID)
	if db.IsUniqueViolation(err, "uq_journal_entries_reversal_of") {
		return ErrAlreadyReversed
	}
	return err
}

func loadEntry(ctx context.Context, tx pgx.Tx, id int64, lock bool) (JournalEntry, error) {
	query := `SELECT id, number, date, entry_type, COALESCE(ref_type, ''), COALESCE(ref_id, 0), memo, posted, posted_at, posted_by, created_by, reversal_of, created_at
FROM journal_entries WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	var e JournalEntry
	err := tx.QueryRow(ctx, query, id).Scan(&e.ID, &e.Number, &e.Date, &e.Type, &e.RefType, &e.RefID, &e.Memo,
		&e.Posted, &e.PostedAt, &e.PostedBy, &e.CreatedBy, &e.ReversalOf, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return JournalEntry{}, shared.NotFound("journal entry", id)
	}
	if err != nil {
		return JournalEntry{}, err
	}
	rows, err := tx.Query(ctx, `SELECT id, entry_id, account_id, debit, credit, memo FROM journal_lines WHERE entry_id = $1 ORDER BY id`, id)
	if err != nil {
		return JournalEntry{}, err
	}
	e.Lines, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (JournalLine, error) {
		var l JournalLine
		err := row.Scan(&l.ID, &l.EntryID, &l.AccountID, &l.Debit, &l.Credit, &l.Memo)
		return l, err
	})
	return e, err
}

func scanAccount(row pgx.CollectableRow) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsGroup, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}
