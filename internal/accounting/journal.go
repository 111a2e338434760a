package accounting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/sequence"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Journal is the sole writer of journal entries. Its methods run on the caller's transaction
// so pipelines can post alongside their own writes.
type Journal struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewJournal constructs a Journal.
func NewJournal(logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (j *Journal) WithNow(now func() time.Time) {
	if now != nil {
		j.now = now
	}
}

// CreateEntry validates the whole entry, then numbers and stores it. Entries with Post set are
// posted in the same step.
func (j *Journal) CreateEntry(ctx context.Context, tx TxRepository, in EntryInput) (JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	if in.Type == "" {
		in.Type = EntryTypeJournal
	}
	if err := j.checkAccounts(ctx, tx, in.Lines); err != nil {
		return JournalEntry{}, err
	}
	number, err := sequence.Next(ctx, tx, sequence.PrefixJournal)
	if err != nil {
		return JournalEntry{}, err
	}
	now := j.now().UTC()
	date := in.Date
	if date.IsZero() {
		date = now
	}
	entry := JournalEntry{
		Number:    number,
		Date:      DateOf(date),
		Type:      in.Type,
		RefType:   in.RefType,
		RefID:     in.RefID,
		Memo:      in.Memo,
		CreatedBy: in.CreatedBy,
		CreatedAt: now,
	}
	if in.Post {
		entry.Posted = true
		entry.PostedAt = &now
		if in.CreatedBy > 0 {
			actor := in.CreatedBy
			entry.PostedBy = &actor
		}
	}
	inserted, err := tx.InsertEntry(ctx, entry, in.Lines)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("accounting: insert entry: %w", err)
	}
	j.logger.DebugContext(ctx, "journal entry created",
		slog.String("number", inserted.Number),
		slog.String("type", string(inserted.Type)),
		slog.Bool("posted", inserted.Posted))
	return inserted, nil
}

// Post marks an entry final. Posting an already posted entry returns it unchanged.
func (j *Journal) Post(ctx context.Context, tx TxRepository, entryID, actorID int64) (JournalEntry, error) {
	if actorID <= 0 {
		return JournalEntry{}, ErrActorRequired
	}
	entry, err := tx.GetEntryForUpdate(ctx, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	if entry.Posted {
		return entry, nil
	}
	debit, credit := entry.Totals()
	if !shared.WithinTolerance(debit, credit) {
		return JournalEntry{}, shared.IntegrityAlarm("accounting: stored entry %s is unbalanced", entry.Number)
	}
	now := j.now().UTC()
	if err := tx.MarkPosted(ctx, entryID, now, actorID); err != nil {
		return JournalEntry{}, fmt.Errorf("accounting: mark posted: %w", err)
	}
	entry.Posted = true
	entry.PostedAt = &now
	entry.PostedBy = &actorID
	return entry, nil
}

// Reverse posts an offsetting entry for a posted entry. Each entry can be reversed once.
func (j *Journal) Reverse(ctx context.Context, tx TxRepository, entryID int64, memo string, actorID int64) (JournalEntry, error) {
	original, err := tx.GetEntryForUpdate(ctx, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	if !original.Posted {
		return JournalEntry{}, ErrNotPosted
	}
	if original.ReversalOf != nil {
		return JournalEntry{}, shared.InvalidState("accounting: %s is itself a reversal", original.Number)
	}
	if _, found, err := tx.FindReversal(ctx, entryID); err != nil {
		return JournalEntry{}, err
	} else if found {
		return JournalEntry{}, ErrAlreadyReversed
	}
	if memo == "" {
		memo = "Reversal of " + original.Number
	}
	reversal, err := j.CreateEntry(ctx, tx, EntryInput{
		Date:      j.now(),
		Type:      original.Type,
		RefType:   original.RefType,
		RefID:     original.RefID,
		Memo:      memo,
		CreatedBy: actorID,
		Post:      true,
		Lines:     reverseLines(original.Lines),
	})
	if err != nil {
		return JournalEntry{}, err
	}
	if err := tx.LinkReversal(ctx, reversal.ID, original.ID); err != nil {
		return JournalEntry{}, fmt.Errorf("accounting: link reversal: %w", err)
	}
	reversal.ReversalOf = &original.ID
	return reversal, nil
}

func (j *Journal) checkAccounts(ctx context.Context, tx TxRepository, lines []LineInput) error {
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.AccountID)
	}
	accounts, err := tx.GetAccounts(ctx, ids)
	if err != nil {
		return err
	}
	for idx, l := range lines {
		acc, ok := accounts[l.AccountID]
		if !ok {
			return shared.NotFound("account", l.AccountID)
		}
		if acc.IsGroup {
			return lineError(idx, ErrGroupAccount)
		}
		if !acc.IsActive {
			return lineError(idx, ErrInactiveAccount)
		}
	}
	return nil
}

func reverseLines(lines []JournalLine) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{
			AccountID: line.AccountID,
			Debit:     line.Credit,
			Credit:    line.Debit,
			Memo:      line.Memo,
		})
	}
	return out
}
