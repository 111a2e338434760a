package memstore

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting"
	"github.com/odyssey-erp/odyssey-pos/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

type sequenceRepo struct{ t *Tx }

func (r sequenceRepo) Increment(_ context.Context, prefix string) (int64, error) {
	if err := r.t.fault("sequence.Increment"); err != nil {
		return 0, err
	}
	r.t.st.seq[prefix]++
	return r.t.st.seq[prefix], nil
}

type journalRepo struct{ t *Tx }

func (r journalRepo) Increment(ctx context.Context, prefix string) (int64, error) {
	return sequenceRepo(r).Increment(ctx, prefix)
}

func (r journalRepo) GetAccounts(_ context.Context, ids []int64) (map[int64]accounting.Account, error) {
	out := make(map[int64]accounting.Account, len(ids))
	for _, id := range ids {
		if a, ok := r.t.st.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (r journalRepo) InsertEntry(_ context.Context, entry accounting.JournalEntry, lines []accounting.LineInput) (accounting.JournalEntry, error) {
	if err := r.t.fault("accounting.InsertEntry"); err != nil {
		return accounting.JournalEntry{}, err
	}
	entry.ID = r.t.st.id()
	entry.Lines = make([]accounting.JournalLine, 0, len(lines))
	for _, in := range lines {
		entry.Lines = append(entry.Lines, accounting.JournalLine{
			ID:        r.t.st.id(),
			EntryID:   entry.ID,
			AccountID: in.AccountID,
			Debit:     shared.Round2(in.Debit),
			Credit:    shared.Round2(in.Credit),
			Memo:      in.Memo,
		})
	}
	r.t.st.entries[entry.ID] = cloneEntry(entry)
	return entry, nil
}

func (r journalRepo) GetEntryForUpdate(_ context.Context, id int64) (accounting.JournalEntry, error) {
	entry, ok := r.t.st.entries[id]
	if !ok {
		return accounting.JournalEntry{}, shared.NotFound("journal entry", id)
	}
	return cloneEntry(entry), nil
}

func (r journalRepo) MarkPosted(_ context.Context, id int64, at time.Time, actorID int64) error {
	entry, ok := r.t.st.entries[id]
	if !ok || entry.Posted {
		return nil
	}
	entry = cloneEntry(entry)
	entry.Posted = true
	entry.PostedAt = &at
	entry.PostedBy = &actorID
	r.t.st.entries[id] = entry
	return nil
}

func (r journalRepo) FindReversal(_ context.Context, id int64) (int64, bool, error) {
	for _, e := range r.t.st.entries {
		if e.ReversalOf != nil && *e.ReversalOf == id {
			return e.ID, true, nil
		}
	}
	return 0, false, nil
}

func (r journalRepo) LinkReversal(ctx context.Context, reversalID, originalID int64) error {
	if _, found, _ := r.FindReversal(ctx, originalID); found {
		return accounting.ErrAlreadyReversed
	}
	entry, ok := r.t.st.entries[reversalID]
	if !ok {
		return shared.NotFound("journal entry", reversalID)
	}
	entry = cloneEntry(entry)
	entry.ReversalOf = &originalID
	r.t.st.entries[reversalID] = entry
	return nil
}

func cloneEntry(e accounting.JournalEntry) accounting.JournalEntry {
	e.Lines = slices.Clone(e.Lines)
	return e
}

// ListAccounts returns the chart ordered by code.
func (s *Store) ListAccounts(context.Context) ([]accounting.Account, error) {
	st, unlock := s.read()
	defer unlock()
	out := make([]accounting.Account, 0, len(st.accounts))
	for _, a := range st.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// GetEntry loads one entry.
func (s *Store) GetEntry(_ context.Context, id int64) (accounting.JournalEntry, error) {
	st, unlock := s.read()
	defer unlock()
	entry, ok := st.entries[id]
	if !ok {
		return accounting.JournalEntry{}, shared.NotFound("journal entry", id)
	}
	return cloneEntry(entry), nil
}

// PostedLines returns posted lines up to until, optionally for one account.
func (s *Store) PostedLines(_ context.Context, accountID int64, until time.Time) ([]reports.Line, error) {
	st, unlock := s.read()
	defer unlock()
	var out []reports.Line
	for _, e := range st.entries {
		if !e.Posted || e.Date.After(until) {
			continue
		}
		for _, l := range e.Lines {
			if accountID != 0 && l.AccountID != accountID {
				continue
			}
			out = append(out, reports.Line{
				LineID:      l.ID,
				EntryID:     e.ID,
				EntryNumber: e.Number,
				Date:        e.Date,
				Memo:        e.Memo,
				AccountID:   l.AccountID,
				Debit:       l.Debit,
				Credit:      l.Credit,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].LineID < out[j].LineID
	})
	return out, nil
}

// Entries returns every journal entry in id order.
func (s *Store) Entries() []accounting.JournalEntry {
	st, unlock := s.read()
	defer unlock()
	out := make([]accounting.JournalEntry, 0, len(st.entries))
	for _, e := range st.entries {
		out = append(out, cloneEntry(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Counter returns the last number issued for prefix.
func (s *Store) Counter(prefix string) int64 {
	st, unlock := s.read()
	defer unlock()
	return st.seq[prefix]
}

// OverwriteLine rewrites one stored journal line in place, bypassing validation, so integrity
// checks can be exercised.
func (s *Store) OverwriteLine(entryID int64, idx int, debit, credit decimal.Decimal) {
	st, unlock := s.read()
	defer unlock()
	entry := cloneEntry(st.entries[entryID])
	entry.Lines[idx].Debit = debit
	entry.Lines[idx].Credit = credit
	st.entries[entryID] = entry
}
