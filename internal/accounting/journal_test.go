package accounting_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting"
	"github.com/odyssey-erp/odyssey-pos/internal/accounting/posting"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	"github.com/odyssey-erp/odyssey-pos/internal/testing/memstore"
	_ "github.com/odyssey-erp/odyssey-pos/testing"
)

var today = time.Date(2024, 4, 10, 15, 30, 0, 0, time.UTC)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newJournal() *accounting.Journal {
	j := accounting.NewJournal(discard())
	j.WithNow(func() time.Time { return today })
	return j
}

func within(t *testing.T, store *memstore.Store, fn func(context.Context, accounting.TxRepository) error) error {
	t.Helper()
	return store.AccountingPort().WithTx(context.Background(), fn)
}

func cashSaleLines(roles posting.RoleMap, amount string) []accounting.LineInput {
	return []accounting.LineInput{
		{AccountID: roles.Account(posting.RoleCash), Debit: d(amount)},
		{AccountID: roles.Account(posting.RoleSalesRevenue), Credit: d(amount)},
	}
}

func TestCreateEntryNumbersAndPosts(t *testing.T) {
	store := memstore.New()
	roles := store.SeedChart()
	journal := newJournal()

	var entry accounting.JournalEntry
	err := within(t, store, func(ctx context.Context, tx accounting.TxRepository) error {
		var err error
		entry, err = journal.CreateEntry(ctx, tx, accounting.EntryInput{
			Type:      accounting.EntryTypeSale,
			Memo:      "Sale INV-0001",
			CreatedBy: 3,
			Post:      true,
			Lines:     cashSaleLines(roles, "100"),
		})
		return err
	})
	require.NoError(t, err)
	require.Equal(t, "JE-0001", entry.Number)
	require.True(t, entry.Posted)
	require.NotNil(t, entry.PostedBy)
	require.EqualValues(t, 3, *entry.PostedBy)
	require.Equal(t, accounting.DateOf(today), entry.Date)
	require.Len(t, entry.Lines, 2)
}

func TestCreateEntryRejectsInvalidLines(t *testing.T) {
	store := memstore.New()
	roles := store.SeedChart()
	group, ok := store.AccountByCode("1")
	require.True(t, ok)
	inactive := store.AddAccount(accounting.Account{Code: "9999", Name: "Retired", Type: accounting.AccountTypeExpense})
	journal := newJournal()
	cash := roles.Account(posting.RoleCash)

	cases := map[string]struct {
		lines []accounting.LineInput
		want  error
	}{
		"unbalanced": {
			lines: []accounting.LineInput{{AccountID: cash, Debit: d("10")}, {AccountID: roles.Account(posting.RoleSalesRevenue), Credit: d("9")}},
			want:  accounting.ErrUnbalanced,
		},
		"single line": {
			lines: []accounting.LineInput{{AccountID: cash, Debit: d("10")}},
			want:  accounting.ErrTooFewLines,
		},
		"two sided line": {
			lines: []accounting.LineInput{{AccountID: cash, Debit: d("10"), Credit: d("10")}, {AccountID: cash, Credit: d("0")}},
			want:  accounting.ErrOneSided,
		},
		"negative amount": {
			lines: []accounting.LineInput{{AccountID: cash, Debit: d("-10")}, {AccountID: cash, Credit: d("-10")}},
			want:  accounting.ErrNegativeAmount,
		},
		"group account": {
			lines: []accounting.LineInput{{AccountID: group.ID, Debit: d("10")}, {AccountID: cash, Credit: d("10")}},
			want:  accounting.ErrGroupAccount,
		},
		"inactive account": {
			lines: []accounting.LineInput{{AccountID: inactive.ID, Debit: d("10")}, {AccountID: cash, Credit: d("10")}},
			want:  accounting.ErrInactiveAccount,
		},
		"unknown account": {
			lines: []accounting.LineInput{{AccountID: 424242, Debit: d("10")}, {AccountID: cash, Credit: d("10")}},
			want:  shared.ErrNotFound,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := within(t, store, func(ctx context.Context, tx accounting.TxRepository) error {
				_, err := journal.CreateEntry(ctx, tx, accounting.EntryInput{CreatedBy: 1, Post: true, Lines: tc.lines})
				return err
			})
			require.ErrorIs(t, err, tc.want)
		})
	}
	require.Empty(t, store.Entries())
	require.Zero(t, store.Counter("JE"))
}

func TestCreateEntryAcceptsCentTolerance(t *testing.T) {
	store := memstore.New()
	roles := store.SeedChart()
	journal := newJournal()

	err := within(t, store, func(ctx context.Context, tx accounting.TxRepository) error {
		_, err := journal.CreateEntry(ctx, tx, accounting.EntryInput{CreatedBy: 1, Lines: []accounting.LineInput{
			{AccountID: roles.Account(posting.RoleCash), Debit: d("10.01")},
			{AccountID: roles.Account(posting.RoleSalesRevenue), Credit: d("10.00")},
		}})
		return err
	})
	require.NoError(t, err)
}

func TestPostIsIdempotent(t *testing.T) {
	store := memstore.New()
	roles := store.SeedChart()
	journal := newJournal()

	var entry accounting.JournalEntry
	require.NoError(t, within(t, store, func(ctx context.Context, tx accounting.TxRepository) error {
		var err error
		entry, err = journal.CreateEntry(ctx, tx, accounting.EntryInput{CreatedBy: 1, Lines: cashSaleLines(roles, "50")})
		return err
	}))
	require.False(t, entry.Posted)

	for i := 0; i < 2; i++ {
		require.NoError(t, within(t, store, func(ctx context.Context, tx accounting.TxRepository) error {
			posted, err := journal.Post(ctx, tx, entry.ID, 2)
			require.True(t, posted.Posted)
			return err
		}))
	}
	stored, err := store.GetEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	require.True(t, stored.Posted)
	require.EqualValues(t, 2, *stored.PostedBy)

	err = within(t, store, func(ctx context.Context, tx accounting.TxRepository) error {
		_, err := journal.Post(ctx, tx, entry.ID, 0)
		return err
	})
	require.ErrorIs(t, err, accounting.ErrActorRequired)
}

func TestReverseOnce(t *testing.T) {
	store := memstore.New()
	roles := store.SeedChart()
	journal := newJournal()

	var original accounting.JournalEntry
	require.NoError(t, within(t, store, func(ctx context.Context, tx accounting.TxRepository) error {
		var err error
		original, err = journal.CreateEntry(ctx, tx, accounting.EntryInput{Type: accounting.EntryTypeSale, RefType: "sale", RefID: 9, CreatedBy: 1, Post: true, Lines: cashSaleLines(roles, "75")})
		return err
	}))

	var reversal accounting.JournalEntry
	require.NoError(t, within(t, store, func(ctx context.Context, tx accounting.TxRepository) error {
		var err error
		reversal, err = journal.Reverse(ctx, tx, original.ID, "", 4)
		return err
	}))
	require.Equal(t, "Reversal of JE-0001", reversal.Memo)
	require.Equal(t, accounting.EntryTypeSale, reversal.Type)
	require.Equal(t, "sale", reversal.RefType)
	require.NotNil(t, reversal.ReversalOf)
	require.Equal(t, original.ID, *reversal.ReversalOf)
	require.True(t, reversal.Lines[0].Credit.Equal(d("75")))
	require.True(t, reversal.Lines[1].Debit.Equal(d("75")))

	err := within(t, store, func(ctx context.Context, tx accounting.TxRepository) error {
		_, err := journal.Reverse(ctx, tx, original.ID, "again", 4)
		return err
	})
	require.ErrorIs(t, err, accounting.ErrAlreadyReversed)

	err = within(t, store, func(ctx context.Context, tx accounting.TxRepository) error {
		_, err := journal.Reverse(ctx, tx, reversal.ID, "", 4)
		return err
	})
	require.ErrorIs(t, err, shared.ErrInvalidState)
	require.Len(t, store.Entries(), 2)
}

func TestReverseRequiresPostedEntry(t *testing.T) {
	store := memstore.New()
	roles := store.SeedChart()
	journal := newJournal()

	var draft accounting.JournalEntry
	require.NoError(t, within(t, store, func(ctx context.Context, tx accounting.TxRepository) error {
		var err error
		draft, err = journal.CreateEntry(ctx, tx, accounting.EntryInput{CreatedBy: 1, Lines: cashSaleLines(roles, "5")})
		return err
	}))
	err := within(t, store, func(ctx context.Context, tx accounting.TxRepository) error {
		_, err := journal.Reverse(ctx, tx, draft.ID, "", 1)
		return err
	})
	require.ErrorIs(t, err, accounting.ErrNotPosted)
}
