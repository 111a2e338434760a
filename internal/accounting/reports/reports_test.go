package reports

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	_ "github.com/odyssey-erp/odyssey-pos/testing"
)

var (
	day1 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	day3 = time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func chart() []AccountInfo {
	return []AccountInfo{
		{ID: 1, Code: "1000", Name: "Assets", Type: TypeAsset, IsGroup: true},
		{ID: 2, Code: "1100", Name: "Cash", Type: TypeAsset},
		{ID: 3, Code: "1300", Name: "Inventory", Type: TypeAsset},
		{ID: 4, Code: "2100", Name: "Output CGST", Type: TypeLiability},
		{ID: 5, Code: "2101", Name: "Output SGST", Type: TypeLiability},
		{ID: 6, Code: "3000", Name: "Capital", Type: TypeEquity},
		{ID: 7, Code: "4000", Name: "Sales Revenue", Type: TypeRevenue},
		{ID: 8, Code: "5000", Name: "COGS", Type: TypeExpense},
	}
}

// capital 1000 on day 1, the 472 sale plus 200 COGS on day 2, a 100 cash purchase of stock on day 3.
func postedLines() []Line {
	return []Line{
		{LineID: 1, EntryID: 1, EntryNumber: "JE-0001", Date: day1, AccountID: 2, Debit: d("1000")},
		{LineID: 2, EntryID: 1, EntryNumber: "JE-0001", Date: day1, AccountID: 6, Credit: d("1000")},
		{LineID: 3, EntryID: 2, EntryNumber: "JE-0002", Date: day2, AccountID: 2, Debit: d("472")},
		{LineID: 4, EntryID: 2, EntryNumber: "JE-0002", Date: day2, AccountID: 7, Credit: d("400")},
		{LineID: 5, EntryID: 2, EntryNumber: "JE-0002", Date: day2, AccountID: 4, Credit: d("36")},
		{LineID: 6, EntryID: 2, EntryNumber: "JE-0002", Date: day2, AccountID: 5, Credit: d("36")},
		{LineID: 7, EntryID: 3, EntryNumber: "JE-0003", Date: day2, AccountID: 8, Debit: d("200")},
		{LineID: 8, EntryID: 3, EntryNumber: "JE-0003", Date: day2, AccountID: 3, Credit: d("200")},
		{LineID: 9, EntryID: 4, EntryNumber: "JE-0004", Date: day3, AccountID: 3, Debit: d("100")},
		{LineID: 10, EntryID: 4, EntryNumber: "JE-0004", Date: day3, AccountID: 2, Credit: d("100")},
	}
}

func TestBuildTrialBalance(t *testing.T) {
	tb := BuildTrialBalance(chart(), postedLines(), day2)

	require.True(t, tb.Balanced)
	require.True(t, tb.TotalDebit.Equal(d("1672")), tb.TotalDebit.String())
	require.True(t, tb.TotalCredit.Equal(d("1672")))
	require.Len(t, tb.Rows, 7)
	require.Equal(t, "1100", tb.Rows[0].Code)
	require.True(t, tb.Rows[0].Balance.Equal(d("1472")))
}

func TestBuildTrialBalanceFlagsMismatch(t *testing.T) {
	lines := append(postedLines(), Line{LineID: 11, EntryID: 5, Date: day1, AccountID: 2, Debit: d("5")})
	tb := BuildTrialBalance(chart(), lines, day3)
	require.False(t, tb.Balanced)
}

func TestBuildLedgerRunningBalance(t *testing.T) {
	cash := chart()[1]
	ledger := BuildLedger(cash, postedLines(), day2, day3)

	require.True(t, ledger.Opening.Equal(d("1000")))
	require.Len(t, ledger.Rows, 2)
	require.True(t, ledger.Rows[0].Balance.Equal(d("1472")))
	require.True(t, ledger.Rows[1].Balance.Equal(d("1372")))
	require.True(t, ledger.Closing.Equal(d("1372")))

	// replaying every line reproduces the closing balance
	replay := decimal.Zero
	for _, l := range postedLines() {
		if l.AccountID == cash.ID {
			replay = replay.Add(l.Debit).Sub(l.Credit)
		}
	}
	require.True(t, replay.Equal(ledger.Closing))
}

func TestBuildLedgerIgnoresLaterLines(t *testing.T) {
	ledger := BuildLedger(chart()[1], postedLines(), day1, day1)
	require.Len(t, ledger.Rows, 1)
	require.True(t, ledger.Closing.Equal(d("1000")))
	require.True(t, ledger.Opening.IsZero())
}

func TestBuildProfitAndLoss(t *testing.T) {
	pl := BuildProfitAndLoss(chart(), postedLines(), day1, day3)
	require.True(t, pl.Revenue.Total.Equal(d("400")))
	require.True(t, pl.Expense.Total.Equal(d("200")))
	require.True(t, pl.NetIncome.Equal(d("200")))

	empty := BuildProfitAndLoss(chart(), postedLines(), day3, day3)
	require.True(t, empty.NetIncome.IsZero())
}

func TestBuildBalanceSheet(t *testing.T) {
	bs := BuildBalanceSheet(chart(), postedLines(), day3)

	require.True(t, bs.Balanced)
	require.True(t, bs.TotalAssets.Equal(d("1272")), bs.TotalAssets.String())
	require.True(t, bs.TotalLiabilities.Equal(d("72")))
	require.True(t, bs.CurrentEarnings.Equal(d("200")))
	require.True(t, bs.TotalEquity.Equal(d("1200")))
}
