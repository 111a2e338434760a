package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Account types as stored in the chart of accounts.
const (
	TypeAsset     = "ASSET"
	TypeLiability = "LIABILITY"
	TypeEquity    = "EQUITY"
	TypeRevenue   = "REVENUE"
	TypeExpense   = "EXPENSE"
)

var tolerance = decimal.NewFromFloat(0.01)

// AccountInfo is the slice of an account the builders need.
type AccountInfo struct {
	ID      int64
	Code    string
	Name    string
	Type    string
	IsGroup bool
}

// Line is one posted journal line. Builders only ever receive posted lines.
type Line struct {
	LineID      int64
	EntryID     int64
	EntryNumber string
	Date        time.Time
	Memo        string
	AccountID   int64
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// TrialBalanceRow is one leaf account in the trial balance.
type TrialBalanceRow struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Balance   decimal.Decimal `json:"balance"`
}

// TrialBalance lists per-account debit and credit sums as of a date.
type TrialBalance struct {
	AsOf        time.Time         `json:"as_of"`
	Rows        []TrialBalanceRow `json:"rows"`
	TotalDebit  decimal.Decimal   `json:"total_debit"`
	TotalCredit decimal.Decimal   `json:"total_credit"`
	Balanced    bool              `json:"balanced"`
}

// BuildTrialBalance folds lines dated on or before asOf into per-account totals.
func BuildTrialBalance(accounts []AccountInfo, lines []Line, asOf time.Time) TrialBalance {
	index := indexAccounts(accounts)
	sums := make(map[int64]*TrialBalanceRow)
	tb := TrialBalance{AsOf: asOf, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, l := range lines {
		if l.Date.After(asOf) {
			continue
		}
		acc, ok := index[l.AccountID]
		if !ok || acc.IsGroup {
			continue
		}
		row, ok := sums[l.AccountID]
		if !ok {
			row = &TrialBalanceRow{AccountID: acc.ID, Code: acc.Code, Name: acc.Name, Type: acc.Type}
			sums[l.AccountID] = row
		}
		row.Debit = row.Debit.Add(l.Debit)
		row.Credit = row.Credit.Add(l.Credit)
		tb.TotalDebit = tb.TotalDebit.Add(l.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(l.Credit)
	}
	tb.Rows = make([]TrialBalanceRow, 0, len(sums))
	for _, row := range sums {
		row.Balance = row.Debit.Sub(row.Credit)
		tb.Rows = append(tb.Rows, *row)
	}
	sort.Slice(tb.Rows, func(i, j int) bool { return tb.Rows[i].Code < tb.Rows[j].Code })
	tb.Balanced = tb.TotalDebit.Sub(tb.TotalCredit).Abs().LessThanOrEqual(tolerance)
	return tb
}

func indexAccounts(accounts []AccountInfo) map[int64]AccountInfo {
	out := make(map[int64]AccountInfo, len(accounts))
	for _, a := range accounts {
		out[a.ID] = a
	}
	return out
}
