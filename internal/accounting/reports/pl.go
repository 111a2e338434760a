package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// SectionRow is a single account amount inside a statement section.
type SectionRow struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
}

// Section groups rows with a total.
type Section struct {
	Rows  []SectionRow    `json:"rows"`
	Total decimal.Decimal `json:"total"`
}

// ProfitAndLoss is the income statement for a date range.
type ProfitAndLoss struct {
	From      time.Time       `json:"from"`
	To        time.Time       `json:"to"`
	Revenue   Section         `json:"revenue"`
	Expense   Section         `json:"expense"`
	NetIncome decimal.Decimal `json:"net_income"`
}

// BuildProfitAndLoss sums revenue as credit − debit and expense as debit − credit for lines
// dated within [from, to].
func BuildProfitAndLoss(accounts []AccountInfo, lines []Line, from, to time.Time) ProfitAndLoss {
	index := indexAccounts(accounts)
	revenue := map[int64]decimal.Decimal{}
	expense := map[int64]decimal.Decimal{}
	for _, l := range lines {
		if l.Date.Before(from) || l.Date.After(to) {
			continue
		}
		acc, ok := index[l.AccountID]
		if !ok {
			continue
		}
		switch acc.Type {
		case TypeRevenue:
			revenue[acc.ID] = revenue[acc.ID].Add(l.Credit.Sub(l.Debit))
		case TypeExpense:
			expense[acc.ID] = expense[acc.ID].Add(l.Debit.Sub(l.Credit))
		}
	}
	pl := ProfitAndLoss{
		From:    from,
		To:      to,
		Revenue: buildSection(index, revenue),
		Expense: buildSection(index, expense),
	}
	pl.NetIncome = pl.Revenue.Total.Sub(pl.Expense.Total)
	return pl
}

func buildSection(index map[int64]AccountInfo, amounts map[int64]decimal.Decimal) Section {
	section := Section{Rows: make([]SectionRow, 0, len(amounts)), Total: decimal.Zero}
	for id, amount := range amounts {
		acc := index[id]
		section.Rows = append(section.Rows, SectionRow{AccountID: id, Code: acc.Code, Name: acc.Name, Amount: amount})
		section.Total = section.Total.Add(amount)
	}
	sort.Slice(section.Rows, func(i, j int) bool { return section.Rows[i].Code < section.Rows[j].Code })
	return section
}
