package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceSheet is the statement of financial position as of a date.
type BalanceSheet struct {
	AsOf             time.Time       `json:"as_of"`
	Assets           Section         `json:"assets"`
	Liabilities      Section         `json:"liabilities"`
	Equity           Section         `json:"equity"`
	CurrentEarnings  decimal.Decimal `json:"current_earnings"`
	TotalAssets      decimal.Decimal `json:"total_assets"`
	TotalLiabilities decimal.Decimal `json:"total_liabilities"`
	TotalEquity      decimal.Decimal `json:"total_equity"`
	Balanced         bool            `json:"balanced"`
}

// BuildBalanceSheet folds lines dated on or before asOf. No closing entries exist, so revenue
// minus expense to date is carried into equity as current earnings.
func BuildBalanceSheet(accounts []AccountInfo, lines []Line, asOf time.Time) BalanceSheet {
	index := indexAccounts(accounts)
	assets := map[int64]decimal.Decimal{}
	liabilities := map[int64]decimal.Decimal{}
	equity := map[int64]decimal.Decimal{}
	earnings := decimal.Zero
	for _, l := range lines {
		if l.Date.After(asOf) {
			continue
		}
		acc, ok := index[l.AccountID]
		if !ok {
			continue
		}
		switch acc.Type {
		case TypeAsset:
			assets[acc.ID] = assets[acc.ID].Add(l.Debit.Sub(l.Credit))
		case TypeLiability:
			liabilities[acc.ID] = liabilities[acc.ID].Add(l.Credit.Sub(l.Debit))
		case TypeEquity:
			equity[acc.ID] = equity[acc.ID].Add(l.Credit.Sub(l.Debit))
		case TypeRevenue, TypeExpense:
			earnings = earnings.Add(l.Credit.Sub(l.Debit))
		}
	}
	bs := BalanceSheet{
		AsOf:            asOf,
		Assets:          buildSection(index, assets),
		Liabilities:     buildSection(index, liabilities),
		Equity:          buildSection(index, equity),
		CurrentEarnings: earnings,
	}
	bs.TotalAssets = bs.Assets.Total
	bs.TotalLiabilities = bs.Liabilities.Total
	bs.TotalEquity = bs.Equity.Total.Add(earnings)
	diff := bs.TotalAssets.Sub(bs.TotalLiabilities.Add(bs.TotalEquity))
	bs.Balanced = diff.Abs().LessThanOrEqual(tolerance)
	return bs
}
