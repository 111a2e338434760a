package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerRow is one line in an account ledger with its running balance.
type LedgerRow struct {
	Date        time.Time       `json:"date"`
	EntryID     int64           `json:"entry_id"`
	EntryNumber string          `json:"entry_number"`
	Memo        string          `json:"memo,omitempty"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
}

// Ledger is the chronological statement of one account.
type Ledger struct {
	AccountID   int64           `json:"account_id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	From        time.Time       `json:"from"`
	To          time.Time       `json:"to"`
	Opening     decimal.Decimal `json:"opening"`
	Rows        []LedgerRow     `json:"rows"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	Closing     decimal.Decimal `json:"closing"`
}

// BuildLedger folds the account's lines. Lines before from form the opening balance, lines in
// [from, to] become rows, later lines are ignored. Lines must already be in posting order.
func BuildLedger(account AccountInfo, lines []Line, from, to time.Time) Ledger {
	ledger := Ledger{
		AccountID:   account.ID,
		Code:        account.Code,
		Name:        account.Name,
		From:        from,
		To:          to,
		Opening:     decimal.Zero,
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
		Rows:        []LedgerRow{},
	}
	running := decimal.Zero
	for _, l := range lines {
		if l.AccountID != account.ID || l.Date.After(to) {
			continue
		}
		running = running.Add(l.Debit).Sub(l.Credit)
		if l.Date.Before(from) {
			ledger.Opening = running
			continue
		}
		ledger.Rows = append(ledger.Rows, LedgerRow{
			Date:        l.Date,
			EntryID:     l.EntryID,
			EntryNumber: l.EntryNumber,
			Memo:        l.Memo,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Balance:     running,
		})
		ledger.TotalDebit = ledger.TotalDebit.Add(l.Debit)
		ledger.TotalCredit = ledger.TotalCredit.Add(l.Credit)
	}
	ledger.Closing = running
	return ledger
}
