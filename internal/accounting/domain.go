package accounting

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// EntryType classifies the business event behind a journal entry.
type EntryType string

const (
	EntryTypeSale       EntryType = "sale"
	EntryTypePurchase   EntryType = "purchase"
	EntryTypePayment    EntryType = "payment"
	EntryTypeJournal    EntryType = "journal"
	EntryTypeAdjustment EntryType = "adjustment"
	EntryTypeReturn     EntryType = "return"
)

// Account models a chart of accounts node.
type Account struct {
	ID        int64       `json:"id"`
	Code      string      `json:"code"`
	Name      string      `json:"name"`
	Type      AccountType `json:"type"`
	ParentID  *int64      `json:"parent_id,omitempty"`
	IsGroup   bool        `json:"is_group"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// JournalEntry captures posting metadata.
type JournalEntry struct {
	ID         int64         `json:"id"`
	Number     string        `json:"number"`
	Date       time.Time     `json:"date"`
	Type       EntryType     `json:"type"`
	RefType    string        `json:"ref_type,omitempty"`
	RefID      int64         `json:"ref_id,omitempty"`
	Memo       string        `json:"memo,omitempty"`
	Posted     bool          `json:"posted"`
	PostedAt   *time.Time    `json:"posted_at,omitempty"`
	PostedBy   *int64        `json:"posted_by,omitempty"`
	CreatedBy  int64         `json:"created_by"`
	ReversalOf *int64        `json:"reversal_of,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	Lines      []JournalLine `json:"lines"`
}

// Totals sums the debit and credit sides.
func (e JournalEntry) Totals() (debit, credit decimal.Decimal) {
	for _, l := range e.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// JournalLine stores debit or credit amount for an account.
type JournalLine struct {
	ID        int64           `json:"id"`
	EntryID   int64           `json:"entry_id"`
	AccountID int64           `json:"account_id"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Memo      string          `json:"memo,omitempty"`
}

// LineInput describes one requested posting line.
type LineInput struct {
	AccountID int64           `json:"account_id" validate:"required,gt=0"`
	Debit     decimal.Decimal `json:"debit" validate:"gte=0"`
	Credit    decimal.Decimal `json:"credit" validate:"gte=0"`
	Memo      string          `json:"memo,omitempty" validate:"max=255"`
}

// EntryInput groups fields required to create a journal entry.
type EntryInput struct {
	Date      time.Time   `json:"date"`
	Type      EntryType   `json:"-"`
	RefType   string      `json:"ref_type,omitempty" validate:"max=32"`
	RefID     int64       `json:"ref_id,omitempty"`
	Memo      string      `json:"memo" validate:"max=500"`
	CreatedBy int64       `json:"-"`
	Post      bool        `json:"-"`
	Lines     []LineInput `json:"lines" validate:"required,min=2,dive"`
}

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = shared.NewError(shared.KindValidation, "accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = shared.NewError(shared.KindValidation, "accounting: journal requires at least two lines")
	// ErrNegativeAmount rejects negative debit or credit.
	ErrNegativeAmount = shared.NewError(shared.KindValidation, "accounting: amounts must be >= 0")
	// ErrOneSided requires exactly one of debit or credit to be non-zero.
	ErrOneSided = shared.NewError(shared.KindValidation, "accounting: line must carry exactly one of debit or credit")
	// ErrGroupAccount blocks postings to group accounts.
	ErrGroupAccount = shared.NewError(shared.KindValidation, "accounting: cannot post to a group account")
	// ErrInactiveAccount blocks postings to inactive accounts.
	ErrInactiveAccount = shared.NewError(shared.KindValidation, "accounting: account is inactive")
	// ErrActorRequired indicates posting without an identified actor.
	ErrActorRequired = shared.NewError(shared.KindValidation, "accounting: posting requires an actor")
	// ErrNotPosted indicates an operation that needs a posted entry.
	ErrNotPosted = shared.NewError(shared.KindInvalidState, "accounting: entry is not posted")
	// ErrAlreadyReversed indicates a second reversal attempt.
	ErrAlreadyReversed = shared.NewError(shared.KindInvalidState, "accounting: entry already reversed")
)

func lineError(idx int, err error) error {
	return &shared.Error{Kind: shared.KindValidation, Message: fmt.Sprintf("line %d", idx+1), Err: err}
}

// Validate checks the complete line set before anything is written.
func (in EntryInput) Validate() error {
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	var debit, credit decimal.Decimal
	for idx, line := range in.Lines {
		if line.AccountID <= 0 {
			return lineError(idx, shared.Validation("accounting: account required"))
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return lineError(idx, ErrNegativeAmount)
		}
		if line.Debit.IsZero() == line.Credit.IsZero() {
			return lineError(idx, ErrOneSided)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !shared.WithinTolerance(debit, credit) {
		return &shared.Error{
			Kind:    shared.KindValidation,
			Message: fmt.Sprintf("debit %s credit %s", debit.StringFixed(2), credit.StringFixed(2)),
			Err:     ErrUnbalanced,
		}
	}
	return nil
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
