// Package register tracks cashier sessions and the takings recorded against them.
package register

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Status enumerates session states. open → closed is terminal.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Session is one cashier shift.
type Session struct {
	ID           int64           `json:"id"`
	Number       string          `json:"number"`
	CashierID    int64           `json:"cashier_id"`
	OpenedAt     time.Time       `json:"opened_at"`
	ClosedAt     *time.Time      `json:"closed_at,omitempty"`
	OpeningCash  decimal.Decimal `json:"opening_cash"`
	SalesCount   int64           `json:"sales_count"`
	CashTotal    decimal.Decimal `json:"cash_total"`
	CardTotal    decimal.Decimal `json:"card_total"`
	UPITotal     decimal.Decimal `json:"upi_total"`
	CreditTotal  decimal.Decimal `json:"credit_total"`
	ClosingCash  decimal.Decimal `json:"closing_cash"`
	ExpectedCash decimal.Decimal `json:"expected_cash"`
	Variance     decimal.Decimal `json:"variance"`
	Status       Status          `json:"status"`
}

// SaleTotals is what one checkout contributes to a session.
type SaleTotals struct {
	Method string
	Paid   decimal.Decimal
	Credit decimal.Decimal
}

// apply adds a sale. Card and bank transfers share the card bucket.
func (s *Session) apply(t SaleTotals) {
	s.SalesCount++
	paid := shared.Round2(t.Paid)
	switch t.Method {
	case "cash":
		s.CashTotal = s.CashTotal.Add(paid)
	case "upi":
		s.UPITotal = s.UPITotal.Add(paid)
	default:
		s.CardTotal = s.CardTotal.Add(paid)
	}
	s.CreditTotal = s.CreditTotal.Add(shared.Round2(t.Credit))
}

// OpenInput starts a shift.
type OpenInput struct {
	CashierID   int64           `json:"-"`
	OpeningCash decimal.Decimal `json:"opening_cash" validate:"gte=0"`
}

// CloseInput ends a shift with the counted drawer.
type CloseInput struct {
	ClosingCash decimal.Decimal `json:"closing_cash" validate:"gte=0"`
}

var (
	// ErrSessionOpen indicates the cashier already runs a session.
	ErrSessionOpen = shared.NewError(shared.KindInvalidState, "register: cashier already has an open session")
	// ErrSessionClosed indicates the session no longer accepts activity.
	ErrSessionClosed = shared.NewError(shared.KindInvalidState, "register: session is closed")
	// ErrForeignSession indicates a session owned by another cashier.
	ErrForeignSession = shared.NewError(shared.KindInvalidState, "register: session belongs to another cashier")
	// ErrCashierRequired indicates a missing actor.
	ErrCashierRequired = shared.NewError(shared.KindValidation, "register: cashier required")
)
