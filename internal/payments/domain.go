// Package payments settles receivables and payables against sales and goods receipts.
package payments

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Direction tells which side of the business a payment settles.
type Direction string

const (
	DirectionCustomerReceipt Direction = "customer_receipt"
	DirectionVendorPayment   Direction = "vendor_payment"
)

// Tender methods.
const (
	MethodCash = "cash"
	MethodCard = "card"
	MethodUPI  = "upi"
	MethodBank = "bank"
)

// Document reference types.
const (
	RefSale     = "sale"
	RefPurchase = "purchase"
)

// Payment statuses of a settled document.
const (
	StatusPaid    = "paid"
	StatusPartial = "partial"
	StatusUnpaid  = "unpaid"
)

// ValidMethod reports whether method is a known tender.
func ValidMethod(method string) bool {
	switch method {
	case MethodCash, MethodCard, MethodUPI, MethodBank:
		return true
	}
	return false
}

// PaymentStatus derives paid/partial/unpaid from the paid and outstanding amounts.
func PaymentStatus(paid, balance decimal.Decimal) string {
	switch {
	case !balance.IsPositive():
		return StatusPaid
	case paid.IsPositive():
		return StatusPartial
	default:
		return StatusUnpaid
	}
}

// Payment is a recorded settlement.
type Payment struct {
	ID        int64           `json:"id"`
	Number    string          `json:"number"`
	Direction Direction       `json:"direction"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	RefType   string          `json:"ref_type"`
	RefID     int64           `json:"ref_id"`
	JournalID *int64          `json:"journal_id,omitempty"`
	CreatedBy int64           `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

// Document is the payable view of a sale or goods receipt.
type Document struct {
	RefType       string
	ID            int64
	Number        string
	PartyID       int64
	Total         decimal.Decimal
	Paid          decimal.Decimal
	Balance       decimal.Decimal
	Status        string
	PaymentStatus string
}

// RecordInput is the payment request.
type RecordInput struct {
	Direction Direction       `json:"direction" validate:"required,oneof=customer_receipt vendor_payment"`
	RefType   string          `json:"ref_type" validate:"required,oneof=sale purchase"`
	RefID     int64           `json:"ref_id" validate:"required,gt=0"`
	Amount    decimal.Decimal `json:"amount" validate:"gt=0"`
	Method    string          `json:"method" validate:"required,oneof=cash card upi bank"`
	ActorID   int64           `json:"-"`
}

var (
	// ErrDirectionMismatch pairs receipts with sales and vendor payments with purchases.
	ErrDirectionMismatch = shared.NewError(shared.KindValidation, "payments: customer receipts settle sales, vendor payments settle purchases")
	// ErrOverpayment rejects amounts above the outstanding balance.
	ErrOverpayment = shared.NewError(shared.KindValidation, "payments: amount exceeds outstanding balance")
	// ErrVoidDocument rejects payments against void sales.
	ErrVoidDocument = shared.NewError(shared.KindInvalidState, "payments: document is void")
)
