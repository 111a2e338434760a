// Package sales runs the checkout, void and return pipelines of the point of sale.
package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Status enumerates sale lifecycle states.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusCredit    Status = "credit"
	StatusVoid      Status = "void"
	StatusReturned  Status = "returned"
)

// Condition grades a returned item. Only good items go back on the shelf.
type Condition string

const (
	ConditionGood      Condition = "good"
	ConditionDamaged   Condition = "damaged"
	ConditionDefective Condition = "defective"
)

// Sale is a committed checkout.
type Sale struct {
	ID                int64           `json:"id"`
	InvoiceNumber     string          `json:"invoice_number"`
	Date              time.Time       `json:"date"`
	CustomerID        *int64          `json:"customer_id,omitempty"`
	CashierID         int64           `json:"cashier_id"`
	RegisterSessionID *int64          `json:"register_session_id,omitempty"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	Discount          decimal.Decimal `json:"discount"`
	Tax               decimal.Decimal `json:"tax"`
	CGST              decimal.Decimal `json:"cgst"`
	SGST              decimal.Decimal `json:"sgst"`
	IGST              decimal.Decimal `json:"igst"`
	Total             decimal.Decimal `json:"total"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	Balance           decimal.Decimal `json:"balance"`
	PaymentMethod     string          `json:"payment_method"`
	PaymentStatus     string          `json:"payment_status"`
	Status            Status          `json:"status"`
	InterState        bool            `json:"inter_state"`
	SaleJournalID     *int64          `json:"sale_journal_id,omitempty"`
	COGSJournalID     *int64          `json:"cogs_journal_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	Lines             []Line          `json:"lines"`
}

// Line is one product on a sale.
type Line struct {
	ID              int64           `json:"id"`
	SaleID          int64           `json:"sale_id"`
	ProductID       int64           `json:"product_id"`
	Quantity        int64           `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	CostPrice       decimal.Decimal `json:"cost_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	TaxPercent      decimal.Decimal `json:"tax_percent"`
	Base            decimal.Decimal `json:"base"`
	Tax             decimal.Decimal `json:"tax"`
	CGST            decimal.Decimal `json:"cgst"`
	SGST            decimal.Decimal `json:"sgst"`
	IGST            decimal.Decimal `json:"igst"`
	LineTotal       decimal.Decimal `json:"line_total"`
	ReturnedQty     int64           `json:"returned_qty"`
}

// Outstanding is the quantity still eligible for return or void restoration.
func (l Line) Outstanding() int64 {
	return l.Quantity - l.ReturnedQty
}

// Return records goods brought back against a sale.
type Return struct {
	ID           int64           `json:"id"`
	Number       string          `json:"number"`
	SaleID       int64           `json:"sale_id"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Tax          decimal.Decimal `json:"tax"`
	CGST         decimal.Decimal `json:"cgst"`
	SGST         decimal.Decimal `json:"sgst"`
	IGST         decimal.Decimal `json:"igst"`
	Total        decimal.Decimal `json:"total"`
	RefundMethod string          `json:"refund_method"`
	Reason       string          `json:"reason"`
	JournalID    *int64          `json:"journal_id,omitempty"`
	CreatedBy    int64           `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
	Items        []ReturnItem    `json:"items"`
}

// ReturnItem is one returned sale line.
type ReturnItem struct {
	ID         int64           `json:"id"`
	ReturnID   int64           `json:"return_id"`
	SaleLineID int64           `json:"sale_line_id"`
	ProductID  int64           `json:"product_id"`
	Quantity   int64           `json:"quantity"`
	Condition  Condition       `json:"condition"`
	Restocked  bool            `json:"restocked"`
	Amount     decimal.Decimal `json:"amount"`
}

// LineInput is one requested checkout line.
type LineInput struct {
	ProductID       int64           `json:"product_id" validate:"required,gt=0"`
	Quantity        int64           `json:"quantity" validate:"required,gt=0"`
	// UnitPrice overrides the catalog selling price when set.
	UnitPrice       *decimal.Decimal `json:"unit_price,omitempty" validate:"omitempty,gte=0"`
	DiscountPercent decimal.Decimal `json:"discount_percent" validate:"gte=0,lte=100"`
	DiscountAmount  decimal.Decimal `json:"discount_amount" validate:"gte=0"`
}

// CreateSaleInput is the checkout request.
type CreateSaleInput struct {
	CustomerID        *int64          `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	RegisterSessionID *int64          `json:"register_session_id,omitempty" validate:"omitempty,gt=0"`
	Lines             []LineInput     `json:"lines" validate:"required,min=1,dive"`
	Discount          decimal.Decimal `json:"discount" validate:"gte=0"`
	PaymentMethod     string          `json:"payment_method" validate:"required,oneof=cash card upi bank"`
	PaidAmount        decimal.Decimal `json:"paid_amount" validate:"gte=0"`
	InterState        bool            `json:"inter_state"`
	CashierID         int64           `json:"-"`
	IdempotencyKey    string          `json:"-"`
}

// SaleResult is returned to the till.
type SaleResult struct {
	SaleID        int64           `json:"sale_id"`
	InvoiceNumber string          `json:"invoice_no"`
	Total         decimal.Decimal `json:"total"`
	Paid          decimal.Decimal `json:"paid"`
	Balance       decimal.Decimal `json:"balance"`
	Change        decimal.Decimal `json:"change"`
	Status        Status          `json:"status"`
	PaymentStatus string          `json:"payment_status"`
	Oversold      []int64         `json:"oversold_products,omitempty"`
}

// VoidInput cancels a sale.
type VoidInput struct {
	Reason  string `json:"reason" validate:"max=255"`
	ActorID int64  `json:"-"`
}

// ReturnItemInput is one line being returned.
type ReturnItemInput struct {
	SaleLineID int64     `json:"sale_line_id" validate:"required,gt=0"`
	Quantity   int64     `json:"quantity" validate:"required,gt=0"`
	Condition  Condition `json:"condition" validate:"required,oneof=good damaged defective"`
}

// ReturnInput is the return request.
type ReturnInput struct {
	SaleID       int64             `json:"-"`
	Items        []ReturnItemInput `json:"items" validate:"required,min=1,dive"`
	RefundMethod string            `json:"refund_method" validate:"required,oneof=cash card upi bank"`
	Reason       string            `json:"reason" validate:"max=255"`
	ActorID      int64             `json:"-"`
}

var (
	// ErrNegativeBase rejects a line whose discounts exceed its gross amount.
	ErrNegativeBase = shared.NewError(shared.KindValidation, "sales: line discounts exceed line amount")
	// ErrDiscountTooLarge rejects a global discount above the subtotal.
	ErrDiscountTooLarge = shared.NewError(shared.KindValidation, "sales: discount exceeds subtotal")
	// ErrInactiveProduct rejects products withdrawn from sale.
	ErrInactiveProduct = shared.NewError(shared.KindValidation, "sales: product is not active")
	// ErrMissingPrice is returned when a line has no price.
	ErrMissingPrice = shared.NewError(shared.KindValidation, "sales: line has no unit price")
	// ErrAlreadyVoid rejects repeated voids.
	ErrAlreadyVoid = shared.NewError(shared.KindInvalidState, "sales: sale is already void")
	// ErrReturnedSale rejects voiding a sale with returns.
	ErrReturnedSale = shared.NewError(shared.KindInvalidState, "sales: sale has returns and cannot be voided")
	// ErrSettledAfterCheckout blocks a reversing void once receipts were recorded against the sale.
	ErrSettledAfterCheckout = shared.NewError(shared.KindInvalidState, "sales: sale has later payments and cannot be voided")
	// ErrNotReturnable rejects returns against void sales.
	ErrNotReturnable = shared.NewError(shared.KindInvalidState, "sales: sale cannot accept returns")
	// ErrReturnExceedsSold rejects returning more than is outstanding.
	ErrReturnExceedsSold = shared.NewError(shared.KindValidation, "sales: return quantity exceeds sold quantity")
	// ErrUnknownSaleLine rejects lines from another sale.
	ErrUnknownSaleLine = shared.NewError(shared.KindValidation, "sales: line does not belong to sale")
	// ErrCashierRequired indicates a missing actor.
	ErrCashierRequired = shared.NewError(shared.KindValidation, "sales: cashier required")
)
