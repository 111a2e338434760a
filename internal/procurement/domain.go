// Package procurement raises purchase orders and receives goods against them.
package procurement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// POStatus tracks how much of a purchase order has arrived.
type POStatus string

const (
	POStatusOpen     POStatus = "open"
	POStatusPartial  POStatus = "partial"
	POStatusReceived POStatus = "received"
)

// PurchaseOrder domain model.
type PurchaseOrder struct {
	ID        int64           `json:"id"`
	Number    string          `json:"number"`
	VendorID  int64           `json:"vendor_id"`
	Status    POStatus        `json:"status"`
	Total     decimal.Decimal `json:"total"`
	CreatedBy int64           `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
	Lines     []POLine        `json:"lines"`
}

// POLine represents ordered goods.
type POLine struct {
	ID          int64           `json:"id"`
	POID        int64           `json:"po_id"`
	ProductID   int64           `json:"product_id"`
	OrderedQty  int64           `json:"ordered_qty"`
	ReceivedQty int64           `json:"received_qty"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
}

// GoodsReceipt records delivered goods; it doubles as the purchase invoice.
type GoodsReceipt struct {
	ID            int64           `json:"id"`
	Number        string          `json:"number"`
	POID          *int64          `json:"po_id,omitempty"`
	VendorID      int64           `json:"vendor_id"`
	InterState    bool            `json:"inter_state"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	CGST          decimal.Decimal `json:"cgst"`
	SGST          decimal.Decimal `json:"sgst"`
	IGST          decimal.Decimal `json:"igst"`
	Total         decimal.Decimal `json:"total"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	Balance       decimal.Decimal `json:"balance"`
	PaymentStatus string          `json:"payment_status"`
	JournalID     *int64          `json:"journal_id,omitempty"`
	CreatedBy     int64           `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	Lines         []GRNLine       `json:"lines"`
}

// GRNLine describes received goods.
type GRNLine struct {
	ID          int64           `json:"id"`
	GRNID       int64           `json:"grn_id"`
	ProductID   int64           `json:"product_id"`
	POLineID    *int64          `json:"po_line_id,omitempty"`
	ReceivedQty int64           `json:"received_qty"`
	AcceptedQty int64           `json:"accepted_qty"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	TaxPercent  decimal.Decimal `json:"tax_percent"`
	Base        decimal.Decimal `json:"base"`
	Tax         decimal.Decimal `json:"tax"`
}

// POLineInput is one ordered product.
type POLineInput struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Qty       int64           `json:"qty" validate:"required,gt=0"`
	UnitCost  decimal.Decimal `json:"unit_cost" validate:"gte=0"`
}

// CreatePOInput raises a purchase order.
type CreatePOInput struct {
	VendorID int64         `json:"vendor_id" validate:"required,gt=0"`
	Lines    []POLineInput `json:"lines" validate:"required,min=1,dive"`
	ActorID  int64         `json:"-"`
}

// ReceiveLineInput is one delivered product.
type ReceiveLineInput struct {
	ProductID   int64           `json:"product_id" validate:"required,gt=0"`
	POLineID    *int64          `json:"po_line_id,omitempty" validate:"omitempty,gt=0"`
	ReceivedQty int64           `json:"received_qty" validate:"required,gt=0"`
	AcceptedQty int64           `json:"accepted_qty" validate:"gte=0"`
	UnitCost    decimal.Decimal `json:"unit_cost" validate:"gte=0"`
	TaxPercent  decimal.Decimal `json:"tax_percent" validate:"gte=0,lte=100"`
}

// ReceiveInput books a delivery, optionally against a purchase order.
type ReceiveInput struct {
	POID       *int64             `json:"po_id,omitempty" validate:"omitempty,gt=0"`
	VendorID   int64              `json:"vendor_id" validate:"required,gt=0"`
	InterState bool               `json:"inter_state"`
	Lines      []ReceiveLineInput `json:"lines" validate:"required,min=1,dive"`
	ActorID    int64              `json:"-"`
}

// ReceiptResult summarises a committed goods receipt.
type ReceiptResult struct {
	GRNID     int64           `json:"grn_id"`
	GRNNumber string          `json:"grn_number"`
	Total     decimal.Decimal `json:"total"`
}

var (
	// ErrForeignPO rejects receiving one vendor's order from another vendor.
	ErrForeignPO = shared.NewError(shared.KindInvalidState, "procurement: purchase order belongs to another vendor")
	// ErrPOReceived rejects deliveries against a fully received order.
	ErrPOReceived = shared.NewError(shared.KindInvalidState, "procurement: purchase order already received")
	// ErrForeignPOLine rejects lines of another order.
	ErrForeignPOLine = shared.NewError(shared.KindValidation, "procurement: line does not belong to purchase order")
	// ErrAcceptedExceedsReceived rejects accepting more than arrived.
	ErrAcceptedExceedsReceived = shared.NewError(shared.KindValidation, "procurement: accepted quantity exceeds received quantity")
	// ErrPOLineWithoutPO rejects line references on a receipt without an order.
	ErrPOLineWithoutPO = shared.NewError(shared.KindValidation, "procurement: po_line_id requires po_id")
)
