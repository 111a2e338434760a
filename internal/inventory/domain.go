package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Kind enumerates stock movement kinds.
type Kind string

const (
	KindSale       Kind = "sale"
	KindPurchase   Kind = "purchase"
	KindAdjustment Kind = "adjustment"
	KindReturn     Kind = "return"
	KindVoid       Kind = "void"
)

// Ref points at the document that caused a movement.
type Ref struct {
	Type   string
	ID     int64
	Number string
}

// Position is the materialised stock level of one product.
type Position struct {
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	AvgCost   decimal.Decimal `json:"avg_cost"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Value returns quantity times average cost.
func (p Position) Value() decimal.Decimal {
	return shared.Round2(p.AvgCost.Mul(decimal.NewFromInt(p.Quantity)))
}

// Transaction is one immutable entry in the stock log.
type Transaction struct {
	ID         int64           `json:"id"`
	ProductID  int64           `json:"product_id"`
	QtyDelta   int64           `json:"qty_delta"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	Kind       Kind            `json:"kind"`
	RefType    string          `json:"ref_type,omitempty"`
	RefID      int64           `json:"ref_id,omitempty"`
	RefNumber  string          `json:"ref_number,omitempty"`
	Note       string          `json:"note,omitempty"`
	Oversold   bool            `json:"oversold"`
	BalanceQty int64           `json:"balance_qty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Value returns |delta| times unit cost, rounded to cents.
func (t Transaction) Value() decimal.Decimal {
	qty := t.QtyDelta
	if qty < 0 {
		qty = -qty
	}
	return shared.Round2(t.UnitCost.Mul(decimal.NewFromInt(qty)))
}

// Movement describes a receive, issue or restore request.
type Movement struct {
	ProductID int64
	Qty       int64
	UnitCost  decimal.Decimal
	// FallbackCost prices an issue against a position that has never been costed.
	FallbackCost decimal.Decimal
	Kind         Kind
	Ref          Ref
	Note         string
}

// Adjustment records a stock count correction.
type Adjustment struct {
	ID          int64           `json:"id"`
	Number      string          `json:"number"`
	ProductID   int64           `json:"product_id"`
	PreviousQty int64           `json:"previous_qty"`
	NewQty      int64           `json:"new_qty"`
	Delta       int64           `json:"delta"`
	Value       decimal.Decimal `json:"value"`
	Reason      string          `json:"reason"`
	JournalID   *int64          `json:"journal_id,omitempty"`
	CreatedBy   int64           `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

// AdjustInput is the stock adjustment request.
type AdjustInput struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	NewQty    int64  `json:"new_qty" validate:"gte=0"`
	Reason    string `json:"reason" validate:"required,max=255"`
	ActorID   int64  `json:"-"`
}

// FoldMismatch reports a position that no longer equals the sum of its log.
type FoldMismatch struct {
	ProductID   int64 `json:"product_id"`
	PositionQty int64 `json:"position_qty"`
	LoggedQty   int64 `json:"logged_qty"`
}

var (
	// ErrInvalidQuantity indicates a non-positive movement quantity.
	ErrInvalidQuantity = shared.NewError(shared.KindValidation, "inventory: quantity must be positive")
	// ErrInvalidUnitCost indicates a negative cost.
	ErrInvalidUnitCost = shared.NewError(shared.KindValidation, "inventory: unit cost must be >= 0")
	// ErrUndefinedCost guards the weighted average against a zero resulting quantity.
	ErrUndefinedCost = shared.NewError(shared.KindValidation, "inventory: resulting quantity is zero, average cost undefined")
	// ErrNegativeTarget rejects stock counts below zero.
	ErrNegativeTarget = shared.NewError(shared.KindValidation, "inventory: adjusted quantity must be >= 0")
	// ErrProductRequired indicates a missing product id.
	ErrProductRequired = shared.NewError(shared.KindValidation, "inventory: product required")
)
