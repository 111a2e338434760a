package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// avgCostPlaces is the precision kept for weighted-average unit cost.
const avgCostPlaces = 4

// OversellRecorder counts issues that drove a position below zero.
type OversellRecorder interface {
	Oversold(productID int64)
}

// Ledger owns every mutation of inventory positions. Each call runs on the caller's
// transaction, locks the product position, and appends exactly one Transaction.
type Ledger struct {
	logger  *slog.Logger
	metrics OversellRecorder
	now     func() time.Time
}

// NewLedger constructs a Ledger.
func NewLedger(logger *slog.Logger, metrics OversellRecorder) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{logger: logger, metrics: metrics, now: time.Now}
}

// WithNow overrides the clock for testing.
func (l *Ledger) WithNow(now func() time.Time) {
	if now != nil {
		l.now = now
	}
}

// Receive adds stock and recomputes the weighted-average cost.
func (l *Ledger) Receive(ctx context.Context, tx TxRepository, m Movement) (Transaction, error) {
	if err := validateMovement(m); err != nil {
		return Transaction{}, err
	}
	if m.UnitCost.IsNegative() {
		return Transaction{}, ErrInvalidUnitCost
	}
	pos, err := tx.GetPositionForUpdate(ctx, m.ProductID)
	if err != nil {
		return Transaction{}, fmt.Errorf("inventory: lock position %d: %w", m.ProductID, err)
	}
	newQty := pos.Quantity + m.Qty
	if newQty == 0 {
		return Transaction{}, ErrUndefinedCost
	}
	oldValue := pos.AvgCost.Mul(decimal.NewFromInt(pos.Quantity))
	inValue := m.UnitCost.Mul(decimal.NewFromInt(m.Qty))
	pos.AvgCost = oldValue.Add(inValue).Div(decimal.NewFromInt(newQty)).Round(avgCostPlaces)
	pos.Quantity = newQty
	kind := m.Kind
	if kind == "" {
		kind = KindPurchase
	}
	return l.append(ctx, tx, pos, Transaction{
		ProductID: m.ProductID,
		QtyDelta:  m.Qty,
		UnitCost:  m.UnitCost,
		Kind:      kind,
	}, m)
}

// Issue removes stock at the current average cost. Driving the position negative is
// recorded and flagged, never rejected.
func (l *Ledger) Issue(ctx context.Context, tx TxRepository, m Movement) (Transaction, error) {
	if err := validateMovement(m); err != nil {
		return Transaction{}, err
	}
	pos, err := tx.GetPositionForUpdate(ctx, m.ProductID)
	if err != nil {
		return Transaction{}, fmt.Errorf("inventory: lock position %d: %w", m.ProductID, err)
	}
	// Stock on hand at zero cost was received free; only an uncosted, empty position falls back.
	if pos.AvgCost.IsZero() && pos.Quantity <= 0 && m.FallbackCost.IsPositive() {
		pos.AvgCost = m.FallbackCost.Round(avgCostPlaces)
	}
	pos.Quantity -= m.Qty
	kind := m.Kind
	if kind == "" {
		kind = KindSale
	}
	entry := Transaction{
		ProductID: m.ProductID,
		QtyDelta:  -m.Qty,
		UnitCost:  pos.AvgCost,
		Kind:      kind,
		Oversold:  pos.Quantity < 0,
	}
	if entry.Oversold {
		l.logger.WarnContext(ctx, "inventory oversold",
			slog.Int64("product_id", m.ProductID),
			slog.Int64("issued", m.Qty),
			slog.Int64("resulting_qty", pos.Quantity),
			slog.String("ref", m.Ref.Number))
		if l.metrics != nil {
			l.metrics.Oversold(m.ProductID)
		}
	}
	return l.append(ctx, tx, pos, entry, m)
}

// AdjustTo sets the absolute quantity after a stock count. The signed difference is logged
// and cost is unchanged.
func (l *Ledger) AdjustTo(ctx context.Context, tx TxRepository, productID, newQty int64, reason string, ref Ref) (Transaction, error) {
	if productID <= 0 {
		return Transaction{}, ErrProductRequired
	}
	if newQty < 0 {
		return Transaction{}, ErrNegativeTarget
	}
	pos, err := tx.GetPositionForUpdate(ctx, productID)
	if err != nil {
		return Transaction{}, fmt.Errorf("inventory: lock position %d: %w", productID, err)
	}
	delta := newQty - pos.Quantity
	pos.Quantity = newQty
	return l.append(ctx, tx, pos, Transaction{
		ProductID: productID,
		QtyDelta:  delta,
		UnitCost:  pos.AvgCost,
		Kind:      KindAdjustment,
	}, Movement{Ref: ref, Note: reason})
}

// Restore puts previously issued stock back, leaving cost unchanged.
func (l *Ledger) Restore(ctx context.Context, tx TxRepository, m Movement) (Transaction, error) {
	if err := validateMovement(m); err != nil {
		return Transaction{}, err
	}
	pos, err := tx.GetPositionForUpdate(ctx, m.ProductID)
	if err != nil {
		return Transaction{}, fmt.Errorf("inventory: lock position %d: %w", m.ProductID, err)
	}
	pos.Quantity += m.Qty
	unitCost := m.UnitCost
	if unitCost.IsZero() {
		unitCost = pos.AvgCost
	}
	kind := m.Kind
	if kind == "" {
		kind = KindReturn
	}
	return l.append(ctx, tx, pos, Transaction{
		ProductID: m.ProductID,
		QtyDelta:  m.Qty,
		UnitCost:  unitCost,
		Kind:      kind,
	}, m)
}

func (l *Ledger) append(ctx context.Context, tx TxRepository, pos Position, entry Transaction, m Movement) (Transaction, error) {
	now := l.now().UTC()
	pos.UpdatedAt = now
	entry.RefType = m.Ref.Type
	entry.RefID = m.Ref.ID
	entry.RefNumber = m.Ref.Number
	entry.Note = m.Note
	entry.BalanceQty = pos.Quantity
	entry.CreatedAt = now
	inserted, err := tx.InsertTransaction(ctx, entry)
	if err != nil {
		return Transaction{}, fmt.Errorf("inventory: append transaction: %w", err)
	}
	if err := tx.SavePosition(ctx, pos); err != nil {
		return Transaction{}, fmt.Errorf("inventory: save position: %w", err)
	}
	return inserted, nil
}

func validateMovement(m Movement) error {
	if m.ProductID <= 0 {
		return ErrProductRequired
	}
	if m.Qty <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}
