package memstore

import (
	"context"
	"sort"

	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
)

type inventoryRepo struct{ t *Tx }

func (r inventoryRepo) GetPositionForUpdate(_ context.Context, productID int64) (inventory.Position, error) {
	pos, ok := r.t.st.positions[productID]
	if !ok {
		pos = inventory.Position{ProductID: productID}
		r.t.st.positions[productID] = pos
	}
	return pos, nil
}

func (r inventoryRepo) InsertTransaction(_ context.Context, entry inventory.Transaction) (inventory.Transaction, error) {
	if err := r.t.fault("inventory.InsertTransaction"); err != nil {
		return inventory.Transaction{}, err
	}
	entry.ID = r.t.st.id()
	r.t.st.stockLog = append(r.t.st.stockLog, entry)
	return entry, nil
}

func (r inventoryRepo) SavePosition(_ context.Context, pos inventory.Position) error {
	if err := r.t.fault("inventory.SavePosition"); err != nil {
		return err
	}
	r.t.st.positions[pos.ProductID] = pos
	return nil
}

func (r inventoryRepo) InsertAdjustment(_ context.Context, adj inventory.Adjustment) (inventory.Adjustment, error) {
	if err := r.t.fault("inventory.InsertAdjustment"); err != nil {
		return inventory.Adjustment{}, err
	}
	adj.ID = r.t.st.id()
	r.t.st.adjustments = append(r.t.st.adjustments, adj)
	return adj, nil
}

// GetPosition returns the stock level; unknown products read as empty.
func (s *Store) GetPosition(_ context.Context, productID int64) (inventory.Position, error) {
	st, unlock := s.read()
	defer unlock()
	pos, ok := st.positions[productID]
	if !ok {
		return inventory.Position{ProductID: productID}, nil
	}
	return pos, nil
}

// ListTransactions returns the newest limit entries of a product in posting order.
func (s *Store) ListTransactions(_ context.Context, productID int64, limit int) ([]inventory.Transaction, error) {
	st, unlock := s.read()
	defer unlock()
	if limit <= 0 {
		limit = 200
	}
	var out []inventory.Transaction
	for _, t := range st.stockLog {
		if t.ProductID == productID {
			out = append(out, t)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// FoldMismatches lists positions that differ from the sum of their log.
func (s *Store) FoldMismatches(context.Context) ([]inventory.FoldMismatch, error) {
	st, unlock := s.read()
	defer unlock()
	sums := make(map[int64]int64)
	for _, t := range st.stockLog {
		sums[t.ProductID] += t.QtyDelta
	}
	var out []inventory.FoldMismatch
	for id, pos := range st.positions {
		if pos.Quantity != sums[id] {
			out = append(out, inventory.FoldMismatch{ProductID: id, PositionQty: pos.Quantity, LoggedQty: sums[id]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

// OverwritePosition replaces a position without logging, for integrity checks.
func (s *Store) OverwritePosition(pos inventory.Position) {
	st, unlock := s.read()
	defer unlock()
	st.positions[pos.ProductID] = pos
}

// Adjustments returns every stock adjustment.
func (s *Store) Adjustments() []inventory.Adjustment {
	st, unlock := s.read()
	defer unlock()
	return append([]inventory.Adjustment(nil), st.adjustments...)
}
