package memstore

import (
	"context"
	"sort"

	"github.com/odyssey-erp/odyssey-pos/internal/loyalty"
	"github.com/odyssey-erp/odyssey-pos/internal/register"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

type registerRepo struct{ t *Tx }

func (r registerRepo) InsertSession(ctx context.Context, s register.Session) (register.Session, error) {
	if _, found, _ := r.OpenSessionForUpdate(ctx, s.CashierID); found {
		return register.Session{}, register.ErrSessionOpen
	}
	s.ID = r.t.st.id()
	r.t.st.sessions[s.ID] = s
	return s, nil
}

func (r registerRepo) GetSessionForUpdate(_ context.Context, id int64) (register.Session, error) {
	s, ok := r.t.st.sessions[id]
	if !ok {
		return register.Session{}, shared.NotFound("register session", id)
	}
	return s, nil
}

func (r registerRepo) OpenSessionForUpdate(_ context.Context, cashierID int64) (register.Session, bool, error) {
	for _, s := range r.t.st.sessions {
		if s.CashierID == cashierID && s.Status == register.StatusOpen {
			return s, true, nil
		}
	}
	return register.Session{}, false, nil
}

func (r registerRepo) UpdateSession(_ context.Context, s register.Session) error {
	if err := r.t.fault("register.UpdateSession"); err != nil {
		return err
	}
	r.t.st.sessions[s.ID] = s
	return nil
}

// GetSession loads one session.
func (s *Store) GetSession(_ context.Context, id int64) (register.Session, error) {
	st, unlock := s.read()
	defer unlock()
	session, ok := st.sessions[id]
	if !ok {
		return register.Session{}, shared.NotFound("register session", id)
	}
	return session, nil
}

// ActiveSession finds the cashier's open session.
func (s *Store) ActiveSession(_ context.Context, cashierID int64) (register.Session, bool, error) {
	st, unlock := s.read()
	defer unlock()
	for _, session := range st.sessions {
		if session.CashierID == cashierID && session.Status == register.StatusOpen {
			return session, true, nil
		}
	}
	return register.Session{}, false, nil
}

type loyaltyRepo struct{ t *Tx }

func (r loyaltyRepo) InsertLoyalty(_ context.Context, entry loyalty.Transaction) (loyalty.Transaction, error) {
	if err := r.t.fault("loyalty.InsertLoyalty"); err != nil {
		return loyalty.Transaction{}, err
	}
	entry.ID = r.t.st.id()
	r.t.st.points = append(r.t.st.points, entry)
	return entry, nil
}

func (r loyaltyRepo) SalePoints(_ context.Context, saleID int64) (int64, error) {
	var total int64
	for _, p := range r.t.st.points {
		if p.SaleID != nil && *p.SaleID == saleID {
			total += p.Points
		}
	}
	return total, nil
}

// LoyaltyHistory returns a customer's points log in insertion order.
func (s *Store) LoyaltyHistory(_ context.Context, customerID int64) ([]loyalty.Transaction, error) {
	st, unlock := s.read()
	defer unlock()
	var out []loyalty.Transaction
	for _, p := range st.points {
		if p.CustomerID == customerID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
