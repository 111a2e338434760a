// Package memstore is an in-memory implementation of every pipeline repository. Transactions
// are serialised behind one mutex and a failed callback restores the snapshot taken when it
// started, so tests can assert all-or-nothing behaviour without PostgreSQL.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting"
	"github.com/odyssey-erp/odyssey-pos/internal/catalog"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/loyalty"
	"github.com/odyssey-erp/odyssey-pos/internal/payments"
	"github.com/odyssey-erp/odyssey-pos/internal/procurement"
	"github.com/odyssey-erp/odyssey-pos/internal/register"
	"github.com/odyssey-erp/odyssey-pos/internal/sales"
	"github.com/odyssey-erp/odyssey-pos/internal/sequence"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

type state struct {
	nextID      int64
	seq         map[string]int64
	accounts    map[int64]accounting.Account
	entries     map[int64]accounting.JournalEntry
	products    map[int64]catalog.Product
	customers   map[int64]catalog.Customer
	vendors     map[int64]catalog.Vendor
	positions   map[int64]inventory.Position
	stockLog    []inventory.Transaction
	adjustments []inventory.Adjustment
	sessions    map[int64]register.Session
	points      []loyalty.Transaction
	payments    map[int64]payments.Payment
	sales       map[int64]sales.Sale
	returns     []sales.Return
	orders      map[int64]procurement.PurchaseOrder
	receipts    map[int64]procurement.GoodsReceipt
	idempotency map[string]string
}

func newState() state {
	return state{
		seq:         make(map[string]int64),
		accounts:    make(map[int64]accounting.Account),
		entries:     make(map[int64]accounting.JournalEntry),
		products:    make(map[int64]catalog.Product),
		customers:   make(map[int64]catalog.Customer),
		vendors:     make(map[int64]catalog.Vendor),
		positions:   make(map[int64]inventory.Position),
		sessions:    make(map[int64]register.Session),
		payments:    make(map[int64]payments.Payment),
		sales:       make(map[int64]sales.Sale),
		orders:      make(map[int64]procurement.PurchaseOrder),
		receipts:    make(map[int64]procurement.GoodsReceipt),
		idempotency: make(map[string]string),
	}
}

// clone copies every container. Stored values are never mutated in place, so sharing them
// between the snapshot and the live state is safe.
func (s state) clone() state {
	return state{
		nextID:      s.nextID,
		seq:         maps.Clone(s.seq),
		accounts:    maps.Clone(s.accounts),
		entries:     maps.Clone(s.entries),
		products:    maps.Clone(s.products),
		customers:   maps.Clone(s.customers),
		vendors:     maps.Clone(s.vendors),
		positions:   maps.Clone(s.positions),
		stockLog:    slices.Clone(s.stockLog),
		adjustments: slices.Clone(s.adjustments),
		sessions:    maps.Clone(s.sessions),
		points:      slices.Clone(s.points),
		payments:    maps.Clone(s.payments),
		sales:       maps.Clone(s.sales),
		returns:     slices.Clone(s.returns),
		orders:      maps.Clone(s.orders),
		receipts:    maps.Clone(s.receipts),
		idempotency: maps.Clone(s.idempotency),
	}
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// Store holds the whole dataset.
type Store struct {
	mu     sync.Mutex
	st     state
	faults map[string]error
	// audit rows are written after commit, so rollbacks never touch them.
	audit []shared.AuditLog
}

// New returns an empty store.
func New() *Store {
	return &Store{st: newState(), faults: make(map[string]error)}
}

// Fail makes the named repository method (for example "payments.InsertPayment") return err
// until cleared with a nil err.
func (s *Store) Fail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, method)
		return
	}
	s.faults[method] = err
}

func (s *Store) run(fn func(*Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(&Tx{st: &s.st, faults: s.faults}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) read() (*state, func()) {
	s.mu.Lock()
	return &s.st, s.mu.Unlock
}

// Tx is the view of the store inside one transaction. It satisfies every pipeline TxScope.
type Tx struct {
	st     *state
	faults map[string]error
}

func (t *Tx) fault(method string) error {
	return t.faults[method]
}

func (t *Tx) Sales() sales.TxRepository { return salesRepo{t} }
func (t *Tx) Inventory() inventory.TxRepository { return inventoryRepo{t} }
func (t *Tx) Journal() accounting.TxRepository { return journalRepo{t} }
func (t *Tx) Catalog() catalog.TxRepository { return catalogRepo{t} }
func (t *Tx) Register() register.TxRepository { return registerRepo{t} }
func (t *Tx) Loyalty() loyalty.TxRepository { return loyaltyRepo{t} }
func (t *Tx) Payments() payments.TxRepository { return paymentsRepo{t} }
func (t *Tx) Procurement() procurement.TxRepository { return procurementRepo{t} }
func (t *Tx) Sequences() sequence.TxRepository { return sequenceRepo{t} }

// Port adapts the store to a package RepositoryPort whose WithTx hands out scope S. Read
// methods come from the embedded Store.
type Port[S any] struct {
	*Store
	scope func(*Tx) S
}

// Bind builds a Port from a scope accessor.
func Bind[S any](s *Store, scope func(*Tx) S) Port[S] {
	return Port[S]{Store: s, scope: scope}
}

// WithTx runs fn atomically.
func (p Port[S]) WithTx(ctx context.Context, fn func(context.Context, S) error) error {
	return p.Store.run(func(tx *Tx) error {
		return fn(ctx, p.scope(tx))
	})
}

// AccountingPort satisfies accounting.RepositoryPort.
func (s *Store) AccountingPort() Port[accounting.TxRepository] {
	return Bind(s, func(tx *Tx) accounting.TxRepository { return tx.Journal() })
}

// InventoryPort satisfies inventory.RepositoryPort.
func (s *Store) InventoryPort() Port[inventory.TxScope] {
	return Bind(s, func(tx *Tx) inventory.TxScope { return tx })
}

// RegisterPort satisfies register.RepositoryPort.
func (s *Store) RegisterPort() Port[register.TxScope] {
	return Bind(s, func(tx *Tx) register.TxScope { return tx })
}

// PaymentsPort satisfies payments.RepositoryPort.
func (s *Store) PaymentsPort() Port[payments.TxScope] {
	return Bind(s, func(tx *Tx) payments.TxScope { return tx })
}

// SalesPort satisfies sales.RepositoryPort.
func (s *Store) SalesPort() Port[sales.TxScope] {
	return Bind(s, func(tx *Tx) sales.TxScope { return tx })
}

// ProcurementPort satisfies procurement.RepositoryPort.
func (s *Store) ProcurementPort() Port[procurement.TxScope] {
	return Bind(s, func(tx *Tx) procurement.TxScope { return tx })
}
