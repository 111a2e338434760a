package inventory_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting"
	"github.com/odyssey-erp/odyssey-pos/internal/accounting/posting"
	"github.com/odyssey-erp/odyssey-pos/internal/catalog"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	"github.com/odyssey-erp/odyssey-pos/internal/testing/memstore"
	_ "github.com/odyssey-erp/odyssey-pos/testing"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

type oversellCounter struct {
	mu  sync.Mutex
	ids []int64
}

func (c *oversellCounter) Oversold(productID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, productID)
}

type alarmCounter struct{ checks []string }

func (c *alarmCounter) IntegrityAlarm(check string) { c.checks = append(c.checks, check) }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func move(t *testing.T, store *memstore.Store, fn func(context.Context, inventory.TxRepository) (inventory.Transaction, error)) inventory.Transaction {
	t.Helper()
	var out inventory.Transaction
	err := store.InventoryPort().WithTx(context.Background(), func(ctx context.Context, scope inventory.TxScope) error {
		var err error
		out, err = fn(ctx, scope.Inventory())
		return err
	})
	require.NoError(t, err)
	return out
}

func TestLedgerReceiveAndIssue(t *testing.T) {
	store := memstore.New()
	counter := &oversellCounter{}
	ledger := inventory.NewLedger(discard(), counter)
	ledger.WithNow(func() time.Time { return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC) })

	move(t, store, func(ctx context.Context, tx inventory.TxRepository) (inventory.Transaction, error) {
		return ledger.Receive(ctx, tx, inventory.Movement{ProductID: 1, Qty: 3, UnitCost: d("10")})
	})
	move(t, store, func(ctx context.Context, tx inventory.TxRepository) (inventory.Transaction, error) {
		return ledger.Receive(ctx, tx, inventory.Movement{ProductID: 1, Qty: 4, UnitCost: d("11")})
	})
	pos, err := store.GetPosition(context.Background(), 1)
	require.NoError(t, err)
	require.EqualValues(t, 7, pos.Quantity)
	require.True(t, pos.AvgCost.Equal(d("10.5714")), pos.AvgCost.String())

	issued := move(t, store, func(ctx context.Context, tx inventory.TxRepository) (inventory.Transaction, error) {
		return ledger.Issue(ctx, tx, inventory.Movement{ProductID: 1, Qty: 9, Ref: inventory.Ref{Type: "sale", ID: 4, Number: "INV-0004"}})
	})
	require.True(t, issued.Oversold)
	require.EqualValues(t, -9, issued.QtyDelta)
	require.EqualValues(t, -2, issued.BalanceQty)
	require.Equal(t, inventory.KindSale, issued.Kind)
	require.Equal(t, "INV-0004", issued.RefNumber)
	require.True(t, issued.Value().Equal(d("95.14")), issued.Value().String())
	require.Equal(t, []int64{1}, counter.ids)

	pos, err = store.GetPosition(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, pos.AvgCost.Equal(d("10.5714")))
}

func TestLedgerIssueUsesFallbackCost(t *testing.T) {
	store := memstore.New()
	ledger := inventory.NewLedger(discard(), nil)

	issued := move(t, store, func(ctx context.Context, tx inventory.TxRepository) (inventory.Transaction, error) {
		return ledger.Issue(ctx, tx, inventory.Movement{ProductID: 2, Qty: 1, FallbackCost: d("42")})
	})
	require.True(t, issued.UnitCost.Equal(d("42")))
	require.True(t, issued.Oversold)
}

func TestLedgerIssueKeepsZeroCostStock(t *testing.T) {
	store := memstore.New()
	ledger := inventory.NewLedger(discard(), nil)
	move(t, store, func(ctx context.Context, tx inventory.TxRepository) (inventory.Transaction, error) {
		return ledger.Receive(ctx, tx, inventory.Movement{ProductID: 4, Qty: 3, UnitCost: d("0")})
	})

	issued := move(t, store, func(ctx context.Context, tx inventory.TxRepository) (inventory.Transaction, error) {
		return ledger.Issue(ctx, tx, inventory.Movement{ProductID: 4, Qty: 2, FallbackCost: d("42")})
	})
	require.True(t, issued.UnitCost.IsZero(), issued.UnitCost.String())
	require.False(t, issued.Oversold)

	pos, err := store.GetPosition(context.Background(), 4)
	require.NoError(t, err)
	require.EqualValues(t, 1, pos.Quantity)
	require.True(t, pos.AvgCost.IsZero())
	require.True(t, pos.Value().IsZero())
}

func TestLedgerRejectsInvalidMovements(t *testing.T) {
	store := memstore.New()
	ledger := inventory.NewLedger(discard(), nil)

	cases := map[string]struct {
		fn   func(context.Context, inventory.TxRepository) (inventory.Transaction, error)
		want error
	}{
		"zero quantity": {
			fn: func(ctx context.Context, tx inventory.TxRepository) (inventory.Transaction, error) {
				return ledger.Receive(ctx, tx, inventory.Movement{ProductID: 1, Qty: 0})
			},
			want: inventory.ErrInvalidQuantity,
		},
		"negative cost": {
			fn: func(ctx context.Context, tx inventory.TxRepository) (inventory.Transaction, error) {
				return ledger.Receive(ctx, tx, inventory.Movement{ProductID: 1, Qty: 1, UnitCost: d("-1")})
			},
			want: inventory.ErrInvalidUnitCost,
		},
		"missing product": {
			fn: func(ctx context.Context, tx inventory.TxRepository) (inventory.Transaction, error) {
				return ledger.Issue(ctx, tx, inventory.Movement{Qty: 1})
			},
			want: inventory.ErrProductRequired,
		},
		"negative target": {
			fn: func(ctx context.Context, tx inventory.TxRepository) (inventory.Transaction, error) {
				return ledger.AdjustTo(ctx, tx, 1, -1, "count", inventory.Ref{})
			},
			want: inventory.ErrNegativeTarget,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := store.InventoryPort().WithTx(context.Background(), func(ctx context.Context, scope inventory.TxScope) error {
				_, err := tc.fn(ctx, scope.Inventory())
				return err
			})
			require.ErrorIs(t, err, tc.want)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestLedgerReceiveIntoOversoldPositionReachingZero(t *testing.T) {
	store := memstore.New()
	ledger := inventory.NewLedger(discard(), nil)
	move(t, store, func(ctx context.Context, tx inventory.TxRepository) (inventory.Transaction, error) {
		return ledger.Issue(ctx, tx, inventory.Movement{ProductID: 3, Qty: 2, FallbackCost: d("5")})
	})

	err := store.InventoryPort().WithTx(context.Background(), func(ctx context.Context, scope inventory.TxScope) error {
		_, err := ledger.Receive(ctx, scope.Inventory(), inventory.Movement{ProductID: 3, Qty: 2, UnitCost: d("5")})
		return err
	})
	require.ErrorIs(t, err, inventory.ErrUndefinedCost)
}

func TestLedgerConcurrentIssuesKeepFold(t *testing.T) {
	store := memstore.New()
	ledger := inventory.NewLedger(discard(), nil)
	move(t, store, func(ctx context.Context, tx inventory.TxRepository) (inventory.Transaction, error) {
		return ledger.Receive(ctx, tx, inventory.Movement{ProductID: 5, Qty: 100, UnitCost: d("2")})
	})

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			return store.InventoryPort().WithTx(context.Background(), func(ctx context.Context, scope inventory.TxScope) error {
				_, err := ledger.Issue(ctx, scope.Inventory(), inventory.Movement{ProductID: 5, Qty: 3})
				return err
			})
		})
	}
	require.NoError(t, g.Wait())

	pos, err := store.GetPosition(context.Background(), 5)
	require.NoError(t, err)
	require.EqualValues(t, 40, pos.Quantity)
	mismatches, err := store.FoldMismatches(context.Background())
	require.NoError(t, err)
	require.Empty(t, mismatches)
}

func newService(store *memstore.Store, alarms inventory.AlarmRecorder) (*inventory.Service, posting.RoleMap, *inventory.Ledger) {
	roles := store.SeedChart()
	ledger := inventory.NewLedger(discard(), nil)
	svc := inventory.NewService(store.InventoryPort(), ledger, accounting.NewJournal(discard()), posting.NewRules(roles),
		shared.Hooks{}, alarms, discard())
	return svc, roles, ledger
}

func TestAdjustStockBooksLoss(t *testing.T) {
	store := memstore.New()
	svc, roles, ledger := newService(store, nil)
	product := store.AddProduct(catalog.Product{Name: "Tea", IsActive: true})
	move(t, store, func(ctx context.Context, tx inventory.TxRepository) (inventory.Transaction, error) {
		return ledger.Receive(ctx, tx, inventory.Movement{ProductID: product.ID, Qty: 10, UnitCost: d("8")})
	})

	adj, err := svc.AdjustStock(context.Background(), inventory.AdjustInput{ProductID: product.ID, NewQty: 7, Reason: " breakage ", ActorID: 2})
	require.NoError(t, err)
	require.Equal(t, "ADJ-0001", adj.Number)
	require.EqualValues(t, 10, adj.PreviousQty)
	require.EqualValues(t, -3, adj.Delta)
	require.True(t, adj.Value.Equal(d("24")))
	require.Equal(t, "breakage", adj.Reason)
	require.NotNil(t, adj.JournalID)

	entry, err := store.GetEntry(context.Background(), *adj.JournalID)
	require.NoError(t, err)
	require.Equal(t, accounting.EntryTypeAdjustment, entry.Type)
	for _, l := range entry.Lines {
		switch l.AccountID {
		case roles.Account(posting.RoleInventoryLoss):
			require.True(t, l.Debit.Equal(d("24")))
		case roles.Account(posting.RoleInventory):
			require.True(t, l.Credit.Equal(d("24")))
		default:
			t.Fatalf("unexpected account %d", l.AccountID)
		}
	}
	require.Len(t, store.Adjustments(), 1)
}

func TestAdjustStockGainAndNoop(t *testing.T) {
	store := memstore.New()
	svc, roles, ledger := newService(store, nil)
	product := store.AddProduct(catalog.Product{Name: "Rice", IsActive: true})
	move(t, store, func(ctx context.Context, tx inventory.TxRepository) (inventory.Transaction, error) {
		return ledger.Receive(ctx, tx, inventory.Movement{ProductID: product.ID, Qty: 5, UnitCost: d("4")})
	})

	adj, err := svc.AdjustStock(context.Background(), inventory.AdjustInput{ProductID: product.ID, NewQty: 6, Reason: "recount"})
	require.NoError(t, err)
	entry, err := store.GetEntry(context.Background(), *adj.JournalID)
	require.NoError(t, err)
	for _, l := range entry.Lines {
		if l.AccountID == roles.Account(posting.RoleInventoryGain) {
			require.True(t, l.Credit.Equal(d("4")))
		}
	}

	adj, err = svc.AdjustStock(context.Background(), inventory.AdjustInput{ProductID: product.ID, NewQty: 6, Reason: "recount"})
	require.NoError(t, err)
	require.Nil(t, adj.JournalID)
	require.Len(t, store.Entries(), 1)
}

func TestAdjustStockRollsBack(t *testing.T) {
	store := memstore.New()
	svc, _, _ := newService(store, nil)
	product := store.AddProduct(catalog.Product{Name: "Salt", IsActive: true})
	store.Fail("inventory.InsertAdjustment", errors.New("boom"))

	_, err := svc.AdjustStock(context.Background(), inventory.AdjustInput{ProductID: product.ID, NewQty: 4, Reason: "count"})
	require.Error(t, err)
	pos, err := store.GetPosition(context.Background(), product.ID)
	require.NoError(t, err)
	require.Zero(t, pos.Quantity)
	txs, err := store.ListTransactions(context.Background(), product.ID, 0)
	require.NoError(t, err)
	require.Empty(t, txs)
}

func TestVerifyFoldRaisesAlarm(t *testing.T) {
	store := memstore.New()
	alarms := &alarmCounter{}
	svc, _, ledger := newService(store, alarms)
	move(t, store, func(ctx context.Context, tx inventory.TxRepository) (inventory.Transaction, error) {
		return ledger.Receive(ctx, tx, inventory.Movement{ProductID: 9, Qty: 5, UnitCost: d("1")})
	})

	mismatches, err := svc.VerifyFold(context.Background())
	require.NoError(t, err)
	require.Empty(t, mismatches)

	store.OverwritePosition(inventory.Position{ProductID: 9, Quantity: 6, AvgCost: d("1")})
	mismatches, err = svc.VerifyFold(context.Background())
	require.ErrorIs(t, err, shared.ErrIntegrity)
	require.Equal(t, []inventory.FoldMismatch{{ProductID: 9, PositionQty: 6, LoggedQty: 5}}, mismatches)
	require.Equal(t, []string{"inventory_fold"}, alarms.checks)
}
