package procurement_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting"
	"github.com/odyssey-erp/odyssey-pos/internal/accounting/posting"
	"github.com/odyssey-erp/odyssey-pos/internal/catalog"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/procurement"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	"github.com/odyssey-erp/odyssey-pos/internal/testing/memstore"
	_ "github.com/odyssey-erp/odyssey-pos/testing"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

type fixture struct {
	store   *memstore.Store
	roles   posting.RoleMap
	svc     *procurement.Service
	vendor  catalog.Vendor
	product catalog.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()
	roles := store.SeedChart()
	svc := procurement.NewService(store.ProcurementPort(), inventory.NewLedger(logger, nil), accounting.NewJournal(logger),
		posting.NewRules(roles), shared.Hooks{Logger: logger}, logger)
	svc.WithNow(func() time.Time { return time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC) })
	return &fixture{
		store:   store,
		roles:   roles,
		svc:     svc,
		vendor:  store.AddVendor(catalog.Vendor{Name: "Acme Supplies"}),
		product: store.AddProduct(catalog.Product{SKU: "SKU-7", Name: "Mug", TaxPercent: d("12"), IsActive: true}),
	}
}

func (f *fixture) receive(qty int64, cost string, poID, poLineID *int64) (procurement.ReceiptResult, error) {
	return f.svc.ReceiveGoods(context.Background(), procurement.ReceiveInput{
		POID:     poID,
		VendorID: f.vendor.ID,
		Lines: []procurement.ReceiveLineInput{{
			ProductID:   f.product.ID,
			POLineID:    poLineID,
			ReceivedQty: qty,
			AcceptedQty: qty,
			UnitCost:    d(cost),
			TaxPercent:  d("0"),
		}},
		ActorID: 3,
	})
}

func TestReceiveGoodsWeightedAverage(t *testing.T) {
	f := newFixture(t)

	_, err := f.receive(10, "50", nil, nil)
	require.NoError(t, err)
	_, err = f.receive(10, "70", nil, nil)
	require.NoError(t, err)

	pos, err := f.store.GetPosition(context.Background(), f.product.ID)
	require.NoError(t, err)
	require.EqualValues(t, 20, pos.Quantity)
	require.True(t, pos.AvgCost.Equal(d("60")), pos.AvgCost.String())

	vendor := f.store.Vendor(f.vendor.ID)
	require.True(t, vendor.PayableBalance.Equal(d("1200")))
}

func TestReceiveGoodsPostsPurchaseJournal(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.ReceiveGoods(context.Background(), procurement.ReceiveInput{
		VendorID: f.vendor.ID,
		Lines: []procurement.ReceiveLineInput{{
			ProductID:   f.product.ID,
			ReceivedQty: 12,
			AcceptedQty: 10,
			UnitCost:    d("25"),
			TaxPercent:  d("12"),
		}},
		ActorID: 3,
	})
	require.NoError(t, err)
	require.Equal(t, "GRN-0001", res.GRNNumber)
	require.True(t, res.Total.Equal(d("280")), res.Total.String())

	grn, err := f.store.GetReceipt(context.Background(), res.GRNID)
	require.NoError(t, err)
	require.NotNil(t, grn.JournalID)
	require.True(t, grn.Balance.Equal(d("280")))
	require.Equal(t, "unpaid", grn.PaymentStatus)

	entry, err := f.store.GetEntry(context.Background(), *grn.JournalID)
	require.NoError(t, err)
	require.Equal(t, accounting.EntryTypePurchase, entry.Type)
	debit, credit := entry.Totals()
	require.True(t, debit.Equal(credit))
	require.True(t, debit.Equal(d("280")))

	want := map[int64][2]string{
		f.roles.Account(posting.RoleInventory):       {"250", "0"},
		f.roles.Account(posting.RoleInputCGST):       {"15", "0"},
		f.roles.Account(posting.RoleInputSGST):       {"15", "0"},
		f.roles.Account(posting.RoleAccountsPayable): {"0", "280"},
	}
	require.Len(t, entry.Lines, len(want))
	for _, l := range entry.Lines {
		amounts, ok := want[l.AccountID]
		require.True(t, ok, "unexpected account %d", l.AccountID)
		require.True(t, l.Debit.Equal(d(amounts[0])))
		require.True(t, l.Credit.Equal(d(amounts[1])))
	}

	pos, err := f.store.GetPosition(context.Background(), f.product.ID)
	require.NoError(t, err)
	require.EqualValues(t, 10, pos.Quantity)
}

func TestReceiveGoodsAgainstPurchaseOrder(t *testing.T) {
	f := newFixture(t)

	po, err := f.svc.CreatePurchaseOrder(context.Background(), procurement.CreatePOInput{
		VendorID: f.vendor.ID,
		Lines:    []procurement.POLineInput{{ProductID: f.product.ID, Qty: 10, UnitCost: d("40")}},
		ActorID:  3,
	})
	require.NoError(t, err)
	require.Equal(t, "PO-0001", po.Number)
	require.Equal(t, procurement.POStatusOpen, po.Status)
	require.True(t, po.Total.Equal(d("400")))
	lineID := po.Lines[0].ID

	_, err = f.receive(4, "40", &po.ID, &lineID)
	require.NoError(t, err)
	got, err := f.svc.GetPurchaseOrder(context.Background(), po.ID)
	require.NoError(t, err)
	require.Equal(t, procurement.POStatusPartial, got.Status)
	require.EqualValues(t, 4, got.Lines[0].ReceivedQty)

	_, err = f.receive(6, "40", &po.ID, &lineID)
	require.NoError(t, err)
	got, err = f.svc.GetPurchaseOrder(context.Background(), po.ID)
	require.NoError(t, err)
	require.Equal(t, procurement.POStatusReceived, got.Status)

	_, err = f.receive(1, "40", &po.ID, &lineID)
	require.ErrorIs(t, err, procurement.ErrPOReceived)
}

func TestReceiveGoodsRejectsForeignOrder(t *testing.T) {
	f := newFixture(t)
	other := f.store.AddVendor(catalog.Vendor{Name: "Other"})
	po, err := f.svc.CreatePurchaseOrder(context.Background(), procurement.CreatePOInput{
		VendorID: other.ID,
		Lines:    []procurement.POLineInput{{ProductID: f.product.ID, Qty: 1, UnitCost: d("10")}},
	})
	require.NoError(t, err)

	_, err = f.receive(1, "10", &po.ID, nil)
	require.ErrorIs(t, err, procurement.ErrForeignPO)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestReceiveGoodsValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ReceiveGoods(context.Background(), procurement.ReceiveInput{
		VendorID: f.vendor.ID,
		Lines:    []procurement.ReceiveLineInput{{ProductID: f.product.ID, ReceivedQty: 2, AcceptedQty: 3, UnitCost: d("1")}},
	})
	require.ErrorIs(t, err, procurement.ErrAcceptedExceedsReceived)
	require.ErrorIs(t, err, shared.ErrValidation)

	lineID := int64(77)
	_, err = f.receive(1, "1", nil, &lineID)
	require.ErrorIs(t, err, procurement.ErrPOLineWithoutPO)

	_, err = f.svc.ReceiveGoods(context.Background(), procurement.ReceiveInput{
		VendorID: 4040,
		Lines:    []procurement.ReceiveLineInput{{ProductID: f.product.ID, ReceivedQty: 1, AcceptedQty: 1, UnitCost: d("1")}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestReceiveGoodsRollsBack(t *testing.T) {
	f := newFixture(t)
	f.store.Fail("catalog.AdjustVendorPayable", errors.New("connection reset"))

	_, err := f.receive(5, "20", nil, nil)
	require.Error(t, err)

	pos, err := f.store.GetPosition(context.Background(), f.product.ID)
	require.NoError(t, err)
	require.Zero(t, pos.Quantity)
	require.Empty(t, f.store.Entries())
	require.Zero(t, f.store.Counter("GRN"))
}
