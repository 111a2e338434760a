package sales

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/catalog"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func price(v string) *decimal.Decimal {
	p := dec(v)
	return &p
}

func TestCalculateLine(t *testing.T) {
	cases := []struct {
		name       string
		in         LineInput
		rate       string
		interState bool
		base       string
		cgst       string
		sgst       string
		igst       string
	}{
		{
			name: "intra-state",
			in:   LineInput{ProductID: 1, Quantity: 2, UnitPrice: price("200")},
			rate: "18", base: "400", cgst: "36", sgst: "36", igst: "0",
		},
		{
			name: "inter-state",
			in:   LineInput{ProductID: 1, Quantity: 2, UnitPrice: price("200")},
			rate: "18", interState: true, base: "400", cgst: "0", sgst: "0", igst: "72",
		},
		{
			name: "percent and flat discount",
			in:   LineInput{ProductID: 1, Quantity: 3, UnitPrice: price("99.99"), DiscountPercent: dec("10"), DiscountAmount: dec("5")},
			rate: "5", base: "264.97", cgst: "6.63", sgst: "6.62", igst: "0",
		},
		{
			name: "zero rated",
			in:   LineInput{ProductID: 1, Quantity: 1, UnitPrice: price("50")},
			rate: "0", base: "50", cgst: "0", sgst: "0", igst: "0",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			line, err := CalculateLine(tc.in, dec(tc.rate), tc.interState)
			require.NoError(t, err)
			require.True(t, line.Base.Equal(dec(tc.base)), line.Base.String())
			require.True(t, line.CGST.Equal(dec(tc.cgst)), line.CGST.String())
			require.True(t, line.SGST.Equal(dec(tc.sgst)), line.SGST.String())
			require.True(t, line.IGST.Equal(dec(tc.igst)), line.IGST.String())
			require.True(t, line.Tax.Equal(line.CGST.Add(line.SGST).Add(line.IGST)))
			require.True(t, line.LineTotal.Equal(line.Base.Add(line.Tax)))
		})
	}
}

func TestCalculateLineRejectsNegativeBase(t *testing.T) {
	_, err := CalculateLine(LineInput{ProductID: 1, Quantity: 1, UnitPrice: price("10"), DiscountAmount: dec("11")}, dec("5"), false)
	require.ErrorIs(t, err, ErrNegativeBase)
}

func TestPriceFallsBackToSellingPrice(t *testing.T) {
	products := map[int64]catalog.Product{1: {ID: 1, SellingPrice: dec("120"), TaxPercent: dec("5"), IsActive: true}}
	sale, err := Price(CreateSaleInput{
		Lines: []LineInput{
			{ProductID: 1, Quantity: 2},
			{ProductID: 1, Quantity: 1, UnitPrice: price("100")},
		},
		PaymentMethod: "cash",
	}, products)
	require.NoError(t, err)
	require.True(t, sale.Lines[0].UnitPrice.Equal(dec("120")))
	require.True(t, sale.Lines[1].UnitPrice.Equal(dec("100")))
	require.True(t, sale.Subtotal.Equal(dec("340")))

	_, err = CalculateLine(LineInput{ProductID: 1, Quantity: 1}, dec("5"), false)
	require.ErrorIs(t, err, ErrMissingPrice)
}

func TestPriceAppliesGlobalDiscount(t *testing.T) {
	products := map[int64]catalog.Product{
		1: {ID: 1, TaxPercent: dec("18"), IsActive: true},
		2: {ID: 2, TaxPercent: dec("5"), IsActive: true},
	}
	sale, err := Price(CreateSaleInput{
		Lines: []LineInput{
			{ProductID: 1, Quantity: 1, UnitPrice: price("100")},
			{ProductID: 2, Quantity: 2, UnitPrice: price("50")},
		},
		Discount:      dec("20"),
		PaymentMethod: "cash",
	}, products)
	require.NoError(t, err)
	require.True(t, sale.Subtotal.Equal(dec("200")))
	require.True(t, sale.Tax.Equal(dec("23")))
	require.True(t, sale.Total.Equal(dec("203")))
	require.True(t, sale.Revenue().Equal(dec("180")))
}

func TestSettle(t *testing.T) {
	paid, balance, change := Settle(dec("472"), dec("500"))
	require.True(t, paid.Equal(dec("472")))
	require.True(t, balance.IsZero())
	require.True(t, change.Equal(dec("28")))

	paid, balance, change = Settle(dec("472"), dec("100"))
	require.True(t, paid.Equal(dec("100")))
	require.True(t, balance.Equal(dec("372")))
	require.True(t, change.IsZero())
}

func TestRefundProratesGlobalDiscount(t *testing.T) {
	sale := Sale{Subtotal: dec("400"), Discount: dec("40")}
	line := Line{Quantity: 2, Base: dec("400"), Tax: dec("72")}

	base, taxes := Refund(sale, line, 1)
	require.True(t, base.Equal(dec("180")), base.String())
	require.True(t, taxes.CGST.Equal(dec("18")))
	require.True(t, taxes.SGST.Equal(dec("18")))

	sale.Discount = decimal.Zero
	base, _ = Refund(sale, line, 2)
	require.True(t, base.Equal(dec("400")))
}

func TestIssueOrderSortsByProduct(t *testing.T) {
	lines := []Line{{ProductID: 9}, {ProductID: 3}, {ProductID: 5}}
	require.Equal(t, []int{1, 2, 0}, issueOrder(lines))
}
