package sales

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/catalog"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	"github.com/odyssey-erp/odyssey-pos/internal/tax"
)

// CalculateLine prices one line: base = round(qty·price·(1 − pct/100) − discountAmount, 2),
// tax on the base at the product rate, apportioned per line. in.UnitPrice must be set.
func CalculateLine(in LineInput, taxPercent decimal.Decimal, interState bool) (Line, error) {
	if in.UnitPrice == nil {
		return Line{}, ErrMissingPrice
	}
	unitPrice := *in.UnitPrice
	gross := unitPrice.Mul(decimal.NewFromInt(in.Quantity))
	base := shared.Round2(gross.Sub(shared.Percent(gross, in.DiscountPercent)).Sub(in.DiscountAmount))
	if base.IsNegative() {
		return Line{}, ErrNegativeBase
	}
	lineTax := tax.LineTax(base, taxPercent)
	split := tax.Split(lineTax, interState)
	return Line{
		ProductID:       in.ProductID,
		Quantity:        in.Quantity,
		UnitPrice:       shared.Round2(unitPrice),
		DiscountPercent: in.DiscountPercent,
		DiscountAmount:  shared.Round2(in.DiscountAmount),
		TaxPercent:      taxPercent,
		Base:            base,
		Tax:             lineTax,
		CGST:            split.CGST,
		SGST:            split.SGST,
		IGST:            split.IGST,
		LineTotal:       base.Add(lineTax),
	}, nil
}

// Price builds an unsaved sale from the request and the catalog rows of its products.
func Price(in CreateSaleInput, products map[int64]catalog.Product) (Sale, error) {
	sale := Sale{
		CustomerID:    in.CustomerID,
		CashierID:     in.CashierID,
		Discount:      shared.Round2(in.Discount),
		PaymentMethod: in.PaymentMethod,
		InterState:    in.InterState,
		Lines:         make([]Line, 0, len(in.Lines)),
	}
	for idx, li := range in.Lines {
		product, ok := products[li.ProductID]
		if !ok {
			return Sale{}, shared.NotFound("product", li.ProductID)
		}
		if !product.IsActive {
			return Sale{}, fieldError(idx, "product_id", ErrInactiveProduct)
		}
		if li.UnitPrice == nil {
			selling := product.SellingPrice
			li.UnitPrice = &selling
		}
		line, err := CalculateLine(li, product.TaxPercent, in.InterState)
		if err != nil {
			return Sale{}, fieldError(idx, "discount_amount", err)
		}
		sale.Subtotal = sale.Subtotal.Add(line.Base)
		sale.Tax = sale.Tax.Add(line.Tax)
		sale.CGST = sale.CGST.Add(line.CGST)
		sale.SGST = sale.SGST.Add(line.SGST)
		sale.IGST = sale.IGST.Add(line.IGST)
		sale.Lines = append(sale.Lines, line)
	}
	if sale.Discount.GreaterThan(sale.Subtotal) {
		return Sale{}, ErrDiscountTooLarge
	}
	sale.Total = sale.Subtotal.Sub(sale.Discount).Add(sale.Tax)
	return sale, nil
}

// Settle caps the tendered amount at the total. The excess is change handed back.
func Settle(total, tendered decimal.Decimal) (paid, balance, change decimal.Decimal) {
	tendered = shared.Round2(tendered)
	paid = shared.MinDecimal(tendered, total)
	return paid, total.Sub(paid), tendered.Sub(paid)
}

// Revenue is the subtotal net of the global discount.
func (s Sale) Revenue() decimal.Decimal {
	return s.Subtotal.Sub(s.Discount)
}

// TaxBreakdown returns the sale's apportioned tax.
func (s Sale) TaxBreakdown() tax.Breakdown {
	return tax.Breakdown{CGST: s.CGST, SGST: s.SGST, IGST: s.IGST}
}

// Refund computes the returnable amount of qty units of a line. The line base is reduced by
// the sale's global discount in proportion to the subtotal so refunds never exceed revenue.
func Refund(sale Sale, line Line, qty int64) (base decimal.Decimal, taxes tax.Breakdown) {
	share := decimal.NewFromInt(qty).Div(decimal.NewFromInt(line.Quantity))
	raw := line.Base.Mul(share)
	if sale.Discount.IsPositive() && sale.Subtotal.IsPositive() {
		raw = raw.Mul(sale.Revenue()).Div(sale.Subtotal)
	}
	base = shared.Round2(raw)
	taxes = tax.Split(shared.Round2(line.Tax.Mul(share)), sale.InterState)
	return base, taxes
}

// issueOrder returns line indexes sorted by product id so concurrent checkouts lock
// inventory positions in the same order.
func issueOrder(lines []Line) []int {
	order := make([]int, len(lines))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return lines[order[a]].ProductID < lines[order[b]].ProductID
	})
	return order
}

// returnOrder sorts returned items by product id for the same reason.
func returnOrder(items []ReturnItem) []int {
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return items[order[a]].ProductID < items[order[b]].ProductID
	})
	return order
}

func fieldError(idx int, field string, err error) error {
	return &shared.Error{
		Kind:    shared.KindValidation,
		Message: err.Error(),
		Fields:  map[string]string{fmt.Sprintf("lines[%d].%s", idx, field): err.Error()},
		Err:     err,
	}
}
