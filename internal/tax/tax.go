// Package tax apportions goods-and-services tax into its CGST/SGST/IGST components.
package tax

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

var two = decimal.NewFromInt(2)

// Breakdown holds the tax components of one amount.
type Breakdown struct {
	CGST decimal.Decimal `json:"cgst"`
	SGST decimal.Decimal `json:"sgst"`
	IGST decimal.Decimal `json:"igst"`
}

// Total returns CGST + SGST + IGST.
func (b Breakdown) Total() decimal.Decimal {
	return b.CGST.Add(b.SGST).Add(b.IGST)
}

// Add sums two breakdowns component-wise.
func (b Breakdown) Add(o Breakdown) Breakdown {
	return Breakdown{CGST: b.CGST.Add(o.CGST), SGST: b.SGST.Add(o.SGST), IGST: b.IGST.Add(o.IGST)}
}

// Split apportions amount. Inter-state tax is all IGST. Intra-state tax is halved with SGST
// truncated to the cent and CGST taking the remainder, so an odd cent always lands on CGST and
// the components always sum to the rounded amount.
func Split(amount decimal.Decimal, interState bool) Breakdown {
	amount = shared.Round2(amount)
	if interState {
		return Breakdown{CGST: decimal.Zero, SGST: decimal.Zero, IGST: amount}
	}
	sgst := amount.Div(two).Truncate(2)
	return Breakdown{CGST: amount.Sub(sgst), SGST: sgst, IGST: decimal.Zero}
}

// LineTax computes the cent-rounded tax for a taxable base at percent.
func LineTax(base, percent decimal.Decimal) decimal.Decimal {
	return shared.Round2(shared.Percent(base, percent))
}
