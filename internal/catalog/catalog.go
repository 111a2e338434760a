// Package catalog exposes the master data the posting engine reads: products, customers and
// vendors. Maintenance of these records happens elsewhere; only balance columns are written here.
package catalog

import (
	"context"

	"github.com/shopspring/decimal"
)

// Product is the sellable item as seen by the pipelines.
type Product struct {
	ID           int64           `json:"id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	TaxPercent   decimal.Decimal `json:"tax_percent"`
	IsActive     bool            `json:"is_active"`
}

// Customer carries the receivable balance owed by a buyer.
type Customer struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	CreditBalance decimal.Decimal `json:"credit_balance"`
}

// Vendor carries the payable balance owed to a supplier.
type Vendor struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	PayableBalance decimal.Decimal `json:"payable_balance"`
}

// TxRepository reads master data and moves balances inside a pipeline transaction.
// Missing rows are reported with shared.NotFound.
type TxRepository interface {
	GetProducts(ctx context.Context, ids []int64) (map[int64]Product, error)
	GetCustomerForUpdate(ctx context.Context, id int64) (Customer, error)
	AdjustCustomerCredit(ctx context.Context, id int64, delta decimal.Decimal) error
	GetVendorForUpdate(ctx context.Context, id int64) (Vendor, error)
	AdjustVendorPayable(ctx context.Context, id int64, delta decimal.Decimal) error
}

// ProductIDs returns the distinct ids in input order.
func ProductIDs(ids ...int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
