package posting

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	"github.com/odyssey-erp/odyssey-pos/internal/tax"
)

// Settlement methods that land in the cash drawer. Everything else settles through bank.
const MethodCash = "cash"

// Rules maps event amounts to journal lines using a resolved RoleMap.
type Rules struct {
	roles RoleMap
}

// NewRules constructs Rules.
func NewRules(roles RoleMap) Rules {
	return Rules{roles: roles}
}

// SettlementRole picks Cash for cash tenders and Bank for card, UPI and transfers.
func SettlementRole(method string) Role {
	if method == MethodCash {
		return RoleCash
	}
	return RoleBank
}

// SaleAmounts are the totals of one checkout.
type SaleAmounts struct {
	Method     string
	Paid       decimal.Decimal
	Receivable decimal.Decimal
	Revenue    decimal.Decimal
	Tax        tax.Breakdown
}

// Sale debits the settlement account for the paid part and receivables for the rest, and
// credits revenue and output tax.
func (r Rules) Sale(a SaleAmounts) []accounting.LineInput {
	var b builder
	b.debit(r.roles.Account(SettlementRole(a.Method)), a.Paid)
	b.debit(r.roles.Account(RoleAccountsReceivable), a.Receivable)
	b.credit(r.roles.Account(RoleSalesRevenue), a.Revenue)
	b.credit(r.roles.Account(RoleOutputCGST), a.Tax.CGST)
	b.credit(r.roles.Account(RoleOutputSGST), a.Tax.SGST)
	b.credit(r.roles.Account(RoleOutputIGST), a.Tax.IGST)
	return b.lines
}

// COGS moves the issued stock value from inventory to cost of goods sold.
func (r Rules) COGS(cost decimal.Decimal) []accounting.LineInput {
	var b builder
	b.debit(r.roles.Account(RoleCOGS), cost)
	b.credit(r.roles.Account(RoleInventory), cost)
	return b.lines
}

// PurchaseAmounts are the totals of one goods receipt.
type PurchaseAmounts struct {
	Inventory decimal.Decimal
	Tax       tax.Breakdown
}

// Purchase debits inventory and input tax against accounts payable.
func (r Rules) Purchase(a PurchaseAmounts) []accounting.LineInput {
	var b builder
	b.debit(r.roles.Account(RoleInventory), a.Inventory)
	b.debit(r.roles.Account(RoleInputCGST), a.Tax.CGST)
	b.debit(r.roles.Account(RoleInputSGST), a.Tax.SGST)
	b.debit(r.roles.Account(RoleInputIGST), a.Tax.IGST)
	b.credit(r.roles.Account(RoleAccountsPayable), a.Inventory.Add(a.Tax.Total()))
	return b.lines
}

// VendorPayment settles payables.
func (r Rules) VendorPayment(amount decimal.Decimal, method string) []accounting.LineInput {
	var b builder
	b.debit(r.roles.Account(RoleAccountsPayable), amount)
	b.credit(r.roles.Account(SettlementRole(method)), amount)
	return b.lines
}

// CustomerPayment collects receivables.
func (r Rules) CustomerPayment(amount decimal.Decimal, method string) []accounting.LineInput {
	var b builder
	b.debit(r.roles.Account(SettlementRole(method)), amount)
	b.credit(r.roles.Account(RoleAccountsReceivable), amount)
	return b.lines
}

// ReturnAmounts are the refund totals of one sale return.
type ReturnAmounts struct {
	Method  string
	Revenue decimal.Decimal
	Tax     tax.Breakdown
}

// SaleReturn reverses revenue and output tax into sales returns against the refund account.
func (r Rules) SaleReturn(a ReturnAmounts) []accounting.LineInput {
	var b builder
	b.debit(r.roles.Account(RoleSalesReturns), a.Revenue)
	b.debit(r.roles.Account(RoleOutputCGST), a.Tax.CGST)
	b.debit(r.roles.Account(RoleOutputSGST), a.Tax.SGST)
	b.debit(r.roles.Account(RoleOutputIGST), a.Tax.IGST)
	b.credit(r.roles.Account(SettlementRole(a.Method)), a.Revenue.Add(a.Tax.Total()))
	return b.lines
}

// InventoryWriteBack returns restocked cost from COGS to inventory.
func (r Rules) InventoryWriteBack(cost decimal.Decimal) []accounting.LineInput {
	var b builder
	b.debit(r.roles.Account(RoleInventory), cost)
	b.credit(r.roles.Account(RoleCOGS), cost)
	return b.lines
}

// StockGain books a positive count difference.
func (r Rules) StockGain(value decimal.Decimal) []accounting.LineInput {
	var b builder
	b.debit(r.roles.Account(RoleInventory), value)
	b.credit(r.roles.Account(RoleInventoryGain), value)
	return b.lines
}

// StockLoss books shrinkage.
func (r Rules) StockLoss(value decimal.Decimal) []accounting.LineInput {
	var b builder
	b.debit(r.roles.Account(RoleInventoryLoss), value)
	b.credit(r.roles.Account(RoleInventory), value)
	return b.lines
}

// builder drops zero-amount lines.
type builder struct {
	lines []accounting.LineInput
}

func (b *builder) debit(accountID int64, amount decimal.Decimal) {
	amount = shared.Round2(amount)
	if amount.IsZero() {
		return
	}
	b.lines = append(b.lines, accounting.LineInput{AccountID: accountID, Debit: amount, Credit: decimal.Zero})
}

func (b *builder) credit(accountID int64, amount decimal.Decimal) {
	amount = shared.Round2(amount)
	if amount.IsZero() {
		return
	}
	b.lines = append(b.lines, accounting.LineInput{AccountID: accountID, Debit: decimal.Zero, Credit: amount})
}
