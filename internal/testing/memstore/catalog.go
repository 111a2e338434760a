package memstore

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting"
	"github.com/odyssey-erp/odyssey-pos/internal/accounting/posting"
	"github.com/odyssey-erp/odyssey-pos/internal/catalog"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

type catalogRepo struct{ t *Tx }

func (r catalogRepo) GetProducts(_ context.Context, ids []int64) (map[int64]catalog.Product, error) {
	out := make(map[int64]catalog.Product, len(ids))
	for _, id := range ids {
		p, ok := r.t.st.products[id]
		if !ok {
			return nil, shared.NotFound("product", id)
		}
		out[id] = p
	}
	return out, nil
}

func (r catalogRepo) GetCustomerForUpdate(_ context.Context, id int64) (catalog.Customer, error) {
	c, ok := r.t.st.customers[id]
	if !ok {
		return catalog.Customer{}, shared.NotFound("customer", id)
	}
	return c, nil
}

func (r catalogRepo) AdjustCustomerCredit(_ context.Context, id int64, delta decimal.Decimal) error {
	if err := r.t.fault("catalog.AdjustCustomerCredit"); err != nil {
		return err
	}
	c, ok := r.t.st.customers[id]
	if !ok {
		return shared.NotFound("customer", id)
	}
	c.CreditBalance = c.CreditBalance.Add(delta)
	r.t.st.customers[id] = c
	return nil
}

func (r catalogRepo) GetVendorForUpdate(_ context.Context, id int64) (catalog.Vendor, error) {
	v, ok := r.t.st.vendors[id]
	if !ok {
		return catalog.Vendor{}, shared.NotFound("vendor", id)
	}
	return v, nil
}

func (r catalogRepo) AdjustVendorPayable(_ context.Context, id int64, delta decimal.Decimal) error {
	if err := r.t.fault("catalog.AdjustVendorPayable"); err != nil {
		return err
	}
	v, ok := r.t.st.vendors[id]
	if !ok {
		return shared.NotFound("vendor", id)
	}
	v.PayableBalance = v.PayableBalance.Add(delta)
	r.t.st.vendors[id] = v
	return nil
}

// GetCustomer loads a customer outside a transaction.
func (s *Store) GetCustomer(_ context.Context, id int64) (catalog.Customer, error) {
	st, unlock := s.read()
	defer unlock()
	c, ok := st.customers[id]
	if !ok {
		return catalog.Customer{}, shared.NotFound("customer", id)
	}
	return c, nil
}

// GetVendor loads a vendor outside a transaction.
func (s *Store) GetVendor(_ context.Context, id int64) (catalog.Vendor, error) {
	st, unlock := s.read()
	defer unlock()
	v, ok := st.vendors[id]
	if !ok {
		return catalog.Vendor{}, shared.NotFound("vendor", id)
	}
	return v, nil
}

// GetProduct loads a product outside a transaction.
func (s *Store) GetProduct(_ context.Context, id int64) (catalog.Product, error) {
	st, unlock := s.read()
	defer unlock()
	p, ok := st.products[id]
	if !ok {
		return catalog.Product{}, shared.NotFound("product", id)
	}
	return p, nil
}

// ListProducts filters and pages products by name, mirroring the SQL repository.
func (s *Store) ListProducts(_ context.Context, filter catalog.ProductFilter) ([]catalog.Product, int, error) {
	st, unlock := s.read()
	defer unlock()
	needle := strings.ToLower(filter.Search)
	var matched []catalog.Product
	for _, p := range st.products {
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) && !strings.Contains(strings.ToLower(p.SKU), needle) {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Name != matched[j].Name {
			return matched[i].Name < matched[j].Name
		}
		return matched[i].ID < matched[j].ID
	})
	start := shared.Pagination{Page: filter.Page, PerPage: filter.PerPage}.Offset()
	if start >= len(matched) {
		return nil, len(matched), nil
	}
	end := start + filter.PerPage
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], len(matched), nil
}

// Vendor returns the stored vendor row.
func (s *Store) Vendor(id int64) catalog.Vendor {
	st, unlock := s.read()
	defer unlock()
	return st.vendors[id]
}

// AddProduct stores p, assigning an id when it has none.
func (s *Store) AddProduct(p catalog.Product) catalog.Product {
	st, unlock := s.read()
	defer unlock()
	if p.ID == 0 {
		p.ID = st.id()
	}
	st.products[p.ID] = p
	return p
}

// AddCustomer stores c, assigning an id when it has none.
func (s *Store) AddCustomer(c catalog.Customer) catalog.Customer {
	st, unlock := s.read()
	defer unlock()
	if c.ID == 0 {
		c.ID = st.id()
	}
	st.customers[c.ID] = c
	return c
}

// AddVendor stores v, assigning an id when it has none.
func (s *Store) AddVendor(v catalog.Vendor) catalog.Vendor {
	st, unlock := s.read()
	defer unlock()
	if v.ID == 0 {
		v.ID = st.id()
	}
	st.vendors[v.ID] = v
	return v
}

// AddAccount stores a, assigning an id when it has none.
func (s *Store) AddAccount(a accounting.Account) accounting.Account {
	st, unlock := s.read()
	defer unlock()
	if a.ID == 0 {
		a.ID = st.id()
	}
	st.accounts[a.ID] = a
	return a
}

type chartRow struct {
	role posting.Role
	code string
	name string
	typ  accounting.AccountType
}

var chart = []chartRow{
	{posting.RoleCash, "1000", "Cash", accounting.AccountTypeAsset},
	{posting.RoleBank, "1010", "Bank", accounting.AccountTypeAsset},
	{posting.RoleAccountsReceivable, "1100", "Accounts Receivable", accounting.AccountTypeAsset},
	{posting.RoleInventory, "1200", "Inventory", accounting.AccountTypeAsset},
	{posting.RoleInputCGST, "1300", "Input CGST", accounting.AccountTypeAsset},
	{posting.RoleInputSGST, "1310", "Input SGST", accounting.AccountTypeAsset},
	{posting.RoleInputIGST, "1320", "Input IGST", accounting.AccountTypeAsset},
	{posting.RoleAccountsPayable, "2000", "Accounts Payable", accounting.AccountTypeLiability},
	{posting.RoleOutputCGST, "2100", "Output CGST", accounting.AccountTypeLiability},
	{posting.RoleOutputSGST, "2110", "Output SGST", accounting.AccountTypeLiability},
	{posting.RoleOutputIGST, "2120", "Output IGST", accounting.AccountTypeLiability},
	{posting.RoleSalesRevenue, "4000", "Sales Revenue", accounting.AccountTypeRevenue},
	{posting.RoleSalesReturns, "4100", "Sales Returns", accounting.AccountTypeRevenue},
	{posting.RoleInventoryGain, "4200", "Inventory Gain", accounting.AccountTypeRevenue},
	{posting.RoleCOGS, "5000", "Cost of Goods Sold", accounting.AccountTypeExpense},
	{posting.RoleInventoryLoss, "5100", "Inventory Loss", accounting.AccountTypeExpense},
}

// SeedChart creates a small chart of accounts with every posting role mapped, an equity
// account (code 3000) and an asset group (code 1).
func (s *Store) SeedChart() posting.RoleMap {
	group := s.AddAccount(accounting.Account{Code: "1", Name: "Assets", Type: accounting.AccountTypeAsset, IsGroup: true, IsActive: true})
	s.AddAccount(accounting.Account{Code: "3000", Name: "Owner's Equity", Type: accounting.AccountTypeEquity, IsActive: true})
	roles := make(map[posting.Role]int64, len(chart))
	for _, row := range chart {
		acc := accounting.Account{Code: row.code, Name: row.name, Type: row.typ, IsActive: true}
		if row.typ == accounting.AccountTypeAsset {
			acc.ParentID = &group.ID
		}
		roles[row.role] = s.AddAccount(acc).ID
	}
	m, err := posting.NewRoleMap(roles)
	if err != nil {
		panic(err)
	}
	return m
}

// AccountByCode finds an account by its code.
func (s *Store) AccountByCode(code string) (accounting.Account, bool) {
	st, unlock := s.read()
	defer unlock()
	for _, a := range st.accounts {
		if a.Code == code {
			return a, true
		}
	}
	return accounting.Account{}, false
}
