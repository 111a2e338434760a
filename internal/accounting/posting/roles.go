// Package posting turns computed business-event amounts into balanced journal lines.
package posting

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Role names a business function an account plays in posting.
type Role string

const (
	RoleCash               Role = "cash"
	RoleBank               Role = "bank"
	RoleAccountsReceivable Role = "accounts_receivable"
	RoleInventory          Role = "inventory"
	RoleInputCGST          Role = "input_cgst"
	RoleInputSGST          Role = "input_sgst"
	RoleInputIGST          Role = "input_igst"
	RoleAccountsPayable    Role = "accounts_payable"
	RoleOutputCGST         Role = "output_cgst"
	RoleOutputSGST         Role = "output_sgst"
	RoleOutputIGST         Role = "output_igst"
	RoleSalesRevenue       Role = "sales_revenue"
	RoleSalesReturns       Role = "sales_returns"
	RoleCOGS               Role = "cogs"
	RoleInventoryGain      Role = "inventory_gain"
	RoleInventoryLoss      Role = "inventory_loss"
)

// RequiredRoles must all resolve before the engine accepts traffic.
var RequiredRoles = []Role{
	RoleCash, RoleBank, RoleAccountsReceivable, RoleInventory,
	RoleInputCGST, RoleInputSGST, RoleInputIGST, RoleAccountsPayable,
	RoleOutputCGST, RoleOutputSGST, RoleOutputIGST, RoleSalesRevenue,
	RoleSalesReturns, RoleCOGS, RoleInventoryGain, RoleInventoryLoss,
}

// RoleMap is the role → account id table resolved once at startup.
type RoleMap struct {
	accounts map[Role]int64
}

// NewRoleMap validates that every required role is mapped.
func NewRoleMap(accounts map[Role]int64) (RoleMap, error) {
	var missing []string
	for _, role := range RequiredRoles {
		if accounts[role] <= 0 {
			missing = append(missing, string(role))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return RoleMap{}, fmt.Errorf("posting: unmapped roles: %s", strings.Join(missing, ", "))
	}
	copied := make(map[Role]int64, len(accounts))
	for k, v := range accounts {
		copied[k] = v
	}
	return RoleMap{accounts: copied}, nil
}

// Account returns the account id for role. Roles are validated in NewRoleMap.
func (m RoleMap) Account(role Role) int64 {
	return m.accounts[role]
}

// LoadRoleMap reads account_roles joined to active leaf accounts.
func LoadRoleMap(ctx context.Context, pool *pgxpool.Pool) (RoleMap, error) {
	rows, err := pool.Query(ctx, `SELECT r.role, r.account_id FROM account_roles r
JOIN accounts a ON a.id = r.account_id
WHERE a.is_active AND NOT a.is_group`)
	if err != nil {
		return RoleMap{}, fmt.Errorf("posting: load roles: %w", err)
	}
	accounts := make(map[Role]int64)
	var (
		role string
		id   int64
	)
	_, err = pgx.ForEachRow(rows, []any{&role, &id}, func() error {
		accounts[Role(role)] = id
		return nil
	})
	if err != nil {
		return RoleMap{}, fmt.Errorf("posting: load roles: %w", err)
	}
	return NewRoleMap(accounts)
}
