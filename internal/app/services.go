package app

import (
	"log/slog"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting"
	"github.com/odyssey-erp/odyssey-pos/internal/accounting/posting"
	"github.com/odyssey-erp/odyssey-pos/internal/audit"
	"github.com/odyssey-erp/odyssey-pos/internal/catalog"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/loyalty"
	"github.com/odyssey-erp/odyssey-pos/internal/observability"
	"github.com/odyssey-erp/odyssey-pos/internal/payments"
	"github.com/odyssey-erp/odyssey-pos/internal/procurement"
	"github.com/odyssey-erp/odyssey-pos/internal/register"
	"github.com/odyssey-erp/odyssey-pos/internal/sales"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Ports groups the persistence adapters each service runs on. Production wires the pgx
// repositories; tests wire the in-memory store.
type Ports struct {
	Accounting  accounting.RepositoryPort
	Inventory   inventory.RepositoryPort
	Sales       sales.RepositoryPort
	Procurement procurement.RepositoryPort
	Payments    payments.RepositoryPort
	Register    register.RepositoryPort
	Loyalty     loyalty.RepositoryPort
	Catalog     catalog.RepositoryPort
	Audit       audit.RepositoryPort
}

// Deps carries the cross-cutting collaborators shared by every service.
type Deps struct {
	Logger  *slog.Logger
	Config  *Config
	Roles   posting.RoleMap
	Audit   shared.Auditor
	Cache   *accounting.ReportCache
	Metrics *observability.Metrics
}

// Services is the assembled application layer.
type Services struct {
	Accounting  *accounting.Service
	Reports     *accounting.ReportService
	Inventory   *inventory.Service
	Sales       *sales.Service
	Procurement *procurement.Service
	Payments    *payments.Service
	Register    *register.Service
	Loyalty     *loyalty.Service
	Catalog     *catalog.Service
	Audit       *audit.Service
}

// BuildServices wires the posting engine. One Journal, one stock Ledger and one rule set are
// shared so every pipeline books through the same code path.
func BuildServices(ports Ports, deps Deps) *Services {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = &Config{PointsPerHundred: 1}
	}

	var oversell inventory.OversellRecorder
	var observer shared.CommitObserver
	var alarms accounting.AlarmRecorder
	var stockAlarms inventory.AlarmRecorder
	if deps.Metrics != nil {
		oversell, observer, alarms, stockAlarms = deps.Metrics, deps.Metrics, deps.Metrics, deps.Metrics
	}
	var notifier shared.LedgerNotifier
	var changes accounting.ChangeNotifier
	if deps.Cache != nil {
		notifier, changes = deps.Cache, deps.Cache
	}

	hooks := shared.Hooks{Audit: deps.Audit, Notifier: notifier, Observer: observer, Logger: logger}
	journal := accounting.NewJournal(logger)
	ledger := inventory.NewLedger(logger, oversell)
	rules := posting.NewRules(deps.Roles)

	var auditPort accounting.AuditPort
	if deps.Audit != nil {
		auditPort = deps.Audit
	}
	acct := accounting.NewService(ports.Accounting, journal, auditPort, changes, alarms, logger)

	return &Services{
		Accounting:  acct,
		Reports:     accounting.NewReportService(acct, deps.Cache),
		Inventory:   inventory.NewService(ports.Inventory, ledger, journal, rules, hooks, stockAlarms, logger),
		Sales: sales.NewService(ports.Sales, ledger, journal, rules, sales.Config{
			PointsPerHundred:    cfg.PointsPerHundred,
			VoidReversesJournal: cfg.VoidReversesJournal,
		}, hooks, logger),
		Procurement: procurement.NewService(ports.Procurement, ledger, journal, rules, hooks, logger),
		Payments:    payments.NewService(ports.Payments, journal, rules, hooks, logger),
		Register:    register.NewService(ports.Register, hooks, logger),
		Loyalty:     loyalty.NewService(ports.Loyalty),
		Catalog:     catalog.NewService(ports.Catalog),
		Audit:       audit.NewService(ports.Audit),
	}
}

// Handlers builds the HTTP handlers for every service.
func (s *Services) Handlers(logger *slog.Logger) RouterParams {
	return RouterParams{
		Logger:             logger,
		SalesHandler:       sales.NewHandler(logger, s.Sales),
		ProcurementHandler: procurement.NewHandler(logger, s.Procurement),
		InventoryHandler:   inventory.NewHandler(logger, s.Inventory),
		PaymentsHandler:    payments.NewHandler(logger, s.Payments),
		RegisterHandler:    register.NewHandler(logger, s.Register),
		AccountingHandler:  accounting.NewHandler(logger, s.Accounting, s.Reports),
		LoyaltyHandler:     loyalty.NewHandler(logger, s.Loyalty),
		CatalogHandler:     catalog.NewHandler(logger, s.Catalog),
		AuditHandler:       audit.NewHandler(logger, s.Audit),
	}
}
