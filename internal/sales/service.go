package sales

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting"
	"github.com/odyssey-erp/odyssey-pos/internal/accounting/posting"
	"github.com/odyssey-erp/odyssey-pos/internal/catalog"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/loyalty"
	"github.com/odyssey-erp/odyssey-pos/internal/payments"
	"github.com/odyssey-erp/odyssey-pos/internal/register"
	"github.com/odyssey-erp/odyssey-pos/internal/sequence"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	"github.com/odyssey-erp/odyssey-pos/internal/tax"
)

// TxScope exposes every repository a sale touches inside one transaction.
type TxScope interface {
	Sales() TxRepository
	Inventory() inventory.TxRepository
	Journal() accounting.TxRepository
	Catalog() catalog.TxRepository
	Register() register.TxRepository
	Loyalty() loyalty.TxRepository
	Payments() payments.TxRepository
	Sequences() sequence.TxRepository
}

// RepositoryPort abstracts persistence for Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxScope) error) error
	GetSale(ctx context.Context, id int64) (Sale, error)
}

// Config holds checkout policy.
type Config struct {
	PointsPerHundred int64
	// VoidReversesJournal posts reversing entries on void and return journals on returns.
	VoidReversesJournal bool
}

// Service runs the sale pipelines.
type Service struct {
	repo    RepositoryPort
	ledger  *inventory.Ledger
	journal *accounting.Journal
	rules   posting.Rules
	cfg     Config
	hooks   shared.Hooks
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs Service.
func NewService(repo RepositoryPort, ledger *inventory.Ledger, journal *accounting.Journal, rules posting.Rules, cfg Config, hooks shared.Hooks, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, journal: journal, rules: rules, cfg: cfg, hooks: hooks, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateSale validates, prices and commits a checkout in one transaction.
func (s *Service) CreateSale(ctx context.Context, input CreateSaleInput) (SaleResult, error) {
	if input.CashierID <= 0 {
		return SaleResult{}, ErrCashierRequired
	}
	if err := shared.ValidateStruct(input); err != nil {
		return SaleResult{}, err
	}
	if input.IdempotencyKey != "" {
		if err := shared.ValidateIdempotencyKey(input.IdempotencyKey); err != nil {
			return SaleResult{}, err
		}
	}
	var (
		sale     Sale
		change   decimal.Decimal
		oversold []int64
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, scope TxScope) error {
		oversold = nil
		if input.IdempotencyKey != "" {
			if err := scope.Sales().ClaimIdempotencyKey(ctx, input.IdempotencyKey); err != nil {
				return err
			}
		}
		ids := make([]int64, 0, len(input.Lines))
		for _, l := range input.Lines {
			ids = append(ids, l.ProductID)
		}
		products, err := scope.Catalog().GetProducts(ctx, catalog.ProductIDs(ids...))
		if err != nil {
			return err
		}
		if input.CustomerID != nil {
			if _, err := scope.Catalog().GetCustomerForUpdate(ctx, *input.CustomerID); err != nil {
				return err
			}
		}
		sale, err = Price(input, products)
		if err != nil {
			return err
		}
		sale.PaidAmount, sale.Balance, change = Settle(sale.Total, input.PaidAmount)
		sale.PaymentStatus = payments.PaymentStatus(sale.PaidAmount, sale.Balance)
		sale.Status = StatusCompleted
		if sale.Balance.IsPositive() && sale.CustomerID != nil {
			sale.Status = StatusCredit
		}

		session, err := register.Resolve(ctx, scope.Register(), input.CashierID, input.RegisterSessionID)
		if err != nil {
			return err
		}
		if session != nil {
			sale.RegisterSessionID = &session.ID
		}

		now := s.now().UTC()
		sale.Date = accounting.DateOf(now)
		sale.CreatedAt = now
		sale.InvoiceNumber, err = sequence.Next(ctx, scope.Sequences(), sequence.PrefixInvoice)
		if err != nil {
			return err
		}
		sale, err = scope.Sales().InsertSale(ctx, sale)
		if err != nil {
			return fmt.Errorf("sales: insert sale: %w", err)
		}

		ref := inventory.Ref{Type: "sale", ID: sale.ID, Number: sale.InvoiceNumber}
		cogs := decimal.Zero
		for _, idx := range issueOrder(sale.Lines) {
			line := &sale.Lines[idx]
			entry, err := s.ledger.Issue(ctx, scope.Inventory(), inventory.Movement{
				ProductID:    line.ProductID,
				Qty:          line.Quantity,
				FallbackCost: products[line.ProductID].CostPrice,
				Kind:         inventory.KindSale,
				Ref:          ref,
			})
			if err != nil {
				return err
			}
			line.CostPrice = entry.UnitCost
			cogs = cogs.Add(entry.Value())
			if entry.Oversold {
				oversold = append(oversold, line.ProductID)
			}
		}

		if err := s.postSale(ctx, scope, &sale, cogs, now); err != nil {
			return err
		}
		if err := s.recordReceipt(ctx, scope, sale, now); err != nil {
			return err
		}
		if sale.CustomerID != nil {
			if sale.Balance.IsPositive() {
				if err := scope.Catalog().AdjustCustomerCredit(ctx, *sale.CustomerID, sale.Balance); err != nil {
					return err
				}
			}
			if points := loyalty.Points(sale.Total, s.cfg.PointsPerHundred); points > 0 {
				if _, err := loyalty.Award(ctx, scope.Loyalty(), *sale.CustomerID, sale.ID, points, "sale "+sale.InvoiceNumber, now); err != nil {
					return err
				}
			}
		}
		if session != nil {
			if err := register.RecordSale(ctx, scope.Register(), session, register.SaleTotals{
				Method: sale.PaymentMethod,
				Paid:   sale.PaidAmount,
				Credit: sale.Balance,
			}); err != nil {
				return err
			}
		}
		return scope.Sales().UpdateSale(ctx, sale)
	})
	if err != nil {
		return SaleResult{}, err
	}

	s.logger.InfoContext(ctx, "sale committed",
		slog.String("invoice", sale.InvoiceNumber),
		slog.String("total", sale.Total.StringFixed(2)),
		slog.String("status", string(sale.Status)))
	s.hooks.LedgerChanged(ctx)
	s.hooks.Committed(ctx, "sale", shared.AuditLog{
		ActorID:  input.CashierID,
		Action:   "sale.create",
		Entity:   "sale",
		EntityID: sale.InvoiceNumber,
		Meta: map[string]any{
			"total":    sale.Total.StringFixed(2),
			"paid":     sale.PaidAmount.StringFixed(2),
			"balance":  sale.Balance.StringFixed(2),
			"oversold": oversold,
		},
		At: sale.CreatedAt,
	})
	return SaleResult{
		SaleID:        sale.ID,
		InvoiceNumber: sale.InvoiceNumber,
		Total:         sale.Total,
		Paid:          sale.PaidAmount,
		Balance:       sale.Balance,
		Change:        change,
		Status:        sale.Status,
		PaymentStatus: sale.PaymentStatus,
		Oversold:      oversold,
	}, nil
}

func (s *Service) postSale(ctx context.Context, scope TxScope, sale *Sale, cogs decimal.Decimal, now time.Time) error {
	lines := s.rules.Sale(posting.SaleAmounts{
		Method:     sale.PaymentMethod,
		Paid:       sale.PaidAmount,
		Receivable: sale.Balance,
		Revenue:    sale.Revenue(),
		Tax:        sale.TaxBreakdown(),
	})
	if len(lines) > 0 {
		je, err := s.journal.CreateEntry(ctx, scope.Journal(), accounting.EntryInput{
			Date:      now,
			Type:      accounting.EntryTypeSale,
			RefType:   "sale",
			RefID:     sale.ID,
			Memo:      "Sale " + sale.InvoiceNumber,
			CreatedBy: sale.CashierID,
			Post:      true,
			Lines:     lines,
		})
		if err != nil {
			return err
		}
		sale.SaleJournalID = &je.ID
	}
	if cogs.IsZero() {
		return nil
	}
	je, err := s.journal.CreateEntry(ctx, scope.Journal(), accounting.EntryInput{
		Date:      now,
		Type:      accounting.EntryTypeSale,
		RefType:   "sale",
		RefID:     sale.ID,
		Memo:      "COGS " + sale.InvoiceNumber,
		CreatedBy: sale.CashierID,
		Post:      true,
		Lines:     s.rules.COGS(cogs),
	})
	if err != nil {
		return err
	}
	sale.COGSJournalID = &je.ID
	return nil
}

func (s *Service) recordReceipt(ctx context.Context, scope TxScope, sale Sale, now time.Time) error {
	if !sale.PaidAmount.IsPositive() {
		return nil
	}
	number, err := sequence.Next(ctx, scope.Sequences(), sequence.PrefixPayment)
	if err != nil {
		return err
	}
	_, err = scope.Payments().InsertPayment(ctx, payments.Payment{
		Number:    number,
		Direction: payments.DirectionCustomerReceipt,
		Amount:    sale.PaidAmount,
		Method:    sale.PaymentMethod,
		RefType:   payments.RefSale,
		RefID:     sale.ID,
		JournalID: sale.SaleJournalID,
		CreatedBy: sale.CashierID,
		CreatedAt: now,
	})
	return err
}

// VoidSale cancels a sale and puts its goods back on the shelf.
func (s *Service) VoidSale(ctx context.Context, saleID int64, input VoidInput) (Sale, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return Sale{}, err
	}
	var sale Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, scope TxScope) error {
		var err error
		sale, err = scope.Sales().GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		switch sale.Status {
		case StatusVoid:
			return ErrAlreadyVoid
		case StatusReturned:
			return ErrReturnedSale
		}
		ref := inventory.Ref{Type: "sale_void", ID: sale.ID, Number: sale.InvoiceNumber}
		for _, idx := range issueOrder(sale.Lines) {
			line := sale.Lines[idx]
			qty := line.Outstanding()
			if qty <= 0 {
				continue
			}
			if _, err := s.ledger.Restore(ctx, scope.Inventory(), inventory.Movement{
				ProductID: line.ProductID,
				Qty:       qty,
				UnitCost:  line.CostPrice,
				Kind:      inventory.KindVoid,
				Ref:       ref,
				Note:      strings.TrimSpace(input.Reason),
			}); err != nil {
				return err
			}
		}
		if s.cfg.VoidReversesJournal {
			if err := s.unwind(ctx, scope, sale, input.ActorID); err != nil {
				return err
			}
		}
		sale.Status = StatusVoid
		return scope.Sales().UpdateSale(ctx, sale)
	})
	if err != nil {
		return Sale{}, err
	}
	s.logger.InfoContext(ctx, "sale voided", slog.String("invoice", sale.InvoiceNumber), slog.Bool("journal_reversed", s.cfg.VoidReversesJournal))
	if s.cfg.VoidReversesJournal {
		s.hooks.LedgerChanged(ctx)
	}
	s.hooks.Committed(ctx, "void", shared.AuditLog{
		ActorID:  input.ActorID,
		Action:   "sale.void",
		Entity:   "sale",
		EntityID: sale.InvoiceNumber,
		Meta:     map[string]any{"reason": input.Reason},
		At:       s.now(),
	})
	return sale, nil
}

// unwind reverses the money side of a voided sale: both journals, the customer's credit and
// any points the sale still holds.
func (s *Service) unwind(ctx context.Context, scope TxScope, sale Sale, actorID int64) error {
	if actorID <= 0 {
		actorID = sale.CashierID
	}
	// Reversing the sale entry credits receivables by the whole original balance, so any
	// receipt posted since checkout would be left hanging on the AR account.
	settled, err := scope.Payments().ListPayments(ctx, payments.RefSale, sale.ID)
	if err != nil {
		return err
	}
	for _, p := range settled {
		if p.JournalID == nil || sale.SaleJournalID == nil || *p.JournalID != *sale.SaleJournalID {
			return ErrSettledAfterCheckout
		}
	}
	for _, id := range []*int64{sale.SaleJournalID, sale.COGSJournalID} {
		if id == nil {
			continue
		}
		if _, err := s.journal.Reverse(ctx, scope.Journal(), *id, "Void "+sale.InvoiceNumber, actorID); err != nil {
			return err
		}
	}
	if sale.CustomerID == nil {
		return nil
	}
	if sale.Balance.IsPositive() {
		if err := scope.Catalog().AdjustCustomerCredit(ctx, *sale.CustomerID, sale.Balance.Neg()); err != nil {
			return err
		}
	}
	_, err = loyalty.Revoke(ctx, scope.Loyalty(), *sale.CustomerID, sale.ID, "void "+sale.InvoiceNumber, s.now().UTC())
	return err
}

// ReturnSale takes back part of a sale and computes the refund.
func (s *Service) ReturnSale(ctx context.Context, input ReturnInput) (Return, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return Return{}, err
	}
	var ret Return
	err := s.repo.WithTx(ctx, func(ctx context.Context, scope TxScope) error {
		sale, err := scope.Sales().GetSaleForUpdate(ctx, input.SaleID)
		if err != nil {
			return err
		}
		if sale.Status == StatusVoid {
			return ErrNotReturnable
		}
		byID := make(map[int64]int, len(sale.Lines))
		for i, l := range sale.Lines {
			byID[l.ID] = i
		}
		requested := make(map[int64]int64, len(input.Items))
		for _, item := range input.Items {
			idx, ok := byID[item.SaleLineID]
			if !ok {
				return ErrUnknownSaleLine
			}
			requested[item.SaleLineID] += item.Quantity
			if requested[item.SaleLineID] > sale.Lines[idx].Outstanding() {
				return ErrReturnExceedsSold
			}
		}

		now := s.now().UTC()
		ret = Return{
			SaleID:       sale.ID,
			RefundMethod: input.RefundMethod,
			Reason:       strings.TrimSpace(input.Reason),
			CreatedBy:    input.ActorID,
			CreatedAt:    now,
		}
		ret.Number, err = sequence.Next(ctx, scope.Sequences(), sequence.PrefixReturn)
		if err != nil {
			return err
		}
		var taxes tax.Breakdown
		restockedCost := decimal.Zero
		for _, item := range input.Items {
			line := &sale.Lines[byID[item.SaleLineID]]
			base, lineTaxes := Refund(sale, *line, item.Quantity)
			taxes = taxes.Add(lineTaxes)
			ret.Subtotal = ret.Subtotal.Add(base)
			ret.Items = append(ret.Items, ReturnItem{
				SaleLineID: line.ID,
				ProductID:  line.ProductID,
				Quantity:   item.Quantity,
				Condition:  item.Condition,
				Restocked:  item.Condition == ConditionGood,
				Amount:     base.Add(lineTaxes.Total()),
			})
			line.ReturnedQty += item.Quantity
		}
		ret.CGST, ret.SGST, ret.IGST = taxes.CGST, taxes.SGST, taxes.IGST
		ret.Tax = taxes.Total()
		ret.Total = ret.Subtotal.Add(ret.Tax)

		ref := inventory.Ref{Type: "sale_return", ID: sale.ID, Number: ret.Number}
		for _, idx := range returnOrder(ret.Items) {
			item := ret.Items[idx]
			if !item.Restocked {
				continue
			}
			line := sale.Lines[byID[item.SaleLineID]]
			entry, err := s.ledger.Restore(ctx, scope.Inventory(), inventory.Movement{
				ProductID: item.ProductID,
				Qty:       item.Quantity,
				UnitCost:  line.CostPrice,
				Kind:      inventory.KindReturn,
				Ref:       ref,
				Note:      ret.Reason,
			})
			if err != nil {
				return err
			}
			restockedCost = restockedCost.Add(entry.Value())
		}

		if s.cfg.VoidReversesJournal {
			if err := s.postReturn(ctx, scope, sale, &ret, taxes, restockedCost); err != nil {
				return err
			}
		}
		ret, err = scope.Sales().InsertReturn(ctx, ret)
		if err != nil {
			return fmt.Errorf("sales: insert return: %w", err)
		}
		sale.Status = StatusReturned
		return scope.Sales().UpdateSale(ctx, sale)
	})
	if err != nil {
		return Return{}, err
	}
	s.logger.InfoContext(ctx, "sale return committed", slog.String("number", ret.Number), slog.String("total", ret.Total.StringFixed(2)))
	if ret.JournalID != nil {
		s.hooks.LedgerChanged(ctx)
	}
	s.hooks.Committed(ctx, "return", shared.AuditLog{
		ActorID:  input.ActorID,
		Action:   "sale.return",
		Entity:   "sale_return",
		EntityID: ret.Number,
		Meta: map[string]any{
			"sale_id": ret.SaleID,
			"total":   ret.Total.StringFixed(2),
		},
		At: ret.CreatedAt,
	})
	return ret, nil
}

func (s *Service) postReturn(ctx context.Context, scope TxScope, sale Sale, ret *Return, taxes tax.Breakdown, restockedCost decimal.Decimal) error {
	lines := s.rules.SaleReturn(posting.ReturnAmounts{Method: ret.RefundMethod, Revenue: ret.Subtotal, Tax: taxes})
	if len(lines) > 0 {
		je, err := s.journal.CreateEntry(ctx, scope.Journal(), accounting.EntryInput{
			Date:      ret.CreatedAt,
			Type:      accounting.EntryTypeReturn,
			RefType:   "sale",
			RefID:     sale.ID,
			Memo:      fmt.Sprintf("Return %s against %s", ret.Number, sale.InvoiceNumber),
			CreatedBy: ret.CreatedBy,
			Post:      true,
			Lines:     lines,
		})
		if err != nil {
			return err
		}
		ret.JournalID = &je.ID
	}
	if restockedCost.IsZero() {
		return nil
	}
	_, err := s.journal.CreateEntry(ctx, scope.Journal(), accounting.EntryInput{
		Date:      ret.CreatedAt,
		Type:      accounting.EntryTypeReturn,
		RefType:   "sale",
		RefID:     sale.ID,
		Memo:      "Restock " + ret.Number,
		CreatedBy: ret.CreatedBy,
		Post:      true,
		Lines:     s.rules.InventoryWriteBack(restockedCost),
	})
	return err
}

// GetSale loads a sale with its lines.
func (s *Service) GetSale(ctx context.Context, id int64) (Sale, error) {
	return s.repo.GetSale(ctx, id)
}
