package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting"
	"github.com/odyssey-erp/odyssey-pos/internal/accounting/posting"
	"github.com/odyssey-erp/odyssey-pos/internal/catalog"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/payments"
	"github.com/odyssey-erp/odyssey-pos/internal/sequence"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	"github.com/odyssey-erp/odyssey-pos/internal/tax"
)

// TxScope exposes the repositories a receipt touches.
type TxScope interface {
	Procurement() TxRepository
	Inventory() inventory.TxRepository
	Journal() accounting.TxRepository
	Catalog() catalog.TxRepository
	Sequences() sequence.TxRepository
}

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxScope) error) error
	GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	GetReceipt(ctx context.Context, id int64) (GoodsReceipt, error)
}

// Service orchestrates procurement flows.
type Service struct {
	repo    RepositoryPort
	ledger  *inventory.Ledger
	journal *accounting.Journal
	rules   posting.Rules
	hooks   shared.Hooks
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs procurement service.
func NewService(repo RepositoryPort, ledger *inventory.Ledger, journal *accounting.Journal, rules posting.Rules, hooks shared.Hooks, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, journal: journal, rules: rules, hooks: hooks, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreatePurchaseOrder persists an order header and lines.
func (s *Service) CreatePurchaseOrder(ctx context.Context, input CreatePOInput) (PurchaseOrder, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return PurchaseOrder{}, err
	}
	var po PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, scope TxScope) error {
		if _, err := scope.Catalog().GetVendorForUpdate(ctx, input.VendorID); err != nil {
			return err
		}
		ids := make([]int64, 0, len(input.Lines))
		for _, l := range input.Lines {
			ids = append(ids, l.ProductID)
		}
		products, err := scope.Catalog().GetProducts(ctx, catalog.ProductIDs(ids...))
		if err != nil {
			return err
		}
		po = PurchaseOrder{
			VendorID:  input.VendorID,
			Status:    POStatusOpen,
			CreatedBy: input.ActorID,
			CreatedAt: s.now().UTC(),
		}
		for _, l := range input.Lines {
			if _, ok := products[l.ProductID]; !ok {
				return shared.NotFound("product", l.ProductID)
			}
			cost := shared.Round2(l.UnitCost)
			po.Lines = append(po.Lines, POLine{ProductID: l.ProductID, OrderedQty: l.Qty, UnitCost: cost})
			po.Total = po.Total.Add(cost.Mul(decimal.NewFromInt(l.Qty)))
		}
		po.Number, err = sequence.Next(ctx, scope.Sequences(), sequence.PrefixPO)
		if err != nil {
			return err
		}
		po, err = scope.Procurement().InsertPurchaseOrder(ctx, po)
		return err
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.logger.InfoContext(ctx, "purchase order created", slog.String("number", po.Number), slog.Int64("vendor_id", po.VendorID))
	s.hooks.Committed(ctx, "purchase_order", shared.AuditLog{
		ActorID:  input.ActorID,
		Action:   "procurement.po.create",
		Entity:   "purchase_order",
		EntityID: po.Number,
		Meta:     map[string]any{"vendor_id": po.VendorID, "total": po.Total.StringFixed(2)},
		At:       po.CreatedAt,
	})
	return po, nil
}

// ReceiveGoods books a delivery into stock, the ledger and the vendor's payable.
func (s *Service) ReceiveGoods(ctx context.Context, input ReceiveInput) (ReceiptResult, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return ReceiptResult{}, err
	}
	for idx, l := range input.Lines {
		if l.AcceptedQty > l.ReceivedQty {
			return ReceiptResult{}, lineError(idx, "accepted_qty", ErrAcceptedExceedsReceived)
		}
		if l.POLineID != nil && input.POID == nil {
			return ReceiptResult{}, lineError(idx, "po_line_id", ErrPOLineWithoutPO)
		}
	}
	var grn GoodsReceipt
	err := s.repo.WithTx(ctx, func(ctx context.Context, scope TxScope) error {
		if _, err := scope.Catalog().GetVendorForUpdate(ctx, input.VendorID); err != nil {
			return err
		}
		var (
			po      PurchaseOrder
			poLines map[int64]int
		)
		if input.POID != nil {
			var err error
			po, err = scope.Procurement().GetPurchaseOrderForUpdate(ctx, *input.POID)
			if err != nil {
				return err
			}
			if po.VendorID != input.VendorID {
				return ErrForeignPO
			}
			if po.Status == POStatusReceived {
				return ErrPOReceived
			}
			poLines = make(map[int64]int, len(po.Lines))
			for i, l := range po.Lines {
				poLines[l.ID] = i
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

		now := s.now().UTC()
		grn = GoodsReceipt{
			POID:       input.POID,
			VendorID:   input.VendorID,
			InterState: input.InterState,
			CreatedBy:  input.ActorID,
			CreatedAt:  now,
		}
		var taxes tax.Breakdown
		for idx, l := range input.Lines {
			if _, ok := products[l.ProductID]; !ok {
				return shared.NotFound("product", l.ProductID)
			}
			if l.POLineID != nil {
				i, ok := poLines[*l.POLineID]
				if !ok || po.Lines[i].ProductID != l.ProductID {
					return lineError(idx, "po_line_id", ErrForeignPOLine)
				}
				po.Lines[i].ReceivedQty += l.AcceptedQty
			}
			line := GRNLine{
				ProductID:   l.ProductID,
				POLineID:    l.POLineID,
				ReceivedQty: l.ReceivedQty,
				AcceptedQty: l.AcceptedQty,
				UnitCost:    shared.Round2(l.UnitCost),
				TaxPercent:  l.TaxPercent,
			}
			line.Base = shared.Round2(line.UnitCost.Mul(decimal.NewFromInt(l.AcceptedQty)))
			line.Tax = tax.LineTax(line.Base, l.TaxPercent)
			taxes = taxes.Add(tax.Split(line.Tax, input.InterState))
			grn.Subtotal = grn.Subtotal.Add(line.Base)
			grn.Lines = append(grn.Lines, line)
		}
		grn.CGST, grn.SGST, grn.IGST = taxes.CGST, taxes.SGST, taxes.IGST
		grn.Tax = taxes.Total()
		grn.Total = grn.Subtotal.Add(grn.Tax)
		grn.Balance = grn.Total
		grn.PaymentStatus = payments.PaymentStatus(grn.PaidAmount, grn.Balance)

		grn.Number, err = sequence.Next(ctx, scope.Sequences(), sequence.PrefixGRN)
		if err != nil {
			return err
		}
		grn, err = scope.Procurement().InsertReceipt(ctx, grn)
		if err != nil {
			return fmt.Errorf("procurement: insert receipt: %w", err)
		}

		ref := inventory.Ref{Type: "goods_receipt", ID: grn.ID, Number: grn.Number}
		for _, idx := range receiveOrder(grn.Lines) {
			line := grn.Lines[idx]
			if line.AcceptedQty == 0 {
				continue
			}
			if _, err := s.ledger.Receive(ctx, scope.Inventory(), inventory.Movement{
				ProductID: line.ProductID,
				Qty:       line.AcceptedQty,
				UnitCost:  line.UnitCost,
				Kind:      inventory.KindPurchase,
				Ref:       ref,
			}); err != nil {
				return err
			}
		}

		if input.POID != nil {
			po.Status = orderStatus(po.Lines)
			if err := scope.Procurement().UpdatePurchaseOrder(ctx, po); err != nil {
				return err
			}
		}

		if grn.Total.IsPositive() {
			je, err := s.journal.CreateEntry(ctx, scope.Journal(), accounting.EntryInput{
				Date:      now,
				Type:      accounting.EntryTypePurchase,
				RefType:   "purchase",
				RefID:     grn.ID,
				Memo:      "Goods receipt " + grn.Number,
				CreatedBy: input.ActorID,
				Post:      true,
				Lines:     s.rules.Purchase(posting.PurchaseAmounts{Inventory: grn.Subtotal, Tax: taxes}),
			})
			if err != nil {
				return err
			}
			grn.JournalID = &je.ID
			if err := scope.Procurement().LinkReceiptJournal(ctx, grn.ID, je.ID); err != nil {
				return err
			}
			if err := scope.Catalog().AdjustVendorPayable(ctx, grn.VendorID, grn.Total); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ReceiptResult{}, err
	}
	s.logger.InfoContext(ctx, "goods received",
		slog.String("number", grn.Number),
		slog.Int64("vendor_id", grn.VendorID),
		slog.String("total", grn.Total.StringFixed(2)))
	if grn.JournalID != nil {
		s.hooks.LedgerChanged(ctx)
	}
	s.hooks.Committed(ctx, "goods_receipt", shared.AuditLog{
		ActorID:  input.ActorID,
		Action:   "procurement.grn.receive",
		Entity:   "goods_receipt",
		EntityID: grn.Number,
		Meta:     map[string]any{"vendor_id": grn.VendorID, "po_id": grn.POID, "total": grn.Total.StringFixed(2)},
		At:       grn.CreatedAt,
	})
	return ReceiptResult{GRNID: grn.ID, GRNNumber: grn.Number, Total: grn.Total}, nil
}

// GetPurchaseOrder loads an order with its lines.
func (s *Service) GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.GetPurchaseOrder(ctx, id)
}

// GetReceipt loads a goods receipt with its lines.
func (s *Service) GetReceipt(ctx context.Context, id int64) (GoodsReceipt, error) {
	return s.repo.GetReceipt(ctx, id)
}

// orderStatus is evaluated after a delivery, so an order is never open again.
func orderStatus(lines []POLine) POStatus {
	var ordered, received int64
	for _, l := range lines {
		ordered += l.OrderedQty
		received += l.ReceivedQty
	}
	if received >= ordered {
		return POStatusReceived
	}
	return POStatusPartial
}

// receiveOrder sorts lines by product id so concurrent receipts lock positions consistently.
func receiveOrder(lines []GRNLine) []int {
	order := make([]int, len(lines))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return lines[order[a]].ProductID < lines[order[b]].ProductID
	})
	return order
}

func lineError(idx int, field string, err error) error {
	return &shared.Error{
		Kind:    shared.KindOf(err),
		Message: err.Error(),
		Fields:  map[string]string{fmt.Sprintf("lines[%d].%s", idx, field): err.Error()},
		Err:     err,
	}
}
