package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting"
	"github.com/odyssey-erp/odyssey-pos/internal/accounting/posting"
	"github.com/odyssey-erp/odyssey-pos/internal/catalog"
	"github.com/odyssey-erp/odyssey-pos/internal/sequence"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// TxScope exposes the repositories an adjustment touches inside one transaction.
type TxScope interface {
	Inventory() TxRepository
	Journal() accounting.TxRepository
	Catalog() catalog.TxRepository
	Sequences() sequence.TxRepository
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxScope) error) error
	GetPosition(ctx context.Context, productID int64) (Position, error)
	ListTransactions(ctx context.Context, productID int64, limit int) ([]Transaction, error)
	FoldMismatches(ctx context.Context) ([]FoldMismatch, error)
}

// AlarmRecorder counts integrity alarms.
type AlarmRecorder interface {
	IntegrityAlarm(check string)
}

// Service coordinates stock adjustments and stock reads.
type Service struct {
	repo    RepositoryPort
	ledger  *Ledger
	journal *accounting.Journal
	rules   posting.Rules
	hooks   shared.Hooks
	alarms  AlarmRecorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, ledger *Ledger, journal *accounting.Journal, rules posting.Rules, hooks shared.Hooks, alarms AlarmRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, journal: journal, rules: rules, hooks: hooks, alarms: alarms, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// AdjustStock sets a product to its counted quantity and books the value difference.
func (s *Service) AdjustStock(ctx context.Context, input AdjustInput) (Adjustment, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return Adjustment{}, err
	}
	input.Reason = strings.TrimSpace(input.Reason)
	var adj Adjustment
	err := s.repo.WithTx(ctx, func(ctx context.Context, scope TxScope) error {
		if _, err := scope.Catalog().GetProducts(ctx, []int64{input.ProductID}); err != nil {
			return err
		}
		number, err := sequence.Next(ctx, scope.Sequences(), sequence.PrefixAdjustment)
		if err != nil {
			return err
		}
		entry, err := s.ledger.AdjustTo(ctx, scope.Inventory(), input.ProductID, input.NewQty, input.Reason,
			Ref{Type: "stock_adjustment", Number: number})
		if err != nil {
			return err
		}
		now := s.now().UTC()
		adj = Adjustment{
			Number:      number,
			ProductID:   input.ProductID,
			PreviousQty: input.NewQty - entry.QtyDelta,
			NewQty:      input.NewQty,
			Delta:       entry.QtyDelta,
			Value:       entry.Value(),
			Reason:      input.Reason,
			CreatedBy:   input.ActorID,
			CreatedAt:   now,
		}
		if !adj.Value.IsZero() {
			lines := s.rules.StockGain(adj.Value)
			if adj.Delta < 0 {
				lines = s.rules.StockLoss(adj.Value)
			}
			je, err := s.journal.CreateEntry(ctx, scope.Journal(), accounting.EntryInput{
				Date:      now,
				Type:      accounting.EntryTypeAdjustment,
				RefType:   "stock_adjustment",
				Memo:      fmt.Sprintf("Stock adjustment %s: %s", number, input.Reason),
				CreatedBy: input.ActorID,
				Post:      true,
				Lines:     lines,
			})
			if err != nil {
				return err
			}
			adj.JournalID = &je.ID
		}
		adj, err = scope.Inventory().InsertAdjustment(ctx, adj)
		return err
	})
	if err != nil {
		return Adjustment{}, err
	}
	s.logger.InfoContext(ctx, "stock adjusted",
		slog.String("number", adj.Number),
		slog.Int64("product_id", adj.ProductID),
		slog.Int64("delta", adj.Delta))
	if adj.JournalID != nil {
		s.hooks.LedgerChanged(ctx)
	}
	s.hooks.Committed(ctx, "adjustment", shared.AuditLog{
		ActorID:  input.ActorID,
		Action:   "inventory.adjust",
		Entity:   "stock_adjustment",
		EntityID: adj.Number,
		Meta: map[string]any{
			"product_id":   adj.ProductID,
			"previous_qty": adj.PreviousQty,
			"new_qty":      adj.NewQty,
			"value":        adj.Value.StringFixed(2),
		},
		At: adj.CreatedAt,
	})
	return adj, nil
}

// Position returns the current stock level of a product.
func (s *Service) Position(ctx context.Context, productID int64) (Position, error) {
	if productID <= 0 {
		return Position{}, ErrProductRequired
	}
	return s.repo.GetPosition(ctx, productID)
}

// Transactions returns the stock log of a product.
func (s *Service) Transactions(ctx context.Context, productID int64, limit int) ([]Transaction, error) {
	if productID <= 0 {
		return nil, ErrProductRequired
	}
	return s.repo.ListTransactions(ctx, productID, limit)
}

// VerifyFold checks that every position equals the sum of its logged deltas.
func (s *Service) VerifyFold(ctx context.Context) ([]FoldMismatch, error) {
	mismatches, err := s.repo.FoldMismatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("inventory: fold check: %w", err)
	}
	if len(mismatches) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(mismatches))
	for _, m := range mismatches {
		ids = append(ids, fmt.Sprintf("%d (position %d, log %d)", m.ProductID, m.PositionQty, m.LoggedQty))
	}
	alarm := shared.IntegrityAlarm("inventory: positions out of sync with log: %s", strings.Join(ids, ", "))
	s.logger.ErrorContext(ctx, "integrity alarm", slog.String("check", "inventory_fold"), slog.Any("error", alarm))
	if s.alarms != nil {
		s.alarms.IntegrityAlarm("inventory_fold")
	}
	return mismatches, alarm
}
