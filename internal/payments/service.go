package payments

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting"
	"github.com/odyssey-erp/odyssey-pos/internal/accounting/posting"
	"github.com/odyssey-erp/odyssey-pos/internal/catalog"
	"github.com/odyssey-erp/odyssey-pos/internal/sequence"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// TxScope exposes the repositories a payment touches inside one transaction.
type TxScope interface {
	Payments() TxRepository
	Journal() accounting.TxRepository
	Catalog() catalog.TxRepository
	Sequences() sequence.TxRepository
}

// RepositoryPort abstracts persistence for Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxScope) error) error
	GetPayment(ctx context.Context, id int64) (Payment, error)
}

// Service records settlements.
type Service struct {
	repo    RepositoryPort
	journal *accounting.Journal
	rules   posting.Rules
	hooks   shared.Hooks
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs Service.
func NewService(repo RepositoryPort, journal *accounting.Journal, rules posting.Rules, hooks shared.Hooks, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, journal: journal, rules: rules, hooks: hooks, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// RecordPayment settles part or all of a document's balance.
func (s *Service) RecordPayment(ctx context.Context, input RecordInput) (Payment, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return Payment{}, err
	}
	if (input.Direction == DirectionCustomerReceipt) != (input.RefType == RefSale) {
		return Payment{}, ErrDirectionMismatch
	}
	amount := shared.Round2(input.Amount)
	var payment Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, scope TxScope) error {
		doc, err := scope.Payments().GetDocumentForUpdate(ctx, input.RefType, input.RefID)
		if err != nil {
			return err
		}
		if doc.Status == "void" {
			return ErrVoidDocument
		}
		if amount.GreaterThan(doc.Balance) {
			return ErrOverpayment
		}
		number, err := sequence.Next(ctx, scope.Sequences(), sequence.PrefixPayment)
		if err != nil {
			return err
		}
		lines := s.rules.CustomerPayment(amount, input.Method)
		if input.Direction == DirectionVendorPayment {
			lines = s.rules.VendorPayment(amount, input.Method)
		}
		now := s.now().UTC()
		je, err := s.journal.CreateEntry(ctx, scope.Journal(), accounting.EntryInput{
			Date:      now,
			Type:      accounting.EntryTypePayment,
			RefType:   doc.RefType,
			RefID:     doc.ID,
			Memo:      fmt.Sprintf("Payment %s for %s", number, doc.Number),
			CreatedBy: input.ActorID,
			Post:      true,
			Lines:     lines,
		})
		if err != nil {
			return err
		}
		payment, err = scope.Payments().InsertPayment(ctx, Payment{
			Number:    number,
			Direction: input.Direction,
			Amount:    amount,
			Method:    input.Method,
			RefType:   doc.RefType,
			RefID:     doc.ID,
			JournalID: &je.ID,
			CreatedBy: input.ActorID,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		if err := settleParty(ctx, scope.Catalog(), input.Direction, doc.PartyID, amount); err != nil {
			return err
		}
		return scope.Payments().UpdateDocumentPayment(ctx, Apply(doc, amount))
	})
	if err != nil {
		return Payment{}, err
	}
	s.logger.InfoContext(ctx, "payment recorded",
		slog.String("number", payment.Number),
		slog.String("direction", string(payment.Direction)),
		slog.String("amount", payment.Amount.StringFixed(2)))
	s.hooks.LedgerChanged(ctx)
	s.hooks.Committed(ctx, "payment", shared.AuditLog{
		ActorID:  input.ActorID,
		Action:   "payment.record",
		Entity:   "payment",
		EntityID: payment.Number,
		Meta: map[string]any{
			"ref_type": payment.RefType,
			"ref_id":   payment.RefID,
			"amount":   payment.Amount.StringFixed(2),
			"method":   payment.Method,
		},
		At: payment.CreatedAt,
	})
	return payment, nil
}

// GetPayment loads one payment.
func (s *Service) GetPayment(ctx context.Context, id int64) (Payment, error) {
	return s.repo.GetPayment(ctx, id)
}

// Apply moves amount from balance to paid and refreshes the statuses. A credit sale becomes
// completed once nothing is outstanding.
func Apply(doc Document, amount decimal.Decimal) Document {
	doc.Paid = shared.Round2(doc.Paid.Add(amount))
	doc.Balance = shared.Round2(doc.Balance.Sub(amount))
	doc.PaymentStatus = PaymentStatus(doc.Paid, doc.Balance)
	if doc.RefType == RefSale && doc.Status == "credit" && !doc.Balance.IsPositive() {
		doc.Status = "completed"
	}
	return doc
}

func settleParty(ctx context.Context, repo catalog.TxRepository, direction Direction, partyID int64, amount decimal.Decimal) error {
	if partyID <= 0 {
		return nil
	}
	if direction == DirectionVendorPayment {
		if _, err := repo.GetVendorForUpdate(ctx, partyID); err != nil {
			return err
		}
		return repo.AdjustVendorPayable(ctx, partyID, amount.Neg())
	}
	if _, err := repo.GetCustomerForUpdate(ctx, partyID); err != nil {
		return err
	}
	return repo.AdjustCustomerCredit(ctx, partyID, amount.Neg())
}
