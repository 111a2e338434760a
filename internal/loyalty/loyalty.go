// Package loyalty keeps the append-only points log of customers.
package loyalty

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/catalog"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Transaction is one signed points movement.
type Transaction struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	Points     int64     `json:"points"`
	SaleID     *int64    `json:"sale_id,omitempty"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// Balance is the fold of a customer's log.
type Balance struct {
	CustomerID int64         `json:"customer_id"`
	Name       string        `json:"name"`
	Points     int64         `json:"points"`
	History    []Transaction `json:"history"`
}

// TxRepository appends to loyalty_transactions inside a pipeline transaction.
type TxRepository interface {
	InsertLoyalty(ctx context.Context, entry Transaction) (Transaction, error)
	// SalePoints sums the points currently attributed to a sale.
	SalePoints(ctx context.Context, saleID int64) (int64, error)
}

// ErrInvalidPoints rejects zero awards.
var ErrInvalidPoints = shared.NewError(shared.KindValidation, "loyalty: points must be positive")

var hundred = decimal.NewFromInt(100)

// Points returns floor(total/100) · perHundred.
func Points(total decimal.Decimal, perHundred int64) int64 {
	if !total.IsPositive() || perHundred <= 0 {
		return 0
	}
	return total.Div(hundred).Floor().IntPart() * perHundred
}

// Award credits points earned by a sale.
func Award(ctx context.Context, tx TxRepository, customerID, saleID, points int64, reason string, at time.Time) (Transaction, error) {
	if points <= 0 {
		return Transaction{}, ErrInvalidPoints
	}
	entry, err := tx.InsertLoyalty(ctx, Transaction{CustomerID: customerID, Points: points, SaleID: &saleID, Reason: reason, CreatedAt: at})
	if err != nil {
		return Transaction{}, fmt.Errorf("loyalty: award: %w", err)
	}
	return entry, nil
}

// Revoke reverses whatever a sale still holds. It returns the points removed.
func Revoke(ctx context.Context, tx TxRepository, customerID, saleID int64, reason string, at time.Time) (int64, error) {
	held, err := tx.SalePoints(ctx, saleID)
	if err != nil {
		return 0, fmt.Errorf("loyalty: sale points: %w", err)
	}
	if held <= 0 {
		return 0, nil
	}
	if _, err := tx.InsertLoyalty(ctx, Transaction{CustomerID: customerID, Points: -held, SaleID: &saleID, Reason: reason, CreatedAt: at}); err != nil {
		return 0, fmt.Errorf("loyalty: revoke: %w", err)
	}
	return held, nil
}

// RepositoryPort is the read side used by Service.
type RepositoryPort interface {
	GetCustomer(ctx context.Context, id int64) (catalog.Customer, error)
	LoyaltyHistory(ctx context.Context, customerID int64) ([]Transaction, error)
}

// Service answers balance queries.
type Service struct {
	repo RepositoryPort
}

// NewService constructs Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Balance folds a customer's points log.
func (s *Service) Balance(ctx context.Context, customerID int64) (Balance, error) {
	customer, err := s.repo.GetCustomer(ctx, customerID)
	if err != nil {
		return Balance{}, err
	}
	history, err := s.repo.LoyaltyHistory(ctx, customerID)
	if err != nil {
		return Balance{}, err
	}
	out := Balance{CustomerID: customer.ID, Name: customer.Name, History: history}
	for _, t := range history {
		out.Points += t.Points
	}
	return out, nil
}
