package catalog

import (
	"context"
	"strings"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// ProductFilter narrows a product listing.
type ProductFilter struct {
	Search     string
	ActiveOnly bool
	Page       int
	PerPage    int
}

// ProductPage is one page of a product listing.
type ProductPage struct {
	Products   []Product         `json:"products"`
	Pagination shared.Pagination `json:"pagination"`
}

// RepositoryPort is the read side used by Service.
type RepositoryPort interface {
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	GetVendor(ctx context.Context, id int64) (Vendor, error)
}

const maxPerPage = 100

// Service answers lookups from the till and back office.
type Service struct {
	repo RepositoryPort
}

// NewService constructs Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListProducts returns a page of products ordered by name.
func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) (ProductPage, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Page, filter.PerPage = shared.ClampPage(filter.Page, filter.PerPage, 20, maxPerPage)
	products, total, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return ProductPage{}, err
	}
	if products == nil {
		products = []Product{}
	}
	return ProductPage{Products: products, Pagination: shared.NewPagination(filter.Page, filter.PerPage, total)}, nil
}

// GetProduct loads a product by id.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// GetCustomer loads a customer with its receivable balance.
func (s *Service) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

// GetVendor loads a vendor with its payable balance.
func (s *Service) GetVendor(ctx context.Context, id int64) (Vendor, error) {
	return s.repo.GetVendor(ctx, id)
}
