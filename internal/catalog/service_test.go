package catalog_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/catalog"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	"github.com/odyssey-erp/odyssey-pos/internal/testing/memstore"
	_ "github.com/odyssey-erp/odyssey-pos/testing"
)

func seed(store *memstore.Store) {
	for _, p := range []catalog.Product{
		{SKU: "TEA-01", Name: "Tea Kettle", SellingPrice: decimal.NewFromInt(900), IsActive: true},
		{SKU: "MUG-01", Name: "Mug", SellingPrice: decimal.NewFromInt(150), IsActive: true},
		{SKU: "MUG-02", Name: "Mug Set", SellingPrice: decimal.NewFromInt(500), IsActive: false},
		{SKU: "LMP-01", Name: "Lamp", SellingPrice: decimal.NewFromInt(700), IsActive: true},
	} {
		store.AddProduct(p)
	}
}

func TestListProductsPagesByName(t *testing.T) {
	store := memstore.New()
	seed(store)
	svc := catalog.NewService(store)

	page, err := svc.ListProducts(context.Background(), catalog.ProductFilter{PerPage: 2})
	require.NoError(t, err)
	require.Equal(t, shared.Pagination{Page: 1, PerPage: 2, Total: 4, TotalPages: 2}, page.Pagination)
	require.Equal(t, "Lamp", page.Products[0].Name)
	require.Equal(t, "Mug", page.Products[1].Name)

	page, err = svc.ListProducts(context.Background(), catalog.ProductFilter{Search: " mug ", ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	require.Equal(t, "MUG-01", page.Products[0].SKU)
	require.Equal(t, 20, page.Pagination.PerPage)

	page, err = svc.ListProducts(context.Background(), catalog.ProductFilter{Page: 9, PerPage: 500})
	require.NoError(t, err)
	require.NotNil(t, page.Products)
	require.Empty(t, page.Products)
	require.Equal(t, 100, page.Pagination.PerPage)
}

func TestLookupsReportNotFound(t *testing.T) {
	store := memstore.New()
	vendor := store.AddVendor(catalog.Vendor{Name: "Brightlite"})
	svc := catalog.NewService(store)

	got, err := svc.GetVendor(context.Background(), vendor.ID)
	require.NoError(t, err)
	require.Equal(t, "Brightlite", got.Name)

	_, err = svc.GetProduct(context.Background(), 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.GetCustomer(context.Background(), 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestHandlerListsProducts(t *testing.T) {
	store := memstore.New()
	seed(store)
	r := chi.NewRouter()
	catalog.NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), catalog.NewService(store)).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog/products?q=mug&page=1&per_page=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Products   []catalog.Product `json:"products"`
		Pagination shared.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Products, 1)
	require.Equal(t, "Mug", body.Products[0].Name)
	require.Equal(t, 2, body.Pagination.TotalPages)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog/customers/77", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
