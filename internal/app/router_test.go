package app_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting"
	"github.com/odyssey-erp/odyssey-pos/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-pos/internal/app"
	"github.com/odyssey-erp/odyssey-pos/internal/audit"
	"github.com/odyssey-erp/odyssey-pos/internal/catalog"
	"github.com/odyssey-erp/odyssey-pos/internal/observability"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/register"
	"github.com/odyssey-erp/odyssey-pos/internal/sales"
	"github.com/odyssey-erp/odyssey-pos/internal/testing/memstore"
	"github.com/odyssey-erp/odyssey-pos/jobs"
	_ "github.com/odyssey-erp/odyssey-pos/testing"
)

type server struct {
	store   *memstore.Store
	handler http.Handler
	product catalog.Product
}

func newServer(t *testing.T) *server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()
	roles := store.SeedChart()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &app.Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second, AppRateLimit: 1000, PointsPerHundred: 1}
	metrics := observability.NewMetrics()
	services := app.BuildServices(app.Ports{
		Accounting:  store.AccountingPort(),
		Inventory:   store.InventoryPort(),
		Sales:       store.SalesPort(),
		Procurement: store.ProcurementPort(),
		Payments:    store.PaymentsPort(),
		Register:    store.RegisterPort(),
		Loyalty:     store,
		Catalog:     store,
		Audit:       store,
	}, app.Deps{
		Logger:  logger,
		Config:  cfg,
		Roles:   roles,
		Audit:   store,
		Cache:   accounting.NewReportCache(client, time.Minute),
		Metrics: metrics,
	})
	params := services.Handlers(logger)
	params.Config = cfg
	params.Metrics = metrics
	params.JobHandler = jobs.NewHandler(nil, logger)

	return &server{
		store:   store,
		handler: app.NewRouter(params),
		product: store.AddProduct(catalog.Product{Name: "Kettle", CostPrice: decimal.NewFromInt(100), SellingPrice: decimal.NewFromInt(200), TaxPercent: decimal.NewFromInt(18), IsActive: true}),
	}
}

func (s *server) do(t *testing.T, method, path, actor, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-Actor-ID", actor)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndSecurityHeaders(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = s.do(t, http.MethodGet, "/jobs/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"queue":"default","pending":0}`, rec.Body.String())
}

func TestCheckoutOverHTTP(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/api/register/sessions", "7", `{"opening_cash":"100"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var session register.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.Equal(t, register.StatusOpen, session.Status)

	body, err := json.Marshal(map[string]any{
		"lines":          []map[string]any{{"product_id": s.product.ID, "quantity": 2, "unit_price": "200"}},
		"payment_method": "cash",
		"paid_amount":    "500",
	})
	require.NoError(t, err)
	key := "0b8f6a52-57a8-4f7d-9a2e-1f6c3e0b9d11"

	rec = s.do(t, http.MethodPost, "/api/sales", "7", string(body), sales.IdempotencyHeader, key)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var result sales.SaleResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.True(t, result.Total.Equal(decimal.NewFromInt(472)), result.Total.String())
	require.True(t, result.Change.Equal(decimal.NewFromInt(28)), result.Change.String())
	require.Equal(t, sales.StatusCompleted, result.Status)

	rec = s.do(t, http.MethodPost, "/api/sales", "7", string(body), sales.IdempotencyHeader, key)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, 1, s.store.SaleCount())

	rec = s.do(t, http.MethodPost, "/api/sales", "", string(body))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&problem))
	require.Equal(t, "validation", problem.Kind)

	rec = s.do(t, http.MethodGet, "/api/accounting/trial-balance", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tb reports.TrialBalance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tb))
	require.True(t, tb.Balanced)
	require.True(t, tb.TotalDebit.Equal(tb.TotalCredit))

	rec = s.do(t, http.MethodGet, "/api/register/sessions/active", "7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.EqualValues(t, 1, session.SalesCount)
	require.True(t, session.CashTotal.Equal(decimal.NewFromInt(472)), session.CashTotal.String())

	rec = s.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `odyssey_pos_pipeline_commits_total{kind="sale"} 1`)

	rec = s.do(t, http.MethodGet, "/api/audit?entity=sale", "7", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var trail audit.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trail))
	require.Len(t, trail.Rows, 1)
	require.Equal(t, "sale.create", trail.Rows[0].Action)
	require.Equal(t, result.InvoiceNumber, trail.Rows[0].EntityID)
	require.EqualValues(t, 7, trail.Rows[0].ActorID)
}

func TestCatalogLookupOverHTTP(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/api/catalog/products?q=kett", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page catalog.ProductPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Products, 1)
	require.Equal(t, s.product.ID, page.Products[0].ID)
	require.Equal(t, 1, page.Pagination.Total)
}

func TestUnknownSaleIsNotFound(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/api/sales/999", "7", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}
