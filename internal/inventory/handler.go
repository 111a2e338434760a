package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/inventory", func(r chi.Router) {
		r.Post("/adjustments", h.handleAdjustment)
		r.Get("/{productID}", h.handlePosition)
		r.Get("/{productID}/transactions", h.handleTransactions)
	})
}

func (h *Handler) handleAdjustment(w http.ResponseWriter, r *http.Request) {
	var input AdjustInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input.ActorID = shared.ActorFromContext(r.Context())
	adj, err := h.service.AdjustStock(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, adj)
}

func (h *Handler) handlePosition(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.PathID(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pos, err := h.service.Position(r.Context(), productID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"product_id": pos.ProductID,
		"quantity":   pos.Quantity,
		"avg_cost":   pos.AvgCost,
		"value":      pos.Value(),
		"updated_at": pos.UpdatedAt,
	})
}

func (h *Handler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.PathID(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			httpx.RespondError(w, shared.Validation("limit must be a non-negative integer"))
			return
		}
	}
	entries, err := h.service.Transactions(r.Context(), productID, limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if shared.KindOf(err) == shared.KindInternal {
		h.logger.ErrorContext(r.Context(), "inventory request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
