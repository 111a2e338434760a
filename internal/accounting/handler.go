package accounting

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Handler wires ledger endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	reports *ReportService
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, reports *ReportService) *Handler {
	return &Handler{logger: logger, service: service, reports: reports}
}

// MountRoutes registers HTTP routes for the ledger module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/accounting", func(r chi.Router) {
		r.Get("/accounts", h.listAccounts)
		r.Post("/journals", h.createJournal)
		r.Get("/journals/{id}", h.getJournal)
		r.Post("/journals/{id}/post", h.postJournal)
		r.Post("/journals/{id}/reverse", h.reverseJournal)
		r.Get("/ledger/{accountID}", h.ledger)
		r.Get("/trial-balance", h.trialBalance)
		r.Get("/profit-loss", h.profitAndLoss)
		r.Get("/balance-sheet", h.balanceSheet)
	})
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts)
}

func (h *Handler) createJournal(w http.ResponseWriter, r *http.Request) {
	var in EntryInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	in.CreatedBy = shared.ActorFromContext(r.Context())
	entry, err := h.service.CreateManualEntry(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) getJournal(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entry, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) postJournal(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entry, err := h.service.PostEntry(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

type reverseRequest struct {
	Memo string `json:"memo" validate:"max=500"`
}

func (h *Handler) reverseJournal(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req reverseRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	if err := shared.ValidateStruct(req); err != nil {
		h.fail(w, r, err)
		return
	}
	entry, err := h.service.ReverseEntry(r.Context(), id, req.Memo, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) ledger(w http.ResponseWriter, r *http.Request) {
	accountID, err := httpx.PathID(r, "accountID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	today := DateOf(time.Now())
	from, err := httpx.QueryDate(r, "from", time.Date(today.Year(), 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	to, err := httpx.QueryDate(r, "to", today)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ledger, err := h.reports.Ledger(r.Context(), accountID, from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ledger)
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := httpx.QueryDate(r, "as_of", DateOf(time.Now()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tb, err := h.reports.TrialBalance(r.Context(), asOf)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) profitAndLoss(w http.ResponseWriter, r *http.Request) {
	today := DateOf(time.Now())
	from, err := httpx.QueryDate(r, "from", time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	to, err := httpx.QueryDate(r, "to", today)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	pl, err := h.reports.ProfitAndLoss(r.Context(), from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pl)
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, err := httpx.QueryDate(r, "as_of", DateOf(time.Now()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	bs, err := h.reports.BalanceSheet(r.Context(), asOf)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bs)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if shared.KindOf(err) == shared.KindInternal {
		h.logger.ErrorContext(r.Context(), "accounting request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
