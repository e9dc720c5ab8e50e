package accounting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// PDFRenderer turns a statement into a PDF document.
type PDFRenderer interface {
	RenderProfitLoss(ctx context.Context, pl reports.ProfitLoss) ([]byte, error)
}

// Handler wires HTTP endpoints for accounting.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	renderer PDFRenderer
}

// NewHandler constructs the accounting handler. renderer may be nil when
// PDF export is not configured.
func NewHandler(logger *slog.Logger, service *Service, renderer PDFRenderer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, renderer: renderer}
}

// MountRoutes registers accounting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/expenses", h.handleListExpenses)
	r.Post("/expenses", h.handleAddExpense)
	r.Get("/expenses/summary", h.handleExpenseSummary)
	r.Delete("/expenses/{id}", h.handleDeleteExpense)
	r.Get("/tax-summary", h.handleTaxSummary)
	r.Get("/profit-loss", h.handleProfitLoss)
	r.Get("/profit-loss.pdf", h.handleProfitLossPDF)
	r.Get("/monthly", h.handleMonthly)
}

type addExpenseRequest struct {
	Description string                 `json:"description" validate:"required,max=200"`
	Amount      decimal.Decimal        `json:"amount"`
	Category    ledger.ExpenseCategory `json:"category" validate:"required"`
	Date        string                 `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Notes       string                 `json:"notes" validate:"max=500"`
	Recurring   bool                   `json:"recurring"`
}

func (h *Handler) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	var req addExpenseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	input := ExpenseInput{
		Description: req.Description,
		Amount:      req.Amount,
		Category:    req.Category,
		Notes:       req.Notes,
		Recurring:   req.Recurring,
		ActorID:     shared.ActorFromContext(r.Context()),
	}
	if req.Date != "" {
		date, err := time.ParseInLocation(time.DateOnly, req.Date, h.service.Location())
		if err != nil {
			httpx.RespondError(w, h.logger, ledger.Validationf("invalid date %q", req.Date))
			return
		}
		input.Date = &date
	}
	expense, err := h.service.AddExpense(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Created(w, "Expense recorded: "+ledger.FormatMoney(expense.Amount), expense)
}

func (h *Handler) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.service.DeleteExpense(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "Expense deleted.", nil)
}

func (h *Handler) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.queryRange(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	rows, err := h.service.ListExpenses(r.Context(), start, end)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "", rows)
}

func (h *Handler) handleExpenseSummary(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.queryRange(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	summary, err := h.service.ExpenseSummary(r.Context(), start, end)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "", summary)
}

func (h *Handler) handleTaxSummary(w http.ResponseWriter, r *http.Request) {
	year, err := httpx.QueryInt(r, "year", h.service.Today().Year())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	summary, err := h.service.TaxSummary(r.Context(), year)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "", summary)
}

func (h *Handler) handleProfitLoss(w http.ResponseWriter, r *http.Request) {
	pl, ok := h.profitLoss(w, r)
	if !ok {
		return
	}
	httpx.OK(w, "", pl)
}

func (h *Handler) handleProfitLossPDF(w http.ResponseWriter, r *http.Request) {
	if h.renderer == nil {
		httpx.RespondError(w, h.logger, ledger.Unavailable("accounting.profit_loss_pdf", errors.New("pdf renderer not configured")))
		return
	}
	pl, ok := h.profitLoss(w, r)
	if !ok {
		return
	}
	pdf, err := h.renderer.RenderProfitLoss(r.Context(), pl)
	if err != nil {
		h.logger.Error("render profit and loss pdf", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	filename := fmt.Sprintf("profit-loss-%s-%s.pdf", pl.Start.Format(time.DateOnly), pl.End.Format(time.DateOnly))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename="+filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) profitLoss(w http.ResponseWriter, r *http.Request) (reports.ProfitLoss, bool) {
	start, end, err := h.queryRange(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return reports.ProfitLoss{}, false
	}
	pl, err := h.service.ProfitLoss(r.Context(), start, end)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return reports.ProfitLoss{}, false
	}
	return pl, true
}

func (h *Handler) handleMonthly(w http.ResponseWriter, r *http.Request) {
	year, err := httpx.QueryInt(r, "year", h.service.Today().Year())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	rows, err := h.service.MonthlySummary(r.Context(), year)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "", rows)
}

// queryRange reads start and end dates, defaulting to the current month.
func (h *Handler) queryRange(r *http.Request) (time.Time, time.Time, error) {
	today := h.service.Today()
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	start, err := httpx.QueryDate(r, "start", monthStart, today.Location())
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := httpx.QueryDate(r, "end", today, today.Location())
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}
