package customers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Handler wires HTTP endpoints for customer debt.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the customers handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers customer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/{id}/debt-payments", h.handlePay)
	r.Get("/{id}/debt-payments", h.handleHistory)
	r.Delete("/{id}", h.handleDelete)
}

type debtPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Notes  string          `json:"notes" validate:"max=500"`
}

func (h *Handler) handlePay(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req debtPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	res, err := h.service.RecordDebtPayment(r.Context(), DebtPaymentInput{
		CustomerID: id,
		Amount:     req.Amount,
		Notes:      req.Notes,
		ActorID:    shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Created(w, res.Message, res)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	rows, err := h.service.DebtHistory(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "", rows)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.service.DeleteCustomer(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "Customer deleted", nil)
}
