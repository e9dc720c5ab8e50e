package payroll

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Handler wires HTTP endpoints for payroll.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the payroll handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers payroll routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/pay", h.handlePay)
	r.Post("/pay-all", h.handlePayAll)
	r.Get("/pending", h.handlePending)
	r.Get("/history", h.handleHistory)
}

type payRequest struct {
	EmployeeID int64          `json:"employee_id" validate:"gt=0"`
	Period     *ledger.Period `json:"period"`
	Notes      string         `json:"notes" validate:"max=500"`
}

type payAllRequest struct {
	Period *ledger.Period `json:"period"`
}

func (h *Handler) handlePay(w http.ResponseWriter, r *http.Request) {
	var req payRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	res, err := h.service.PaySalary(r.Context(), PayInput{
		EmployeeID: req.EmployeeID,
		Period:     req.Period,
		Notes:      req.Notes,
		ActorID:    shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Created(w, res.Message, res)
}

func (h *Handler) handlePayAll(w http.ResponseWriter, r *http.Request) {
	var req payAllRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
	}
	res, err := h.service.PayAllSalaries(r.Context(), PayAllInput{
		Period:  req.Period,
		ActorID: shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Created(w, res.Message, res)
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	period, err := queryPeriod(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	rows, err := h.service.Pending(r.Context(), period)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "", rows)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := httpx.QueryInt(r, "limit", 100)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	rows, err := h.service.History(r.Context(), limit)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "", rows)
}

func queryPeriod(r *http.Request) (*ledger.Period, error) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		return nil, nil
	}
	p, err := ledger.ParsePeriod(raw)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
