package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

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
	r.Post("/receipts", h.handleReceipt)
	r.Post("/adjustments", h.handleAdjustment)
	r.Get("/products/{id}/card", h.handleStockCard)
	r.Get("/low-stock", h.handleLowStock)
}

type receiptRequest struct {
	ProductID  int64           `json:"product_id" validate:"gt=0"`
	Qty        int             `json:"qty" validate:"gt=0"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	UpdateCost bool            `json:"update_cost"`
	Note       string          `json:"note" validate:"max=500"`
}

type adjustmentRequest struct {
	ProductID int64  `json:"product_id" validate:"gt=0"`
	Qty       int    `json:"qty" validate:"ne=0"`
	Note      string `json:"note" validate:"max=500"`
}

func (h *Handler) handleReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	entry, err := h.service.PostReceipt(r.Context(), ReceiptInput{
		ProductID:  req.ProductID,
		Qty:        req.Qty,
		UnitCost:   req.UnitCost,
		UpdateCost: req.UpdateCost,
		Note:       req.Note,
		ActorID:    shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Created(w, "Stock received", entry)
}

func (h *Handler) handleAdjustment(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	entry, err := h.service.PostAdjustment(r.Context(), AdjustmentInput{
		ProductID: req.ProductID,
		Qty:       req.Qty,
		Note:      req.Note,
		ActorID:   shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Created(w, "Stock adjusted", entry)
}

func (h *Handler) handleStockCard(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.PathInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	limit, err := httpx.QueryInt(r, "limit", 100)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	entries, err := h.service.StockCard(r.Context(), productID, limit)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "", entries)
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.LowStock(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "", rows)
}
