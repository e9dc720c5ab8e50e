// Package integration connects committed ledger events to background work.
package integration

import (
	"context"
	"errors"
	"log/slog"

	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
)

// ReasonLowStock tags notification scans requested by stock movements.
const ReasonLowStock = "low_stock"

// Enqueuer schedules a notification scan.
type Enqueuer interface {
	EnqueueNotifyScan(ctx context.Context, reason string) error
}

// Hooks reacts to committed stock changes.
type Hooks struct {
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewHooks constructs integration hooks. A nil enqueuer disables them.
func NewHooks(enqueuer Enqueuer, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{enqueuer: enqueuer, logger: logger}
}

// HandleStockChanged requests a notification scan when a movement leaves a
// product at or below its critical level.
func (h *Hooks) HandleStockChanged(ctx context.Context, evt inventory.StockChangedEvent) error {
	if h == nil || h.enqueuer == nil || !evt.BelowCritical() {
		return nil
	}
	if evt.ProductID <= 0 {
		return errors.New("integration: product id required")
	}
	h.logger.Info("stock below critical level",
		slog.Int64("product_id", evt.ProductID),
		slog.String("product", evt.ProductName),
		slog.String("kind", string(evt.Kind)),
		slog.Int("stock_after", evt.StockAfter),
		slog.Int("critical_stock", evt.CriticalStock),
	)
	return h.enqueuer.EnqueueNotifyScan(ctx, ReasonLowStock)
}
