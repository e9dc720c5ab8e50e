package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, op string, fn func(context.Context, TxRepository) error) error
	StockCard(ctx context.Context, productID int64, limit int) ([]ledger.StockMovement, error)
	ProductExists(ctx context.Context, productID int64) (bool, error)
	LowStock(ctx context.Context) ([]StockLevel, error)
}

// CachePort invalidates cached reports after a commit.
type CachePort interface {
	Bump(ctx context.Context) error
}

// IntegrationHandler receives committed stock changes.
type IntegrationHandler interface {
	HandleStockChanged(ctx context.Context, evt StockChangedEvent) error
}

// Service coordinates inventory operations.
type Service struct {
	repo        RepositoryPort
	cache       CachePort
	integration IntegrationHandler
	clock       ledger.Clock
	logger      *slog.Logger
}

// NewService builds Service. cache and integration may be nil.
func NewService(repo RepositoryPort, cache CachePort, integration IntegrationHandler, clock ledger.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = ledger.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, integration: integration, clock: clock, logger: logger}
}

// PostReceipt books goods received into stock.
func (s *Service) PostReceipt(ctx context.Context, input ReceiptInput) (ledger.StockMovement, error) {
	if input.ProductID <= 0 {
		return ledger.StockMovement{}, ledger.Validationf("product is required")
	}
	if input.Qty <= 0 {
		return ledger.StockMovement{}, ledger.Validationf("receipt quantity must be greater than zero")
	}
	if input.UnitCost.IsNegative() {
		return ledger.StockMovement{}, ledger.Validationf("unit cost cannot be negative")
	}
	return s.postMovement(ctx, movementParams{
		op:         "inventory.receipt",
		productID:  input.ProductID,
		qtyChange:  input.Qty,
		kind:       ledger.MovementReceipt,
		action:     shared.ActionStockIn,
		unitCost:   &input.UnitCost,
		note:       input.Note,
		actorID:    input.ActorID,
		updateCost: input.UpdateCost,
	})
}

// PostAdjustment books a signed correction. Stock can never drop below zero.
func (s *Service) PostAdjustment(ctx context.Context, input AdjustmentInput) (ledger.StockMovement, error) {
	if input.ProductID <= 0 {
		return ledger.StockMovement{}, ledger.Validationf("product is required")
	}
	if input.Qty == 0 {
		return ledger.StockMovement{}, ledger.Validationf("adjustment quantity cannot be zero")
	}
	return s.postMovement(ctx, movementParams{
		op:        "inventory.adjust",
		productID: input.ProductID,
		qtyChange: input.Qty,
		kind:      ledger.MovementAdjustment,
		action:    shared.ActionStockAdjust,
		note:      input.Note,
		actorID:   input.ActorID,
	})
}

type movementParams struct {
	op         string
	productID  int64
	qtyChange  int
	kind       ledger.MovementKind
	action     string
	unitCost   *decimal.Decimal
	note       string
	actorID    int64
	updateCost bool
}

func (s *Service) postMovement(ctx context.Context, params movementParams) (ledger.StockMovement, error) {
	now := s.clock.Now()
	var (
		entry   ledger.StockMovement
		product ledger.Product
	)
	err := s.repo.WithTx(ctx, params.op, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.LockProduct(ctx, params.productID)
		if err != nil {
			return err
		}
		product = p
		after := p.StockQuantity + params.qtyChange
		if after < 0 {
			return &ledger.StockShortageError{ProductID: p.ID, ProductName: p.Name, Requested: -params.qtyChange, Available: p.StockQuantity}
		}
		cost := p.PurchasePrice
		if params.unitCost != nil {
			cost = *params.unitCost
			if params.updateCost && !cost.Equal(p.PurchasePrice) {
				if err := tx.UpdatePurchasePrice(ctx, p.ID, cost); err != nil {
					return err
				}
			}
		}
		entry = ledger.StockMovement{
			ProductID:   p.ID,
			Kind:        params.kind,
			Quantity:    params.qtyChange,
			StockBefore: p.StockQuantity,
			StockAfter:  after,
			UnitCost:    cost,
			Note:        params.note,
			ActorID:     params.actorID,
			CreatedAt:   now,
		}
		if err := tx.ApplyMovement(ctx, entry); err != nil {
			return err
		}
		return tx.RecordActivity(ctx, shared.ActivityLog{
			ActorID:  params.actorID,
			Action:   params.action,
			Entity:   "product",
			EntityID: strconv.FormatInt(p.ID, 10),
			Details:  fmt.Sprintf("%s: %+d (%d -> %d)", p.Name, params.qtyChange, p.StockQuantity, after),
			Meta: map[string]any{
				"kind": string(params.kind),
				"note": params.note,
			},
			At: now,
		})
	})
	if err != nil {
		return ledger.StockMovement{}, err
	}

	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("bump report cache", slog.Any("error", err))
		}
	}
	if s.integration != nil {
		evt := StockChangedEvent{
			ProductID:     product.ID,
			ProductName:   product.Name,
			Kind:          entry.Kind,
			StockAfter:    entry.StockAfter,
			CriticalStock: product.CriticalStock,
		}
		if err := s.integration.HandleStockChanged(ctx, evt); err != nil {
			s.logger.Warn("stock change hook failed", slog.Int64("product_id", product.ID), slog.Any("error", err))
		}
	}
	return entry, nil
}

// StockCard lists the newest movements of a product, including sale rows.
func (s *Service) StockCard(ctx context.Context, productID int64, limit int) ([]ledger.StockMovement, error) {
	if productID <= 0 {
		return nil, ledger.Validationf("product is required")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	ok, err := s.repo.ProductExists(ctx, productID)
	if err != nil {
		return nil, ledger.Unavailable("inventory.card", err)
	}
	if !ok {
		return nil, ledger.NotFoundf("product %d not found", productID)
	}
	rows, err := s.repo.StockCard(ctx, productID, limit)
	if err != nil {
		return nil, ledger.Unavailable("inventory.card", err)
	}
	return rows, nil
}

// LowStock lists products at or under their critical level.
func (s *Service) LowStock(ctx context.Context) ([]StockLevel, error) {
	rows, err := s.repo.LowStock(ctx)
	if err != nil {
		return nil, ledger.Unavailable("inventory.low_stock", err)
	}
	return rows, nil
}
