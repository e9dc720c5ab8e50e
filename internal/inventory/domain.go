// Package inventory records stock receipts and adjustments through the same
// transactional guarantees as sale posting.
package inventory

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
)

// ReceiptInput describes goods received into stock.
type ReceiptInput struct {
	ProductID  int64
	Qty        int
	UnitCost   decimal.Decimal
	UpdateCost bool
	Note       string
	ActorID    int64
}

// AdjustmentInput describes a signed manual correction of stock.
type AdjustmentInput struct {
	ProductID int64
	Qty       int
	Note      string
	ActorID   int64
}

// StockLevel is a product with its current stock and threshold.
type StockLevel struct {
	ProductID     int64  `json:"product_id"`
	Barcode       string `json:"barcode"`
	Name          string `json:"name"`
	StockQuantity int    `json:"stock_quantity"`
	CriticalStock int    `json:"critical_stock"`
}

// StockChangedEvent is emitted after a committed movement.
type StockChangedEvent struct {
	ProductID     int64
	ProductName   string
	Kind          ledger.MovementKind
	StockAfter    int
	CriticalStock int
}

// BelowCritical reports whether stock reached the product's threshold.
func (e StockChangedEvent) BelowCritical() bool {
	return e.StockAfter <= e.CriticalStock
}
