// Package sales posts point-of-sale carts into the ledger.
package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
)

// Line is one cart line as priced by the till.
type Line struct {
	ProductID int64           `json:"product_id" validate:"gt=0"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// PostSaleInput carries a cart and the totals computed by the till.
type PostSaleInput struct {
	Lines          []Line
	PaymentMethod  ledger.PaymentMethod
	CustomerID     *int64
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal
	ActorID        int64
	IdempotencyKey string
}

// PostSaleResult describes a committed sale.
type PostSaleResult struct {
	SaleID         int64           `json:"sale_id"`
	TransactionID  string          `json:"transaction_id"`
	CommittedTotal decimal.Decimal `json:"committed_total"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	ItemCount      int             `json:"item_count"`
	PriceFlagged   bool            `json:"price_flagged"`
	Message        string          `json:"-"`
}

// PriceCheckMode controls how cart subtotals are compared with catalogue prices.
type PriceCheckMode string

const (
	PriceCheckOff    PriceCheckMode = "off"
	PriceCheckWarn   PriceCheckMode = "warn"
	PriceCheckReject PriceCheckMode = "reject"
)

// Config groups optional settings.
type Config struct {
	PriceCheck     PriceCheckMode
	PriceTolerance decimal.Decimal
	Location       *time.Location
}

// RecentSale is a row of the recent sales list.
type RecentSale struct {
	SaleID        int64                `json:"sale_id"`
	ShortID       string               `json:"short_id"`
	Date          time.Time            `json:"date"`
	Amount        decimal.Decimal      `json:"amount"`
	PaymentMethod ledger.PaymentMethod `json:"payment_method"`
	ItemCount     int                  `json:"item_count"`
}

// DashboardStats summarises today's trading and stock health.
type DashboardStats struct {
	TodayRevenue      decimal.Decimal `json:"today_revenue"`
	TodaySaleCount    int             `json:"today_sale_count"`
	TotalStockUnits   int64           `json:"total_stock_units"`
	CriticalStockSKUs int             `json:"critical_stock_skus"`
}
