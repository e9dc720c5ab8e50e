package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

const idempotencyModule = "sales"

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, op string, fn func(context.Context, TxRepository) error) error
	RecentSales(ctx context.Context, limit int) ([]RecentSale, error)
	DashboardStats(ctx context.Context, today ledger.DateRange) (DashboardStats, error)
}

// IdempotencyPort claims request keys.
type IdempotencyPort interface {
	Claim(ctx context.Context, key, module string) error
	Release(ctx context.Context, key, module string) error
}

// CachePort invalidates cached reports after a commit.
type CachePort interface {
	Bump(ctx context.Context) error
}

// MetricsPort records sale outcomes.
type MetricsPort interface {
	SalePosted(method string, total float64)
	SaleRejected(kind string)
}

// Service coordinates sale posting.
type Service struct {
	repo        RepositoryPort
	idempotency IdempotencyPort
	cache       CachePort
	metrics     MetricsPort
	clock       ledger.Clock
	logger      *slog.Logger
	cfg         Config
}

// NewService builds Service. Optional ports may be nil.
func NewService(repo RepositoryPort, idem IdempotencyPort, cache CachePort, metrics MetricsPort, clock ledger.Clock, logger *slog.Logger, cfg Config) *Service {
	if clock == nil {
		clock = ledger.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PriceCheck == "" {
		cfg.PriceCheck = PriceCheckWarn
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{repo: repo, idempotency: idem, cache: cache, metrics: metrics, clock: clock, logger: logger, cfg: cfg}
}

// PostSale commits the cart as one sale. Stock decrements, the sale header and
// items, stock movements, the customer debt increment and the activity entry
// are written in a single transaction.
func (s *Service) PostSale(ctx context.Context, input PostSaleInput) (PostSaleResult, error) {
	res, err := s.postSale(ctx, input)
	if err != nil {
		if s.metrics != nil {
			s.metrics.SaleRejected(string(ledger.KindOf(err)))
		}
		return PostSaleResult{}, err
	}
	if s.metrics != nil {
		s.metrics.SalePosted(string(input.PaymentMethod), res.CommittedTotal.InexactFloat64())
	}
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("bump report cache", slog.Any("error", err))
		}
	}
	return res, nil
}

func (s *Service) postSale(ctx context.Context, input PostSaleInput) (PostSaleResult, error) {
	if err := validateInput(&input); err != nil {
		return PostSaleResult{}, err
	}

	claimed := false
	if input.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.Claim(ctx, input.IdempotencyKey, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return PostSaleResult{}, ledger.Validationf("sale request %s was already processed", input.IdempotencyKey)
			}
			return PostSaleResult{}, ledger.Unavailable("sales.idempotency", err)
		}
		claimed = true
	}

	now := s.clock.Now()
	var result PostSaleResult
	err := s.repo.WithTx(ctx, "sales.post", func(ctx context.Context, tx TxRepository) error {
		products, err := tx.LockProducts(ctx, productIDs(input.Lines))
		if err != nil {
			return err
		}

		remaining := make(map[int64]int, len(products))
		for id, p := range products {
			remaining[id] = p.StockQuantity
		}
		catalogue := decimal.Zero
		items := make([]ledger.SaleItem, 0, len(input.Lines))
		for _, line := range input.Lines {
			p, ok := products[line.ProductID]
			if !ok {
				return ledger.NotFoundf("product %d not found", line.ProductID)
			}
			if line.Quantity > remaining[p.ID] {
				return &ledger.StockShortageError{ProductID: p.ID, ProductName: p.Name, Requested: line.Quantity, Available: remaining[p.ID]}
			}
			remaining[p.ID] -= line.Quantity
			qty := decimal.NewFromInt(int64(line.Quantity))
			catalogue = catalogue.Add(p.SalePrice.Mul(qty))
			items = append(items, ledger.SaleItem{
				ProductID: p.ID,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
				UnitCost:  p.PurchasePrice,
				LineTotal: ledger.Round2(line.UnitPrice.Mul(qty)),
			})
		}

		flagged, err := s.checkPrices(input.Subtotal, catalogue)
		if err != nil {
			return err
		}

		if input.CustomerID != nil {
			if _, err := tx.LockCustomer(ctx, *input.CustomerID); err != nil {
				return err
			}
		}

		sale := ledger.Sale{
			TransactionID:  uuid.NewString(),
			Date:           now,
			TotalAmount:    input.TotalAmount,
			TaxAmount:      input.TaxAmount,
			DiscountAmount: input.DiscountAmount,
			PaymentMethod:  input.PaymentMethod,
			CustomerID:     input.CustomerID,
			PriceFlagged:   flagged,
		}
		if input.ActorID > 0 {
			actor := input.ActorID
			sale.EmployeeID = &actor
		}
		saleID, err := tx.InsertSale(ctx, sale)
		if err != nil {
			return err
		}
		if err := tx.InsertSaleItems(ctx, saleID, items); err != nil {
			return err
		}

		ref := saleID
		stock := make(map[int64]int, len(products))
		for id, p := range products {
			stock[id] = p.StockQuantity
		}
		for _, item := range items {
			before := stock[item.ProductID]
			stock[item.ProductID] = before - item.Quantity
			if err := tx.ApplyMovement(ctx, ledger.StockMovement{
				ProductID:   item.ProductID,
				Kind:        ledger.MovementSale,
				Quantity:    -item.Quantity,
				StockBefore: before,
				StockAfter:  before - item.Quantity,
				UnitCost:    item.UnitCost,
				Note:        "Sale " + shortID(sale.TransactionID),
				SaleID:      &ref,
				ActorID:     input.ActorID,
				CreatedAt:   now,
			}); err != nil {
				return err
			}
		}

		if input.PaymentMethod == ledger.PaymentDebt {
			if err := tx.AddCustomerDebt(ctx, *input.CustomerID, input.TotalAmount); err != nil {
				return err
			}
		}

		if err := tx.RecordActivity(ctx, shared.ActivityLog{
			ActorID:  input.ActorID,
			Action:   shared.ActionSale,
			Entity:   "sale",
			EntityID: strconv.FormatInt(saleID, 10),
			Details:  fmt.Sprintf("Sale %s: %s (%s)", shortID(sale.TransactionID), ledger.FormatMoney(input.TotalAmount), input.PaymentMethod),
			Meta: map[string]any{
				"transaction_id": sale.TransactionID,
				"items":          len(items),
				"price_flagged":  flagged,
			},
			At: now,
		}); err != nil {
			return err
		}

		result = PostSaleResult{
			SaleID:         saleID,
			TransactionID:  sale.TransactionID,
			CommittedTotal: input.TotalAmount,
			TaxAmount:      input.TaxAmount,
			DiscountAmount: input.DiscountAmount,
			ItemCount:      len(items),
			PriceFlagged:   flagged,
			Message:        "Sale completed: " + ledger.FormatMoney(input.TotalAmount),
		}
		return nil
	})
	if err != nil {
		if claimed {
			if relErr := s.idempotency.Release(context.WithoutCancel(ctx), input.IdempotencyKey, idempotencyModule); relErr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", input.IdempotencyKey), slog.Any("error", relErr))
			}
		}
		return PostSaleResult{}, err
	}
	if result.PriceFlagged {
		s.logger.Warn("sale subtotal deviates from catalogue prices",
			slog.Int64("sale_id", result.SaleID),
			slog.String("subtotal", input.Subtotal.String()))
	}
	return result, nil
}

// checkPrices compares the till subtotal with catalogue prices.
func (s *Service) checkPrices(subtotal, catalogue decimal.Decimal) (bool, error) {
	if s.cfg.PriceCheck == PriceCheckOff {
		return false, nil
	}
	diff := subtotal.Sub(catalogue).Abs()
	if diff.IsZero() {
		return false, nil
	}
	if !catalogue.IsZero() && diff.Div(catalogue).LessThanOrEqual(s.cfg.PriceTolerance) {
		return false, nil
	}
	if s.cfg.PriceCheck == PriceCheckReject {
		return false, ledger.Validationf("cart subtotal %s does not match catalogue prices %s",
			ledger.FormatMoney(subtotal), ledger.FormatMoney(catalogue))
	}
	return true, nil
}

// RecentSales lists the most recent sales, newest first.
func (s *Service) RecentSales(ctx context.Context, limit int) ([]RecentSale, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	rows, err := s.repo.RecentSales(ctx, limit)
	if err != nil {
		return nil, ledger.Unavailable("sales.recent", err)
	}
	return rows, nil
}

// DashboardStats reports today's turnover and stock health.
func (s *Service) DashboardStats(ctx context.Context) (DashboardStats, error) {
	today := s.clock.Now()
	day, err := ledger.NewDateRange(today, today, s.cfg.Location)
	if err != nil {
		return DashboardStats{}, err
	}
	stats, err := s.repo.DashboardStats(ctx, day)
	if err != nil {
		return DashboardStats{}, ledger.Unavailable("sales.stats", err)
	}
	return stats, nil
}

func validateInput(input *PostSaleInput) error {
	if len(input.Lines) == 0 {
		return ledger.Validationf("cart is empty")
	}
	if !input.PaymentMethod.Valid() {
		return ledger.Validationf("unknown payment method %q", input.PaymentMethod)
	}
	if input.PaymentMethod == ledger.PaymentDebt && input.CustomerID == nil {
		return ledger.Validationf("a customer is required for sales on account")
	}
	if input.CustomerID != nil && *input.CustomerID <= 0 {
		return ledger.Validationf("invalid customer id %d", *input.CustomerID)
	}
	subtotal := decimal.Zero
	for i, line := range input.Lines {
		if line.ProductID <= 0 {
			return ledger.Validationf("line %d: invalid product id", i+1)
		}
		if line.Quantity <= 0 {
			return ledger.Validationf("line %d: quantity must be greater than zero", i+1)
		}
		if line.UnitPrice.IsNegative() {
			return ledger.Validationf("line %d: unit price cannot be negative", i+1)
		}
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	for name, v := range map[string]decimal.Decimal{
		"tax":      input.TaxAmount,
		"discount": input.DiscountAmount,
		"total":    input.TotalAmount,
		"subtotal": input.Subtotal,
	} {
		if v.IsNegative() {
			return ledger.Validationf("%s amount cannot be negative", name)
		}
	}
	if input.Subtotal.IsZero() {
		input.Subtotal = subtotal
	}
	return nil
}

// productIDs returns the distinct product ids in ascending order so that
// row locks are always taken in the same order.
func productIDs(lines []Line) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func shortID(transactionID string) string {
	id := strings.ToUpper(strings.ReplaceAll(transactionID, "-", ""))
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
