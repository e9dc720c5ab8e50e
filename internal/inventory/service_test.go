package inventory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	_ "github.com/odyssey-erp/odyssey-pos/testing"
)

type memoryRepo struct {
	products   map[int64]ledger.Product
	movements  []ledger.StockMovement
	activities []shared.ActivityLog
}

type memoryTx struct {
	repo       *memoryRepo
	products   map[int64]ledger.Product
	movements  []ledger.StockMovement
	activities []shared.ActivityLog
}

func newMemoryRepo(products ...ledger.Product) *memoryRepo {
	repo := &memoryRepo{products: make(map[int64]ledger.Product)}
	for _, p := range products {
		repo.products[p.ID] = p
	}
	return repo
}

// WithTx stages writes and applies them only when fn succeeds.
func (r *memoryRepo) WithTx(ctx context.Context, _ string, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{repo: r, products: make(map[int64]ledger.Product, len(r.products))}
	for id, p := range r.products {
		tx.products[id] = p
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.products = tx.products
	r.movements = append(r.movements, tx.movements...)
	r.activities = append(r.activities, tx.activities...)
	return nil
}

func (r *memoryRepo) StockCard(_ context.Context, productID int64, limit int) ([]ledger.StockMovement, error) {
	out := []ledger.StockMovement{}
	for i := len(r.movements) - 1; i >= 0 && len(out) < limit; i-- {
		if r.movements[i].ProductID == productID {
			out = append(out, r.movements[i])
		}
	}
	return out, nil
}

func (r *memoryRepo) ProductExists(_ context.Context, productID int64) (bool, error) {
	_, ok := r.products[productID]
	return ok, nil
}

func (r *memoryRepo) LowStock(context.Context) ([]StockLevel, error) {
	out := []StockLevel{}
	for _, p := range r.products {
		if p.StockQuantity <= p.CriticalStock {
			out = append(out, StockLevel{ProductID: p.ID, Name: p.Name, StockQuantity: p.StockQuantity, CriticalStock: p.CriticalStock})
		}
	}
	return out, nil
}

func (tx *memoryTx) LockProduct(_ context.Context, id int64) (ledger.Product, error) {
	p, ok := tx.products[id]
	if !ok {
		return ledger.Product{}, ledger.NotFoundf("product %d not found", id)
	}
	return p, nil
}

func (tx *memoryTx) ApplyMovement(_ context.Context, m ledger.StockMovement) error {
	p := tx.products[m.ProductID]
	p.StockQuantity += m.Quantity
	if p.StockQuantity < 0 {
		return ledger.InsufficientStockf("stock constraint violated")
	}
	tx.products[m.ProductID] = p
	m.ID = int64(len(tx.repo.movements) + len(tx.movements) + 1)
	tx.movements = append(tx.movements, m)
	return nil
}

func (tx *memoryTx) UpdatePurchasePrice(_ context.Context, productID int64, cost decimal.Decimal) error {
	p := tx.products[productID]
	p.PurchasePrice = cost
	tx.products[productID] = p
	return nil
}

func (tx *memoryTx) RecordActivity(_ context.Context, log shared.ActivityLog) error {
	tx.activities = append(tx.activities, log)
	return nil
}

type recordingIntegration struct {
	events []StockChangedEvent
}

func (r *recordingIntegration) HandleStockChanged(_ context.Context, evt StockChangedEvent) error {
	r.events = append(r.events, evt)
	return nil
}

type countingCache struct{ bumps int }

func (c *countingCache) Bump(context.Context) error {
	c.bumps++
	return nil
}

var testNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func newTestService(repo *memoryRepo) (*Service, *countingCache, *recordingIntegration) {
	cache := &countingCache{}
	hook := &recordingIntegration{}
	return NewService(repo, cache, hook, ledger.FixedClock(testNow), nil), cache, hook
}

func milk() ledger.Product {
	return ledger.Product{ID: 1, Barcode: "869000001", Name: "Milk", PurchasePrice: decimal.RequireFromString("18.50"), SalePrice: decimal.RequireFromString("25"), StockQuantity: 12, CriticalStock: 10}
}

func TestPostReceiptIncrementsStock(t *testing.T) {
	repo := newMemoryRepo(milk())
	svc, cache, hook := newTestService(repo)

	entry, err := svc.PostReceipt(context.Background(), ReceiptInput{ProductID: 1, Qty: 24, UnitCost: decimal.RequireFromString("19.00"), Note: "GRN-1", ActorID: 7})
	require.NoError(t, err)
	assert.Equal(t, 12, entry.StockBefore)
	assert.Equal(t, 36, entry.StockAfter)
	assert.Equal(t, ledger.MovementReceipt, entry.Kind)
	assert.True(t, entry.UnitCost.Equal(decimal.RequireFromString("19")))
	assert.Equal(t, 36, repo.products[1].StockQuantity)
	assert.True(t, repo.products[1].PurchasePrice.Equal(decimal.RequireFromString("18.50")), "cost unchanged without UpdateCost")

	require.Len(t, repo.activities, 1)
	assert.Equal(t, shared.ActionStockIn, repo.activities[0].Action)
	assert.Equal(t, int64(7), repo.activities[0].ActorID)
	assert.Equal(t, 1, cache.bumps)
	require.Len(t, hook.events, 1)
	assert.False(t, hook.events[0].BelowCritical())
}

func TestPostReceiptUpdatesCost(t *testing.T) {
	repo := newMemoryRepo(milk())
	svc, _, _ := newTestService(repo)

	_, err := svc.PostReceipt(context.Background(), ReceiptInput{ProductID: 1, Qty: 1, UnitCost: decimal.RequireFromString("21.75"), UpdateCost: true})
	require.NoError(t, err)
	assert.True(t, repo.products[1].PurchasePrice.Equal(decimal.RequireFromString("21.75")))
}

func TestPostReceiptValidation(t *testing.T) {
	repo := newMemoryRepo(milk())
	svc, cache, _ := newTestService(repo)
	ctx := context.Background()

	cases := map[string]ReceiptInput{
		"zero qty":      {ProductID: 1, Qty: 0},
		"negative qty":  {ProductID: 1, Qty: -3},
		"negative cost": {ProductID: 1, Qty: 1, UnitCost: decimal.NewFromInt(-1)},
		"no product":    {Qty: 1},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.PostReceipt(ctx, input)
			require.ErrorIs(t, err, ledger.ErrValidation)
		})
	}
	assert.Empty(t, repo.movements)
	assert.Zero(t, cache.bumps)
}

func TestPostAdjustmentNegativeGuard(t *testing.T) {
	repo := newMemoryRepo(milk())
	svc, cache, _ := newTestService(repo)

	_, err := svc.PostAdjustment(context.Background(), AdjustmentInput{ProductID: 1, Qty: -13, Note: "breakage"})
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)
	var shortage *ledger.StockShortageError
	require.True(t, errors.As(err, &shortage))
	assert.Equal(t, 13, shortage.Requested)
	assert.Equal(t, 12, shortage.Available)

	assert.Equal(t, 12, repo.products[1].StockQuantity)
	assert.Empty(t, repo.movements)
	assert.Empty(t, repo.activities)
	assert.Zero(t, cache.bumps)
}

func TestPostAdjustmentEmitsLowStock(t *testing.T) {
	repo := newMemoryRepo(milk())
	svc, _, hook := newTestService(repo)

	entry, err := svc.PostAdjustment(context.Background(), AdjustmentInput{ProductID: 1, Qty: -4, Note: "count"})
	require.NoError(t, err)
	assert.Equal(t, 8, entry.StockAfter)
	assert.Equal(t, -4, entry.Quantity)
	require.Len(t, hook.events, 1)
	assert.True(t, hook.events[0].BelowCritical())
	assert.Equal(t, shared.ActionStockAdjust, repo.activities[0].Action)
}

func TestPostAdjustmentRejectsZeroAndUnknown(t *testing.T) {
	repo := newMemoryRepo(milk())
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.PostAdjustment(ctx, AdjustmentInput{ProductID: 1})
	require.ErrorIs(t, err, ledger.ErrValidation)

	_, err = svc.PostAdjustment(ctx, AdjustmentInput{ProductID: 99, Qty: 2})
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestStockCardNewestFirst(t *testing.T) {
	repo := newMemoryRepo(milk())
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.PostReceipt(ctx, ReceiptInput{ProductID: 1, Qty: 5})
	require.NoError(t, err)
	_, err = svc.PostAdjustment(ctx, AdjustmentInput{ProductID: 1, Qty: -2})
	require.NoError(t, err)

	card, err := svc.StockCard(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, card, 2)
	assert.Equal(t, ledger.MovementAdjustment, card[0].Kind)
	assert.Equal(t, 15, card[0].StockAfter)
	assert.Equal(t, card[1].StockAfter, card[0].StockBefore)

	_, err = svc.StockCard(ctx, 42, 10)
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestHandlerAdjustment(t *testing.T) {
	repo := newMemoryRepo(milk())
	svc, _, _ := newTestService(repo)
	router := chi.NewRouter()
	router.Use(shared.ActorMiddleware)
	router.Route("/api/inventory", NewHandler(nil, svc).MountRoutes)

	req := httptest.NewRequest(http.MethodPost, "/api/inventory/adjustments", strings.NewReader(`{"product_id":1,"qty":-20}`))
	req.Header.Set(shared.ActorHeader, "3")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient stock for Milk")

	req = httptest.NewRequest(http.MethodPost, "/api/inventory/adjustments", strings.NewReader(`{"product_id":1,"qty":3}`))
	req.Header.Set(shared.ActorHeader, "3")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(3), repo.activities[0].ActorID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/inventory/products/1/card", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"stock_after":15`)
}
