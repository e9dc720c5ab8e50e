package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Repository persists sales in PostgreSQL.
type Repository struct {
	pool     *pgxpool.Pool
	runner   *db.Runner
	activity *shared.ActivityLogger
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, runner *db.Runner, activity *shared.ActivityLogger) *Repository {
	return &Repository{pool: pool, runner: runner, activity: activity}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	LockProducts(ctx context.Context, ids []int64) (map[int64]ledger.Product, error)
	LockCustomer(ctx context.Context, id int64) (ledger.Customer, error)
	InsertSale(ctx context.Context, sale ledger.Sale) (int64, error)
	InsertSaleItems(ctx context.Context, saleID int64, items []ledger.SaleItem) error
	ApplyMovement(ctx context.Context, m ledger.StockMovement) error
	AddCustomerDebt(ctx context.Context, customerID int64, amount decimal.Decimal) error
	RecordActivity(ctx context.Context, log shared.ActivityLog) error
}

type txRepository struct {
	tx       pgx.Tx
	activity *shared.ActivityLogger
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, op string, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("sales repository not initialised")
	}
	return r.runner.InTx(ctx, op, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, activity: r.activity})
	})
}

// RecentSales lists the latest sales with their line counts.
func (r *Repository) RecentSales(ctx context.Context, limit int) ([]RecentSale, error) {
	rows, err := r.pool.Query(ctx, `SELECT s.id, s.transaction_id::text, s.sale_date, s.total_amount, s.payment_method, COUNT(i.id)
FROM sales s
LEFT JOIN sale_items i ON i.sale_id = s.id
GROUP BY s.id
ORDER BY s.sale_date DESC, s.id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []RecentSale{}
	for rows.Next() {
		var (
			row    RecentSale
			txID   string
			method string
		)
		if err := rows.Scan(&row.SaleID, &txID, &row.Date, &row.Amount, &method, &row.ItemCount); err != nil {
			return nil, err
		}
		row.ShortID = shortID(txID)
		row.PaymentMethod = ledger.PaymentMethod(method)
		out = append(out, row)
	}
	return out, rows.Err()
}

// DashboardStats aggregates today's sales and current stock levels.
func (r *Repository) DashboardStats(ctx context.Context, today ledger.DateRange) (DashboardStats, error) {
	var stats DashboardStats
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total_amount), 0), COUNT(*)
FROM sales WHERE sale_date >= $1 AND sale_date < $2`, today.Start, today.End).Scan(&stats.TodayRevenue, &stats.TodaySaleCount)
	if err != nil {
		return DashboardStats{}, err
	}
	err = r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(stock_quantity), 0), COUNT(*) FILTER (WHERE stock_quantity <= critical_stock)
FROM products`).Scan(&stats.TotalStockUnits, &stats.CriticalStockSKUs)
	if err != nil {
		return DashboardStats{}, err
	}
	return stats, nil
}

func (r *txRepository) LockProducts(ctx context.Context, ids []int64) (map[int64]ledger.Product, error) {
	return inventory.LockProducts(ctx, r.tx, ids)
}

func (r *txRepository) LockCustomer(ctx context.Context, id int64) (ledger.Customer, error) {
	var c ledger.Customer
	err := r.tx.QueryRow(ctx, `SELECT id, full_name, phone, email, loyalty_points, debt_balance
FROM customers WHERE id=$1 FOR UPDATE`, id).Scan(&c.ID, &c.FullName, &c.Phone, &c.Email, &c.LoyaltyPoints, &c.DebtBalance)
	if err != nil {
		if db.IsNoRows(err) {
			return ledger.Customer{}, ledger.NotFoundf("customer %d not found", id)
		}
		return ledger.Customer{}, err
	}
	return c, nil
}

func (r *txRepository) InsertSale(ctx context.Context, sale ledger.Sale) (int64, error) {
	txID, err := uuid.Parse(sale.TransactionID)
	if err != nil {
		return 0, fmt.Errorf("sales: invalid transaction id: %w", err)
	}
	var id int64
	err = r.tx.QueryRow(ctx, `INSERT INTO sales (transaction_id, sale_date, total_amount, tax_amount, discount_amount, payment_method, customer_id, employee_id, price_flagged)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`, txID, sale.Date, sale.TotalAmount, sale.TaxAmount, sale.DiscountAmount, string(sale.PaymentMethod), sale.CustomerID, sale.EmployeeID, sale.PriceFlagged).Scan(&id)
	return id, err
}

func (r *txRepository) InsertSaleItems(ctx context.Context, saleID int64, items []ledger.SaleItem) error {
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`INSERT INTO sale_items (sale_id, product_id, quantity, unit_price, unit_cost, line_total)
VALUES ($1, $2, $3, $4, $5, $6)`, saleID, item.ProductID, item.Quantity, item.UnitPrice, item.UnitCost, item.LineTotal)
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txRepository) ApplyMovement(ctx context.Context, m ledger.StockMovement) error {
	return inventory.ApplyMovement(ctx, r.tx, m)
}

func (r *txRepository) AddCustomerDebt(ctx context.Context, customerID int64, amount decimal.Decimal) error {
	tag, err := r.tx.Exec(ctx, `UPDATE customers SET debt_balance = debt_balance + $2 WHERE id=$1`, customerID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.NotFoundf("customer %d not found", customerID)
	}
	return nil
}

func (r *txRepository) RecordActivity(ctx context.Context, log shared.ActivityLog) error {
	return r.activity.Record(ctx, r.tx, log)
}
