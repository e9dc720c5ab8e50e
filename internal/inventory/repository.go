package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Repository persists stock movements in PostgreSQL.
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
	LockProduct(ctx context.Context, id int64) (ledger.Product, error)
	ApplyMovement(ctx context.Context, m ledger.StockMovement) error
	UpdatePurchasePrice(ctx context.Context, productID int64, cost decimal.Decimal) error
	RecordActivity(ctx context.Context, log shared.ActivityLog) error
}

type txRepository struct {
	tx       pgx.Tx
	activity *shared.ActivityLogger
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, op string, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return r.runner.InTx(ctx, op, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, activity: r.activity})
	})
}

// StockCard returns the newest movements of a product.
func (r *Repository) StockCard(ctx context.Context, productID int64, limit int) ([]ledger.StockMovement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, kind, quantity, stock_before, stock_after, unit_cost, note, ref_sale_id, COALESCE(actor_id, 0), created_at
FROM stock_movements
WHERE product_id=$1
ORDER BY created_at DESC, id DESC
LIMIT $2`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ledger.StockMovement{}
	for rows.Next() {
		var (
			m    ledger.StockMovement
			kind string
		)
		if err := rows.Scan(&m.ID, &m.ProductID, &kind, &m.Quantity, &m.StockBefore, &m.StockAfter, &m.UnitCost, &m.Note, &m.SaleID, &m.ActorID, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Kind = ledger.MovementKind(kind)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ProductExists reports whether the product id is known.
func (r *Repository) ProductExists(ctx context.Context, productID int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id=$1)`, productID).Scan(&ok)
	return ok, err
}

// LowStock lists products at or below their critical threshold.
func (r *Repository) LowStock(ctx context.Context) ([]StockLevel, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, barcode, name, stock_quantity, critical_stock
FROM products
WHERE stock_quantity <= critical_stock
ORDER BY stock_quantity ASC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []StockLevel{}
	for rows.Next() {
		var lvl StockLevel
		if err := rows.Scan(&lvl.ProductID, &lvl.Barcode, &lvl.Name, &lvl.StockQuantity, &lvl.CriticalStock); err != nil {
			return nil, err
		}
		out = append(out, lvl)
	}
	return out, rows.Err()
}

func (r *txRepository) LockProduct(ctx context.Context, id int64) (ledger.Product, error) {
	products, err := LockProducts(ctx, r.tx, []int64{id})
	if err != nil {
		return ledger.Product{}, err
	}
	p, ok := products[id]
	if !ok {
		return ledger.Product{}, ledger.NotFoundf("product %d not found", id)
	}
	return p, nil
}

func (r *txRepository) ApplyMovement(ctx context.Context, m ledger.StockMovement) error {
	return ApplyMovement(ctx, r.tx, m)
}

func (r *txRepository) UpdatePurchasePrice(ctx context.Context, productID int64, cost decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE products SET purchase_price=$2, updated_at=NOW() WHERE id=$1`, productID, cost)
	return err
}

func (r *txRepository) RecordActivity(ctx context.Context, log shared.ActivityLog) error {
	return r.activity.Record(ctx, r.tx, log)
}

// LockProducts row-locks the given products in ascending id order and returns
// them keyed by id. Unknown ids are absent from the map.
func LockProducts(ctx context.Context, q db.Querier, ids []int64) (map[int64]ledger.Product, error) {
	out := make(map[int64]ledger.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, `SELECT id, barcode, name, purchase_price, sale_price, stock_quantity, critical_stock, category_id
FROM products
WHERE id = ANY($1)
ORDER BY id
FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p ledger.Product
		if err := rows.Scan(&p.ID, &p.Barcode, &p.Name, &p.PurchasePrice, &p.SalePrice, &p.StockQuantity, &p.CriticalStock, &p.CategoryID); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// ApplyMovement shifts the product's stock by the movement quantity and
// appends the movement to the stock card. The products check constraint
// rejects a negative result.
func ApplyMovement(ctx context.Context, q db.Querier, m ledger.StockMovement) error {
	tag, err := q.Exec(ctx, `UPDATE products SET stock_quantity = stock_quantity + $2, updated_at = NOW() WHERE id=$1`, m.ProductID, m.Quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.NotFoundf("product %d not found", m.ProductID)
	}
	_, err = q.Exec(ctx, `INSERT INTO stock_movements (product_id, kind, quantity, stock_before, stock_after, unit_cost, note, ref_sale_id, actor_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, 0), $10)`,
		m.ProductID, string(m.Kind), m.Quantity, m.StockBefore, m.StockAfter, m.UnitCost, m.Note, m.SaleID, m.ActorID, m.CreatedAt)
	return err
}
