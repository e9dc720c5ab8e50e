package customers

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

// Repository persists customer debt in PostgreSQL.
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
	LockCustomer(ctx context.Context, id int64) (ledger.Customer, error)
	InsertDebtPayment(ctx context.Context, p ledger.DebtPayment) (int64, error)
	SetDebtBalance(ctx context.Context, customerID int64, balance decimal.Decimal) error
	CountSales(ctx context.Context, customerID int64) (int, error)
	DeleteCustomer(ctx context.Context, id int64) error
	RecordActivity(ctx context.Context, log shared.ActivityLog) error
}

type txRepository struct {
	tx       pgx.Tx
	activity *shared.ActivityLogger
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, op string, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("customers repository not initialised")
	}
	return r.runner.InTx(ctx, op, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, activity: r.activity})
	})
}

// CustomerExists reports whether the customer id is known.
func (r *Repository) CustomerExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id=$1)`, id).Scan(&ok)
	return ok, err
}

// DebtHistory lists payments for a customer, newest first.
func (r *Repository) DebtHistory(ctx context.Context, customerID int64) ([]ledger.DebtPayment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, customer_id, amount, payment_date, notes
FROM debt_payments
WHERE customer_id=$1
ORDER BY payment_date DESC, id DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ledger.DebtPayment{}
	for rows.Next() {
		var p ledger.DebtPayment
		if err := rows.Scan(&p.ID, &p.CustomerID, &p.Amount, &p.Date, &p.Notes); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DebtorsAbove lists customers whose balance exceeds the threshold.
func (r *Repository) DebtorsAbove(ctx context.Context, threshold decimal.Decimal) ([]ledger.Customer, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, full_name, phone, email, loyalty_points, debt_balance
FROM customers
WHERE debt_balance > $1
ORDER BY debt_balance DESC, id`, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ledger.Customer{}
	for rows.Next() {
		var c ledger.Customer
		if err := rows.Scan(&c.ID, &c.FullName, &c.Phone, &c.Email, &c.LoyaltyPoints, &c.DebtBalance); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
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

func (r *txRepository) InsertDebtPayment(ctx context.Context, p ledger.DebtPayment) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO debt_payments (customer_id, amount, payment_date, notes)
VALUES ($1, $2, $3, $4) RETURNING id`, p.CustomerID, p.Amount, p.Date, p.Notes).Scan(&id)
	return id, err
}

func (r *txRepository) SetDebtBalance(ctx context.Context, customerID int64, balance decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE customers SET debt_balance=$2 WHERE id=$1`, customerID, balance)
	return err
}

func (r *txRepository) CountSales(ctx context.Context, customerID int64) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM sales WHERE customer_id=$1`, customerID).Scan(&n)
	return n, err
}

// DeleteCustomer removes the customer together with its settled payment history.
func (r *txRepository) DeleteCustomer(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM debt_payments WHERE customer_id=$1`, id); err != nil {
		return err
	}
	_, err := r.tx.Exec(ctx, `DELETE FROM customers WHERE id=$1`, id)
	return err
}

func (r *txRepository) RecordActivity(ctx context.Context, log shared.ActivityLog) error {
	return r.activity.Record(ctx, r.tx, log)
}
