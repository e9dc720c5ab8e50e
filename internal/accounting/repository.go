package accounting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Repository reads report rows and maintains expenses in PostgreSQL.
type Repository struct {
	pool     *pgxpool.Pool
	runner   *db.Runner
	activity *shared.ActivityLogger
	zone     string
}

// NewRepository constructs Repository. Monthly buckets are cut in loc.
func NewRepository(pool *pgxpool.Pool, runner *db.Runner, activity *shared.ActivityLogger, loc *time.Location) *Repository {
	if loc == nil {
		loc = time.UTC
	}
	return &Repository{pool: pool, runner: runner, activity: activity, zone: loc.String()}
}

// TxRepository exposes transactional expense operations.
type TxRepository interface {
	InsertExpense(ctx context.Context, e ledger.Expense) (int64, error)
	LockExpense(ctx context.Context, id int64) (StoredExpense, error)
	DeleteExpense(ctx context.Context, id int64) error
	RecordActivity(ctx context.Context, log shared.ActivityLog) error
}

type txRepository struct {
	tx       pgx.Tx
	activity *shared.ActivityLogger
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, op string, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("accounting repository not initialised")
	}
	return r.runner.InTx(ctx, op, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, activity: r.activity})
	})
}

// ExpenseTotals groups expenses in the range by category.
func (r *Repository) ExpenseTotals(ctx context.Context, rng ledger.DateRange) ([]reports.CategoryTotal, error) {
	var out []reports.CategoryTotal
	err := r.runner.InReadTx(ctx, "accounting.expense_summary", func(ctx context.Context, tx pgx.Tx) error {
		var err error
		out, err = categoryTotals(ctx, tx, rng)
		return err
	})
	return out, err
}

// TaxInputs collects the yearly sums for the tax summary in one snapshot.
func (r *Repository) TaxInputs(ctx context.Context, year int, rng ledger.DateRange) (reports.TaxInputs, error) {
	in := reports.TaxInputs{Year: year}
	err := r.runner.InReadTx(ctx, "accounting.tax_summary", func(ctx context.Context, tx pgx.Tx) error {
		var err error
		in.KDVMonthly, err = monthlySums(ctx, tx, `SELECT EXTRACT(MONTH FROM sale_date AT TIME ZONE $3)::int AS month, SUM(tax_amount)
FROM sales
WHERE sale_date >= $1 AND sale_date < $2
GROUP BY 1
ORDER BY 1`, rng.Start, rng.End, r.zone)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `SELECT COALESCE(SUM(sgk_deduction), 0), COALESCE(SUM(tax_deduction), 0), COALESCE(SUM(gross_salary), 0)
FROM salary_payments
WHERE period LIKE $1`, fmt.Sprintf("%04d-%%", year)).Scan(&in.SalarySGK, &in.SalaryTax, &in.SalaryGross)
		if err != nil {
			return err
		}
		return tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)
FROM expenses
WHERE category = $1 AND expense_date >= $2 AND expense_date < $3`, string(ledger.ExpenseTax), rng.Start, rng.End).Scan(&in.TaxExpenses)
	})
	return in, err
}

// ProfitLossInputs collects revenue, cost and expense sums for the range.
func (r *Repository) ProfitLossInputs(ctx context.Context, rng ledger.DateRange, basis COGSBasis) (reports.PLInputs, error) {
	in := reports.PLInputs{Range: rng}
	costColumn := "p.purchase_price"
	if basis == COGSSnapshot {
		costColumn = "si.unit_cost"
	}
	err := r.runner.InReadTx(ctx, "accounting.profit_loss", func(ctx context.Context, tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `SELECT COALESCE(SUM(total_amount), 0), COALESCE(SUM(tax_amount), 0), COALESCE(SUM(discount_amount), 0), COUNT(*)
FROM sales
WHERE sale_date >= $1 AND sale_date < $2`, rng.Start, rng.End).Scan(&in.Revenue, &in.TaxCollected, &in.Discounts, &in.SaleCount)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `SELECT COALESCE(SUM(si.quantity * `+costColumn+`), 0)
FROM sale_items si
JOIN sales s ON s.id = si.sale_id
JOIN products p ON p.id = si.product_id
WHERE s.sale_date >= $1 AND s.sale_date < $2`, rng.Start, rng.End).Scan(&in.COGS)
		if err != nil {
			return err
		}
		in.Expenses, err = categoryTotals(ctx, tx, rng)
		return err
	})
	return in, err
}

// MonthlyTotals returns revenue and expense sums per calendar month.
func (r *Repository) MonthlyTotals(ctx context.Context, rng ledger.DateRange) (revenue, expenses []reports.MonthAmount, err error) {
	err = r.runner.InReadTx(ctx, "accounting.monthly_summary", func(ctx context.Context, tx pgx.Tx) error {
		var err error
		revenue, err = monthlySums(ctx, tx, `SELECT EXTRACT(MONTH FROM sale_date AT TIME ZONE $3)::int, SUM(total_amount)
FROM sales
WHERE sale_date >= $1 AND sale_date < $2
GROUP BY 1`, rng.Start, rng.End, r.zone)
		if err != nil {
			return err
		}
		expenses, err = monthlySums(ctx, tx, `SELECT EXTRACT(MONTH FROM expense_date AT TIME ZONE $3)::int, SUM(amount)
FROM expenses
WHERE expense_date >= $1 AND expense_date < $2
GROUP BY 1`, rng.Start, rng.End, r.zone)
		return err
	})
	return revenue, expenses, err
}

// ListExpenses returns expenses in the range, newest first.
func (r *Repository) ListExpenses(ctx context.Context, rng ledger.DateRange) ([]ledger.Expense, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, description, amount, category, expense_date, employee_id, is_recurring, notes
FROM expenses
WHERE expense_date >= $1 AND expense_date < $2
ORDER BY expense_date DESC, id DESC`, rng.Start, rng.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ledger.Expense{}
	for rows.Next() {
		var (
			e        ledger.Expense
			category string
		)
		if err := rows.Scan(&e.ID, &e.Description, &e.Amount, &category, &e.Date, &e.EmployeeID, &e.Recurring, &e.Notes); err != nil {
			return nil, err
		}
		e.Category = ledger.ExpenseCategory(category)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *txRepository) InsertExpense(ctx context.Context, e ledger.Expense) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO expenses (description, amount, category, expense_date, employee_id, is_recurring, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`, e.Description, e.Amount, string(e.Category), e.Date, e.EmployeeID, e.Recurring, e.Notes).Scan(&id)
	return id, err
}

func (r *txRepository) LockExpense(ctx context.Context, id int64) (StoredExpense, error) {
	var (
		e        StoredExpense
		category string
	)
	err := r.tx.QueryRow(ctx, `SELECT id, description, amount, category, expense_date, employee_id, salary_payment_id, is_recurring, notes
FROM expenses WHERE id=$1 FOR UPDATE`, id).Scan(&e.ID, &e.Description, &e.Amount, &category, &e.Date, &e.EmployeeID, &e.SalaryPaymentID, &e.Recurring, &e.Notes)
	if db.IsNoRows(err) {
		return StoredExpense{}, ledger.NotFoundf("expense %d not found", id)
	}
	if err != nil {
		return StoredExpense{}, err
	}
	e.Category = ledger.ExpenseCategory(category)
	return e, nil
}

func (r *txRepository) DeleteExpense(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM expenses WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.NotFoundf("expense %d not found", id)
	}
	return nil
}

func (r *txRepository) RecordActivity(ctx context.Context, log shared.ActivityLog) error {
	return r.activity.Record(ctx, r.tx, log)
}

func categoryTotals(ctx context.Context, q db.Querier, rng ledger.DateRange) ([]reports.CategoryTotal, error) {
	rows, err := q.Query(ctx, `SELECT category, COUNT(*), SUM(amount)
FROM expenses
WHERE expense_date >= $1 AND expense_date < $2
GROUP BY category`, rng.Start, rng.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []reports.CategoryTotal{}
	for rows.Next() {
		var (
			row      reports.CategoryTotal
			category string
		)
		if err := rows.Scan(&category, &row.Count, &row.Total); err != nil {
			return nil, err
		}
		row.Category = ledger.ExpenseCategory(category)
		out = append(out, row)
	}
	return out, rows.Err()
}

func monthlySums(ctx context.Context, q db.Querier, sql string, args ...any) ([]reports.MonthAmount, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []reports.MonthAmount{}
	for rows.Next() {
		var (
			month  int
			amount decimal.Decimal
		)
		if err := rows.Scan(&month, &amount); err != nil {
			return nil, err
		}
		out = append(out, reports.MonthAmount{Month: month, Amount: amount})
	}
	return out, rows.Err()
}
