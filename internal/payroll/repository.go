package payroll

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Repository persists salary payments in PostgreSQL.
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
	LockEmployee(ctx context.Context, id int64) (ledger.Employee, error)
	HasPayment(ctx context.Context, employeeID int64, period ledger.Period) (bool, error)
	LockUnpaidEmployees(ctx context.Context, period ledger.Period) ([]ledger.Employee, error)
	InsertSalaryPayment(ctx context.Context, p ledger.SalaryPayment) (int64, error)
	InsertSalaryExpense(ctx context.Context, e ledger.Expense, paymentID int64) (int64, error)
	RecordActivity(ctx context.Context, log shared.ActivityLog) error
}

type txRepository struct {
	tx       pgx.Tx
	activity *shared.ActivityLogger
}

const employeeColumns = `id, username, full_name, role, is_active, base_salary, sgk_rate, tax_rate`

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, op string, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("payroll repository not initialised")
	}
	return r.runner.InTx(ctx, op, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, activity: r.activity})
	})
}

// ActiveEmployees lists active employees with the ids already paid for period.
func (r *Repository) ActiveEmployees(ctx context.Context, period ledger.Period) ([]ledger.Employee, map[int64]bool, error) {
	var (
		employees []ledger.Employee
		paid      = map[int64]bool{}
	)
	err := r.runner.InReadTx(ctx, "payroll.pending", func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+employeeColumns+` FROM employees WHERE is_active ORDER BY full_name, id`)
		if err != nil {
			return err
		}
		employees, err = scanEmployees(rows)
		if err != nil {
			return err
		}
		idRows, err := tx.Query(ctx, `SELECT employee_id FROM salary_payments WHERE period=$1`, period)
		if err != nil {
			return err
		}
		defer idRows.Close()
		for idRows.Next() {
			var id int64
			if err := idRows.Scan(&id); err != nil {
				return err
			}
			paid[id] = true
		}
		return idRows.Err()
	})
	return employees, paid, err
}

// History lists the newest salary payments with employee names.
func (r *Repository) History(ctx context.Context, limit int) ([]ledger.SalaryPayment, error) {
	rows, err := r.pool.Query(ctx, `SELECT sp.id, sp.employee_id, COALESCE(e.full_name, '?'), sp.period, sp.gross_salary, sp.net_salary, sp.tax_deduction, sp.sgk_deduction, sp.paid_at, sp.notes
FROM salary_payments sp
LEFT JOIN employees e ON e.id = sp.employee_id
ORDER BY sp.paid_at DESC, sp.id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ledger.SalaryPayment{}
	for rows.Next() {
		var p ledger.SalaryPayment
		if err := rows.Scan(&p.ID, &p.EmployeeID, &p.EmployeeName, &p.Period, &p.Gross, &p.Net, &p.Tax, &p.SGK, &p.PaidAt, &p.Notes); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *txRepository) LockEmployee(ctx context.Context, id int64) (ledger.Employee, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id=$1 FOR UPDATE`, id)
	if err != nil {
		return ledger.Employee{}, err
	}
	employees, err := scanEmployees(rows)
	if err != nil {
		return ledger.Employee{}, err
	}
	if len(employees) == 0 {
		return ledger.Employee{}, ledger.NotFoundf("employee %d not found", id)
	}
	return employees[0], nil
}

func (r *txRepository) HasPayment(ctx context.Context, employeeID int64, period ledger.Period) (bool, error) {
	var ok bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM salary_payments WHERE employee_id=$1 AND period=$2)`, employeeID, period).Scan(&ok)
	return ok, err
}

func (r *txRepository) LockUnpaidEmployees(ctx context.Context, period ledger.Period) ([]ledger.Employee, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+employeeColumns+`
FROM employees e
WHERE e.is_active AND e.base_salary > 0
  AND NOT EXISTS (SELECT 1 FROM salary_payments sp WHERE sp.employee_id = e.id AND sp.period = $1)
ORDER BY e.id
FOR UPDATE`, period)
	if err != nil {
		return nil, err
	}
	return scanEmployees(rows)
}

func (r *txRepository) InsertSalaryPayment(ctx context.Context, p ledger.SalaryPayment) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO salary_payments (employee_id, period, gross_salary, net_salary, tax_deduction, sgk_deduction, paid_at, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`, p.EmployeeID, p.Period, p.Gross, p.Net, p.Tax, p.SGK, p.PaidAt, p.Notes).Scan(&id)
	return id, err
}

func (r *txRepository) InsertSalaryExpense(ctx context.Context, e ledger.Expense, paymentID int64) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO expenses (description, amount, category, expense_date, employee_id, salary_payment_id, is_recurring, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`, e.Description, e.Amount, string(e.Category), e.Date, e.EmployeeID, paymentID, e.Recurring, e.Notes).Scan(&id)
	return id, err
}

func (r *txRepository) RecordActivity(ctx context.Context, log shared.ActivityLog) error {
	return r.activity.Record(ctx, r.tx, log)
}

func scanEmployees(rows pgx.Rows) ([]ledger.Employee, error) {
	defer rows.Close()
	out := []ledger.Employee{}
	for rows.Next() {
		var (
			e    ledger.Employee
			role string
		)
		if err := rows.Scan(&e.ID, &e.Username, &e.FullName, &role, &e.Active, &e.BaseSalary, &e.SGKRate, &e.TaxRate); err != nil {
			return nil, err
		}
		e.Role = ledger.EmployeeRole(role)
		out = append(out, e)
	}
	return out, rows.Err()
}
