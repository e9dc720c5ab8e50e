package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
)

// PostgreSQL SQLSTATE codes the ledger reacts to.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
)

// Constraint names declared in schema.sql.
const (
	ConstraintSalaryPerPeriod  = "salary_payments_employee_period_key"
	ConstraintStockNonNegative = "products_stock_nonnegative"
	ConstraintDebtNonNegative  = "customers_debt_nonnegative"
)

// foreignKeyTargets names the entity each referencing column points at. The
// keys are the default names PostgreSQL gives the REFERENCES clauses in
// schema.sql.
var foreignKeyTargets = map[string]string{
	"products_category_id_fkey":        "category",
	"sales_customer_id_fkey":           "customer",
	"sales_employee_id_fkey":           "employee",
	"sale_items_sale_id_fkey":          "sale",
	"sale_items_product_id_fkey":       "product",
	"salary_payments_employee_id_fkey": "employee",
	"expenses_employee_id_fkey":        "employee",
	"expenses_salary_payment_id_fkey":  "salary payment",
	"debt_payments_customer_id_fkey":   "customer",
	"stock_movements_product_id_fkey":  "product",
	"stock_movements_ref_sale_id_fkey": "sale",
}

// IsRetryable reports whether err is a serialization conflict worth retrying.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
	}
	return false
}

// IsUniqueViolation reports whether err is a unique-constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// IsNoRows reports whether err signals an empty single-row result.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// Classify maps driver failures onto ledger error kinds. Errors that already
// carry a kind pass through unchanged; anything unrecognised becomes a
// StoreError keeping the cause for logs.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if ledger.KindOf(err) != "" {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			if pgErr.ConstraintName == ConstraintSalaryPerPeriod {
				return ledger.AlreadyPaidf("salary for this period has already been paid")
			}
			return ledger.Validationf("a record with the same key already exists")
		case codeCheckViolation:
			switch pgErr.ConstraintName {
			case ConstraintStockNonNegative:
				return ledger.InsufficientStockf("stock quantity cannot become negative")
			case ConstraintDebtNonNegative:
				return ledger.Validationf("customer debt balance cannot become negative")
			}
			return ledger.Validationf("value rejected by the ledger: %s", pgErr.ConstraintName)
		case codeForeignKeyViolation:
			return classifyForeignKey(op, pgErr)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return &ledger.StoreError{Op: op, Cause: err}
	}
	return ledger.Unavailable(op, err)
}

// classifyForeignKey separates a delete blocked by dependent rows from a
// write that names a row which does not exist.
func classifyForeignKey(op string, pgErr *pgconn.PgError) error {
	if strings.Contains(op, ".delete") || strings.HasPrefix(pgErr.Message, "update or delete") {
		return ledger.Validationf("record is still referenced by other ledger entries")
	}
	if target, ok := foreignKeyTargets[pgErr.ConstraintName]; ok {
		return ledger.Validationf("referenced %s does not exist", target)
	}
	return ledger.Validationf("referenced record does not exist")
}
