// Package accounting serves expense bookkeeping and the read-only financial
// reports derived from sales, payroll and expenses.
package accounting

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
)

// COGSBasis selects the unit cost used for cost of goods sold.
type COGSBasis string

const (
	// COGSLive prices sold quantities at the product's current purchase price.
	COGSLive COGSBasis = "live"
	// COGSSnapshot uses the unit cost captured on each sale item.
	COGSSnapshot COGSBasis = "snapshot"
)

// ParseCOGSBasis validates a configured basis. Empty selects COGSLive.
func ParseCOGSBasis(raw string) (COGSBasis, error) {
	switch COGSBasis(strings.ToLower(strings.TrimSpace(raw))) {
	case "", COGSLive:
		return COGSLive, nil
	case COGSSnapshot:
		return COGSSnapshot, nil
	}
	return "", fmt.Errorf("accounting: unknown cogs basis %q", raw)
}

// ExpenseInput describes a manually recorded expense.
type ExpenseInput struct {
	Description string
	Amount      decimal.Decimal
	Category    ledger.ExpenseCategory
	Date        *time.Time
	Notes       string
	Recurring   bool
	ActorID     int64
}

// StoredExpense is an expense row with its payroll link, if any.
type StoredExpense struct {
	ledger.Expense
	SalaryPaymentID *int64
}

// SalaryMirror reports whether the expense was written by a salary payment.
func (e StoredExpense) SalaryMirror() bool { return e.SalaryPaymentID != nil }
