// Package payroll computes statutory salary deductions and posts at most one
// payment per employee and period.
package payroll

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
)

// Decomposition splits a gross salary into statutory deductions and net pay.
type Decomposition struct {
	Gross decimal.Decimal `json:"gross"`
	SGK   decimal.Decimal `json:"sgk"`
	Tax   decimal.Decimal `json:"tax"`
	Net   decimal.Decimal `json:"net"`
}

// Decompose applies the SGK and income tax rates (percentages) to base.
// Intermediate values keep full precision; each output is rounded once.
func Decompose(base, sgkRate, taxRate decimal.Decimal) Decomposition {
	sgk := ledger.Percent(base, sgkRate)
	tax := ledger.Percent(base.Sub(sgk), taxRate)
	net := base.Sub(sgk).Sub(tax)
	return Decomposition{
		Gross: ledger.Round2(base),
		SGK:   ledger.Round2(sgk),
		Tax:   ledger.Round2(tax),
		Net:   ledger.Round2(net),
	}
}

// PayInput requests one salary payment. A nil Period means the current one.
type PayInput struct {
	EmployeeID int64
	Period     *ledger.Period
	Notes      string
	ActorID    int64
}

// PayResult describes a posted salary payment.
type PayResult struct {
	PaymentID  int64           `json:"payment_id"`
	EmployeeID int64           `json:"employee_id"`
	Period     ledger.Period   `json:"period"`
	Gross      decimal.Decimal `json:"gross"`
	Net        decimal.Decimal `json:"net"`
	Tax        decimal.Decimal `json:"tax"`
	SGK        decimal.Decimal `json:"sgk"`
	Message    string          `json:"-"`
}

// PayAllInput requests a payroll run for every unpaid active employee.
type PayAllInput struct {
	Period  *ledger.Period
	ActorID int64
}

// PayAllResult summarises a payroll run.
type PayAllResult struct {
	PaidCount int             `json:"paid_count"`
	Period    ledger.Period   `json:"period"`
	TotalNet  decimal.Decimal `json:"total_net"`
	Message   string          `json:"-"`
}

// PendingSalary is an employee's computed salary for a period and whether it
// has been paid.
type PendingSalary struct {
	EmployeeID int64               `json:"employee_id"`
	FullName   string              `json:"full_name"`
	Role       ledger.EmployeeRole `json:"role"`
	Period     ledger.Period       `json:"period"`
	Paid       bool                `json:"paid"`
	Decomposition
}

func salaryDescription(name string, period ledger.Period) string {
	return "Maaş: " + name + " (" + period.String() + ")"
}
