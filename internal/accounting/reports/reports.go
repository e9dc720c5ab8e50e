// Package reports builds accounting statements from pre-aggregated ledger rows.
package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
)

// EmployerSGKRate is the employer share estimate applied to gross salaries.
var EmployerSGKRate = decimal.RequireFromString("0.205")

var hundred = decimal.NewFromInt(100)

// CategoryTotal is the expense count and sum for one category.
type CategoryTotal struct {
	Category ledger.ExpenseCategory `json:"category"`
	Ordinal  int                    `json:"ordinal"`
	Count    int                    `json:"count"`
	Total    decimal.Decimal        `json:"total"`
}

// MonthAmount is a sum for one calendar month (1-12).
type MonthAmount struct {
	Month  int             `json:"month"`
	Amount decimal.Decimal `json:"amount"`
}

// ExpenseSummary totals expenses for a date range.
type ExpenseSummary struct {
	Start      time.Time       `json:"start"`
	End        time.Time       `json:"end"`
	Total      decimal.Decimal `json:"total"`
	Count      int             `json:"count"`
	ByCategory []CategoryTotal `json:"by_category"`
}

// BuildExpenseSummary totals rows and orders categories by sum, largest first.
// Equal sums keep the category declaration order.
func BuildExpenseSummary(r ledger.DateRange, rows []CategoryTotal) ExpenseSummary {
	out := ExpenseSummary{Start: r.Start, End: r.LastDay(), Total: decimal.Zero, ByCategory: sortCategories(rows)}
	for _, row := range out.ByCategory {
		out.Total = out.Total.Add(row.Total)
		out.Count += row.Count
	}
	return out
}

func sortCategories(rows []CategoryTotal) []CategoryTotal {
	out := make([]CategoryTotal, 0, len(rows))
	for _, row := range rows {
		row.Ordinal = row.Category.Ordinal()
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Ordinal < out[j].Ordinal
	})
	return out
}

// TaxInputs are the yearly sums the tax summary is derived from.
type TaxInputs struct {
	Year        int
	KDVMonthly  []MonthAmount
	SalarySGK   decimal.Decimal
	SalaryTax   decimal.Decimal
	SalaryGross decimal.Decimal
	TaxExpenses decimal.Decimal
}

// KDV is value added tax collected through sales.
type KDV struct {
	Collected decimal.Decimal `json:"collected"`
	Monthly   []MonthAmount   `json:"monthly"`
}

// SGKShares splits social security contributions.
type SGKShares struct {
	EmployeeShare decimal.Decimal `json:"employee_share"`
	EmployerShare decimal.Decimal `json:"employer_share"`
	Total         decimal.Decimal `json:"total"`
}

// TaxSummary is the yearly tax liability overview.
type TaxSummary struct {
	Year             int             `json:"year"`
	KDV              KDV             `json:"kdv"`
	SGK              SGKShares       `json:"sgk"`
	IncomeTax        decimal.Decimal `json:"income_tax"`
	TaxExpenses      decimal.Decimal `json:"tax_expenses"`
	TotalGrossSalary decimal.Decimal `json:"total_gross_salary"`
	GrandTotal       decimal.Decimal `json:"grand_total"`
}

// BuildTaxSummary derives the yearly tax overview. Monthly KDV lists only
// months with sales, in calendar order.
func BuildTaxSummary(in TaxInputs) TaxSummary {
	monthly := make([]MonthAmount, 0, len(in.KDVMonthly))
	collected := decimal.Zero
	for _, m := range in.KDVMonthly {
		monthly = append(monthly, m)
		collected = collected.Add(m.Amount)
	}
	sort.Slice(monthly, func(i, j int) bool { return monthly[i].Month < monthly[j].Month })

	employer := in.SalaryGross.Mul(EmployerSGKRate)
	sgk := SGKShares{
		EmployeeShare: in.SalarySGK,
		EmployerShare: employer,
		Total:         in.SalarySGK.Add(employer),
	}
	return TaxSummary{
		Year:             in.Year,
		KDV:              KDV{Collected: collected, Monthly: monthly},
		SGK:              sgk,
		IncomeTax:        in.SalaryTax,
		TaxExpenses:      in.TaxExpenses,
		TotalGrossSalary: in.SalaryGross,
		GrandTotal:       ledger.Sum(collected, sgk.EmployeeShare, sgk.EmployerShare, in.SalaryTax, in.TaxExpenses),
	}
}

// PLInputs are the range sums the profit and loss statement is derived from.
type PLInputs struct {
	Range        ledger.DateRange
	Revenue      decimal.Decimal
	TaxCollected decimal.Decimal
	Discounts    decimal.Decimal
	COGS         decimal.Decimal
	SaleCount    int
	Expenses     []CategoryTotal
}

// ProfitLoss is the profit and loss statement for a date range.
type ProfitLoss struct {
	Start              time.Time       `json:"start"`
	End                time.Time       `json:"end"`
	Revenue            decimal.Decimal `json:"revenue"`
	TaxCollected       decimal.Decimal `json:"tax_collected"`
	Discounts          decimal.Decimal `json:"discounts"`
	COGS               decimal.Decimal `json:"cogs"`
	GrossProfit        decimal.Decimal `json:"gross_profit"`
	TotalExpenses      decimal.Decimal `json:"total_expenses"`
	ExpensesByCategory []CategoryTotal `json:"expenses_by_category"`
	NetProfit          decimal.Decimal `json:"net_profit"`
	ProfitMargin       decimal.Decimal `json:"profit_margin"`
	SaleCount          int             `json:"sale_count"`
}

// BuildProfitLoss derives gross and net profit. The margin is net profit as a
// percentage of revenue, zero when there is no revenue.
func BuildProfitLoss(in PLInputs) ProfitLoss {
	byCategory := sortCategories(in.Expenses)
	expenses := decimal.Zero
	for _, row := range byCategory {
		expenses = expenses.Add(row.Total)
	}
	gross := in.Revenue.Sub(in.COGS)
	net := gross.Sub(expenses)
	return ProfitLoss{
		Start:              in.Range.Start,
		End:                in.Range.LastDay(),
		Revenue:            in.Revenue,
		TaxCollected:       in.TaxCollected,
		Discounts:          in.Discounts,
		COGS:               in.COGS,
		GrossProfit:        gross,
		TotalExpenses:      expenses,
		ExpensesByCategory: byCategory,
		NetProfit:          net,
		ProfitMargin:       Margin(net, in.Revenue),
		SaleCount:          in.SaleCount,
	}
}

// Margin returns net / revenue × 100, or zero when revenue is zero.
func Margin(net, revenue decimal.Decimal) decimal.Decimal {
	if revenue.IsZero() {
		return decimal.Zero
	}
	return net.Div(revenue).Mul(hundred)
}

// MonthlyRow is one month of the yearly summary.
type MonthlyRow struct {
	Month    int             `json:"month"`
	Revenue  decimal.Decimal `json:"revenue"`
	Expenses decimal.Decimal `json:"expenses"`
	Profit   decimal.Decimal `json:"profit"`
}

// BuildMonthlySummary returns twelve rows, zero-filled for quiet months.
func BuildMonthlySummary(revenue, expenses []MonthAmount) []MonthlyRow {
	rows := make([]MonthlyRow, 12)
	for i := range rows {
		rows[i] = MonthlyRow{Month: i + 1, Revenue: decimal.Zero, Expenses: decimal.Zero}
	}
	for _, m := range revenue {
		if m.Month >= 1 && m.Month <= 12 {
			rows[m.Month-1].Revenue = rows[m.Month-1].Revenue.Add(m.Amount)
		}
	}
	for _, m := range expenses {
		if m.Month >= 1 && m.Month <= 12 {
			rows[m.Month-1].Expenses = rows[m.Month-1].Expenses.Add(m.Amount)
		}
	}
	for i := range rows {
		rows[i].Profit = rows[i].Revenue.Sub(rows[i].Expenses)
	}
	return rows
}
