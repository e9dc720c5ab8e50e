package reports

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
	_ "github.com/odyssey-erp/odyssey-pos/testing"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func januaryRange(t *testing.T) ledger.DateRange {
	t.Helper()
	rng, err := ledger.NewDateRange(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), time.UTC)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	return rng
}

func TestBuildExpenseSummary(t *testing.T) {
	rows := []CategoryTotal{
		{Category: ledger.ExpenseOther, Count: 1, Total: d("500")},
		{Category: ledger.ExpenseRent, Count: 1, Total: d("500")},
		{Category: ledger.ExpenseSalary, Count: 3, Total: d("21930")},
	}
	summary := BuildExpenseSummary(januaryRange(t), rows)
	if !summary.Total.Equal(d("22930")) {
		t.Fatalf("unexpected total %s", summary.Total)
	}
	if summary.Count != 5 {
		t.Fatalf("expected 5 expenses, got %d", summary.Count)
	}
	order := []ledger.ExpenseCategory{ledger.ExpenseSalary, ledger.ExpenseRent, ledger.ExpenseOther}
	for i, want := range order {
		if summary.ByCategory[i].Category != want {
			t.Fatalf("position %d: expected %s got %s", i, want, summary.ByCategory[i].Category)
		}
	}
	if got := summary.End.Day(); got != 31 {
		t.Fatalf("expected inclusive end day 31, got %d", got)
	}
}

func TestBuildTaxSummary(t *testing.T) {
	summary := BuildTaxSummary(TaxInputs{
		Year:        2026,
		KDVMonthly:  []MonthAmount{{Month: 3, Amount: d("40")}, {Month: 1, Amount: d("10.50")}},
		SalarySGK:   d("1400"),
		SalaryTax:   d("1290"),
		SalaryGross: d("10000"),
		TaxExpenses: d("250"),
	})
	if !summary.KDV.Collected.Equal(d("50.50")) {
		t.Fatalf("unexpected KDV %s", summary.KDV.Collected)
	}
	if len(summary.KDV.Monthly) != 2 || summary.KDV.Monthly[0].Month != 1 {
		t.Fatalf("monthly KDV not sorted: %+v", summary.KDV.Monthly)
	}
	if !summary.SGK.EmployerShare.Equal(d("2050")) {
		t.Fatalf("unexpected employer share %s", summary.SGK.EmployerShare)
	}
	if !summary.SGK.Total.Equal(d("3450")) {
		t.Fatalf("unexpected SGK total %s", summary.SGK.Total)
	}
	// 50.50 + 1400 + 2050 + 1290 + 250
	if !summary.GrandTotal.Equal(d("5040.50")) {
		t.Fatalf("unexpected grand total %s", summary.GrandTotal)
	}
}

func TestBuildProfitLoss(t *testing.T) {
	pl := BuildProfitLoss(PLInputs{
		Range:     januaryRange(t),
		Revenue:   d("1000"),
		COGS:      d("600"),
		SaleCount: 4,
		Expenses: []CategoryTotal{
			{Category: ledger.ExpenseRent, Count: 1, Total: d("150")},
			{Category: ledger.ExpenseWater, Count: 1, Total: d("50")},
		},
	})
	if !pl.GrossProfit.Equal(d("400")) {
		t.Fatalf("unexpected gross profit %s", pl.GrossProfit)
	}
	if !pl.TotalExpenses.Equal(d("200")) {
		t.Fatalf("unexpected expenses %s", pl.TotalExpenses)
	}
	if !pl.NetProfit.Equal(d("200")) {
		t.Fatalf("unexpected net profit %s", pl.NetProfit)
	}
	if !pl.ProfitMargin.Equal(d("20")) {
		t.Fatalf("unexpected margin %s", pl.ProfitMargin)
	}
	if !pl.NetProfit.Equal(pl.Revenue.Sub(pl.COGS).Sub(pl.TotalExpenses)) {
		t.Fatalf("net profit identity broken")
	}
}

func TestBuildProfitLossWithoutRevenue(t *testing.T) {
	pl := BuildProfitLoss(PLInputs{
		Range:    januaryRange(t),
		Expenses: []CategoryTotal{{Category: ledger.ExpenseRent, Count: 1, Total: d("150")}},
	})
	if !pl.ProfitMargin.IsZero() {
		t.Fatalf("expected zero margin, got %s", pl.ProfitMargin)
	}
	if !pl.NetProfit.Equal(d("-150")) {
		t.Fatalf("unexpected net profit %s", pl.NetProfit)
	}
}

func TestBuildMonthlySummary(t *testing.T) {
	rows := BuildMonthlySummary(
		[]MonthAmount{{Month: 2, Amount: d("300")}},
		[]MonthAmount{{Month: 2, Amount: d("120")}, {Month: 11, Amount: d("80")}},
	)
	if len(rows) != 12 {
		t.Fatalf("expected 12 months, got %d", len(rows))
	}
	if !rows[1].Profit.Equal(d("180")) {
		t.Fatalf("unexpected february profit %s", rows[1].Profit)
	}
	if !rows[10].Profit.Equal(d("-80")) {
		t.Fatalf("unexpected november profit %s", rows[10].Profit)
	}
	if !rows[0].Revenue.IsZero() || rows[0].Month != 1 {
		t.Fatalf("january should be zero-filled: %+v", rows[0])
	}
}
