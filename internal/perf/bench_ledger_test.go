package perf

import (
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
	"github.com/odyssey-erp/odyssey-pos/internal/payroll"
)

func plInputs() reports.PLInputs {
	rng := ledger.YearRange(2026, time.UTC)
	expenses := make([]reports.CategoryTotal, 0, len(ledger.ExpenseCategories))
	for i, c := range ledger.ExpenseCategories {
		expenses = append(expenses, reports.CategoryTotal{
			Category: c,
			Ordinal:  c.Ordinal(),
			Count:    i + 1,
			Total:    decimal.NewFromInt(int64(1000 - i*37)),
		})
	}
	return reports.PLInputs{
		Range:     rng,
		Revenue:   decimal.RequireFromString("1843210.55"),
		COGS:      decimal.RequireFromString("1204377.10"),
		SaleCount: 18230,
		Expenses:  expenses,
	}
}

func TestReportBuildLatencyTargets(t *testing.T) {
	in := plInputs()
	samples := make([]time.Duration, 0, 200)
	for i := 0; i < 200; i++ {
		start := time.Now()
		pl := reports.BuildProfitLoss(in)
		samples = append(samples, time.Since(start))
		if !pl.NetProfit.Equal(pl.GrossProfit.Sub(pl.TotalExpenses)) {
			t.Fatalf("net profit identity broken: %s", pl.NetProfit)
		}
	}
	if p95 := percentile95(samples); p95 > 5*time.Millisecond {
		t.Fatalf("profit and loss build regression: p95=%s", p95)
	}
}

func BenchmarkDecompose(b *testing.B) {
	base := decimal.RequireFromString("17002.00")
	sgk := decimal.NewFromInt(14)
	tax := decimal.NewFromInt(15)
	for i := 0; i < b.N; i++ {
		_ = payroll.Decompose(base, sgk, tax)
	}
}

func BenchmarkBuildProfitLoss(b *testing.B) {
	in := plInputs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = reports.BuildProfitLoss(in)
	}
}

func BenchmarkBuildMonthlySummary(b *testing.B) {
	revenue := make([]reports.MonthAmount, 12)
	expenses := make([]reports.MonthAmount, 12)
	for m := 1; m <= 12; m++ {
		revenue[m-1] = reports.MonthAmount{Month: m, Amount: decimal.NewFromInt(int64(m * 15000))}
		expenses[m-1] = reports.MonthAmount{Month: m, Amount: decimal.NewFromInt(int64(m * 9000))}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = reports.BuildMonthlySummary(revenue, expenses)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
