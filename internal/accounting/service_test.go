package accounting

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	_ "github.com/odyssey-erp/odyssey-pos/testing"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(m time.Month, d int) time.Time { return time.Date(2026, m, d, 10, 0, 0, 0, time.UTC) }

type memoryItem struct {
	qty      int
	liveCost decimal.Decimal
	snapCost decimal.Decimal
}

type memorySale struct {
	at       time.Time
	total    decimal.Decimal
	tax      decimal.Decimal
	discount decimal.Decimal
	items    []memoryItem
}

type memoryRepo struct {
	mu         sync.Mutex
	sales      []memorySale
	salaries   []ledger.SalaryPayment
	expenses   []StoredExpense
	activities []shared.ActivityLog
	nextID     int64
	reads      int
}

type memoryTx struct {
	repo       *memoryRepo
	inserted   []StoredExpense
	deleted    map[int64]bool
	activities []shared.ActivityLog
}

func fixtureRepo() *memoryRepo {
	paymentID := int64(1)
	employeeID := int64(3)
	return &memoryRepo{
		nextID: 100,
		sales: []memorySale{
			{at: day(time.January, 10), total: dec("100"), tax: dec("18"), discount: dec("5"), items: []memoryItem{
				{qty: 2, liveCost: dec("20"), snapCost: dec("18")},
				{qty: 1, liveCost: dec("30"), snapCost: dec("30")},
			}},
			{at: day(time.February, 5), total: dec("50"), tax: dec("9"), items: []memoryItem{
				{qty: 1, liveCost: dec("25"), snapCost: dec("20")},
			}},
		},
		salaries: []ledger.SalaryPayment{{
			ID: paymentID, EmployeeID: employeeID, Period: ledger.Period{Year: 2026, Month: time.January},
			Gross: dec("10000"), SGK: dec("1400"), Tax: dec("1290"), Net: dec("7310"),
		}},
		expenses: []StoredExpense{
			{Expense: ledger.Expense{ID: 1, Description: "Kira", Amount: dec("1000"), Category: ledger.ExpenseRent, Date: day(time.January, 3)}},
			{Expense: ledger.Expense{ID: 2, Description: "Maaş: Ali Veli (2026-01)", Amount: dec("7310"), Category: ledger.ExpenseSalary, Date: day(time.January, 31), EmployeeID: &employeeID}, SalaryPaymentID: &paymentID},
			{Expense: ledger.Expense{ID: 3, Description: "Stopaj", Amount: dec("200"), Category: ledger.ExpenseTax, Date: day(time.February, 10)}},
		},
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, _ string, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{repo: r, deleted: map[int64]bool{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	kept := r.expenses[:0]
	for _, e := range r.expenses {
		if !tx.deleted[e.ID] {
			kept = append(kept, e)
		}
	}
	r.expenses = append(kept, tx.inserted...)
	r.activities = append(r.activities, tx.activities...)
	return nil
}

func (r *memoryRepo) ExpenseTotals(_ context.Context, rng ledger.DateRange) ([]reports.CategoryTotal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	return r.categoryTotals(rng), nil
}

func (r *memoryRepo) categoryTotals(rng ledger.DateRange) []reports.CategoryTotal {
	byCategory := map[ledger.ExpenseCategory]*reports.CategoryTotal{}
	var out []reports.CategoryTotal
	for _, e := range r.expenses {
		if !rng.Contains(e.Date) {
			continue
		}
		row, ok := byCategory[e.Category]
		if !ok {
			row = &reports.CategoryTotal{Category: e.Category, Total: decimal.Zero}
			byCategory[e.Category] = row
		}
		row.Count++
		row.Total = row.Total.Add(e.Amount)
	}
	for _, c := range ledger.ExpenseCategories {
		if row, ok := byCategory[c]; ok {
			out = append(out, *row)
		}
	}
	return out
}

func (r *memoryRepo) TaxInputs(_ context.Context, year int, rng ledger.DateRange) (reports.TaxInputs, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	in := reports.TaxInputs{Year: year, SalarySGK: decimal.Zero, SalaryTax: decimal.Zero, SalaryGross: decimal.Zero, TaxExpenses: decimal.Zero}
	monthly := map[int]decimal.Decimal{}
	for _, s := range r.sales {
		if rng.Contains(s.at) {
			monthly[int(s.at.Month())] = monthly[int(s.at.Month())].Add(s.tax)
		}
	}
	for m, amount := range monthly {
		in.KDVMonthly = append(in.KDVMonthly, reports.MonthAmount{Month: m, Amount: amount})
	}
	for _, p := range r.salaries {
		if p.Period.Year == year {
			in.SalarySGK = in.SalarySGK.Add(p.SGK)
			in.SalaryTax = in.SalaryTax.Add(p.Tax)
			in.SalaryGross = in.SalaryGross.Add(p.Gross)
		}
	}
	for _, e := range r.expenses {
		if e.Category == ledger.ExpenseTax && rng.Contains(e.Date) {
			in.TaxExpenses = in.TaxExpenses.Add(e.Amount)
		}
	}
	return in, nil
}

func (r *memoryRepo) ProfitLossInputs(_ context.Context, rng ledger.DateRange, basis COGSBasis) (reports.PLInputs, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	in := reports.PLInputs{Range: rng, Revenue: decimal.Zero, TaxCollected: decimal.Zero, Discounts: decimal.Zero, COGS: decimal.Zero}
	for _, s := range r.sales {
		if !rng.Contains(s.at) {
			continue
		}
		in.SaleCount++
		in.Revenue = in.Revenue.Add(s.total)
		in.TaxCollected = in.TaxCollected.Add(s.tax)
		in.Discounts = in.Discounts.Add(s.discount)
		for _, item := range s.items {
			cost := item.liveCost
			if basis == COGSSnapshot {
				cost = item.snapCost
			}
			in.COGS = in.COGS.Add(cost.Mul(decimal.NewFromInt(int64(item.qty))))
		}
	}
	in.Expenses = r.categoryTotals(rng)
	return in, nil
}

func (r *memoryRepo) MonthlyTotals(_ context.Context, rng ledger.DateRange) ([]reports.MonthAmount, []reports.MonthAmount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	var revenue, expenses []reports.MonthAmount
	for _, s := range r.sales {
		if rng.Contains(s.at) {
			revenue = append(revenue, reports.MonthAmount{Month: int(s.at.Month()), Amount: s.total})
		}
	}
	for _, e := range r.expenses {
		if rng.Contains(e.Date) {
			expenses = append(expenses, reports.MonthAmount{Month: int(e.Date.Month()), Amount: e.Amount})
		}
	}
	return revenue, expenses, nil
}

func (r *memoryRepo) ListExpenses(_ context.Context, rng ledger.DateRange) ([]ledger.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []ledger.Expense{}
	for i := len(r.expenses) - 1; i >= 0; i-- {
		if rng.Contains(r.expenses[i].Date) {
			out = append(out, r.expenses[i].Expense)
		}
	}
	return out, nil
}

func (tx *memoryTx) InsertExpense(_ context.Context, e ledger.Expense) (int64, error) {
	tx.repo.nextID++
	e.ID = tx.repo.nextID
	tx.inserted = append(tx.inserted, StoredExpense{Expense: e})
	return e.ID, nil
}

func (tx *memoryTx) LockExpense(_ context.Context, id int64) (StoredExpense, error) {
	for _, e := range tx.repo.expenses {
		if e.ID == id && !tx.deleted[id] {
			return e, nil
		}
	}
	return StoredExpense{}, ledger.NotFoundf("expense %d not found", id)
}

func (tx *memoryTx) DeleteExpense(_ context.Context, id int64) error {
	tx.deleted[id] = true
	return nil
}

func (tx *memoryTx) RecordActivity(_ context.Context, log shared.ActivityLog) error {
	tx.activities = append(tx.activities, log)
	return nil
}

type countingMetrics struct {
	mu     sync.Mutex
	hits   map[string]int
	misses map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{hits: map[string]int{}, misses: map[string]int{}}
}

func (m *countingMetrics) ReportCacheHit(report string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits[report]++
}

func (m *countingMetrics) ReportCacheMiss(report string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.misses[report]++
}

func (m *countingMetrics) ObserveReportBuild(string, time.Duration) {}

func newTestService(t *testing.T, repo *memoryRepo, basis COGSBasis) (*Service, *countingMetrics) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	metrics := newCountingMetrics()
	svc := NewService(repo, cache.NewVersioned(client, time.Minute), metrics,
		Options{COGSBasis: basis, Location: time.UTC}, ledger.FixedClock(day(time.February, 20)), nil)
	return svc, metrics
}

func TestProfitLossIdentity(t *testing.T) {
	for _, tc := range []struct {
		basis COGSBasis
		cogs  string
	}{
		{COGSLive, "70"},
		{COGSSnapshot, "66"},
	} {
		t.Run(string(tc.basis), func(t *testing.T) {
			svc, _ := newTestService(t, fixtureRepo(), tc.basis)
			pl, err := svc.ProfitLoss(context.Background(), day(time.January, 1), day(time.January, 31))
			require.NoError(t, err)

			assert.True(t, pl.Revenue.Equal(dec("100")))
			assert.True(t, pl.COGS.Equal(dec(tc.cogs)), pl.COGS.String())
			assert.True(t, pl.TotalExpenses.Equal(dec("8310")))
			assert.True(t, pl.Discounts.Equal(dec("5")))
			assert.Equal(t, 1, pl.SaleCount)
			assert.True(t, pl.GrossProfit.Equal(pl.Revenue.Sub(pl.COGS)))
			assert.True(t, pl.NetProfit.Equal(pl.Revenue.Sub(pl.COGS).Sub(pl.TotalExpenses)))
			assert.True(t, pl.ProfitMargin.Equal(reports.Margin(pl.NetProfit, pl.Revenue)))
			require.Len(t, pl.ExpensesByCategory, 2)
			assert.Equal(t, ledger.ExpenseSalary, pl.ExpensesByCategory[0].Category)
		})
	}
}

func TestProfitLossEmptyRange(t *testing.T) {
	svc, _ := newTestService(t, fixtureRepo(), COGSLive)
	pl, err := svc.ProfitLoss(context.Background(), day(time.June, 1), day(time.June, 30))
	require.NoError(t, err)
	assert.True(t, pl.Revenue.IsZero())
	assert.True(t, pl.ProfitMargin.IsZero())
	assert.Equal(t, 0, pl.SaleCount)
}

func TestReportRangeValidation(t *testing.T) {
	svc, _ := newTestService(t, fixtureRepo(), COGSLive)
	_, err := svc.ProfitLoss(context.Background(), day(time.March, 1), day(time.February, 1))
	require.ErrorIs(t, err, ledger.ErrValidation)
	_, err = svc.TaxSummary(context.Background(), 12)
	require.ErrorIs(t, err, ledger.ErrValidation)
}

func TestTaxSummary(t *testing.T) {
	svc, _ := newTestService(t, fixtureRepo(), COGSLive)
	summary, err := svc.TaxSummary(context.Background(), 2026)
	require.NoError(t, err)

	assert.True(t, summary.KDV.Collected.Equal(dec("27")))
	require.Len(t, summary.KDV.Monthly, 2)
	assert.Equal(t, 1, summary.KDV.Monthly[0].Month)
	assert.True(t, summary.SGK.EmployeeShare.Equal(dec("1400")))
	assert.True(t, summary.SGK.EmployerShare.Equal(dec("2050")))
	assert.True(t, summary.IncomeTax.Equal(dec("1290")))
	assert.True(t, summary.TaxExpenses.Equal(dec("200")))
	assert.True(t, summary.GrandTotal.Equal(dec("4967")), summary.GrandTotal.String())
}

func TestMonthlySummary(t *testing.T) {
	svc, _ := newTestService(t, fixtureRepo(), COGSLive)
	rows, err := svc.MonthlySummary(context.Background(), 2026)
	require.NoError(t, err)
	require.Len(t, rows, 12)
	assert.True(t, rows[0].Profit.Equal(dec("-8210")))
	assert.True(t, rows[1].Profit.Equal(dec("-150")))
	assert.True(t, rows[5].Revenue.IsZero())
}

func TestExpenseSummary(t *testing.T) {
	svc, _ := newTestService(t, fixtureRepo(), COGSLive)
	summary, err := svc.ExpenseSummary(context.Background(), day(time.January, 1), day(time.February, 28))
	require.NoError(t, err)
	assert.True(t, summary.Total.Equal(dec("8510")))
	assert.Equal(t, 3, summary.Count)
	require.Len(t, summary.ByCategory, 3)
	assert.Equal(t, ledger.ExpenseSalary, summary.ByCategory[0].Category)
	assert.Equal(t, ledger.ExpenseTax, summary.ByCategory[2].Category)
}

func TestReportCacheInvalidatedByExpense(t *testing.T) {
	repo := fixtureRepo()
	svc, metrics := newTestService(t, repo, COGSLive)
	ctx := context.Background()

	_, err := svc.ProfitLoss(ctx, day(time.January, 1), day(time.January, 31))
	require.NoError(t, err)
	_, err = svc.ProfitLoss(ctx, day(time.January, 1), day(time.January, 31))
	require.NoError(t, err)
	assert.Equal(t, 1, repo.reads)
	assert.Equal(t, 1, metrics.hits["profit_loss"])

	date := day(time.January, 15)
	_, err = svc.AddExpense(ctx, ExpenseInput{Description: "Su faturası", Amount: dec("90"), Category: ledger.ExpenseWater, Date: &date, ActorID: 2})
	require.NoError(t, err)

	pl, err := svc.ProfitLoss(ctx, day(time.January, 1), day(time.January, 31))
	require.NoError(t, err)
	assert.Equal(t, 2, repo.reads)
	assert.Equal(t, 2, metrics.misses["profit_loss"])
	assert.True(t, pl.TotalExpenses.Equal(dec("8400")))
}

type blockingRepo struct {
	*memoryRepo
	entered chan struct{}
	release chan struct{}
	calls   int
}

func (r *blockingRepo) TaxInputs(ctx context.Context, year int, rng ledger.DateRange) (reports.TaxInputs, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	r.entered <- struct{}{}
	<-r.release
	if err := ctx.Err(); err != nil {
		return reports.TaxInputs{}, err
	}
	return r.memoryRepo.TaxInputs(ctx, year, rng)
}

func TestSharedReportBuildSurvivesStarterCancel(t *testing.T) {
	repo := &blockingRepo{memoryRepo: fixtureRepo(), entered: make(chan struct{}, 1), release: make(chan struct{})}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewService(repo, cache.NewVersioned(client, time.Minute), nil,
		Options{COGSBasis: COGSLive, Location: time.UTC}, ledger.FixedClock(day(time.February, 20)), nil)

	starterCtx, cancel := context.WithCancel(context.Background())
	starterErr := make(chan error, 1)
	go func() {
		_, err := svc.TaxSummary(starterCtx, 2026)
		starterErr <- err
	}()
	<-repo.entered
	cancel()
	require.ErrorIs(t, <-starterErr, context.Canceled)

	type outcome struct {
		summary reports.TaxSummary
		err     error
	}
	peer := make(chan outcome, 1)
	go func() {
		summary, err := svc.TaxSummary(context.Background(), 2026)
		peer <- outcome{summary, err}
	}()
	time.Sleep(50 * time.Millisecond)
	close(repo.release)

	got := <-peer
	require.NoError(t, got.err)
	assert.True(t, got.summary.KDV.Collected.Equal(dec("27")))
	assert.Equal(t, 1, repo.calls)
}

func TestReportsWithoutCache(t *testing.T) {
	repo := fixtureRepo()
	svc := NewService(repo, nil, nil, Options{}, ledger.FixedClock(day(time.February, 20)), nil)
	_, err := svc.MonthlySummary(context.Background(), 2026)
	require.NoError(t, err)
	_, err = svc.MonthlySummary(context.Background(), 2026)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.reads)
}

func TestAddExpenseValidation(t *testing.T) {
	svc, _ := newTestService(t, fixtureRepo(), COGSLive)
	cases := map[string]ExpenseInput{
		"blank description": {Description: "  ", Amount: dec("10"), Category: ledger.ExpenseOther},
		"zero amount":       {Description: "x", Amount: decimal.Zero, Category: ledger.ExpenseOther},
		"negative amount":   {Description: "x", Amount: dec("-1"), Category: ledger.ExpenseOther},
		"rounds to zero":    {Description: "x", Amount: dec("0.004"), Category: ledger.ExpenseOther},
		"unknown category":  {Description: "x", Amount: dec("10"), Category: "Lottery"},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.AddExpense(context.Background(), input)
			require.ErrorIs(t, err, ledger.ErrValidation)
		})
	}
}

func TestAddExpenseDefaultsDate(t *testing.T) {
	repo := fixtureRepo()
	svc, _ := newTestService(t, repo, COGSLive)
	expense, err := svc.AddExpense(context.Background(), ExpenseInput{Description: " İnternet ", Amount: dec("349.904"), Category: ledger.ExpenseInternet})
	require.NoError(t, err)
	assert.Equal(t, "İnternet", expense.Description)
	assert.True(t, expense.Amount.Equal(dec("349.90")))
	assert.True(t, expense.Date.Equal(day(time.February, 20)))
	require.Len(t, repo.activities, 1)
	assert.Equal(t, shared.ActionExpenseAdd, repo.activities[0].Action)
}

func TestDeleteExpense(t *testing.T) {
	repo := fixtureRepo()
	svc, _ := newTestService(t, repo, COGSLive)
	ctx := context.Background()

	err := svc.DeleteExpense(ctx, 2, 1)
	require.ErrorIs(t, err, ledger.ErrValidation)

	err = svc.DeleteExpense(ctx, 404, 1)
	require.ErrorIs(t, err, ledger.ErrNotFound)

	require.NoError(t, svc.DeleteExpense(ctx, 1, 1))
	assert.Len(t, repo.expenses, 2)
	require.Len(t, repo.activities, 1)
	assert.Equal(t, shared.ActionExpenseDelete, repo.activities[0].Action)
}

type fakeRenderer struct{ got reports.ProfitLoss }

func (f *fakeRenderer) RenderProfitLoss(_ context.Context, pl reports.ProfitLoss) ([]byte, error) {
	f.got = pl
	return []byte("%PDF-1.7"), nil
}

func newTestRouter(svc *Service, renderer PDFRenderer) http.Handler {
	r := chi.NewRouter()
	r.Use(shared.ActorMiddleware)
	NewHandler(nil, svc, renderer).MountRoutes(r)
	return r
}

func TestHandlerExpenses(t *testing.T) {
	repo := fixtureRepo()
	svc, _ := newTestService(t, repo, COGSLive)
	router := newTestRouter(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(`{"description":"Nakliye","amount":"75.5","category":"Transport","date":"2026-02-11"}`))
	req.Header.Set(shared.ActorHeader, "2")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, repo.activities, 1)
	assert.Equal(t, int64(2), repo.activities[0].ActorID)

	req = httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(`{"description":"Nakliye","amount":"75.5","category":"Transport","date":"11.02.2026"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/expenses/2", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "salary payment")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/expenses?start=2026-02-01&end=2026-02-28", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Nakliye")
	assert.NotContains(t, rec.Body.String(), "Kira")
}

func TestHandlerProfitLoss(t *testing.T) {
	svc, _ := newTestService(t, fixtureRepo(), COGSLive)
	renderer := &fakeRenderer{}
	router := newTestRouter(svc, renderer)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profit-loss?start=2026-01-01&end=2026-01-31", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"net_profit":"-8280"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profit-loss.pdf?start=2026-01-01&end=2026-01-31", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, renderer.got.Revenue.Equal(dec("100")))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profit-loss?start=2026-02-01&end=2026-01-01", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tax-summary", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"year":2026`)
}

func TestHandlerPDFWithoutRenderer(t *testing.T) {
	svc, _ := newTestService(t, fixtureRepo(), COGSLive)
	rec := httptest.NewRecorder()
	newTestRouter(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profit-loss.pdf", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
