package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
	"github.com/odyssey-erp/odyssey-pos/internal/payroll"
	_ "github.com/odyssey-erp/odyssey-pos/testing"
)

type stubPayroll struct {
	got *payroll.PayAllInput
	res payroll.PayAllResult
	err error
}

func (s *stubPayroll) PayAllSalaries(_ context.Context, input payroll.PayAllInput) (payroll.PayAllResult, error) {
	s.got = &input
	return s.res, s.err
}

func testMetrics() *jobmetrics.Metrics { return jobmetrics.NewMetrics(prometheus.NewRegistry()) }

func TestPayrollRunPassesPeriod(t *testing.T) {
	stub := &stubPayroll{res: payroll.PayAllResult{PaidCount: 2, TotalNet: decimal.NewFromInt(14620)}}
	job := NewPayrollRunJob(stub, nil, testMetrics())

	task, err := NewPayrollRunTask(PayrollRunPayload{Period: "2026-02"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.NotNil(t, stub.got.Period)
	assert.Equal(t, "2026-02", stub.got.Period.String())
}

func TestPayrollRunDefaultsToCurrentPeriod(t *testing.T) {
	stub := &stubPayroll{}
	job := NewPayrollRunJob(stub, nil, testMetrics())
	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskPayrollRun, nil)))
	assert.Nil(t, stub.got.Period)
}

func TestPayrollRunNothingToDoIsSuccess(t *testing.T) {
	stub := &stubPayroll{err: ledger.NothingToDof("all salaries for 2026-02 are already paid")}
	job := NewPayrollRunJob(stub, nil, testMetrics())
	task, err := NewPayrollRunTask(PayrollRunPayload{})
	require.NoError(t, err)
	assert.NoError(t, job.Handle(context.Background(), task))
}

func TestPayrollRunErrors(t *testing.T) {
	job := NewPayrollRunJob(&stubPayroll{}, nil, testMetrics())
	err := job.Handle(context.Background(), asynq.NewTask(TaskPayrollRun, []byte(`{"period":"2026-13"}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskPayrollRun, []byte(`{`)))
	require.ErrorIs(t, err, asynq.SkipRetry)

	storeDown := ledger.Unavailable("payroll.pay_all", errors.New("connection refused"))
	job = NewPayrollRunJob(&stubPayroll{err: storeDown}, nil, testMetrics())
	err = job.Handle(context.Background(), asynq.NewTask(TaskPayrollRun, nil))
	require.ErrorIs(t, err, ledger.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

type stubStock struct{ levels []inventory.StockLevel }

func (s stubStock) LowStock(context.Context) ([]inventory.StockLevel, error) { return s.levels, nil }

type stubDebtors struct {
	threshold decimal.Decimal
	customers []ledger.Customer
}

func (s *stubDebtors) Debtors(_ context.Context, threshold decimal.Decimal) ([]ledger.Customer, error) {
	s.threshold = threshold
	return s.customers, nil
}

type memoryNotifications struct {
	mu     sync.Mutex
	unread map[string]bool
	rows   []ledger.Notification
}

func (m *memoryNotifications) InsertNotification(_ context.Context, n ledger.Notification) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unread == nil {
		m.unread = map[string]bool{}
	}
	key := string(n.Type) + ":" + strconv.FormatInt(*n.RelatedID, 10)
	if m.unread[key] {
		return false, nil
	}
	m.unread[key] = true
	m.rows = append(m.rows, n)
	return true, nil
}

func TestNotifyScanSkipsUnreadDuplicates(t *testing.T) {
	store := &memoryNotifications{}
	debtors := &stubDebtors{customers: []ledger.Customer{{ID: 9, FullName: "Ayşe Kaya", DebtBalance: decimal.RequireFromString("120.50")}}}
	job := NewNotifyScanJob(
		stubStock{levels: []inventory.StockLevel{
			{ProductID: 1, Name: "Süt", StockQuantity: 3, CriticalStock: 10},
			{ProductID: 2, Name: "Ekmek", StockQuantity: 0, CriticalStock: 5},
		}},
		debtors, store, nil, testMetrics(),
	)

	task, err := NewNotifyScanTask(NotifyScanPayload{DebtThreshold: decimal.NewFromInt(100)})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, store.rows, 3)
	assert.True(t, debtors.threshold.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, ledger.NotificationLowStock, store.rows[0].Type)
	assert.Contains(t, store.rows[0].Message, "3 adet")
	assert.Equal(t, ledger.NotificationDebtReminder, store.rows[2].Type)

	require.NoError(t, job.Handle(context.Background(), task))
	assert.Len(t, store.rows, 3)
}

func TestNotifyScanRequiresStore(t *testing.T) {
	job := NewNotifyScanJob(stubStock{}, &stubDebtors{}, nil, nil, testMetrics())
	require.Error(t, job.Handle(context.Background(), asynq.NewTask(TaskNotifyScan, nil)))
}

type stubWarmer struct {
	mu     sync.Mutex
	years  []int
	plEnd  time.Time
	failTx bool
	today  time.Time
}

func (s *stubWarmer) MonthlySummary(_ context.Context, year int) ([]reports.MonthlyRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.years = append(s.years, year)
	return nil, nil
}

func (s *stubWarmer) TaxSummary(_ context.Context, year int) (reports.TaxSummary, error) {
	if s.failTx {
		return reports.TaxSummary{}, ledger.Unavailable("accounting.tax_summary", errors.New("timeout"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.years = append(s.years, year)
	return reports.TaxSummary{}, nil
}

func (s *stubWarmer) ProfitLoss(_ context.Context, _, end time.Time) (reports.ProfitLoss, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plEnd = end
	return reports.ProfitLoss{}, nil
}

func (s *stubWarmer) Today() time.Time { return s.today }

func TestReportsWarmup(t *testing.T) {
	warmer := &stubWarmer{today: time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)}
	job := NewReportsWarmupJob(warmer, nil, testMetrics())

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskReportsWarmup, nil)))
	assert.ElementsMatch(t, []int{2026, 2026}, warmer.years)
	assert.True(t, warmer.plEnd.Equal(warmer.today))

	task, err := NewReportsWarmupTask(ReportsWarmupPayload{Year: 2025})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, time.December, warmer.plEnd.Month())

	warmer.failTx = true
	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, ledger.ErrStoreUnavailable)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0}`, rec.Body.String())
}
