package accounting

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, op string, fn func(context.Context, TxRepository) error) error
	ExpenseTotals(ctx context.Context, rng ledger.DateRange) ([]reports.CategoryTotal, error)
	TaxInputs(ctx context.Context, year int, rng ledger.DateRange) (reports.TaxInputs, error)
	ProfitLossInputs(ctx context.Context, rng ledger.DateRange, basis COGSBasis) (reports.PLInputs, error)
	MonthlyTotals(ctx context.Context, rng ledger.DateRange) ([]reports.MonthAmount, []reports.MonthAmount, error)
	ListExpenses(ctx context.Context, rng ledger.DateRange) ([]ledger.Expense, error)
}

// CachePort stores built reports under a version that commits bump.
type CachePort interface {
	BuildKey(ctx context.Context, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) (bool, error)
	Bump(ctx context.Context) error
}

// MetricsPort observes report cache behaviour.
type MetricsPort interface {
	ReportCacheHit(report string)
	ReportCacheMiss(report string)
	ObserveReportBuild(report string, d time.Duration)
}

// Options tunes the aggregator.
type Options struct {
	COGSBasis COGSBasis
	Location  *time.Location
}

// Service aggregates ledger rows into reports and records expenses.
type Service struct {
	repo    RepositoryPort
	cache   CachePort
	metrics MetricsPort
	basis   COGSBasis
	loc     *time.Location
	clock   ledger.Clock
	logger  *slog.Logger
	builds  singleflight.Group
}

// NewService builds Service.
func NewService(repo RepositoryPort, cache CachePort, metrics MetricsPort, opts Options, clock ledger.Clock, logger *slog.Logger) *Service {
	if opts.COGSBasis == "" {
		opts.COGSBasis = COGSLive
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if clock == nil {
		clock = ledger.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		cache:   cache,
		metrics: metrics,
		basis:   opts.COGSBasis,
		loc:     opts.Location,
		clock:   clock,
		logger:  logger,
	}
}

// Location is the calendar reports are cut in.
func (s *Service) Location() *time.Location { return s.loc }

// Today returns the current calendar day in the ledger location.
func (s *Service) Today() time.Time { return s.clock.Now().In(s.loc) }

// ExpenseSummary totals expenses by category for the days start..end.
func (s *Service) ExpenseSummary(ctx context.Context, start, end time.Time) (reports.ExpenseSummary, error) {
	rng, err := ledger.NewDateRange(start, end, s.loc)
	if err != nil {
		return reports.ExpenseSummary{}, err
	}
	return cachedReport(ctx, s, "expense_summary", rangeKey(rng), func(ctx context.Context) (reports.ExpenseSummary, error) {
		rows, err := s.repo.ExpenseTotals(ctx, rng)
		if err != nil {
			return reports.ExpenseSummary{}, ledger.Unavailable("accounting.expense_summary", err)
		}
		return reports.BuildExpenseSummary(rng, rows), nil
	})
}

// TaxSummary reports KDV, SGK and income tax liabilities for a year.
func (s *Service) TaxSummary(ctx context.Context, year int) (reports.TaxSummary, error) {
	if err := validYear(year); err != nil {
		return reports.TaxSummary{}, err
	}
	rng := ledger.YearRange(year, s.loc)
	return cachedReport(ctx, s, "tax_summary", []string{strconv.Itoa(year)}, func(ctx context.Context) (reports.TaxSummary, error) {
		in, err := s.repo.TaxInputs(ctx, year, rng)
		if err != nil {
			return reports.TaxSummary{}, ledger.Unavailable("accounting.tax_summary", err)
		}
		return reports.BuildTaxSummary(in), nil
	})
}

// ProfitLoss builds the profit and loss statement for the days start..end.
func (s *Service) ProfitLoss(ctx context.Context, start, end time.Time) (reports.ProfitLoss, error) {
	rng, err := ledger.NewDateRange(start, end, s.loc)
	if err != nil {
		return reports.ProfitLoss{}, err
	}
	parts := append(rangeKey(rng), string(s.basis))
	return cachedReport(ctx, s, "profit_loss", parts, func(ctx context.Context) (reports.ProfitLoss, error) {
		in, err := s.repo.ProfitLossInputs(ctx, rng, s.basis)
		if err != nil {
			return reports.ProfitLoss{}, ledger.Unavailable("accounting.profit_loss", err)
		}
		return reports.BuildProfitLoss(in), nil
	})
}

// MonthlySummary returns revenue, expenses and profit for each month of year.
func (s *Service) MonthlySummary(ctx context.Context, year int) ([]reports.MonthlyRow, error) {
	if err := validYear(year); err != nil {
		return nil, err
	}
	rng := ledger.YearRange(year, s.loc)
	return cachedReport(ctx, s, "monthly_summary", []string{strconv.Itoa(year)}, func(ctx context.Context) ([]reports.MonthlyRow, error) {
		revenue, expenses, err := s.repo.MonthlyTotals(ctx, rng)
		if err != nil {
			return nil, ledger.Unavailable("accounting.monthly_summary", err)
		}
		return reports.BuildMonthlySummary(revenue, expenses), nil
	})
}

// AddExpense records a manual expense. The date defaults to now.
func (s *Service) AddExpense(ctx context.Context, input ExpenseInput) (ledger.Expense, error) {
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return ledger.Expense{}, ledger.Validationf("description is required")
	}
	amount := ledger.Round2(input.Amount)
	if !amount.IsPositive() {
		return ledger.Expense{}, ledger.Validationf("amount must be at least 0.01")
	}
	if !input.Category.Valid() {
		return ledger.Expense{}, ledger.Validationf("unknown expense category %q", input.Category)
	}
	now := s.clock.Now()
	expense := ledger.Expense{
		Description: description,
		Amount:      amount,
		Category:    input.Category,
		Date:        now,
		Recurring:   input.Recurring,
		Notes:       strings.TrimSpace(input.Notes),
	}
	if input.Date != nil && !input.Date.IsZero() {
		expense.Date = *input.Date
	}

	err := s.repo.WithTx(ctx, "accounting.add_expense", func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertExpense(ctx, expense)
		if err != nil {
			return err
		}
		expense.ID = id
		return tx.RecordActivity(ctx, shared.ActivityLog{
			ActorID:  input.ActorID,
			Action:   shared.ActionExpenseAdd,
			Entity:   "expense",
			EntityID: strconv.FormatInt(id, 10),
			Details:  fmt.Sprintf("%s: %s (%s)", expense.Category, ledger.FormatMoney(expense.Amount), expense.Description),
			At:       now,
		})
	})
	if err != nil {
		return ledger.Expense{}, err
	}
	s.bump(ctx)
	return expense, nil
}

// ListExpenses returns expenses recorded on the days start..end.
func (s *Service) ListExpenses(ctx context.Context, start, end time.Time) ([]ledger.Expense, error) {
	rng, err := ledger.NewDateRange(start, end, s.loc)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListExpenses(ctx, rng)
	if err != nil {
		return nil, ledger.Unavailable("accounting.list_expenses", err)
	}
	return rows, nil
}

// DeleteExpense removes a manual expense. Expenses written by payroll stay
// with their salary payment.
func (s *Service) DeleteExpense(ctx context.Context, id, actorID int64) error {
	if id <= 0 {
		return ledger.Validationf("expense is required")
	}
	err := s.repo.WithTx(ctx, "accounting.delete_expense", func(ctx context.Context, tx TxRepository) error {
		expense, err := tx.LockExpense(ctx, id)
		if err != nil {
			return err
		}
		if expense.SalaryMirror() {
			return ledger.Validationf("expense %d belongs to a salary payment and cannot be deleted", id)
		}
		if err := tx.DeleteExpense(ctx, id); err != nil {
			return err
		}
		return tx.RecordActivity(ctx, shared.ActivityLog{
			ActorID:  actorID,
			Action:   shared.ActionExpenseDelete,
			Entity:   "expense",
			EntityID: strconv.FormatInt(id, 10),
			Details:  fmt.Sprintf("%s: %s (%s)", expense.Category, ledger.FormatMoney(expense.Amount), expense.Description),
			At:       s.clock.Now(),
		})
	})
	if err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

func (s *Service) bump(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump report cache", slog.Any("error", err))
	}
}

func validYear(year int) error {
	if year < 2000 || year > 9999 {
		return ledger.Validationf("year %d is out of range", year)
	}
	return nil
}

func rangeKey(rng ledger.DateRange) []string {
	return []string{rng.Start.Format(time.DateOnly), rng.LastDay().Format(time.DateOnly)}
}
