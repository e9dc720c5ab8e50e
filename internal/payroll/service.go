package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, op string, fn func(context.Context, TxRepository) error) error
	ActiveEmployees(ctx context.Context, period ledger.Period) ([]ledger.Employee, map[int64]bool, error)
	History(ctx context.Context, limit int) ([]ledger.SalaryPayment, error)
}

// CachePort invalidates cached reports after a commit.
type CachePort interface {
	Bump(ctx context.Context) error
}

// MetricsPort records posted salaries.
type MetricsPort interface {
	SalariesPaid(count int, net float64)
}

// Service posts salary payments.
type Service struct {
	repo    RepositoryPort
	cache   CachePort
	metrics MetricsPort
	clock   ledger.Clock
	loc     *time.Location
	logger  *slog.Logger
}

// NewService builds Service. loc resolves the default period.
func NewService(repo RepositoryPort, cache CachePort, metrics MetricsPort, clock ledger.Clock, loc *time.Location, logger *slog.Logger) *Service {
	if clock == nil {
		clock = ledger.SystemClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, metrics: metrics, clock: clock, loc: loc, logger: logger}
}

// CurrentPeriod returns the payroll period containing now.
func (s *Service) CurrentPeriod() ledger.Period {
	return ledger.PeriodOf(s.clock.Now(), s.loc)
}

func (s *Service) resolve(p *ledger.Period) ledger.Period {
	if p == nil || p.IsZero() {
		return s.CurrentPeriod()
	}
	return *p
}

// PaySalary pays one employee for a period. A second call for the same
// employee and period fails with ErrAlreadyPaid and writes nothing.
func (s *Service) PaySalary(ctx context.Context, input PayInput) (PayResult, error) {
	if input.EmployeeID <= 0 {
		return PayResult{}, ledger.Validationf("employee is required")
	}
	period := s.resolve(input.Period)
	now := s.clock.Now()

	var result PayResult
	err := s.repo.WithTx(ctx, "payroll.pay", func(ctx context.Context, tx TxRepository) error {
		employee, err := tx.LockEmployee(ctx, input.EmployeeID)
		if err != nil {
			return err
		}
		paid, err := tx.HasPayment(ctx, employee.ID, period)
		if err != nil {
			return err
		}
		if paid {
			return ledger.AlreadyPaidf("salary for %s is already paid for %s", employee.FullName, period)
		}
		payment, err := s.pay(ctx, tx, employee, period, input.Notes, now)
		if err != nil {
			return err
		}
		if err := tx.RecordActivity(ctx, shared.ActivityLog{
			ActorID:  input.ActorID,
			Action:   shared.ActionSalaryPayment,
			Entity:   "employee",
			EntityID: strconv.FormatInt(employee.ID, 10),
			Details:  fmt.Sprintf("%s: %s net salary for %s", employee.FullName, ledger.FormatMoney(payment.Net), period),
			Meta:     map[string]any{"payment_id": payment.ID, "period": period.String()},
			At:       now,
		}); err != nil {
			return err
		}
		result = PayResult{
			PaymentID:  payment.ID,
			EmployeeID: employee.ID,
			Period:     period,
			Gross:      payment.Gross,
			Net:        payment.Net,
			Tax:        payment.Tax,
			SGK:        payment.SGK,
			Message:    fmt.Sprintf("%s: %s net salary paid.", employee.FullName, ledger.FormatMoney(payment.Net)),
		}
		return nil
	})
	if err != nil {
		return PayResult{}, err
	}
	s.afterCommit(ctx, 1, result.Net)
	return result, nil
}

// PayAllSalaries pays every active employee with a positive base salary that
// has not been paid for the period. The run is all-or-nothing.
func (s *Service) PayAllSalaries(ctx context.Context, input PayAllInput) (PayAllResult, error) {
	period := s.resolve(input.Period)
	now := s.clock.Now()

	var result PayAllResult
	err := s.repo.WithTx(ctx, "payroll.pay_all", func(ctx context.Context, tx TxRepository) error {
		employees, err := tx.LockUnpaidEmployees(ctx, period)
		if err != nil {
			return err
		}
		if len(employees) == 0 {
			return ledger.NothingToDof("all salaries for %s are already paid", period)
		}
		total := decimal.Zero
		ids := make([]int64, 0, len(employees))
		for _, employee := range employees {
			payment, err := s.pay(ctx, tx, employee, period, "", now)
			if err != nil {
				return err
			}
			total = total.Add(payment.Net)
			ids = append(ids, employee.ID)
		}
		if err := tx.RecordActivity(ctx, shared.ActivityLog{
			ActorID:  input.ActorID,
			Action:   shared.ActionSalaryBatch,
			Entity:   "payroll",
			EntityID: period.String(),
			Details:  fmt.Sprintf("%d salaries paid for %s, %s net", len(employees), period, ledger.FormatMoney(total)),
			Meta:     map[string]any{"employee_ids": ids},
			At:       now,
		}); err != nil {
			return err
		}
		result = PayAllResult{
			PaidCount: len(employees),
			Period:    period,
			TotalNet:  total,
			Message:   fmt.Sprintf("%d salaries paid.", len(employees)),
		}
		return nil
	})
	if err != nil {
		return PayAllResult{}, err
	}
	s.afterCommit(ctx, result.PaidCount, result.TotalNet)
	return result, nil
}

// pay inserts the salary payment and its mirrored expense.
func (s *Service) pay(ctx context.Context, tx TxRepository, employee ledger.Employee, period ledger.Period, notes string, now time.Time) (ledger.SalaryPayment, error) {
	d := Decompose(employee.BaseSalary, employee.SGKRate, employee.TaxRate)
	payment := ledger.SalaryPayment{
		EmployeeID:   employee.ID,
		EmployeeName: employee.FullName,
		Period:       period,
		Gross:        d.Gross,
		Net:          d.Net,
		Tax:          d.Tax,
		SGK:          d.SGK,
		PaidAt:       now,
		Notes:        notes,
	}
	id, err := tx.InsertSalaryPayment(ctx, payment)
	if err != nil {
		return ledger.SalaryPayment{}, err
	}
	payment.ID = id
	employeeID := employee.ID
	if _, err := tx.InsertSalaryExpense(ctx, ledger.Expense{
		Description: salaryDescription(employee.FullName, period),
		Amount:      d.Net,
		Category:    ledger.ExpenseSalary,
		Date:        now,
		EmployeeID:  &employeeID,
	}, id); err != nil {
		return ledger.SalaryPayment{}, err
	}
	return payment, nil
}

func (s *Service) afterCommit(ctx context.Context, count int, net decimal.Decimal) {
	if s.metrics != nil {
		s.metrics.SalariesPaid(count, net.InexactFloat64())
	}
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("bump report cache", slog.Any("error", err))
		}
	}
}

// Pending lists every active employee with the computed salary for period.
func (s *Service) Pending(ctx context.Context, period *ledger.Period) ([]PendingSalary, error) {
	p := s.resolve(period)
	employees, paid, err := s.repo.ActiveEmployees(ctx, p)
	if err != nil {
		return nil, ledger.Unavailable("payroll.pending", err)
	}
	out := make([]PendingSalary, 0, len(employees))
	for _, e := range employees {
		out = append(out, PendingSalary{
			EmployeeID:    e.ID,
			FullName:      e.FullName,
			Role:          e.Role,
			Period:        p,
			Paid:          paid[e.ID],
			Decomposition: Decompose(e.BaseSalary, e.SGKRate, e.TaxRate),
		})
	}
	return out, nil
}

// History lists the most recent salary payments.
func (s *Service) History(ctx context.Context, limit int) ([]ledger.SalaryPayment, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	rows, err := s.repo.History(ctx, limit)
	if err != nil {
		return nil, ledger.Unavailable("payroll.history", err)
	}
	return rows, nil
}
