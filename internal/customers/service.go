package customers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, op string, fn func(context.Context, TxRepository) error) error
	CustomerExists(ctx context.Context, id int64) (bool, error)
	DebtHistory(ctx context.Context, customerID int64) ([]ledger.DebtPayment, error)
	DebtorsAbove(ctx context.Context, threshold decimal.Decimal) ([]ledger.Customer, error)
}

// CachePort invalidates cached reports after a commit.
type CachePort interface {
	Bump(ctx context.Context) error
}

// Service settles customer debt.
type Service struct {
	repo   RepositoryPort
	cache  CachePort
	clock  ledger.Clock
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, cache CachePort, clock ledger.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = ledger.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, clock: clock, logger: logger}
}

// RecordDebtPayment reduces a customer's balance. Payments larger than the
// outstanding balance are rejected so the balance never turns negative.
func (s *Service) RecordDebtPayment(ctx context.Context, input DebtPaymentInput) (DebtPaymentResult, error) {
	if input.CustomerID <= 0 {
		return DebtPaymentResult{}, ledger.Validationf("customer is required")
	}
	amount := ledger.Round2(input.Amount)
	if !amount.IsPositive() {
		return DebtPaymentResult{}, ledger.Validationf("payment amount must be at least 0.01")
	}
	now := s.clock.Now()

	var result DebtPaymentResult
	err := s.repo.WithTx(ctx, "customers.pay_debt", func(ctx context.Context, tx TxRepository) error {
		customer, err := tx.LockCustomer(ctx, input.CustomerID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(customer.DebtBalance) {
			return ledger.Validationf("payment %s exceeds the outstanding balance %s",
				ledger.FormatMoney(amount), ledger.FormatMoney(customer.DebtBalance))
		}
		id, err := tx.InsertDebtPayment(ctx, ledger.DebtPayment{
			CustomerID: customer.ID,
			Amount:     amount,
			Date:       now,
			Notes:      input.Notes,
		})
		if err != nil {
			return err
		}
		remaining := customer.DebtBalance.Sub(amount)
		if err := tx.SetDebtBalance(ctx, customer.ID, remaining); err != nil {
			return err
		}
		if err := tx.RecordActivity(ctx, shared.ActivityLog{
			ActorID:  input.ActorID,
			Action:   shared.ActionDebtPayment,
			Entity:   "customer",
			EntityID: strconv.FormatInt(customer.ID, 10),
			Details:  fmt.Sprintf("%s paid %s, remaining %s", customer.FullName, ledger.FormatMoney(amount), ledger.FormatMoney(remaining)),
			Meta:     map[string]any{"payment_id": id},
			At:       now,
		}); err != nil {
			return err
		}
		result = DebtPaymentResult{
			PaymentID:     id,
			Amount:        amount,
			RemainingDebt: remaining,
			Message:       fmt.Sprintf("%s received. Remaining debt: %s", ledger.FormatMoney(amount), ledger.FormatMoney(remaining)),
		}
		return nil
	})
	if err != nil {
		return DebtPaymentResult{}, err
	}
	s.bump(ctx)
	return result, nil
}

// DebtHistory lists the customer's payments, newest first.
func (s *Service) DebtHistory(ctx context.Context, customerID int64) ([]ledger.DebtPayment, error) {
	if customerID <= 0 {
		return nil, ledger.Validationf("customer is required")
	}
	ok, err := s.repo.CustomerExists(ctx, customerID)
	if err != nil {
		return nil, ledger.Unavailable("customers.debt_history", err)
	}
	if !ok {
		return nil, ledger.NotFoundf("customer %d not found", customerID)
	}
	rows, err := s.repo.DebtHistory(ctx, customerID)
	if err != nil {
		return nil, ledger.Unavailable("customers.debt_history", err)
	}
	return rows, nil
}

// Debtors lists customers that still owe more than the threshold.
func (s *Service) Debtors(ctx context.Context, threshold decimal.Decimal) ([]ledger.Customer, error) {
	rows, err := s.repo.DebtorsAbove(ctx, threshold)
	if err != nil {
		return nil, ledger.Unavailable("customers.debtors", err)
	}
	return rows, nil
}

// DeleteCustomer removes a customer without outstanding debt or sales.
func (s *Service) DeleteCustomer(ctx context.Context, id, actorID int64) error {
	if id <= 0 {
		return ledger.Validationf("customer is required")
	}
	err := s.repo.WithTx(ctx, "customers.delete", func(ctx context.Context, tx TxRepository) error {
		customer, err := tx.LockCustomer(ctx, id)
		if err != nil {
			return err
		}
		if customer.DebtBalance.IsPositive() {
			return ledger.Validationf("a customer with outstanding debt cannot be deleted, balance %s", ledger.FormatMoney(customer.DebtBalance))
		}
		n, err := tx.CountSales(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ledger.Validationf("customer %s is referenced by %d sales and cannot be deleted", customer.FullName, n)
		}
		if err := tx.DeleteCustomer(ctx, id); err != nil {
			return err
		}
		return tx.RecordActivity(ctx, shared.ActivityLog{
			ActorID:  actorID,
			Action:   shared.ActionCustomerDel,
			Entity:   "customer",
			EntityID: strconv.FormatInt(id, 10),
			Details:  customer.FullName,
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
