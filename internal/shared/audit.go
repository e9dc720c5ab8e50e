package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
)

// Activity action tags.
const (
	ActionSale          = "SALE"
	ActionStockIn       = "STOCK_IN"
	ActionStockAdjust   = "STOCK_ADJUST"
	ActionSalaryPayment = "SALARY_PAYMENT"
	ActionSalaryBatch   = "SALARY_BATCH"
	ActionDebtPayment   = "DEBT_PAYMENT"
	ActionExpenseAdd    = "EXPENSE_ADD"
	ActionExpenseDelete = "EXPENSE_DELETE"
	ActionCustomerDel   = "CUSTOMER_DELETE"
)

// ActivityLog represents an append-only row in activity_logs.
type ActivityLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Details  string
	Meta     map[string]any
	At       time.Time
}

// ActivityLogger appends activity rows. Pass a transaction as the Querier to
// make the entry part of the same unit of work as the change it describes.
type ActivityLogger struct{}

// NewActivityLogger returns a new ActivityLogger.
func NewActivityLogger() *ActivityLogger {
	return &ActivityLogger{}
}

// Record persists the log entry.
func (l *ActivityLogger) Record(ctx context.Context, q db.Querier, log ActivityLog) error {
	if l == nil {
		return errors.New("activity logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("activity log requires action/entity/entity_id")
	}
	if log.Meta == nil {
		log.Meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	var at *time.Time
	if !log.At.IsZero() {
		at = &log.At
	}
	_, err = q.Exec(ctx, `INSERT INTO activity_logs (employee_id, action, entity, entity_id, details, meta, occurred_at)
VALUES (NULLIF($1, 0), $2, $3, $4, $5, $6, COALESCE($7, NOW()))`,
		log.ActorID, log.Action, log.Entity, log.EntityID, log.Details, metaJSON, at)
	return err
}
