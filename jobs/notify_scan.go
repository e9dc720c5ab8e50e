package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
)

// StockSource lists products at or below their critical level.
type StockSource interface {
	LowStock(ctx context.Context) ([]inventory.StockLevel, error)
}

// DebtorSource lists customers owing more than a threshold.
type DebtorSource interface {
	Debtors(ctx context.Context, threshold decimal.Decimal) ([]ledger.Customer, error)
}

// NotificationStore persists notifications. Insert reports false when an
// unread notification of the same type already covers the entity.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n ledger.Notification) (bool, error)
}

// NotifyScanJob turns stock and debt state into staff notifications.
type NotifyScanJob struct {
	Stock   StockSource
	Debtors DebtorSource
	Store   NotificationStore
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewNotifyScanJob wires dependencies for the notification scan.
func NewNotifyScanJob(stock StockSource, debtors DebtorSource, store NotificationStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *NotifyScanJob {
	return &NotifyScanJob{
		Stock:   stock,
		Debtors: debtors,
		Store:   store,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes notification scan tasks.
func (j *NotifyScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("notify scan: handler not configured")
	}
	var payload NotifyScanPayload
	if err := decodePayload(t, &payload); err != nil {
		return fmt.Errorf("notify scan: decode payload: %v: %w", err, asynq.SkipRetry)
	}

	start := j.now()
	tracker := j.metrics().Track(TaskNotifyScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	if payload.Reason != "" {
		logger = logger.With(slog.String("reason", payload.Reason))
	}

	lowStock, err := j.scanStock(ctx)
	if err != nil {
		resultErr = err
		logger.Error("low stock scan failed", slog.Any("error", err))
		return resultErr
	}
	reminders, err := j.scanDebt(ctx, payload.DebtThreshold)
	if err != nil {
		resultErr = err
		logger.Error("debt scan failed", slog.Any("error", err))
		return resultErr
	}

	j.metrics().AddNotifications(string(ledger.NotificationLowStock), lowStock)
	j.metrics().AddNotifications(string(ledger.NotificationDebtReminder), reminders)
	logger.Info("completed notification scan",
		slog.Int("low_stock", lowStock),
		slog.Int("debt_reminders", reminders),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *NotifyScanJob) scanStock(ctx context.Context) (int, error) {
	if j.Stock == nil {
		return 0, nil
	}
	levels, err := j.Stock.LowStock(ctx)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, level := range levels {
		id := level.ProductID
		ok, err := j.Store.InsertNotification(ctx, ledger.Notification{
			Title:     "Kritik stok: " + level.Name,
			Message:   fmt.Sprintf("%s stokta %d adet kaldı (kritik seviye %d).", level.Name, level.StockQuantity, level.CriticalStock),
			Type:      ledger.NotificationLowStock,
			CreatedAt: j.now(),
			RelatedID: &id,
		})
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

func (j *NotifyScanJob) scanDebt(ctx context.Context, threshold decimal.Decimal) (int, error) {
	if j.Debtors == nil {
		return 0, nil
	}
	customers, err := j.Debtors.Debtors(ctx, threshold)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, c := range customers {
		id := c.ID
		ok, err := j.Store.InsertNotification(ctx, ledger.Notification{
			Title:     "Borç hatırlatma: " + c.FullName,
			Message:   fmt.Sprintf("%s adlı müşterinin %s borcu bulunuyor.", c.FullName, ledger.FormatMoney(c.DebtBalance)),
			Type:      ledger.NotificationDebtReminder,
			CreatedAt: j.now(),
			RelatedID: &id,
		})
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

func (j *NotifyScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskNotifyScan))
	}
	return slog.Default().With(slog.String("job", TaskNotifyScan))
}

func (j *NotifyScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *NotifyScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// PGNotificationStore writes notifications to PostgreSQL.
type PGNotificationStore struct {
	Pool *pgxpool.Pool
}

// InsertNotification inserts n unless an unread notification of the same
// type for the same entity exists.
func (s PGNotificationStore) InsertNotification(ctx context.Context, n ledger.Notification) (bool, error) {
	if s.Pool == nil {
		return false, errors.New("notify scan: pool not configured")
	}
	tag, err := s.Pool.Exec(ctx, `INSERT INTO notifications (title, message, kind, related_entity_id, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (kind, related_entity_id) WHERE NOT is_read DO NOTHING`, n.Title, n.Message, string(n.Type), n.RelatedID, n.CreatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
