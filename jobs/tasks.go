package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPayrollRun pays every unpaid salary of a period.
	TaskPayrollRun = "payroll:run"
	// TaskNotifyScan generates low-stock and debt reminder notifications.
	TaskNotifyScan = "notify:scan"
	// TaskReportsWarmup pre-builds the yearly accounting reports.
	TaskReportsWarmup = "reports:warmup"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// PayrollRunPayload selects the period to pay. Empty means the current period.
type PayrollRunPayload struct {
	Period string `json:"period,omitempty"`
}

// NotifyScanPayload tunes the notification scan.
type NotifyScanPayload struct {
	DebtThreshold decimal.Decimal `json:"debt_threshold"`
	Reason        string          `json:"reason,omitempty"`
}

// ReportsWarmupPayload selects the year to warm. Zero means the current year.
type ReportsWarmupPayload struct {
	Year int `json:"year,omitempty"`
}

// NewPayrollRunTask constructs an Asynq task for the payroll run.
func NewPayrollRunTask(payload PayrollRunPayload) (*asynq.Task, error) {
	return newTask(TaskPayrollRun, payload, asynq.MaxRetry(3))
}

// NewNotifyScanTask constructs an Asynq task for the notification scan.
func NewNotifyScanTask(payload NotifyScanPayload) (*asynq.Task, error) {
	return newTask(TaskNotifyScan, payload)
}

// NewReportsWarmupTask constructs an Asynq task for the report warmup.
func NewReportsWarmupTask(payload ReportsWarmupPayload) (*asynq.Task, error) {
	return newTask(TaskReportsWarmup, payload)
}

func newTask(typename string, payload any, opts ...asynq.Option) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typename, body, append([]asynq.Option{asynq.Queue(QueueDefault)}, opts...)...), nil
}

// decodePayload unmarshals a task payload. Empty payloads leave dest untouched.
func decodePayload(t *asynq.Task, dest any) error {
	if len(t.Payload()) == 0 {
		return nil
	}
	return json.Unmarshal(t.Payload(), dest)
}
