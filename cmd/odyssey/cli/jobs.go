// Package cli holds operator sub-commands of the odyssey binary.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
	"github.com/odyssey-erp/odyssey-pos/jobs"
)

// TaskEnqueuer submits tasks. *jobs.Client satisfies it.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueInspector reads queue state. *asynq.Inspector satisfies it.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	enqueuer  TaskEnqueuer
	inspector QueueInspector
	closers   []io.Closer
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client, err := jobs.NewClient(opts)
	if err != nil {
		return nil, err
	}
	inspector := asynq.NewInspector(opts)
	return &JobsCLI{enqueuer: client, inspector: inspector, closers: []io.Closer{client, inspector}}, nil
}

// NewJobsCLIWith builds the helpers on caller supplied ports.
func NewJobsCLIWith(enqueuer TaskEnqueuer, inspector QueueInspector) *JobsCLI {
	return &JobsCLI{enqueuer: enqueuer, inspector: inspector}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	for _, closer := range c.closers {
		if closeErr := closer.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// TriggerOptions carries the optional payload fields of a manual trigger.
type TriggerOptions struct {
	Period        string
	Year          int
	DebtThreshold string
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string, opts TriggerOptions) (*asynq.TaskInfo, error) {
	if c == nil || c.enqueuer == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var task *asynq.Task
	var err error
	switch name {
	case jobs.TaskPayrollRun:
		if opts.Period != "" {
			if _, perr := ledger.ParsePeriod(opts.Period); perr != nil {
				return nil, perr
			}
		}
		task, err = jobs.NewPayrollRunTask(jobs.PayrollRunPayload{Period: opts.Period})
	case jobs.TaskNotifyScan:
		payload := jobs.NotifyScanPayload{Reason: "manual"}
		if opts.DebtThreshold != "" {
			payload.DebtThreshold, err = decimal.NewFromString(opts.DebtThreshold)
			if err != nil {
				return nil, fmt.Errorf("jobs cli: invalid debt threshold %q", opts.DebtThreshold)
			}
		}
		task, err = jobs.NewNotifyScanTask(payload)
	case jobs.TaskReportsWarmup:
		task, err = jobs.NewReportsWarmupTask(jobs.ReportsWarmupPayload{Year: opts.Year})
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	if err != nil {
		return nil, err
	}
	return c.enqueuer.Enqueue(ctx, task)
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

// ListScheduled returns scheduled task infos for observability.
func (c *JobsCLI) ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}

// CommandOptions routes command output.
type CommandOptions struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Command runs `jobs trigger <task> [flags]` or `jobs inspect [--json]` and
// returns the process exit code.
func (c *JobsCLI) Command(ctx context.Context, args []string, opts CommandOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if len(args) == 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "usage: odyssey jobs trigger <task> | odyssey jobs inspect")
		return 2
	}
	switch args[0] {
	case "trigger":
		return c.triggerCommand(ctx, args[1:], opts)
	case "inspect":
		return c.inspectCommand(ctx, args[1:], opts)
	}
	_, _ = fmt.Fprintf(opts.Stderr, "jobs: unknown command %q\n", args[0])
	return 2
}

func (c *JobsCLI) triggerCommand(ctx context.Context, args []string, opts CommandOptions) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintf(opts.Stderr, "jobs trigger: task required (%s, %s, %s)\n", jobs.TaskPayrollRun, jobs.TaskNotifyScan, jobs.TaskReportsWarmup)
		return 2
	}
	name := args[0]
	fs := flag.NewFlagSet("jobs trigger", flag.ContinueOnError)
	fs.SetOutput(opts.Stderr)
	var topts TriggerOptions
	fs.StringVar(&topts.Period, "period", "", "payroll period (YYYY-MM)")
	fs.IntVar(&topts.Year, "year", 0, "report year")
	fs.StringVar(&topts.DebtThreshold, "debt-threshold", "", "minimum customer debt for reminders")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	info, err := c.Trigger(ctx, name, topts)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "jobs trigger: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(opts.Stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	return 0
}

func (c *JobsCLI) inspectCommand(ctx context.Context, args []string, opts CommandOptions) int {
	fs := flag.NewFlagSet("jobs inspect", flag.ContinueOnError)
	fs.SetOutput(opts.Stderr)
	jsonOutput := fs.Bool("json", false, "print JSON")
	scheduled := fs.Int("scheduled", 5, "number of scheduled tasks to list")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	stats, err := c.InspectQueue(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "jobs inspect: %v\n", err)
		return 1
	}
	tasks, err := c.ListScheduled(ctx, *scheduled)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "jobs inspect: %v\n", err)
		return 1
	}
	if *jsonOutput {
		names := make([]string, 0, len(tasks))
		for _, t := range tasks {
			names = append(names, t.Type)
		}
		out := struct {
			QueueStats
			Upcoming []string `json:"upcoming"`
		}{stats, names}
		if err := json.NewEncoder(opts.Stdout).Encode(out); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "jobs inspect: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintf(opts.Stdout, "queue %s: pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	for _, t := range tasks {
		_, _ = fmt.Fprintf(opts.Stdout, " - %s at %s\n", t.Type, t.NextProcessAt.Format("2006-01-02 15:04"))
	}
	return 0
}
