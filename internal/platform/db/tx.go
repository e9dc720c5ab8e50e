package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
)

// Beginner starts transactions. *pgxpool.Pool satisfies it.
type Beginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Querier is the statement surface shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// WithTx executes a function within a transaction using the RepeatableRead isolation level.
func WithTx(ctx context.Context, db Beginner, fn func(pgx.Tx) error) error {
	return withTx(ctx, db, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, fn)
}

func withTx(ctx context.Context, db Beginner, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// RunnerConfig tunes transaction retries and deadlines.
type RunnerConfig struct {
	Attempts int
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Runner runs ledger units of work with serialization retry and error
// classification. Every error it returns carries a ledger kind.
type Runner struct {
	db       Beginner
	attempts int
	timeout  time.Duration
	logger   *slog.Logger
}

// NewRunner constructs a Runner.
func NewRunner(db Beginner, cfg RunnerConfig) *Runner {
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{db: db, attempts: attempts, timeout: cfg.Timeout, logger: logger}
}

// InTx runs fn in a read-write RepeatableRead transaction. fn may be invoked
// more than once when the store reports a serialization conflict, so it must
// not keep state across invocations.
func (r *Runner) InTx(ctx context.Context, op string, fn func(context.Context, pgx.Tx) error) error {
	return r.run(ctx, op, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, fn)
}

// InReadTx runs fn in a read-only snapshot.
func (r *Runner) InReadTx(ctx context.Context, op string, fn func(context.Context, pgx.Tx) error) error {
	return r.run(ctx, op, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, fn)
}

func (r *Runner) run(ctx context.Context, op string, opts pgx.TxOptions, fn func(context.Context, pgx.Tx) error) error {
	if r == nil || r.db == nil {
		return ledger.Unavailable(op, errors.New("platform/db: runner not initialised"))
	}
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		err = r.attempt(ctx, opts, fn)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) || ctx.Err() != nil {
			break
		}
		r.logger.Debug("retrying ledger transaction", slog.String("op", op), slog.Int("attempt", attempt), slog.Any("error", err))
		time.Sleep(time.Duration(attempt) * 5 * time.Millisecond)
	}
	return Classify(op, err)
}

func (r *Runner) attempt(ctx context.Context, opts pgx.TxOptions, fn func(context.Context, pgx.Tx) error) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return withTx(ctx, r.db, opts, func(tx pgx.Tx) error {
		return fn(ctx, tx)
	})
}
