// Package postgres executes scouting queries on PostgreSQL through pgxpool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/vlrscout/scout-engine/pkg/adapters/analytics"
	"github.com/vlrscout/scout-engine/pkg/logging"
	"github.com/vlrscout/scout-engine/pkg/metrics"
	"github.com/vlrscout/scout-engine/pkg/models"
)

// sqlstateQueryCanceled is raised when statement_timeout fires.
const sqlstateQueryCanceled = "57014"

// DefaultAcquireTimeout bounds the wait for a pooled connection.
const DefaultAcquireTimeout = 3 * time.Second

// Executor runs capped read-only queries on a shared pool.
type Executor struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
	logger         *zap.Logger
}

// NewExecutor wraps pool. The pool is owned by the caller.
func NewExecutor(pool *pgxpool.Pool, acquireTimeout time.Duration, logger *zap.Logger) *Executor {
	if acquireTimeout <= 0 {
		acquireTimeout = DefaultAcquireTimeout
	}
	return &Executor{
		pool:           pool,
		acquireTimeout: acquireTimeout,
		logger:         logger.Named("pg-executor"),
	}
}

// Query runs sql inside a read-only transaction with SET LOCAL statement_timeout.
// The transaction is always rolled back.
func (e *Executor) Query(ctx context.Context, sql string, args []any, opts analytics.QueryOptions) (*models.ExecutionResult, error) {
	capped, opts := analytics.Prepare(sql, opts)
	start := time.Now()

	acquireCtx, cancel := context.WithTimeout(ctx, e.acquireTimeout)
	conn, err := e.pool.Acquire(acquireCtx)
	cancel()
	if err != nil {
		e.observe(start, "busy")
		if ctx.Err() != nil {
			return nil, analytics.TimedOut(ctx.Err())
		}
		e.logger.Warn("Connection pool exhausted",
			zap.Duration("waited", time.Since(start)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, analytics.Busy(err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, e.fail(ctx, start, sql, err)
	}
	defer func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	timeoutMS := opts.StatementTimeout.Milliseconds()
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", timeoutMS)); err != nil {
		return nil, e.fail(ctx, start, sql, err)
	}

	rows, err := tx.Query(ctx, capped, args...)
	if err != nil {
		return nil, e.fail(ctx, start, sql, err)
	}

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	collector := analytics.NewCollector(columns, opts.RowCap, start)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			rows.Close()
			return nil, e.fail(ctx, start, sql, err)
		}
		for i, v := range values {
			values[i] = normalize(v)
		}
		if !collector.Add(values) {
			break
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, e.fail(ctx, start, sql, err)
	}

	var total *int64
	if collector.Truncated() {
		metrics.QueriesTruncated.Inc()
		if !opts.SkipTotal {
			total = e.count(ctx, tx, sql, args)
		}
	}

	e.observe(start, "ok")
	return collector.Result(total), nil
}

// count is best effort: a failure leaves the total unknown.
func (e *Executor) count(ctx context.Context, tx pgx.Tx, sql string, args []any) *int64 {
	var n int64
	if err := tx.QueryRow(ctx, analytics.CountSQL(sql), args...).Scan(&n); err != nil {
		e.logger.Debug("Row count for truncated result unavailable",
			zap.String("error", logging.SanitizeError(err)))
		return nil
	}
	return &n
}

func (e *Executor) fail(ctx context.Context, start time.Time, sql string, err error) error {
	if isTimeout(ctx, err) {
		e.observe(start, "timeout")
		e.logger.Warn("Query timed out",
			zap.String("sql", logging.SanitizeQuery(sql)),
			zap.Duration("elapsed", time.Since(start)))
		return analytics.TimedOut(err)
	}

	e.observe(start, "error")
	e.logger.Error("Query failed",
		zap.String("sql", logging.SanitizeQuery(sql)),
		zap.String("error", logging.SanitizeError(err)))
	return analytics.Failed(err)
}

func (e *Executor) observe(start time.Time, outcome string) {
	metrics.QueryDuration.WithLabelValues(e.Backend(), outcome).Observe(time.Since(start).Seconds())
}

func isTimeout(ctx context.Context, err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == sqlstateQueryCanceled {
		return true
	}
	if analytics.Interrupted(ctx, err) {
		return true
	}
	return pgconn.Timeout(err)
}

// normalize turns pgtype values into plain Go scalars before generic handling.
func normalize(v any) any {
	switch val := v.(type) {
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	default:
		return v
	}
}

// Ping checks connectivity.
func (e *Executor) Ping(ctx context.Context) error {
	return e.pool.Ping(ctx)
}

// Backend names the engine for metrics and health output.
func (e *Executor) Backend() string {
	return "postgres"
}

// Close is a no-op; the pool belongs to the caller.
func (e *Executor) Close() error {
	return nil
}

var _ analytics.Executor = (*Executor)(nil)
