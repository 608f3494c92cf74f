// Package duckdb executes scouting queries on a DuckDB snapshot of the match data.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/duckdb/duckdb-go/v2"
	"go.uber.org/zap"

	"github.com/vlrscout/scout-engine/pkg/adapters/analytics"
	"github.com/vlrscout/scout-engine/pkg/logging"
	"github.com/vlrscout/scout-engine/pkg/metrics"
	"github.com/vlrscout/scout-engine/pkg/models"
)

// Executor runs capped queries against a DuckDB file. The file is opened with
// access_mode=READ_ONLY, which DuckDB enforces for every statement.
type Executor struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens dsn (a path, optionally with ?access_mode=READ_ONLY) and pings it.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Executor, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}
	return NewExecutor(db, logger), nil
}

// NewExecutor wraps an already opened database.
func NewExecutor(db *sql.DB, logger *zap.Logger) *Executor {
	return &Executor{db: db, logger: logger.Named("duckdb-executor")}
}

// Query runs sql under a context deadline equal to the statement timeout.
func (e *Executor) Query(ctx context.Context, query string, args []any, opts analytics.QueryOptions) (*models.ExecutionResult, error) {
	capped, opts := analytics.Prepare(query, opts)
	start := time.Now()

	qctx, cancel := context.WithTimeout(ctx, opts.StatementTimeout)
	defer cancel()

	conn, err := e.db.Conn(qctx)
	if err != nil {
		return nil, e.fail(qctx, start, query, err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(qctx, capped, args...)
	if err != nil {
		return nil, e.fail(qctx, start, query, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, e.fail(qctx, start, query, err)
	}

	collector := analytics.NewCollector(columns, opts.RowCap, start)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, e.fail(qctx, start, query, err)
		}
		for i, v := range values {
			values[i] = normalize(v)
		}
		if !collector.Add(values) {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, e.fail(qctx, start, query, err)
	}
	rows.Close()

	var total *int64
	if collector.Truncated() {
		metrics.QueriesTruncated.Inc()
		if !opts.SkipTotal {
			var n int64
			if err := conn.QueryRowContext(qctx, analytics.CountSQL(query), args...).Scan(&n); err == nil {
				total = &n
			} else {
				e.logger.Debug("Row count for truncated result unavailable",
					zap.String("error", logging.SanitizeError(err)))
			}
		}
	}

	e.observe(start, "ok")
	return collector.Result(total), nil
}

func (e *Executor) fail(ctx context.Context, start time.Time, query string, err error) error {
	if analytics.Interrupted(ctx, err) {
		e.observe(start, "timeout")
		e.logger.Warn("Query timed out",
			zap.String("sql", logging.SanitizeQuery(query)),
			zap.Duration("elapsed", time.Since(start)))
		return analytics.TimedOut(err)
	}

	e.observe(start, "error")
	e.logger.Error("Query failed",
		zap.String("sql", logging.SanitizeQuery(query)),
		zap.String("error", logging.SanitizeError(err)))
	return analytics.Failed(err)
}

func (e *Executor) observe(start time.Time, outcome string) {
	metrics.QueryDuration.WithLabelValues(e.Backend(), outcome).Observe(time.Since(start).Seconds())
}

func normalize(v any) any {
	switch val := v.(type) {
	case duckdb.Decimal:
		return val.Float64()
	case time.Time:
		return val.UTC()
	default:
		return v
	}
}

func (e *Executor) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

func (e *Executor) Backend() string {
	return "duckdb"
}

func (e *Executor) Close() error {
	return e.db.Close()
}

var _ analytics.Executor = (*Executor)(nil)
