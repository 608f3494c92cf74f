// Package analytics runs validated, read-only scouting queries against the match database.
//
// Every backend applies the same guardrails: a read-only session, a statement
// timeout, and a row cap enforced by wrapping the query as
// SELECT * FROM (<sql>) AS _capped LIMIT cap+1.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/vlrscout/scout-engine/pkg/apperrors"
	"github.com/vlrscout/scout-engine/pkg/models"
)

const (
	DefaultRowCap           = 500
	DefaultStatementTimeout = 5 * time.Second
)

// QueryOptions bounds a single query.
type QueryOptions struct {
	RowCap           int
	StatementTimeout time.Duration
	// SkipTotal disables the follow-up COUNT(*) run when a result is truncated.
	SkipTotal bool
}

func (o QueryOptions) withDefaults() QueryOptions {
	if o.RowCap <= 0 {
		o.RowCap = DefaultRowCap
	}
	if o.StatementTimeout <= 0 {
		o.StatementTimeout = DefaultStatementTimeout
	}
	return o
}

// Executor runs one read-only SELECT with positional ($n) arguments.
// Errors are *apperrors.Error with KindQueryTimeout or KindExecutionFailed.
type Executor interface {
	Query(ctx context.Context, sql string, args []any, opts QueryOptions) (*models.ExecutionResult, error)
	Ping(ctx context.Context) error
	Backend() string
	Close() error
}

// Prepare applies defaults and returns the capped statement plus the options used.
func Prepare(sql string, opts QueryOptions) (string, QueryOptions) {
	opts = opts.withDefaults()
	return CappedSQL(sql, opts.RowCap+1), opts
}

// CappedSQL wraps sql so at most limit rows come back.
func CappedSQL(sql string, limit int) string {
	return fmt.Sprintf("SELECT * FROM (%s) AS _capped LIMIT %d", sql, limit)
}

// CountSQL counts the rows sql would return.
func CountSQL(sql string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS _total", sql)
}

// Collector accumulates rows up to the cap and builds the ExecutionResult.
type Collector struct {
	columns []string
	rows    []map[string]any
	cap     int
	over    bool
	start   time.Time
}

// NewCollector starts timing a query whose result has the given columns.
func NewCollector(columns []string, rowCap int, start time.Time) *Collector {
	return &Collector{
		columns: columns,
		rows:    make([]map[string]any, 0),
		cap:     rowCap,
		start:   start,
	}
}

// Add appends one row of driver values. It reports false once the cap is
// exceeded; the extra row is dropped and the result is marked truncated.
func (c *Collector) Add(values []any) bool {
	if len(c.rows) >= c.cap {
		c.over = true
		return false
	}
	row := make(map[string]any, len(c.columns))
	for i, col := range c.columns {
		if i < len(values) {
			row[col] = NormalizeValue(values[i])
		}
	}
	c.rows = append(c.rows, row)
	return true
}

// Truncated reports whether the query produced more rows than the cap.
func (c *Collector) Truncated() bool {
	return c.over
}

// Result builds the ExecutionResult. total is the full row count when known.
func (c *Collector) Result(total *int64) *models.ExecutionResult {
	result := &models.ExecutionResult{
		Columns:   c.columns,
		Rows:      c.rows,
		RowCount:  len(c.rows),
		Truncated: c.over,
		ElapsedMS: time.Since(c.start).Milliseconds(),
	}
	if c.over {
		result.TotalRows = total
	}
	return result
}

// NormalizeValue converts scalars into JSON-friendly Go values: integers to
// int64, floats to float64, byte slices to string. Backends convert their own
// decimal types first.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint:
		return unsigned(uint64(val))
	case uint64:
		return unsigned(val)
	case float32:
		return float64(val)
	case []byte:
		return string(val)
	case *big.Int:
		if val == nil {
			return nil
		}
		if val.IsInt64() {
			return val.Int64()
		}
		f, _ := new(big.Float).SetInt(val).Float64()
		return f
	default:
		return v
	}
}

// unsigned keeps values past MaxInt64 as float64 rather than wrapping them negative.
func unsigned(v uint64) any {
	if v > math.MaxInt64 {
		return float64(v)
	}
	return int64(v)
}

// Interrupted reports whether err, or the request context, ended because of a
// deadline or cancellation. Both surface as query_timeout.
func Interrupted(ctx context.Context, err error) bool {
	for _, e := range []error{err, ctx.Err()} {
		if errors.Is(e, context.DeadlineExceeded) || errors.Is(e, context.Canceled) {
			return true
		}
	}
	return false
}

// Busy is returned when no connection frees up within the acquire timeout.
func Busy(cause error) error {
	return apperrors.Wrap(apperrors.KindExecutionFailed, "The match database is busy right now. Please try again in a moment.", cause)
}

// TimedOut is returned when the statement timeout or request deadline fires,
// or the caller goes away mid-query.
func TimedOut(cause error) error {
	return apperrors.Wrap(apperrors.KindQueryTimeout, "", cause)
}

// Failed hides the driver error behind the generic execution message.
func Failed(cause error) error {
	return apperrors.Wrap(apperrors.KindExecutionFailed, "", cause)
}
