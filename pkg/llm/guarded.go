package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/vlrscout/scout-engine/pkg/logging"
	"github.com/vlrscout/scout-engine/pkg/metrics"
	"github.com/vlrscout/scout-engine/pkg/retry"
)

// DefaultGenerationTimeout bounds a single generation, retries included.
const DefaultGenerationTimeout = 12 * time.Second

// GuardedConfig configures the protections wrapped around a provider client.
type GuardedConfig struct {
	GenerationTimeout time.Duration
	Retry             *retry.Config
	Breaker           CircuitBreakerConfig
}

// GuardedClient adds a generation deadline, transient retries and a circuit
// breaker to another LLMClient. Every error it returns is an *Error.
type GuardedClient struct {
	inner    LLMClient
	breaker  *CircuitBreaker
	retryCfg *retry.Config
	timeout  time.Duration
	logger   *zap.Logger
}

// NewGuardedClient wraps inner.
func NewGuardedClient(inner LLMClient, cfg GuardedConfig, logger *zap.Logger) *GuardedClient {
	timeout := cfg.GenerationTimeout
	if timeout <= 0 {
		timeout = DefaultGenerationTimeout
	}
	retryCfg := cfg.Retry
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	breakerCfg := cfg.Breaker
	if breakerCfg.Threshold <= 0 || breakerCfg.ResetAfter <= 0 {
		breakerCfg = DefaultCircuitBreakerConfig()
	}

	breaker := NewCircuitBreaker(breakerCfg)
	breaker.OnStateChange(func(s CircuitState) {
		metrics.CircuitBreakerState.Set(float64(s))
	})

	return &GuardedClient{
		inner:    inner,
		breaker:  breaker,
		retryCfg: retryCfg,
		timeout:  timeout,
		logger:   logger.Named("llm-guard"),
	}
}

// GenerateResponse runs one generation under the deadline. Failures are
// classified so callers can tell timeouts, rate limits and quota apart from
// errors they should silently fall back on.
func (g *GuardedClient) GenerateResponse(
	ctx context.Context,
	prompt string,
	systemMessage string,
	temperature float64,
) (*GenerateResponseResult, error) {
	purpose := PurposeFrom(ctx)

	if ok, reason := g.breaker.Allow(); !ok {
		metrics.LLMRequests.WithLabelValues(purpose, string(ErrorTypeUnavailable)).Inc()
		return nil, NewError(ErrorTypeUnavailable, "llm provider unavailable", false, reason)
	}

	genCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	result, err := retry.DoWithResult(genCtx, g.retryCfg, func() (*GenerateResponseResult, error) {
		return g.inner.GenerateResponse(genCtx, prompt, systemMessage, temperature)
	})
	if err == nil {
		g.breaker.RecordSuccess()
		metrics.LLMRequests.WithLabelValues(purpose, "ok").Inc()
		return result, nil
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		g.breaker.Release()
		metrics.LLMRequests.WithLabelValues(purpose, "canceled").Inc()
		return nil, NewError(ErrorTypeUnknown, "request canceled", false, ctx.Err())
	}

	var classified *Error
	if errors.Is(genCtx.Err(), context.DeadlineExceeded) {
		classified = NewError(ErrorTypeTimeout, "generation timed out", false, err)
	} else {
		classified = ClassifyError(err)
	}

	switch classified.Type {
	case ErrorTypeRateLimit, ErrorTypeQuota:
		// The provider answered; it is reachable.
		g.breaker.RecordSuccess()
	default:
		g.breaker.RecordFailure()
	}

	metrics.LLMRequests.WithLabelValues(purpose, string(classified.Type)).Inc()
	g.logger.Warn("LLM generation failed",
		zap.String("purpose", purpose),
		zap.String("error_type", string(classified.Type)),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("error", logging.SanitizeError(err)))

	return nil, classified
}

// Breaker exposes the circuit breaker for health reporting.
func (g *GuardedClient) Breaker() *CircuitBreaker {
	return g.breaker
}

// GetModel returns the wrapped client's model.
func (g *GuardedClient) GetModel() string {
	return g.inner.GetModel()
}

// GetEndpoint returns the wrapped client's endpoint.
func (g *GuardedClient) GetEndpoint() string {
	return g.inner.GetEndpoint()
}
