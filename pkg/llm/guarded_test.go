package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vlrscout/scout-engine/pkg/retry"
)

func fastGuard() GuardedConfig {
	return GuardedConfig{
		GenerationTimeout: time.Second,
		Retry: &retry.Config{
			MaxRetries:   2,
			InitialDelay: time.Millisecond,
			MaxDelay:     2 * time.Millisecond,
			Multiplier:   2,
		},
		Breaker: CircuitBreakerConfig{Threshold: 2, ResetAfter: time.Hour},
	}
}

func TestGuardedClient_RetriesTransientErrors(t *testing.T) {
	mock := NewMockLLMClient("")
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temp float64) (*GenerateResponseResult, error) {
		if len(mock.Prompts()) < 3 {
			return nil, NewError(ErrorTypeEndpoint, "server error", true, nil)
		}
		return &GenerateResponseResult{Content: "ok"}, nil
	}

	g := NewGuardedClient(mock, fastGuard(), zap.NewNop())
	result, err := g.GenerateResponse(context.Background(), "q", "s", 0)

	require.NoError(t, err)
	assert.Equal(t, "ok", result.Content)
	assert.Equal(t, 3, mock.Calls())
	assert.Equal(t, CircuitClosed, g.Breaker().State())
}

func TestGuardedClient_NeverRetriesThrottling(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"rate limit", NewError(ErrorTypeRateLimit, "rate limited", false, nil), ErrorTypeRateLimit},
		{"quota", NewError(ErrorTypeQuota, "quota exceeded", false, nil), ErrorTypeQuota},
		{"raw 429", errors.New("error, status code: 429, message: Rate limit reached"), ErrorTypeRateLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockLLMClient("")
			mock.GenerateResponseFunc = func(context.Context, string, string, float64) (*GenerateResponseResult, error) {
				return nil, tt.err
			}

			g := NewGuardedClient(mock, fastGuard(), zap.NewNop())
			_, err := g.GenerateResponse(context.Background(), "q", "s", 0)

			assert.Equal(t, tt.want, GetErrorType(err))
			assert.Equal(t, 1, mock.Calls())
			assert.Equal(t, CircuitClosed, g.Breaker().State(), "throttling must not trip the breaker")
		})
	}
}

func TestGuardedClient_GenerationTimeout(t *testing.T) {
	mock := NewMockLLMClient("")
	mock.GenerateResponseFunc = func(ctx context.Context, _, _ string, _ float64) (*GenerateResponseResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	cfg := fastGuard()
	cfg.GenerationTimeout = 20 * time.Millisecond
	g := NewGuardedClient(mock, cfg, zap.NewNop())

	start := time.Now()
	_, err := g.GenerateResponse(context.Background(), "q", "s", 0)

	assert.Equal(t, ErrorTypeTimeout, GetErrorType(err))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, mock.Calls())
}

func TestGuardedClient_BreakerOpensAndShortCircuits(t *testing.T) {
	mock := NewMockLLMClient("")
	mock.GenerateResponseFunc = func(context.Context, string, string, float64) (*GenerateResponseResult, error) {
		return nil, NewError(ErrorTypeAuth, "authentication failed", false, nil)
	}

	g := NewGuardedClient(mock, fastGuard(), zap.NewNop())
	for i := 0; i < 2; i++ {
		_, err := g.GenerateResponse(context.Background(), "q", "s", 0)
		assert.Equal(t, ErrorTypeAuth, GetErrorType(err))
	}
	require.Equal(t, CircuitOpen, g.Breaker().State())

	_, err := g.GenerateResponse(context.Background(), "q", "s", 0)
	assert.Equal(t, ErrorTypeUnavailable, GetErrorType(err))
	assert.Equal(t, 2, mock.Calls(), "open circuit must not reach the provider")
}

func TestGuardedClient_CallerCancellationIsNotAFailure(t *testing.T) {
	mock := NewMockLLMClient("")
	mock.GenerateResponseFunc = func(ctx context.Context, _, _ string, _ float64) (*GenerateResponseResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	g := NewGuardedClient(mock, fastGuard(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, err := g.GenerateResponse(ctx, "q", "s", 0)
	require.Error(t, err)
	assert.Equal(t, 0, g.Breaker().ConsecutiveFailures())
}

func TestPurposeFrom(t *testing.T) {
	assert.Equal(t, "unspecified", PurposeFrom(context.Background()))
	assert.Equal(t, "propose_sql", PurposeFrom(WithPurpose(context.Background(), "propose_sql")))
}
