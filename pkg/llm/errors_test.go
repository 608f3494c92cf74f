package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func TestError_Error(t *testing.T) {
	err := &Error{
		Type:       ErrorTypeEndpoint,
		Message:    "server error",
		StatusCode: 503,
		Model:      "llama-3.3-70b-versatile",
		Cause:      errors.New("upstream"),
	}

	result := err.Error()
	for _, want := range []string{"endpoint", "HTTP 503", "model=llama-3.3-70b-versatile", "server error", "upstream"} {
		if !strings.Contains(result, want) {
			t.Errorf("expected %q in %q", want, result)
		}
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantType      ErrorType
		wantRetryable bool
		wantStatus    int
	}{
		{
			name:     "openai rate limit",
			err:      &openai.APIError{HTTPStatusCode: 429, Message: "Rate limit reached for requests"},
			wantType: ErrorTypeRateLimit, wantStatus: 429,
		},
		{
			name:     "openai insufficient quota shares 429",
			err:      &openai.APIError{HTTPStatusCode: 429, Message: "You exceeded your current quota, please check your plan and billing details."},
			wantType: ErrorTypeQuota, wantStatus: 429,
		},
		{
			name:     "anthropic rate limit error type",
			err:      errors.New("anthropic api error type: rate_limit_error, message: Number of requests has exceeded your rate limit"),
			wantType: ErrorTypeRateLimit,
		},
		{
			name:     "anthropic credit balance",
			err:      errors.New("anthropic api error type: invalid_request_error, message: Your credit balance is too low"),
			wantType: ErrorTypeQuota,
		},
		{
			name:     "context deadline",
			err:      fmt.Errorf("post: %w", context.DeadlineExceeded),
			wantType: ErrorTypeTimeout,
		},
		{
			name:     "gateway timeout",
			err:      &openai.RequestError{HTTPStatusCode: 504, Err: errors.New("gateway timeout")},
			wantType: ErrorTypeTimeout, wantStatus: 504,
		},
		{
			name:     "unauthorized",
			err:      &openai.APIError{HTTPStatusCode: 401, Message: "Invalid API Key"},
			wantType: ErrorTypeAuth, wantStatus: 401,
		},
		{
			name:     "model not found",
			err:      errors.New("The model `gpt-9` does not exist"),
			wantType: ErrorTypeModel,
		},
		{
			name:          "connection refused is transient",
			err:           errors.New("dial tcp 127.0.0.1:8000: connect: connection refused"),
			wantType:      ErrorTypeEndpoint,
			wantRetryable: true,
		},
		{
			name:          "server error is transient",
			err:           &openai.APIError{HTTPStatusCode: 502, Message: "bad gateway"},
			wantType:      ErrorTypeEndpoint,
			wantRetryable: true,
			wantStatus:    502,
		},
		{
			name:          "anthropic overloaded",
			err:           errors.New("anthropic api error type: overloaded_error, message: Overloaded"),
			wantType:      ErrorTypeEndpoint,
			wantRetryable: true,
		},
		{
			name:     "unknown",
			err:      errors.New("something odd"),
			wantType: ErrorTypeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			if got.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", got.Type, tt.wantType)
			}
			if got.Retryable != tt.wantRetryable {
				t.Errorf("Retryable = %v, want %v", got.Retryable, tt.wantRetryable)
			}
			if got.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", got.StatusCode, tt.wantStatus)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("classified error should wrap the original")
			}
		})
	}
}

func TestClassifyError_Passthrough(t *testing.T) {
	if ClassifyError(nil) != nil {
		t.Errorf("expected nil for nil error")
	}

	original := NewError(ErrorTypeQuota, "quota exceeded", false, nil)
	wrapped := fmt.Errorf("propose: %w", original)
	if got := ClassifyError(wrapped); got != original {
		t.Errorf("expected existing *Error to be returned unchanged, got %v", got)
	}
	if GetErrorType(wrapped) != ErrorTypeQuota {
		t.Errorf("GetErrorType = %q, want %q", GetErrorType(wrapped), ErrorTypeQuota)
	}
	if GetErrorType(errors.New("plain")) != ErrorTypeUnknown {
		t.Errorf("expected unknown type for plain error")
	}
}
