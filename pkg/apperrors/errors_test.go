package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := Wrap(KindQueryTimeout, "too slow", errors.New("canceling statement due to statement timeout"))
	wrapped := fmt.Errorf("execute: %w", err)

	assert.Equal(t, KindQueryTimeout, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestUserMessage_NeverLeaksCause(t *testing.T) {
	cause := errors.New(`relation "secret_internal_table" does not exist`)
	err := Wrap(KindExecutionFailed, "", cause)

	msg := UserMessage(err)
	assert.NotContains(t, msg, "secret_internal_table")
	assert.Equal(t, DefaultMessage(KindExecutionFailed), msg)

	assert.Equal(t, DefaultMessage(KindExecutionFailed), UserMessage(cause))
}

func TestUserMessage_PrefersExplicitMessage(t *testing.T) {
	err := New(KindAmbiguousIntent, "Did you mean map win rate or pistol win rate?")
	assert.Equal(t, "Did you mean map win rate or pistol win rate?", UserMessage(err))
}

func TestDefaultMessage_DistinctPerKind(t *testing.T) {
	kinds := []Kind{
		KindInvalidInput, KindInputTooLong, KindUnknownTeam, KindUnresolvableIntent,
		KindAmbiguousIntent, KindQueryTimeout, KindGenerationTimeout, KindRateLimited,
		KindQuotaExceeded, KindExecutionFailed,
	}
	seen := make(map[string]Kind)
	for _, k := range kinds {
		msg := DefaultMessage(k)
		if prev, ok := seen[msg]; ok {
			t.Errorf("kinds %s and %s share the message %q", prev, k, msg)
		}
		seen[msg] = k
	}
}

func TestError_ErrorIncludesCause(t *testing.T) {
	err := Wrap(KindRateLimited, "slow down", errors.New("429"))
	assert.Contains(t, err.Error(), "rate_limited")
	assert.Contains(t, err.Error(), "429")
	assert.ErrorIs(t, err, err.Cause)
}
