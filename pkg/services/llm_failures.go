package services

import (
	"github.com/vlrscout/scout-engine/pkg/apperrors"
	"github.com/vlrscout/scout-engine/pkg/llm"
)

// generationFailure returns the request-level error for an LLM failure that
// must reach the caller: timeouts, rate limits and quota. Any other failure
// returns nil and the caller falls back to deterministic output.
func generationFailure(err error) error {
	if err == nil {
		return nil
	}
	classified := llm.ClassifyError(err)
	switch classified.Type {
	case llm.ErrorTypeTimeout:
		return apperrors.Wrap(apperrors.KindGenerationTimeout, "", classified)
	case llm.ErrorTypeRateLimit:
		return apperrors.Wrap(apperrors.KindRateLimited, "", classified)
	case llm.ErrorTypeQuota:
		return apperrors.Wrap(apperrors.KindQuotaExceeded, "", classified)
	}
	return nil
}
