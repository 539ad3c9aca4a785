package pipeline

import (
	"errors"
	"fmt"
)

// Pipeline error sentinels. Wrapped errors compare with errors.Is.
var (
	ErrDelimiterCollision = errors.New("source text contains marker delimiter sequence")
	ErrEmptyDocument      = errors.New("document contains no translatable blocks")
	ErrTransformerFailed  = errors.New("transformer call failed")
	ErrResponseMalformed  = errors.New("transformer response could not be parsed")
	ErrBlockQuarantined   = errors.New("block quarantined after exhausted retries")
	ErrEncodingInvariant  = errors.New("merged units do not reassemble the block text")
	ErrCanceled           = errors.New("translation canceled")
	ErrInvalidConfig      = errors.New("invalid pipeline configuration")
)

// PipelineError carries a stable code, the failing phase, and retry advice.
type PipelineError struct {
	Code    string
	Message string
	Phase   string
	BlockID int
	Cause   error
	Retry   bool
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (phase: %s): %v", e.Code, e.Message, e.Phase, e.Cause)
	}
	return fmt.Sprintf("[%s] %s (phase: %s)", e.Code, e.Message, e.Phase)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// WrapError builds a PipelineError around cause, classifying retryability
// from the sentinel it wraps.
func WrapError(cause error, code, message, phase string) *PipelineError {
	return &PipelineError{
		Code:    code,
		Message: message,
		Phase:   phase,
		Cause:   cause,
		Retry:   IsRetryable(cause),
	}
}

// IsRetryable walks the error chain and reports whether another attempt can
// plausibly succeed. Delimiter collisions, cancellation, and configuration
// errors are terminal; transformer and parse failures are retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrDelimiterCollision),
		errors.Is(err, ErrEmptyDocument),
		errors.Is(err, ErrCanceled),
		errors.Is(err, ErrInvalidConfig),
		errors.Is(err, ErrBlockQuarantined),
		errors.Is(err, ErrEncodingInvariant):
		return false
	case errors.Is(err, ErrTransformerFailed),
		errors.Is(err, ErrResponseMalformed):
		return true
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Retry
	}
	return true
}
