package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
)

// ErrConfiguration matches every *ConfigError via errors.Is.
var ErrConfiguration = errors.New("llm configuration error")

// ConfigError reports an invalid or unknown provider setup. It is raised at
// construction time and is never retryable.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("llm config %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

// TransportError wraps a failed provider call: network failure, per-call
// timeout, non-success status or a response body without usable text.
type TransportError struct {
	Provider   Provider
	StatusCode int  // 0 when no HTTP response was received
	Timeout    bool // the per-call deadline expired while the caller was still waiting
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s transport: timed out: %v", e.Provider, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s transport: status %d: %v", e.Provider, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("%s transport: %v", e.Provider, e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the same call could succeed.
func (e *TransportError) Retryable() bool {
	if e.Timeout {
		return true
	}
	if errors.Is(e.Err, context.Canceled) {
		return false
	}
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// newTransportError classifies an SDK error. callCtx carries the per-call
// timeout, parent is the caller's context.
func newTransportError(parent, callCtx context.Context, provider Provider, err error) *TransportError {
	te := &TransportError{Provider: provider, Err: err}

	if parent.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		te.Timeout = true
		return te
	}

	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		te.StatusCode = oaiErr.StatusCode
		return te
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		te.StatusCode = antErr.StatusCode
	}
	return te
}

// IsRetryable reports whether err is worth retrying with the same input.
// Caller cancellation and configuration errors are never retryable.
func IsRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}

	if ctx.Err() != nil {
		slog.DebugContext(ctx, "llm error not retryable: context cancelled or deadline exceeded")
		return false
	}

	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}

	switch {
	case te.Timeout:
		slog.WarnContext(ctx, "llm call timed out, will retry", "provider", te.Provider)
		return true
	case te.StatusCode == http.StatusTooManyRequests:
		slog.WarnContext(ctx, "llm rate limited, will retry",
			"provider", te.Provider,
			"status_code", te.StatusCode)
		return true
	case te.StatusCode >= 500:
		slog.WarnContext(ctx, "llm server error, will retry",
			"provider", te.Provider,
			"status_code", te.StatusCode)
		return true
	case te.StatusCode != 0:
		slog.ErrorContext(ctx, "llm client error, not retryable",
			"provider", te.Provider,
			"status_code", te.StatusCode)
		return false
	}

	if !te.Retryable() {
		return false
	}

	// Network errors (no API response) are generally retryable
	slog.WarnContext(ctx, "llm network error, will retry", "provider", te.Provider, "error", te.Err)
	return true
}
