package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"google.golang.org/api/googleapi"
)

// UnsupportedModelError is returned when a model name is not in the registry.
type UnsupportedModelError struct {
	Model     string
	Available []string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("unsupported model %q (available: %s)", e.Model, strings.Join(e.Available, ", "))
}

// ProviderError represents a failure of a model or embedding provider: a
// transport or API error, a timeout, or malformed structured output.
type ProviderError struct {
	Provider string
	Op       string
	Cause    error
	// Transient marks failures worth retrying, such as rate limits and 5xx responses.
	Transient bool
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Op, e.Cause)
	}
	return fmt.Sprintf("%s %s failed", e.Provider, e.Op)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// IsTransient reports whether err is a ProviderError marked retryable.
func IsTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Transient
}

// providerError wraps err for provider, classifying it as transient when the
// provider signalled a rate limit or server error, or the network failed.
func providerError(provider Provider, op string, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return &ProviderError{Provider: string(provider), Op: op, Cause: err, Transient: transient(err)}
}

func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.StatusCode)
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return retryableStatus(gErr.Code)
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
