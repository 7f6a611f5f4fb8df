package unifiedllm

import (
	"errors"
	"fmt"
)

// SDKError is the base error type for all model-call errors.
type SDKError struct {
	Message string
	Cause   error
}

func (e *SDKError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SDKError) Unwrap() error {
	return e.Cause
}

// ProviderError represents an error returned by an LLM provider or another
// HTTP collaborator (embeddings, search).
type ProviderError struct {
	SDKError
	Provider   string
	StatusCode int
	Retryable  bool
	RetryAfter *float64
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("[%s] %s (status=%d, retryable=%v)", e.Provider, e.Message, e.StatusCode, e.Retryable)
}

// Concrete provider error types.

type AuthenticationError struct{ ProviderError }
type AccessDeniedError struct{ ProviderError }
type NotFoundError struct{ ProviderError }
type InvalidRequestError struct{ ProviderError }
type RateLimitError struct{ ProviderError }
type ServerError struct{ ProviderError }
type ContentFilterError struct{ ProviderError }
type ContextLengthError struct{ ProviderError }
type QuotaExceededError struct{ ProviderError }

// Non-provider errors.

type RequestTimeoutError struct{ SDKError }
type AbortError struct{ SDKError }
type NetworkError struct{ SDKError }
type ConfigurationError struct{ SDKError }

// ErrorFromStatusCode maps an HTTP status code to the appropriate error type.
func ErrorFromStatusCode(statusCode int, message, provider string, retryAfter *float64) error {
	pe := ProviderError{
		SDKError:   SDKError{Message: message},
		Provider:   provider,
		StatusCode: statusCode,
		RetryAfter: retryAfter,
	}

	switch statusCode {
	case 400, 422:
		return &InvalidRequestError{ProviderError: pe}
	case 401:
		return &AuthenticationError{ProviderError: pe}
	case 402:
		return &QuotaExceededError{ProviderError: pe}
	case 403:
		return &AccessDeniedError{ProviderError: pe}
	case 404:
		return &NotFoundError{ProviderError: pe}
	case 408:
		return &RequestTimeoutError{SDKError: SDKError{Message: message}}
	case 413:
		return &ContextLengthError{ProviderError: pe}
	case 429:
		pe.Retryable = true
		return &RateLimitError{ProviderError: pe}
	case 500, 502, 503, 504:
		pe.Retryable = true
		return &ServerError{ProviderError: pe}
	default:
		// Unknown errors default to retryable.
		pe.Retryable = true
		return &pe
	}
}

// IsRetryable reports whether err is safe to retry. Wrapped errors are
// classified by the first typed error in the chain.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsFatal(err) {
		return false
	}

	var (
		invalid *InvalidRequestError
		length  *ContextLengthError
		filter  *ContentFilterError
		config  *ConfigurationError
		abort   *AbortError
	)
	switch {
	case errors.As(err, &invalid), errors.As(err, &length), errors.As(err, &filter),
		errors.As(err, &config), errors.As(err, &abort):
		return false
	}

	var (
		rate    *RateLimitError
		server  *ServerError
		network *NetworkError
		timeout *RequestTimeoutError
		pe      *ProviderError
	)
	switch {
	case errors.As(err, &rate), errors.As(err, &server), errors.As(err, &network), errors.As(err, &timeout):
		return true
	case errors.As(err, &pe):
		return pe.Retryable
	}
	// Unknown errors default to retryable.
	return true
}

// IsFatal reports whether err should end the session: bad credentials,
// denied access, an unknown model, or an exhausted account quota.
func IsFatal(err error) bool {
	var (
		auth   *AuthenticationError
		denied *AccessDeniedError
		gone   *NotFoundError
		quota  *QuotaExceededError
	)
	return errors.As(err, &auth) || errors.As(err, &denied) || errors.As(err, &gone) || errors.As(err, &quota)
}
