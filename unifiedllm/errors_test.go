package unifiedllm

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFromStatusCode(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
		fatal     bool
	}{
		{400, false, false},
		{401, false, true},
		{402, false, true},
		{403, false, true},
		{404, false, true},
		{408, true, false},
		{413, false, false},
		{422, false, false},
		{429, true, false},
		{500, true, false},
		{502, true, false},
		{503, true, false},
		{504, true, false},
		{599, true, false},
	}

	for _, tt := range tests {
		err := ErrorFromStatusCode(tt.status, "test error", "openai", nil)
		if got := IsRetryable(err); got != tt.retryable {
			t.Errorf("status %d: IsRetryable = %v, want %v", tt.status, got, tt.retryable)
		}
		if got := IsFatal(err); got != tt.fatal {
			t.Errorf("status %d: IsFatal = %v, want %v", tt.status, got, tt.fatal)
		}
	}
}

func TestErrorFromStatusCodeRetryAfter(t *testing.T) {
	after := 3.0
	err := ErrorFromStatusCode(429, "slow down", "openai", &after)
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %T", err)
	}
	if rl.RetryAfter == nil || *rl.RetryAfter != 3.0 {
		t.Errorf("expected retry-after 3, got %v", rl.RetryAfter)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"auth error", &AuthenticationError{}, false},
		{"access denied", &AccessDeniedError{}, false},
		{"not found", &NotFoundError{}, false},
		{"invalid request", &InvalidRequestError{}, false},
		{"context length", &ContextLengthError{}, false},
		{"quota exceeded", &QuotaExceededError{}, false},
		{"content filter", &ContentFilterError{}, false},
		{"config error", &ConfigurationError{}, false},
		{"abort", &AbortError{}, false},
		{"rate limit", &RateLimitError{ProviderError: ProviderError{Retryable: true}}, true},
		{"server error", &ServerError{ProviderError: ProviderError{Retryable: true}}, true},
		{"network error", &NetworkError{}, true},
		{"timeout error", &RequestTimeoutError{}, true},
		{"wrapped server error", fmt.Errorf("call: %w", &ServerError{}), true},
		{"wrapped auth error", fmt.Errorf("call: %w", &AuthenticationError{}), false},
		{"plain provider error", &ProviderError{Retryable: false}, false},
		{"unknown error", errors.New("unknown"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsRetryable(tt.err)
			if got != tt.retryable {
				t.Errorf("IsRetryable(%T) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}

func TestIsFatalWrapped(t *testing.T) {
	err := fmt.Errorf("cycle 3: %w", &NotFoundError{})
	if !IsFatal(err) {
		t.Error("expected wrapped NotFoundError to be fatal")
	}
	if IsFatal(&RateLimitError{}) {
		t.Error("rate limits must not be fatal")
	}
}

func TestSDKErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &SDKError{Message: "wrapper", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("expected SDKError to unwrap to its cause")
	}
}

func TestProviderErrorMessage(t *testing.T) {
	err := &ProviderError{
		SDKError:   SDKError{Message: "rate limit exceeded"},
		Provider:   "openai",
		StatusCode: 429,
		Retryable:  true,
	}
	msg := err.Error()
	if !strings.Contains(msg, "openai") || !strings.Contains(msg, "rate limit") {
		t.Errorf("error message missing expected content: %q", msg)
	}
}
