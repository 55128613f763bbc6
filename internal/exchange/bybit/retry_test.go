package bybit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      2 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestRetryExhaustsBudgetOnRateLimit(t *testing.T) {
	client := NewClient(Config{})

	attempts := 0
	err := client.RetryWithConfig(context.Background(), func() error {
		attempts++
		return Categorize(&APIError{Code: ErrCodeRateLimitExceeded, Message: "rate limit"}, "place_order")
	}, fastRetryConfig())

	require.Error(t, err)
	assert.Equal(t, 4, attempts, "transient errors get the initial attempt plus MaxRetries")
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	client := NewClient(Config{})

	attempts := 0
	err := client.RetryWithConfig(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return Categorize(&APIError{Code: ErrCodeInvalidTimestamp, Message: "timestamp drift"}, "get_kline")
		}
		return nil
	}, fastRetryConfig())

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryStopsOnFatalError(t *testing.T) {
	client := NewClient(Config{})

	attempts := 0
	err := client.RetryWithConfig(context.Background(), func() error {
		attempts++
		return Categorize(&APIError{Code: ErrCodeInsufficientBalance, Message: "insufficient balance"}, "place_order")
	}, fastRetryConfig())

	require.Error(t, err)
	assert.Equal(t, 1, attempts, "fatal rejections must not be retried")
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	client := NewClient(Config{})
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := client.RetryWithConfig(ctx, func() error {
		attempts++
		cancel()
		return Categorize(&APIError{Code: ErrCodeRateLimitExceeded, Message: "rate limit"}, "get_tickers")
	}, fastRetryConfig())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestIsRetryableClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"categorized rate limit", Categorize(&APIError{Code: ErrCodeRateLimitExceeded}, "op"), true},
		{"categorized timestamp drift", Categorize(&APIError{Code: ErrCodeInvalidTimestamp}, "op"), true},
		{"categorized insufficient balance", Categorize(&APIError{Code: ErrCodeInsufficientBalance}, "op"), false},
		{"categorized bad credentials", Categorize(&APIError{Code: ErrCodeInvalidAPIKey}, "op"), false},
		{"raw gateway error", &APIError{Code: 502}, true},
		{"raw order not found", &APIError{Code: ErrCodeOrderNotFound}, false},
		{"categorized network error", Categorize(errors.New("dial tcp: connection refused"), "op"), true},
		{"plain error", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRetryable(tc.err))
		})
	}
}
