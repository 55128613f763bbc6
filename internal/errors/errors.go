package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCategory classifies failures by how the trading loop must react to
// them: stop, retry with backoff, or deny the current cycle and move on.
type ErrorCategory string

const (
	// Fatal at startup, never retried.
	ErrorCategoryConfig ErrorCategory = "CONFIG"

	// Stale or missing market snapshot: current evaluation is denied, the
	// cycle continues.
	ErrorCategoryMarketData ErrorCategory = "MARKET_DATA"

	// Exchange I/O that may succeed on retry: auth/nonce drift, rate
	// limits, gateway errors.
	ErrorCategoryExchangeTransient ErrorCategory = "EXCHANGE_TRANSIENT"

	// Exchange rejections that retrying cannot fix: insufficient balance,
	// invalid price or quantity.
	ErrorCategoryExchangeFatal ErrorCategory = "EXCHANGE_FATAL"

	// Projected margin below the critical threshold. Hard deny.
	ErrorCategoryMarginCritical ErrorCategory = "MARGIN_CRITICAL"

	// Critical market anomaly. Hard deny for the current cycle only.
	ErrorCategoryAnomalyCritical ErrorCategory = "ANOMALY_CRITICAL"

	ErrorCategoryNetwork ErrorCategory = "NETWORK"
	ErrorCategoryTimeout ErrorCategory = "TIMEOUT"
)

// BotError is a categorized error with component/operation context.
type BotError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *BotError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

func (e *BotError) Unwrap() error {
	return e.Underlying
}

func (e *BotError) IsRetryable() bool {
	return e.Retryable
}

// IsFatal reports whether the error should stop the process rather than the
// current cycle.
func (e *BotError) IsFatal() bool {
	return e.Category == ErrorCategoryConfig
}

func New(category ErrorCategory, component, operation, message string) *BotError {
	return &BotError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Retryable: isRetryableCategory(category),
	}
}

// Wrap attaches category and context to an existing error. Returns nil for a
// nil error so call sites can wrap unconditionally.
func Wrap(err error, category ErrorCategory, component, operation string) *BotError {
	if err == nil {
		return nil
	}
	return &BotError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
		Retryable:  isRetryableCategory(category),
	}
}

// WithRetryable overrides the category default.
func (e *BotError) WithRetryable(retryable bool) *BotError {
	e.Retryable = retryable
	return e
}

func isRetryableCategory(category ErrorCategory) bool {
	switch category {
	case ErrorCategoryExchangeTransient, ErrorCategoryNetwork, ErrorCategoryTimeout:
		return true
	default:
		return false
	}
}

// Categorize maps a raw error into the taxonomy by message inspection. Used
// at the exchange boundary when the wire client surfaces untyped errors.
func Categorize(err error, component, operation string) *BotError {
	if err == nil {
		return nil
	}
	if botErr, ok := err.(*BotError); ok {
		return botErr
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "context deadline exceeded"):
		return Wrap(err, ErrorCategoryTimeout, component, operation)
	case strings.Contains(msg, "connection"), strings.Contains(msg, "network"), strings.Contains(msg, "dial"):
		return Wrap(err, ErrorCategoryNetwork, component, operation)
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "too many requests"):
		return Wrap(err, ErrorCategoryExchangeTransient, component, operation)
	case strings.Contains(msg, "api key"), strings.Contains(msg, "signature"), strings.Contains(msg, "timestamp"), strings.Contains(msg, "nonce"):
		// Auth/nonce errors are usually clock drift on signed requests and
		// succeed on a fresh attempt.
		return Wrap(err, ErrorCategoryExchangeTransient, component, operation)
	case strings.Contains(msg, "insufficient"), strings.Contains(msg, "invalid price"), strings.Contains(msg, "invalid qty"), strings.Contains(msg, "invalid quantity"):
		return Wrap(err, ErrorCategoryExchangeFatal, component, operation)
	case strings.Contains(msg, "stale"), strings.Contains(msg, "no market data"):
		return Wrap(err, ErrorCategoryMarketData, component, operation)
	default:
		return Wrap(err, ErrorCategoryExchangeTransient, component, operation)
	}
}

// CategoryOf returns the category label of a categorized error, or "UNKNOWN"
// for anything outside the taxonomy. Used as a metrics label.
func CategoryOf(err error) string {
	var botErr *BotError
	if errors.As(err, &botErr) {
		return string(botErr.Category)
	}
	return "UNKNOWN"
}

func NewConfigError(component, operation, message string) *BotError {
	return New(ErrorCategoryConfig, component, operation, message)
}

func NewMarketDataError(component, operation, message string) *BotError {
	return New(ErrorCategoryMarketData, component, operation, message)
}

func NewExchangeFatalError(component, operation string, err error) *BotError {
	return Wrap(err, ErrorCategoryExchangeFatal, component, operation)
}

func NewExchangeTransientError(component, operation string, err error) *BotError {
	return Wrap(err, ErrorCategoryExchangeTransient, component, operation)
}
