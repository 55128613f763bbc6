package bybit

import (
	"errors"
	"fmt"
	"net/http"

	boterrors "github.com/trbinh/crypto-margin-bot/internal/errors"
)

// APIError carries the raw Bybit retCode alongside the message so callers
// can map it into the bot's error taxonomy.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bybit API error %d: %s", e.Code, e.Message)
}

// Common Bybit V5 error codes.
const (
	ErrCodeInvalidAPIKey       = 10003
	ErrCodeInvalidSignature    = 10004
	ErrCodeInvalidTimestamp    = 10005
	ErrCodeRateLimitExceeded   = 10006
	ErrCodeOrderNotFound       = 110001
	ErrCodeInvalidOrderType    = 110004
	ErrCodeInsufficientBalance = 110007
	ErrCodeSymbolNotFound      = 110009
	ErrCodeInvalidQuantity     = 110020
	ErrCodeInvalidPrice        = 110021
	ErrCodeMarketClosed        = 110043
)

// IsRetryable reports whether the error is transient per the taxonomy:
// rate limits, gateway failures, and signed-request timestamp drift. Errors
// already categorized into the bot taxonomy carry their retryable flag;
// raw API errors are classified by code.
func IsRetryable(err error) bool {
	var botErr *boterrors.BotError
	if errors.As(err, &botErr) {
		return botErr.IsRetryable()
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case ErrCodeRateLimitExceeded, ErrCodeInvalidTimestamp:
		return true
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Categorize maps a raw client error into the bot's typed categories so the
// core never inspects exchange-specific codes.
func Categorize(err error, operation string) error {
	if err == nil {
		return nil
	}

	apiErr, ok := err.(*APIError)
	if !ok {
		return boterrors.Categorize(err, "bybit", operation)
	}

	switch apiErr.Code {
	case ErrCodeInsufficientBalance, ErrCodeInvalidQuantity, ErrCodeInvalidPrice,
		ErrCodeInvalidOrderType, ErrCodeSymbolNotFound, ErrCodeMarketClosed:
		return boterrors.NewExchangeFatalError("bybit", operation, apiErr)
	case ErrCodeInvalidAPIKey, ErrCodeInvalidSignature:
		// Bad credentials do not self-heal; fail the cycle without retry.
		return boterrors.NewExchangeFatalError("bybit", operation, apiErr)
	default:
		e := boterrors.NewExchangeTransientError("bybit", operation, apiErr)
		e.Retryable = IsRetryable(apiErr)
		return e
	}
}

// parseRetCode converts a non-zero retCode response into an APIError.
func parseRetCode(retCode int, retMsg string) error {
	if retCode == 0 {
		return nil
	}
	return &APIError{Code: retCode, Message: retMsg}
}
