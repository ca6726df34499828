package bybit

import (
	"errors"
	"fmt"
)

// APIError represents a Bybit API error with its retCode.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bybit API error %d: %s", e.Code, e.Message)
}

// Bybit v5 retCodes the bot needs to distinguish.
const (
	errCodeRateLimit          = 10006
	errCodeLeverageNotChanged = 110043
	errCodeMarginNotChanged   = 110026
	errCodePositionModeSame   = 110025
	errCodeInsufficientFunds  = 110007
)

// IsRetryable reports whether the error is transient (rate limit, server
// side) and the operation may be retried on the next cycle.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case errCodeRateLimit, 500, 502, 503, 504:
			return true
		}
	}
	return false
}

// isAlreadySet reports whether the error means the requested leverage,
// margin mode, or position mode is already in effect. Those are treated as
// success by the callers.
func isAlreadySet(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case errCodeLeverageNotChanged, errCodeMarginNotChanged, errCodePositionModeSame:
			return true
		}
	}
	return false
}

// IsInsufficientBalance reports whether the order failed for lack of margin.
func IsInsufficientBalance(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == errCodeInsufficientFunds
	}
	return false
}
