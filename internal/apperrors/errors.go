package apperrors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidAmount = errors.New("amount must be positive")

	ErrWalletNotFound      = errors.New("wallet not found")
	ErrTransactionNotFound = errors.New("transaction not found")

	// Transaction already reached a terminal status
	ErrTransactionNotPending = errors.New("transaction is not pending")

	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBelowMinimum        = errors.New("amount is below minimum withdrawal")
	ErrRateLimitExceeded   = errors.New("withdrawal limit exceeded")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
)

// RateLimitError reports how much may still be withdrawn inside the current window
type RateLimitError struct {
	Remaining decimal.Decimal
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: remaining %s", ErrRateLimitExceeded, e.Remaining.StringFixed(2))
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}

// GatewayError is returned when the payment gateway rejected the call or was unreachable.
// Refunded is set when a reserved withdrawal was compensated back to the wallet.
type GatewayError struct {
	Message  string
	Refunded bool
	Err      error
}

func (e *GatewayError) Error() string {
	if e.Refunded {
		return fmt.Sprintf("%s: %s (funds returned to wallet)", ErrGatewayUnavailable, e.Message)
	}
	return fmt.Sprintf("%s: %s", ErrGatewayUnavailable, e.Message)
}

func (e *GatewayError) Is(target error) bool {
	return target == ErrGatewayUnavailable
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
