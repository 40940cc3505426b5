package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrAccountNotFound    = errors.New("account not found")
	ErrOrderNotCancelable = errors.New("order cannot be canceled")
	ErrPriceUnavailable   = errors.New("price unavailable")
	ErrEmailTaken         = errors.New("email already registered")

	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
)

type ValidationCode string

const (
	CodeInvalidQuantity    ValidationCode = "invalid_quantity"
	CodeInvalidSymbol      ValidationCode = "invalid_symbol"
	CodeInvalidSide        ValidationCode = "invalid_side"
	CodeInvalidOrderKind   ValidationCode = "invalid_order_kind"
	CodeInvalidLimitPrice  ValidationCode = "invalid_limit_price"
	CodeInsufficientFunds  ValidationCode = "insufficient_funds"
	CodeInsufficientShares ValidationCode = "insufficient_shares"
)

// ValidationError rejects an order before anything is persisted.
type ValidationError struct {
	Code    ValidationCode
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrInsufficientFunds:
		return e.Code == CodeInsufficientFunds
	case ErrInsufficientShares:
		return e.Code == CodeInsufficientShares
	}
	return false
}

func Invalid(code ValidationCode, format string, args ...any) error {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// PriceUnavailable wraps the oracle failure reason so that
// errors.Is(err, ErrPriceUnavailable) holds.
func PriceUnavailable(symbol string, reason error) error {
	return fmt.Errorf("%w: %s: %v", ErrPriceUnavailable, symbol, reason)
}
