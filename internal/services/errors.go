package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type ErrorKind string

const (
	KindValidation          ErrorKind = "validation"
	KindInsufficientBalance ErrorKind = "insufficient_balance"
	KindNotFound            ErrorKind = "not_found"
	KindConflict            ErrorKind = "conflict"
)

// Kind sentinels. errors.Is(err, ErrValidation) holds for every validation
// SettlementError, whatever its message.
var (
	ErrValidation          = errors.New("validation failed")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotFound            = errors.New("not found")
	ErrDuplicateRequest    = errors.New("duplicate request")
)

// SettlementError is a business rejection. Nothing was written when it is
// returned.
type SettlementError struct {
	Kind    ErrorKind
	Message string
	// Shortfall is the missing amount for insufficient_balance, when known.
	Shortfall decimal.Decimal
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SettlementError) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrInsufficientBalance:
		return e.Kind == KindInsufficientBalance
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrDuplicateRequest:
		return e.Kind == KindConflict
	}
	return false
}

func validationError(format string, args ...any) *SettlementError {
	return &SettlementError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(format string, args ...any) *SettlementError {
	return &SettlementError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func insufficientError(shortfall decimal.Decimal, format string, args ...any) *SettlementError {
	return &SettlementError{Kind: KindInsufficientBalance, Message: fmt.Sprintf(format, args...), Shortfall: shortfall}
}

func duplicateError() *SettlementError {
	return &SettlementError{Kind: KindConflict, Message: "request already processed"}
}

// AsSettlementError unwraps err into a SettlementError if it carries one.
func AsSettlementError(err error) (*SettlementError, bool) {
	var settlementErr *SettlementError
	if errors.As(err, &settlementErr) {
		return settlementErr, true
	}
	return nil, false
}
