// Package errs defines the small, stable error taxonomy that crosses every
// public boundary of the core: the order book, the matching engine and the
// orderbook manager all return *CoreError instead of a free-form string, so
// an adapter can translate Code into its own wire error taxonomy without
// parsing messages (spec.md §7).
package errs

import "fmt"

// Code is a stable identifier an adapter can switch on.
type Code string

const (
	CodeWrongInstrument         Code = "WRONG_INSTRUMENT"
	CodeNoLimitPrice            Code = "NO_LIMIT_PRICE"
	CodeOrderNotFound           Code = "ORDER_NOT_FOUND"
	CodeDuplicateOrder          Code = "DUPLICATE_ORDER"
	CodeInsufficientLiquidity   Code = "INSUFFICIENT_LIQUIDITY"
	CodeInvalidOrder            Code = "INVALID_ORDER"
	CodeInstrumentNotRegistered Code = "INSTRUMENT_NOT_REGISTERED"
	CodeOrderbookHalted         Code = "ORDERBOOK_HALTED"
	CodeRouting                 Code = "ROUTING_ERROR"
)

// CoreError is the concrete error type returned across the core's public
// contracts. It wraps an optional underlying cause but always carries a
// stable Code.
type CoreError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CoreError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match any CoreError with the same Code, regardless of
// message or wrapped cause, since Code is the part of the contract callers
// are expected to rely on.
func (e *CoreError) Is(target error) bool {
	other, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return e.Code == other.Code
}

// New builds a CoreError with no wrapped cause.
func New(code Code, message string) *CoreError {
	return &CoreError{Code: code, Message: message}
}

// Wrap attaches a stable Code to an underlying error.
func Wrap(code Code, message string, cause error) *CoreError {
	return &CoreError{Code: code, Message: message, Cause: cause}
}

// InvalidOrder builds the InvalidOrder(reason) variant from spec.md §4.2.
func InvalidOrder(reason string) *CoreError {
	return New(CodeInvalidOrder, reason)
}

// Sentinel values for errors.Is comparisons against a stable shape.
var (
	ErrWrongInstrument         = New(CodeWrongInstrument, "order does not belong to this instrument's engine")
	ErrNoLimitPrice            = New(CodeNoLimitPrice, "order carries no limit price")
	ErrOrderNotFound           = New(CodeOrderNotFound, "order not found")
	ErrDuplicateOrder          = New(CodeDuplicateOrder, "an order with this id already rests on the book")
	ErrInsufficientLiquidity   = New(CodeInsufficientLiquidity, "no matching liquidity available")
	ErrInstrumentNotRegistered = New(CodeInstrumentNotRegistered, "instrument is not registered with this manager")
	ErrOrderbookHalted         = New(CodeOrderbookHalted, "orderbook is halted")
)
