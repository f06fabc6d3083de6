package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ValidationError reports malformed or semantically invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field string, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// InsufficientStockError reports a reservation attempt that exceeds the
// available quantity of a SKU.
type InsufficientStockError struct {
	Sku       string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.Sku, e.Requested, e.Available)
}

// OverReceiptError reports a receipt that would exceed the remaining
// unreceived quantity on a purchase order line.
type OverReceiptError struct {
	Sku       string
	Received  int
	Remaining int
}

func (e *OverReceiptError) Error() string {
	return fmt.Sprintf("over receipt for %s: receiving %d, remaining %d", e.Sku, e.Received, e.Remaining)
}

// InvalidTransitionError reports a state change an order's lifecycle does
// not permit.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition: %s -> %s", e.Entity, e.From, e.To)
}

// InvariantViolationError reports ledger corruption detected at runtime,
// e.g. a quantity going negative. These are bugs, not user errors.
type InvariantViolationError struct {
	Message string
}

func (e *InvariantViolationError) Error() string {
	return e.Message
}

func NewInvariantViolationError(format string, args ...any) *InvariantViolationError {
	return &InvariantViolationError{Message: fmt.Sprintf(format, args...)}
}
