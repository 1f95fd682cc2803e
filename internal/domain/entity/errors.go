package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Engine failures. Callers match them with errors.Is.
var (
	ErrNotFound               = errors.New("not found")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrInvalidState           = errors.New("invalid state")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrConflict               = errors.New("booking conflict")
	ErrDuplicatePayment       = errors.New("duplicate payment")
	ErrAmountExceedsDue       = errors.New("amount exceeds amount due")
	ErrAmountExceedsOriginal  = errors.New("refund exceeds original payment")
	ErrInvalidInput           = errors.New("invalid input")
	ErrPaymentDeclined        = errors.New("payment declined")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrDuplicateKey           = errors.New("duplicate key")
)

// TransitionError names the rejected edge of a state machine
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot move %s from %s to %s", ErrInvalidTransition, e.Entity, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ConflictError carries the booking that collides with the requested dates
type ConflictError struct {
	BookingID string
	Reference string
	StartDate time.Time
	EndDate   time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: overlaps booking %s (%s to %s)", ErrConflict, e.Reference,
		e.StartDate.Format("2006-01-02"), e.EndDate.Format("2006-01-02"))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// DuplicatePaymentError carries the earlier identical charge
type DuplicatePaymentError struct {
	TransactionID string
	CreatedAt     time.Time
	RetryAfter    time.Time
}

func (e *DuplicatePaymentError) Error() string {
	return fmt.Sprintf("%s: identical payment %s made at %s", ErrDuplicatePayment, e.TransactionID,
		e.CreatedAt.Format(time.RFC3339))
}

func (e *DuplicatePaymentError) Unwrap() error { return ErrDuplicatePayment }

// AmountError reports a financial bound violation
type AmountError struct {
	Kind      error
	Requested decimal.Decimal
	Limit     decimal.Decimal
}

func (e *AmountError) Error() string {
	return fmt.Sprintf("%s: requested %s, limit %s", e.Kind, e.Requested.StringFixed(2), e.Limit.StringFixed(2))
}

func (e *AmountError) Unwrap() error { return e.Kind }

// StateError reports an operation attempted from the wrong status
type StateError struct {
	Entity    string
	Status    string
	Operation string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: cannot %s %s in status %s", ErrInvalidState, e.Operation, e.Entity, e.Status)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }

// InvalidInput wraps ErrInvalidInput with a reason
func InvalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound with the missing resource
func NotFound(resource, id string) error {
	return fmt.Errorf("%s %s: %w", resource, id, ErrNotFound)
}
