package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so every entry point can map them the same way.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindStateGuard   ErrorKind = "state_guard"
	KindUnauthorized ErrorKind = "unauthorized"
	KindNotFound     ErrorKind = "not_found"
	KindGateway      ErrorKind = "gateway"
	KindConflict     ErrorKind = "conflict"
	KindUnavailable  ErrorKind = "unavailable"
	KindInternal     ErrorKind = "internal"
)

// IsClientError reports whether the caller, rather than the system, is at fault.
func (k ErrorKind) IsClientError() bool {
	switch k {
	case KindValidation, KindStateGuard, KindUnauthorized, KindNotFound:
		return true
	default:
		return false
	}
}

// Error is a domain error tagged with its kind.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Err: errors.New(msg)}
}

// KindOf returns the kind of the first domain error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// Unavailable marks err as an infrastructure failure of the subscription store.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindUnavailable, Err: fmt.Errorf("subscription store unavailable: %w", err)}
}

// GatewayFailure marks err as a payment gateway failure.
func GatewayFailure(err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) == KindGateway {
		return err
	}
	return &Error{Kind: KindGateway, Err: fmt.Errorf("charge failed: %w", err)}
}

// Validation errors.
var (
	ErrInvalidFrequency         = newError(KindValidation, "invalid frequency")
	ErrCustomScheduleRequired   = newError(KindValidation, "custom frequency requires at least one weekday")
	ErrWeekdaysRequireCustom    = newError(KindValidation, "weekdays can only be set on a custom frequency")
	ErrInvalidWeekday           = newError(KindValidation, "invalid weekday")
	ErrInvalidQuantity          = newError(KindValidation, "quantity must be positive")
	ErrInvalidAmount            = newError(KindValidation, "amount must be a decimal number")
	ErrNegativeAmount           = newError(KindValidation, "amount cannot be negative")
	ErrInvalidCurrency          = newError(KindValidation, "currency must be a three-letter ISO code")
	ErrMissingUser              = newError(KindValidation, "user id is required")
	ErrMissingProduct           = newError(KindValidation, "product id is required")
	ErrMissingStartDate         = newError(KindValidation, "start date is required")
	ErrFirstDeliveryBeforeStart = newError(KindValidation, "first delivery date cannot be before the start date")
	ErrEndBeforeStart           = newError(KindValidation, "end date cannot be before the start date")
	ErrInvalidStatus            = newError(KindValidation, "invalid status")
)

// State guard errors.
var (
	ErrCannotPause       = newError(KindStateGuard, "only active subscriptions can be paused")
	ErrCannotResume      = newError(KindStateGuard, "only paused subscriptions can be resumed")
	ErrCannotSkip        = newError(KindStateGuard, "only active subscriptions can skip a delivery")
	ErrTerminal          = newError(KindStateGuard, "subscription is canceled or completed")
	ErrNotBillable       = newError(KindStateGuard, "only active subscriptions can be billed")
	ErrNotDue            = newError(KindStateGuard, "subscription is not due")
	ErrScheduleUnchanged = newError(KindStateGuard, "subscription already uses this schedule")
)

// Access, lookup and concurrency errors.
var (
	ErrUnauthorized         = newError(KindUnauthorized, "actor may not manage this subscription")
	ErrSubscriptionNotFound = newError(KindNotFound, "subscription not found")
	ErrConcurrentUpdate     = newError(KindConflict, "subscription was modified concurrently")
	ErrBillingInProgress    = newError(KindConflict, "subscription is being billed by another run")
	ErrPaymentDeclined      = newError(KindGateway, "payment declined")
)
