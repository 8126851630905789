package services

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrNoPendingPayment  = errors.New("no pending payment for order")
	ErrInvalidSignal     = errors.New("invalid payment signal")
	ErrCheckoutInFlight  = errors.New("checkout already in progress")
	ErrCheckoutNotFound  = errors.New("checkout not found")
	ErrInvalidPricing    = errors.New("invalid pricing configuration")
	ErrSettingsUnchanged = errors.New("settings patch is empty")
	ErrLatePayment       = errors.New("payment captured after checkout closed")
)

type ErrorKind string

const (
	KindValidation              ErrorKind = "VALIDATION_ERROR"
	KindAuthRequired            ErrorKind = "AUTH_REQUIRED"
	KindOrdersClosed            ErrorKind = "ORDERS_CLOSED"
	KindPaymentCancelled        ErrorKind = "PAYMENT_CANCELLED"
	KindPaymentFailed           ErrorKind = "PAYMENT_FAILED"
	KindPersistenceNoPayment    ErrorKind = "PERSISTENCE_FAILED_NO_PAYMENT"
	KindPersistenceAfterPayment ErrorKind = "PERSISTENCE_FAILED_AFTER_PAYMENT"
)

// CheckoutError is the failure carried by a terminal checkout result.
// Field is set for validation failures only.
type CheckoutError struct {
	Kind  ErrorKind
	Field FieldCode
	Cause error
}

func (e *CheckoutError) Error() string {
	switch {
	case e.Field != "" && e.Cause != nil:
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.Field, e.Cause)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	case e.Field != "":
		return fmt.Sprintf("%s (%s)", e.Kind, e.Field)
	}
	return string(e.Kind)
}

func (e *CheckoutError) Unwrap() error {
	return e.Cause
}

// Critical reports a captured payment with no order record behind it. Such
// a checkout must never be retried automatically.
func (e *CheckoutError) Critical() bool {
	return e.Kind == KindPersistenceAfterPayment
}

// Retryable reports whether the user can safely submit the same checkout
// again.
func (e *CheckoutError) Retryable() bool {
	return !e.Critical()
}
