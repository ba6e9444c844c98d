package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for callers on the other side of a service
// boundary. The kind plus a human-readable message is everything a client
// sees; internals stay behind the boundary.
type ErrorKind string

const (
	KindValidation            ErrorKind = "VALIDATION_ERROR"
	KindNotFound              ErrorKind = "NOT_FOUND"
	KindInsufficientInventory ErrorKind = "INSUFFICIENT_INVENTORY"
	KindCapacityExceeded      ErrorKind = "CAPACITY_EXCEEDED"
	KindAmountMismatch        ErrorKind = "AMOUNT_MISMATCH"
	KindDuplicatePayment      ErrorKind = "DUPLICATE_PAYMENT"
	KindInvalidRefund         ErrorKind = "INVALID_REFUND"
	KindWrongState            ErrorKind = "WRONG_STATE"
	KindUnauthorized          ErrorKind = "UNAUTHORIZED"
	KindUpstream              ErrorKind = "UPSTREAM_SERVICE_ERROR"
	KindInternal              ErrorKind = "INTERNAL_ERROR"
)

type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func E(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf extracts the kind from anywhere in the wrap chain. Unclassified
// errors report KindInternal so nothing leaks past the boundary untyped.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
