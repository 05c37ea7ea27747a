package core

import (
	"errors"
	"fmt"
)

// ErrorKind names an error category callers can branch on.
type ErrorKind string

const (
	KindNone                ErrorKind = "none"
	KindAccountNotFound     ErrorKind = "account_not_found"
	KindTransactionNotFound ErrorKind = "transaction_not_found"
	KindInvalidAmount       ErrorKind = "invalid_amount"
	KindInvalidInterval     ErrorKind = "invalid_interval"
	KindInvalidInput        ErrorKind = "invalid_input"
	KindPersistenceFailure  ErrorKind = "persistence_failure"
	KindExtractionFormat    ErrorKind = "extraction_format"
	KindReceiptRejected     ErrorKind = "receipt_rejected"
	KindConflict            ErrorKind = "conflict"
	KindInternal            ErrorKind = "internal"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidInterval     = errors.New("invalid recurring interval")
	ErrPersistenceFailure  = errors.New("persistence failure")
	ErrExtractionFormat    = errors.New("invalid extraction format")

	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidDate        = errors.New("date cannot be zero")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrEmptyName          = errors.New("empty account name")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrInvalidInput       = errors.New("invalid input")

	ErrReceiptTooLarge  = errors.New("receipt image too large")
	ErrUnsupportedMedia = errors.New("unsupported receipt media type")

	// ErrRecurrenceNotDue is returned when a recurring transaction was already
	// advanced past the requested occurrence, typically by a concurrent run.
	ErrRecurrenceNotDue = errors.New("recurrence not due")

	// ErrBalanceOutOfRange is an ErrInvalidAmount raised by a store when a
	// delta would push a balance past MaxAmount.
	ErrBalanceOutOfRange = fmt.Errorf("%w: balance out of range", ErrInvalidAmount)
)

// KindOf classifies err. Wrapped errors are matched with errors.Is, so a
// persistence failure that wraps a driver error still reports
// KindPersistenceFailure.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrPersistenceFailure):
		return KindPersistenceFailure
	case errors.Is(err, ErrAccountNotFound):
		return KindAccountNotFound
	case errors.Is(err, ErrTransactionNotFound):
		return KindTransactionNotFound
	case errors.Is(err, ErrInvalidAmount):
		return KindInvalidAmount
	case errors.Is(err, ErrInvalidInterval):
		return KindInvalidInterval
	case errors.Is(err, ErrInvalidType),
		errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrInvalidAccountType),
		errors.Is(err, ErrEmptyName),
		errors.Is(err, ErrDescriptionTooLong),
		errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrExtractionFormat):
		return KindExtractionFormat
	case errors.Is(err, ErrReceiptTooLarge), errors.Is(err, ErrUnsupportedMedia):
		return KindReceiptRejected
	case errors.Is(err, ErrRecurrenceNotDue):
		return KindConflict
	default:
		return KindInternal
	}
}

// IsDomainError reports whether err carries one of the ledger's own error
// kinds, as opposed to an unclassified storage or driver fault.
func IsDomainError(err error) bool {
	switch KindOf(err) {
	case KindNone, KindInternal:
		return false
	}
	return true
}
