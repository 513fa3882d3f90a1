package model

import (
	"errors"
	"fmt"
)

var (
	// ErrQuoteUnavailable means the provider returned nothing, errored, or timed out.
	ErrQuoteUnavailable = errors.New("quote unavailable")
	// ErrConversionUnavailable means no exchange rate could be obtained for a pair.
	ErrConversionUnavailable = errors.New("conversion unavailable")
	ErrNotFound              = errors.New("not found")
)

// ValidationError rejects malformed alert input before anything is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StorageError wraps a persistence failure with the operation that raised it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// AutoBuyError is reported after a trigger when the purchase could not be made.
// It never undoes the trigger or its notification.
type AutoBuyError struct {
	AlertID int64
	Err     error
}

func (e *AutoBuyError) Error() string {
	return fmt.Sprintf("auto-buy for alert %d: %v", e.AlertID, e.Err)
}

func (e *AutoBuyError) Unwrap() error { return e.Err }
