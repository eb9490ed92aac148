package customer

import (
	"errors"
	"fmt"
)

// ErrNotFound means no customer matched the identifier, or an update changed
// nothing.
var ErrNotFound = errors.New("customer: not found")

// ValidationError is a caller mistake in the request payload.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

var ErrFieldsRequired = ValidationError("Username, address, and email are required")

// StoreError wraps any failure of the document store other than absence,
// including identifiers the store cannot parse.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("customer store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
