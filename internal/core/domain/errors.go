package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidEvent      = errors.New("invalid share event")
	ErrMalformedPayload  = errors.New("malformed share event payload")
	ErrItemNotFound      = errors.New("item not found")
	ErrOwnershipMismatch = errors.New("item owner does not match the sharing user")
)

// ValidationError lists every required field that was absent or empty.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "Missing required fields: " + strings.Join(e.Missing, ", ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidEvent
}

// StoreError wraps any failure of the record store other than a failed
// ownership condition.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("record store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
