package form

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidationBlocked indicates at least one required field is empty.
	ErrValidationBlocked = errors.New("validation blocked")

	// ErrNumericParse indicates an income or rent value is not a usable number.
	ErrNumericParse = errors.New("numeric parse failure")

	// ErrInvalidTag indicates a race or gender value outside the accepted tags.
	ErrInvalidTag = errors.New("invalid tag")
)

// ValidationBlockedError lists the required fields that are still empty.
type ValidationBlockedError struct {
	Fields []string
}

func (e *ValidationBlockedError) Error() string {
	return fmt.Sprintf("required fields missing: %s", strings.Join(e.Fields, ", "))
}

func (e *ValidationBlockedError) Unwrap() error {
	return ErrValidationBlocked
}

// NumericParseError describes a monetary field that could not be accepted.
type NumericParseError struct {
	Field  string
	Value  string
	Reason string
}

func (e *NumericParseError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *NumericParseError) Unwrap() error {
	return ErrNumericParse
}

// InvalidTagError describes a race or gender value that is not recognised.
type InvalidTagError struct {
	Field string
	Value string
}

func (e *InvalidTagError) Error() string {
	return fmt.Sprintf("invalid %s tag %q", e.Field, e.Value)
}

func (e *InvalidTagError) Unwrap() error {
	return ErrInvalidTag
}
