package extraction

import (
	"errors"
	"fmt"
)

// Category classifies why an extraction call failed.
type Category string

const (
	CategoryBadImage       Category = "bad_image"
	CategoryTimeout        Category = "timeout"
	CategoryProviderOutage Category = "provider_outage"
	CategoryCircuitOpen    Category = "circuit_open"
	CategoryInternal       Category = "internal"
)

// countsAgainstProvider reports whether the failure says something about the
// health of the OCR service and should feed the circuit breaker.
func (c Category) countsAgainstProvider() bool {
	return c == CategoryTimeout || c == CategoryProviderOutage
}

// Error is the only error type returned by Client.
type Error struct {
	Task     string
	Category Category
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("extract %s: %s", e.Task, e.Category)
	}
	return fmt.Sprintf("extract %s: %s: %v", e.Task, e.Category, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CategoryOf returns the category of an extraction error, or "" when err did
// not come from this package.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return ""
}
