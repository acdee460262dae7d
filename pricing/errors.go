package pricing

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is returned when a pricing function receives values
// outside its contract (unit counts below 1, unknown tier or frequency).
// The form layer is expected to prevent these; the engine still rejects them.
var ErrInvalidInput = errors.New("invalid pricing input")

// InvalidInputError names the offending field.
type InvalidInputError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
