package contract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/aircare/contract-engine/pricing"
)

// Sentinel errors. Match with errors.Is from github.com/cockroachdb/errors,
// which also sees marks applied with errors.Mark.
var (
	// ErrValidation marks any rejected submission or quote request.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a contract ID does not exist.
	ErrNotFound = errors.New("contract not found")

	// ErrNotifierDisabled is returned by a notifier that is not configured.
	// The channel is then recorded as skipped instead of failed.
	ErrNotifierDisabled = errors.New("notifier not configured")
)

// ValidationError lists the rejected fields and the rule each one broke.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s (%s)", k, e.Fields[k])
	}
	return "invalid submission: " + strings.Join(parts, ", ")
}

// IsValidation returns true for any client-side input problem, including
// pricing input errors.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || pricing.IsClientError(err)
}

// IsNotFound returns true if the error indicates a missing contract.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func markValidation(err error, hint string) error {
	return errors.Mark(errors.WithHint(err, hint), ErrValidation)
}
