package services

import (
	"errors"
	"fmt"
	"strings"
)

// Markers classify failures with errors.Is. An unsupported descriptor type
// has no marker because it is not a failure.
var (
	ErrTransient           = errors.New("transient remote failure")
	ErrMalformedDescriptor = errors.New("malformed descriptor")
	ErrUnresolved          = errors.New("unresolved entity")
	ErrValidation          = errors.New("validation error")
)

// Wrap builds an error message that includes scope context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, scope, operation, message string, err error) error {
	detail := buildDetail(scope, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Outcome labels used when reporting a directory result.
const (
	OutcomeFailed     = "failed"
	OutcomeMalformed  = "malformed"
	OutcomeUnresolved = "unresolved"
)

// FailureOutcome maps a directory-level error to the outcome label recorded in
// run history and summaries.
func FailureOutcome(err error) string {
	switch {
	case errors.Is(err, ErrMalformedDescriptor):
		return OutcomeMalformed
	case errors.Is(err, ErrUnresolved):
		return OutcomeUnresolved
	default:
		return OutcomeFailed
	}
}

func buildDetail(scope, operation, message string) string {
	parts := make([]string, 0, 3)
	if scope = strings.TrimSpace(scope); scope != "" {
		parts = append(parts, scope)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "sync failure"
	}
	return strings.Join(parts, ": ")
}
