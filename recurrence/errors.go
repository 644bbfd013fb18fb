package recurrence

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRule is returned when a rule has conflicting or out of range
	// parts. It is always reported before any occurrence is produced.
	ErrMalformedRule = errors.New("malformed recurrence rule")
	// ErrExhausted is returned by Next when no values remain.
	ErrExhausted = errors.New("recurrence iterator exhausted")
	// ErrUnsupportedOperation is returned by Remove and other mutations.
	ErrUnsupportedOperation = errors.New("unsupported iterator operation")
)

// RuleError describes which part of a rule is malformed.
type RuleError struct {
	Part   string // e.g. "BYMONTHDAY", "COUNT"
	Reason string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrMalformedRule, e.Part, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformedRule.
func (e *RuleError) Unwrap() error { return ErrMalformedRule }

func ruleErr(part, format string, args ...any) error {
	return &RuleError{Part: part, Reason: fmt.Sprintf(format, args...)}
}

// ErrInvalidProperty is returned when a calendar property cannot be decoded
// into recurrence data.
var ErrInvalidProperty = errors.New("invalid recurrence property")
