package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/akedrou/textdiff"
)

// Assertion failure kinds. Every *Failure unwraps to exactly one of these.
var (
	ErrUnexpectedInvocation = errors.New("unexpected invocation")
	ErrOutOfOrder           = errors.New("invocation out of order")
	ErrMissingInvocation    = errors.New("missing invocation")
	ErrTooManyInvocations   = errors.New("unexpected repeat invocation")
	ErrUnverifiedInvocation = errors.New("unverified invocation")
	ErrWrongGoroutine       = errors.New("invocation from a goroutine other than the one that recorded it")
)

// ErrUsage is wrapped by every *UsageError.
var ErrUsage = errors.New("invalid use of imprint")

// Failure is an assertion failure: the code under test did not behave as expected.
type Failure struct {
	Kind      error
	Signature string
	Expected  string
	Actual    string
	Message   string
	// Positions are 1-based history order indexes; zero means not applicable.
	ExpectedPosition int
	FoundPosition    int
}

// Error renders the failure with its custom message prefix, signature, and
// expected vs actual descriptions.
func (f *Failure) Error() string {
	var builder strings.Builder

	if f.Message != "" {
		builder.WriteString(f.Message)
		builder.WriteString(": ")
	}

	builder.WriteString(f.Kind.Error())

	if f.Signature != "" {
		builder.WriteString(" of ")
		builder.WriteString(f.Signature)
	}

	if f.ExpectedPosition > 0 || f.FoundPosition > 0 {
		fmt.Fprintf(&builder, " (expected at position %d, found at position %d)",
			f.ExpectedPosition, f.FoundPosition)
	}

	switch {
	case f.Expected != "" && f.Actual != "" && isMultiline(f.Expected, f.Actual):
		builder.WriteString("\n")
		builder.WriteString(textdiff.Unified("expected", "actual", f.Expected+"\n", f.Actual+"\n"))
	default:
		if f.Expected != "" {
			builder.WriteString("\n  expected: ")
			builder.WriteString(f.Expected)
		}

		if f.Actual != "" {
			builder.WriteString("\n  actual:   ")
			builder.WriteString(f.Actual)
		}
	}

	return builder.String()
}

// Unwrap returns the failure kind so errors.Is works against the sentinels.
func (f *Failure) Unwrap() error {
	return f.Kind
}

// UsageError reports a mistake in the test itself rather than in the code under test.
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%v: %s", ErrUsage, e.Reason)
}

func (e *UsageError) Unwrap() error {
	return ErrUsage
}

func isMultiline(values ...string) bool {
	for _, v := range values {
		if strings.Contains(v, "\n") {
			return true
		}
	}

	return false
}

// recoverUsage turns a usage panic raised inside a block into an error. Other
// panics propagate untouched.
func recoverUsage(errp *error) {
	recovered := recover()
	if recovered == nil {
		return
	}

	usage, ok := recovered.(*UsageError)
	if !ok {
		panic(recovered)
	}

	*errp = usage
}

// usagePanic aborts the current block with a usage error.
func usagePanic(format string, args ...any) {
	panic(&UsageError{Reason: fmt.Sprintf(format, args...)})
}
