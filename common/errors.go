package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrSessionClosed is returned by every operation on a closed session
	// handle. A closed handle is never reused.
	ErrSessionClosed = errors.New("session closed")

	// ErrUnknownStrategy is returned for locators with an unsupported strategy.
	ErrUnknownStrategy = errors.New("unknown locator strategy")
)

// ErrorKind classifies the failures a smoke test can end with.
type ErrorKind int

// Error kinds, in the order they can occur during a test.
const (
	KindUnknown ErrorKind = iota
	ProvisionFailure
	NavigationFailure
	ElementNotFound
	AssertionTimeout
	AssertionMismatch
)

func (k ErrorKind) String() string {
	switch k {
	case ProvisionFailure:
		return "ProvisionFailure"
	case NavigationFailure:
		return "NavigationFailure"
	case ElementNotFound:
		return "ElementNotFound"
	case AssertionTimeout:
		return "AssertionTimeout"
	case AssertionMismatch:
		return "AssertionMismatch"
	default:
		return "Unknown"
	}
}

type kinded interface {
	Kind() ErrorKind
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) ErrorKind {
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// ProvisionError is returned when a browser or driver could not be started.
type ProvisionError struct {
	Backend string
	Err     error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provisioning %s session: %s", e.Backend, friendly(e.Err))
}

// Unwrap returns the underlying cause.
func (e *ProvisionError) Unwrap() error { return e.Err }

// Kind implements the error classification.
func (e *ProvisionError) Kind() ErrorKind { return ProvisionFailure }

// NavigationError is returned when a page load did not complete.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigating to %q: %s", e.URL, friendly(e.Err))
}

// Unwrap returns the underlying cause.
func (e *NavigationError) Unwrap() error { return e.Err }

// Kind implements the error classification.
func (e *NavigationError) Kind() ErrorKind { return NavigationFailure }

// ElementNotFoundError is returned when a locator matched zero elements.
type ElementNotFoundError struct {
	Locator Locator
}

func (e *ElementNotFoundError) Error() string {
	return "element not found: " + e.Locator.String()
}

// Kind implements the error classification.
func (e *ElementNotFoundError) Kind() ErrorKind { return ElementNotFound }

// AssertionTimeoutError is returned when a polled expectation did not hold
// before its timeout elapsed.
type AssertionTimeoutError struct {
	Expectation string
	Timeout     time.Duration
	// Observed is the last value seen, valid when HasObserved is true.
	Observed    string
	HasObserved bool
	// LastErr is the error of the last evaluation, if it failed.
	LastErr error
}

func (e *AssertionTimeoutError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "expected %s within %s", e.Expectation, e.Timeout)
	if e.HasObserved {
		fmt.Fprintf(&b, ", last observed %q", e.Observed)
	}
	if e.LastErr != nil {
		fmt.Fprintf(&b, ", last error: %s", friendly(e.LastErr))
	}
	return b.String()
}

// Unwrap returns the error of the last evaluation.
func (e *AssertionTimeoutError) Unwrap() error { return e.LastErr }

// Kind implements the error classification.
func (e *AssertionTimeoutError) Kind() ErrorKind { return AssertionTimeout }

// AssertionMismatchError is returned when an immediate expectation failed.
type AssertionMismatchError struct {
	Expectation string
	Observed    string
}

func (e *AssertionMismatchError) Error() string {
	return fmt.Sprintf("expected %s, observed %q", e.Expectation, e.Observed)
}

// Kind implements the error classification.
func (e *AssertionMismatchError) Kind() ErrorKind { return AssertionMismatch }

// friendly renders context errors the way a test author expects to read them.
func friendly(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return strings.ReplaceAll(err.Error(), context.DeadlineExceeded.Error(), "timed out")
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return err.Error()
	}
}
