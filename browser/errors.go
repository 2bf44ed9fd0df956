package browser

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when the fetch exceeded its deadline
	ErrTimeout = errors.New("fetch timed out")
	// ErrNavigation is returned when the page failed to load
	ErrNavigation = errors.New("navigation failed")
	// ErrExtraction is returned when the selector matched nothing or only whitespace
	ErrExtraction = errors.New("price extraction failed")
	// ErrLaunch is returned when the browser could not be started
	ErrLaunch = errors.New("browser launch failed")
)

// FetchError describes a failed fetch. Err wraps one of the sentinel errors
// above together with the underlying cause, so errors.Is matches both.
type FetchError struct {
	Op  string // launch, navigate or extract
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// fail builds a FetchError of the given kind. A deadline on ctx takes
// precedence over kind: whatever step was running, the fetch timed out.
func fail(ctx context.Context, op, url string, kind, cause error) error {
	if errors.Is(cause, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = ErrTimeout
		if cause == nil {
			cause = context.DeadlineExceeded
		}
	}
	if cause == nil {
		return &FetchError{Op: op, URL: url, Err: kind}
	}
	return &FetchError{Op: op, URL: url, Err: fmt.Errorf("%w: %w", kind, cause)}
}
