package loader

import (
	"errors"
	"fmt"
	"strings"
)

// ErrClosed is returned by Resource.Run after Close.
var ErrClosed = errors.New("resource closed")

// Attempt records one failed decode attempt.
type Attempt struct {
	Format Format
	Err    error
}

// LoadFailedError is returned when no format could decode the source.
type LoadFailedError struct {
	Source   string
	Attempts []Attempt
}

func (e *LoadFailedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Format == "" {
			parts = append(parts, a.Err.Error())
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %v", a.Format, a.Err))
	}
	return fmt.Sprintf("load %s failed: %s", e.Source, strings.Join(parts, "; "))
}

func (e *LoadFailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// IsLoadFailed reports whether err is (or wraps) a LoadFailedError.
func IsLoadFailed(err error) bool {
	var lf *LoadFailedError
	return errors.As(err, &lf)
}
