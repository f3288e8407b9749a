package store

import (
	"errors"
	"fmt"

	"github.com/crawlkit-dev/crawlkit/pkg/failure"
)

var (
	ErrJobNotFound   = errors.New("store: job not found")
	ErrEntryNotFound = errors.New("store: frontier entry not found")
)

// OpError wraps a badger/badgerhold failure with the operation that raised
// it; it always implements failure.ClassifiedError as SeverityRecoverable —
// a storage hiccup is retried by the caller, not treated as an engine-fatal
// condition, matching the teacher's habit of classifying infra errors as
// retryable unless proven otherwise.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }
func (e *OpError) Unwrap() error { return e.Err }
func (e *OpError) Severity() failure.Severity { return failure.SeverityRecoverable }

var _ failure.ClassifiedError = (*OpError)(nil)
