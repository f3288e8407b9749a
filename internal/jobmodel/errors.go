package jobmodel

import (
	"fmt"

	"github.com/crawlkit-dev/crawlkit/pkg/failure"
)

// ErrIllegalTransition reports a rejected Job/FrontierEntry state transition.
type ErrIllegalTransition struct {
	From      JobState
	To        JobState
	Attempted JobState
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("jobmodel: illegal transition from %q to %q", e.From, e.Attempted)
}

// Severity implements failure.ClassifiedError: an illegal transition is
// always a programming error in the caller, never a transient condition.
func (e *ErrIllegalTransition) Severity() failure.Severity { return failure.SeverityFatal }

var _ failure.ClassifiedError = (*ErrIllegalTransition)(nil)
