package retry

import "github.com/crawlkit-dev/crawlkit/pkg/failure"

// Result carries the outcome of a Retry call: either a value with the
// attempt count it succeeded on, or an error with the attempt count spent
// before giving up.
type Result[T any] struct {
	value    T
	err      failure.ClassifiedError
	attempts int
}

func NewSuccessResult[T any](value T, attempts int) Result[T] {
	return Result[T]{value: value, attempts: attempts}
}

func (r Result[T]) Value() T {
	return r.value
}

func (r Result[T]) Err() failure.ClassifiedError {
	return r.err
}

func (r Result[T]) Attempts() int {
	return r.attempts
}

func (r Result[T]) IsSuccess() bool {
	return r.err == nil
}

func (r Result[T]) IsFailure() bool {
	return r.err != nil
}
