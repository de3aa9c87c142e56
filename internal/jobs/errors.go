// Package jobs implements the durable background job queue: idempotent
// enqueueing, the dispatcher loop that claims and executes jobs, and the
// retry/backoff policy.
package jobs

import "errors"

// permanentError marks a failure as non-retryable. The dispatcher completes
// the job immediately with the message instead of rescheduling it.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the dispatcher treats it as non-retryable: missing
// payload fields, target not found, target inactive, feature disabled, or
// nothing to embed. A nil err returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err (or anything it wraps) was marked with
// Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
