package retry

import (
	"context"
	"errors"
	"time"
)

// Policy decides how many reservation attempts a placement gets and which
// failures are worth another round trip.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
	Retryable   func(error) bool
}

func (p Policy) ShouldRetry(attempt int, err error) bool {
	if attempt >= p.MaxAttempts {
		return false
	}
	if p.Retryable == nil {
		return false
	}
	return p.Retryable(err)
}

// Wait sleeps for the policy backoff or until ctx is done.
func (p Policy) Wait(ctx context.Context) error {
	if p.Backoff <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.Backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks an error as a collaborator failure that may succeed on a
// later attempt (timeout, connection refused, 5xx).
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
