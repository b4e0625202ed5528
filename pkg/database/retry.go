package database

import (
	"context"
	"time"
)

// DefaultRetryAttempts bounds how often a transient transaction conflict
// is retried before the error is surfaced to the caller.
const DefaultRetryAttempts = 3

// WithRetry runs fn, retrying it when the returned error is a transient
// serialization failure or deadlock. Business errors (insufficient stock,
// validation, conflicts) are never retried, only storage-level contention.
// After attempts are exhausted the last error is returned unchanged.
func WithRetry(ctx context.Context, attempts int, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = fn(ctx)
		if err == nil || !IsSerializationFailure(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * 10 * time.Millisecond):
		}
	}
	return err
}
