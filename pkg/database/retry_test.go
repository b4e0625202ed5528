package database

import (
	"context"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmstock/pharmstock-backend/pkg/errors"
)

func serializationFailure() error {
	return &pq.Error{Code: "40001"}
}

func TestWithRetry_RetriesSerializationFailure(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), 3, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return serializationFailure()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetry_SurfacesErrorAfterAttemptsExhausted(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), 3, func(ctx context.Context) error {
		attempts++
		return serializationFailure()
	})
	assert.Equal(t, 3, attempts)
	assert.True(t, IsSerializationFailure(err))
}

func TestWithRetry_NeverRetriesBusinessErrors(t *testing.T) {
	attempts := 0
	stockErr := errors.InsufficientStock("p1", "L1", 10, 6)
	err := WithRetry(context.Background(), 3, func(ctx context.Context) error {
		attempts++
		return stockErr
	})
	assert.Equal(t, 1, attempts)
	assert.Equal(t, stockErr, err)
}
