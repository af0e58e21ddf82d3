package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, RetryOptions{MaxAttempts: 5, InitialDelay: time.Millisecond})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		return errors.New("persistent")
	}, RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond})

	require.ErrorIs(t, err, ErrMaxRetries)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	permanent := &RetryableError{Err: errors.New("bad input"), Retryable: false}

	err := WithRetry(context.Background(), func() error {
		attempts++
		return permanent
	}, RetryOptions{MaxAttempts: 5, InitialDelay: time.Millisecond})

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMaxRetries)
	assert.Equal(t, 1, attempts)
}

func TestWithRetryRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, func() error {
		return errors.New("transient")
	}, RetryOptions{MaxAttempts: 3, InitialDelay: time.Hour})

	require.ErrorIs(t, err, context.Canceled)
}

func TestUserError(t *testing.T) {
	wrapped := errors.New("parse failed at byte 12")
	err := NewUserError("could not parse CSV file", wrapped)

	assert.Contains(t, err.Error(), "could not parse CSV file")
	require.ErrorIs(t, err, wrapped)

	bare := NewUserError("nothing to import", nil)
	assert.Equal(t, "nothing to import", bare.Error())
}
