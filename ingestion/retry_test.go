package ingestion

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff_Success(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		return nil
	}, 3, 10*time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, 1, attempts, "should succeed on first try")
}

func TestRetryWithBackoff_EventualSuccess(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, 5, time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts, "should succeed on third attempt")
}

func TestRetryWithBackoff_AllAttemptsFail(t *testing.T) {
	attempts := 0
	expectedErr := errors.New("persistent error")
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		return expectedErr
	}, 3, time.Millisecond)

	require.Error(t, err)
	assert.Equal(t, expectedErr, err, "should return the original error")
	assert.Equal(t, 3, attempts, "should attempt exactly maxAttempts times")
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := RetryWithBackoff(ctx, func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	}, 10, time.Millisecond)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, attempts, 2, "should stop when context is canceled")
}

func TestRetryWithBackoff_InvalidMaxAttempts(t *testing.T) {
	err := RetryWithBackoff(context.Background(), func() error { return nil }, 0, time.Millisecond)
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
}

func TestRetryWithBackoff_ExponentialDelay(t *testing.T) {
	attempts := 0
	start := time.Now()
	_ = RetryWithBackoff(context.Background(), func() error {
		attempts++
		return errors.New("error")
	}, 3, 10*time.Millisecond)

	// 10ms + 20ms between the three attempts
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, 3, attempts)
}

func TestBackoff_WaitDoublesUpToCap(t *testing.T) {
	b := Backoff{Attempts: 6, Delay: 100 * time.Millisecond, MaxDelay: time.Second}

	assert.Equal(t, 100*time.Millisecond, b.wait(1))
	assert.Equal(t, 200*time.Millisecond, b.wait(2))
	assert.Equal(t, 400*time.Millisecond, b.wait(3))
	assert.Equal(t, 800*time.Millisecond, b.wait(4))
	assert.Equal(t, time.Second, b.wait(5))
	assert.Equal(t, time.Second, b.wait(40))
}

func TestBackoff_DefaultCap(t *testing.T) {
	b := Backoff{Attempts: 3, Delay: 20 * time.Second}
	assert.Equal(t, DefaultMaxRetryDelay, b.wait(2))
}

func TestBackoff_DoLogsRetries(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	attempts := 0
	err := Backoff{Attempts: 3, Delay: time.Millisecond}.Do(context.Background(), logger, func() error {
		attempts++
		if attempts == 1 {
			return errors.New("rate limited")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Contains(t, buf.String(), "rate limited")
	assert.Contains(t, buf.String(), "provider call recovered")
}
