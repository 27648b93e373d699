package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRecoverable(t *testing.T) {
	assert.False(t, IsRecoverable(nil))
	assert.True(t, IsRecoverable(NewRecoverableError(errors.New("checkpoint write failed"))))
	assert.False(t, IsRecoverable(NewNonRecoverableError(errors.New("bad request"))))
	assert.False(t, IsRecoverable(errors.New("unknown failure")))

	// Wrapped markers are still honored.
	wrapped := errors.Join(errors.New("outer"), NewRecoverableError(errors.New("inner")))
	assert.True(t, IsRecoverable(wrapped))
}

func TestIsRecoverableByType(t *testing.T) {
	assert.True(t, IsRecoverable(context.DeadlineExceeded))
	assert.False(t, IsRecoverable(context.Canceled))

	// Transient store failures classified by message.
	assert.True(t, IsRecoverable(errors.New("database is locked")))
	assert.True(t, IsRecoverable(errors.New("dial tcp 127.0.0.1:6379: connection refused")))
	assert.True(t, IsRecoverable(errors.New("503 service unavailable")))
	assert.False(t, IsRecoverable(errors.New("checkpoint not found")))
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return NewRecoverableError(errors.New("store unavailable"))
		}
		return nil
	}, WithMaxRetries(5), WithBaseWait(time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoExhaustsRetries(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func() error {
		attempts++
		return NewRecoverableError(errors.New("store unavailable"))
	}, WithMaxRetries(2), WithBaseWait(time.Millisecond))
	require.Error(t, err)
	assert.Equal(t, "store unavailable", err.Error())
	assert.Equal(t, 3, attempts)
}

func TestDoRunsOnceWithZeroRetries(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func() error {
		attempts++
		return NewRecoverableError(errors.New("store unavailable"))
	}, WithMaxRetries(0))
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoStopsOnNonRecoverable(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func() error {
		attempts++
		return errors.New("schema violation")
	}, WithMaxRetries(5), WithBaseWait(time.Millisecond))
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Do(ctx, func() error {
		attempts++
		cancel()
		return NewRecoverableError(errors.New("store unavailable"))
	}, WithMaxRetries(5), WithBaseWait(time.Millisecond))
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
