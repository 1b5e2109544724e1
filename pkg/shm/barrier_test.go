package shm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countdown(n int) condition {
	return func() (bool, error) {
		n--
		return n <= 0, nil
	}
}

func TestWaitForDuringSpin(t *testing.T) {
	config := testConfig()
	config.SpinIterations = 100
	calls := 0
	err := config.waitFor(context.Background(), func() (bool, error) {
		calls++
		return calls == 10, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 10, calls)
}

func TestWaitForAfterSpin(t *testing.T) {
	config := testConfig()
	config.SpinIterations = 4
	config.PollInterval = time.Microsecond
	config.MaxPollInterval = time.Millisecond
	require.NoError(t, config.waitFor(context.Background(), countdown(50)))

	config.SpinIterations = 0
	require.NoError(t, config.waitFor(context.Background(), countdown(3)))
}

func TestWaitForDeadline(t *testing.T) {
	config := testConfig()
	config.SpinIterations = 16
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := config.waitFor(ctx, func() (bool, error) { return false, nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitForCanceledDuringSpin(t *testing.T) {
	config := testConfig()
	config.SpinIterations = 1 << 30
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := config.waitFor(ctx, func() (bool, error) { return false, nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitForConditionError(t *testing.T) {
	boom := errors.New("boom")
	config := testConfig()
	config.SpinIterations = 0

	calls := 0
	err := config.waitFor(context.Background(), func() (bool, error) {
		calls++
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls, "a failing condition is not retried")

	config.SpinIterations = 8
	assert.ErrorIs(t, config.waitFor(context.Background(), func() (bool, error) { return false, boom }), boom)
}

func TestWaitForReadyClosedRegion(t *testing.T) {
	r := &Region{name: "closed", closed: true}
	assert.ErrorIs(t, testConfig().waitForReady(context.Background(), r), ErrClosed)
}
