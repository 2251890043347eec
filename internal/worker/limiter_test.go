package worker

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterRunsDispatched(t *testing.T) {
	t.Parallel()

	limiter := NewLimiter(2)

	var ran int32

	for i := 0; i < 2; i++ {
		err := limiter.Dispatch(func() {
			atomic.AddInt32(&ran, 1)
		})
		require.NoError(t, err)
	}

	limiter.StopWait()

	assert.Equal(t, int32(2), atomic.LoadInt32(&ran))
	assert.Zero(t, limiter.ActiveCount())
}

func TestLimiterEnforcesConcurrency(t *testing.T) {
	t.Parallel()

	limiter := NewLimiter(1)

	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, limiter.Dispatch(func() {
		close(started)
		<-release
	}))

	<-started

	err := limiter.Dispatch(func() {})
	assert.ErrorIs(t, err, ErrLimiterConcurrency)

	close(release)
	limiter.StopWait()
}

func TestLimiterDrainRejectsNewTasks(t *testing.T) {
	t.Parallel()

	limiter := NewLimiter(2)
	limiter.StopWait()

	err := limiter.Dispatch(func() {})
	assert.ErrorIs(t, err, ErrLimiterDrain)
}

func TestLimiterStopWaitDrains(t *testing.T) {
	t.Parallel()

	limiter := NewLimiter(4)

	var done int32

	for i := 0; i < 4; i++ {
		require.NoError(t, limiter.Dispatch(func() {
			time.Sleep(50 * time.Millisecond)
			atomic.AddInt32(&done, 1)
		}))
	}

	limiter.StopWait()
	assert.Equal(t, int32(4), atomic.LoadInt32(&done))
}
