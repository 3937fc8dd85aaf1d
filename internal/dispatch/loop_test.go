package dispatch

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_ExecutesInPostOrder(t *testing.T) {
	l := NewLoop()
	defer l.Stop()

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}

	require.NoError(t, l.PostWait(func() {}))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestLoop_LowPriorityRunsAfterNormal(t *testing.T) {
	l := NewLoop()
	defer l.Stop()

	var got []string

	// Queue everything from inside the loop so the scheduler cannot start
	// draining before both queues are populated.
	require.NoError(t, l.PostWait(func() {
		l.PostLow(func() { got = append(got, "low") })
		l.Post(func() { got = append(got, "normal-1") })
		l.Post(func() { got = append(got, "normal-2") })
	}))

	require.NoError(t, l.PostWait(func() {}))
	assert.Equal(t, []string{"normal-1", "normal-2", "low"}, got)
}

func TestLoop_ReentrantPostDoesNotDeadlock(t *testing.T) {
	l := NewLoop()
	defer l.Stop()

	var ran atomic.Bool
	require.NoError(t, l.PostWait(func() {
		l.Post(func() { ran.Store(true) })
	}))

	require.NoError(t, l.PostWait(func() {}))
	assert.True(t, ran.Load(), "nested post should execute")
}

func TestLoop_PostAfterStopIsDropped(t *testing.T) {
	l := NewLoop()
	l.Stop()

	assert.False(t, l.Post(func() { t.Error("should not run") }))
	assert.False(t, l.PostLow(func() { t.Error("should not run") }))
	assert.True(t, l.Stopped())

	err := l.PostWait(func() {})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestLoop_StopIsIdempotent(t *testing.T) {
	l := NewLoop()
	l.Stop()
	l.Stop() // must not panic
}

func TestLoop_SingleGoroutineExecution(t *testing.T) {
	l := NewLoop()
	defer l.Stop()

	var concurrent atomic.Int32
	var max atomic.Int32

	for i := 0; i < 50; i++ {
		l.Post(func() {
			n := concurrent.Add(1)
			if n > max.Load() {
				max.Store(n)
			}
			time.Sleep(100 * time.Microsecond)
			concurrent.Add(-1)
		})
	}

	require.NoError(t, l.PostWait(func() {}))
	assert.Equal(t, int32(1), max.Load(), "actions must never overlap")
}
