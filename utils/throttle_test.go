package utils

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestThrottle(t *testing.T) {
	t.Run("burst collapses with a trailing invocation", func(t *testing.T) {
		var calls int64
		throttled := Throttle(func() { atomic.AddInt64(&calls, 1) }, 50*time.Millisecond)

		for i := 0; i < 10; i++ {
			throttled()
		}
		// Leading call fires immediately, the burst schedules one trailing.
		require.Equal(t, int64(1), atomic.LoadInt64(&calls))

		require.Eventually(t, func() bool {
			return atomic.LoadInt64(&calls) == 2
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("spaced calls all fire", func(t *testing.T) {
		var calls int64
		throttled := Throttle(func() { atomic.AddInt64(&calls, 1) }, 10*time.Millisecond)

		throttled()
		time.Sleep(30 * time.Millisecond)
		throttled()
		require.Equal(t, int64(2), atomic.LoadInt64(&calls))
	})
}

func TestContainsString(t *testing.T) {
	require.True(t, ContainsString([]string{"a", "b"}, "b"))
	require.False(t, ContainsString([]string{"a", "b"}, "c"))
	require.False(t, ContainsString(nil, "a"))
}

func TestMin(t *testing.T) {
	require.Equal(t, 1, Min(1, 2))
	require.Equal(t, 1, Min(2, 1))
}
