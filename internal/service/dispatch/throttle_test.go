package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewThrottle_RejectsBadBounds(t *testing.T) {
	_, err := NewThrottle(9, 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))

	_, err = NewThrottle(-1, 4)
	assert.True(t, errors.Is(err, ErrConfiguration))

	_, err = NewThrottle(3, 3)
	assert.NoError(t, err)
}

func TestThrottle_NextStaysWithinInclusiveBounds(t *testing.T) {
	th, err := NewThrottle(4, 9)
	require.NoError(t, err)

	seen := map[time.Duration]bool{}
	for i := 0; i < 2000; i++ {
		d := th.Next()
		require.GreaterOrEqual(t, d, 4*time.Second)
		require.LessOrEqual(t, d, 9*time.Second)
		require.Equal(t, time.Duration(0), d%time.Second)
		seen[d] = true
	}
	assert.True(t, seen[4*time.Second], "lower bound never drawn")
	assert.True(t, seen[9*time.Second], "upper bound never drawn")
}

func TestThrottle_NextUsesDrawnOffset(t *testing.T) {
	th, err := NewThrottle(2, 5)
	require.NoError(t, err)
	var gotN int
	th.intn = func(n int) int { gotN = n; return n - 1 }

	assert.Equal(t, 5*time.Second, th.Next())
	assert.Equal(t, 4, gotN)
}

func TestThrottle_WaitHonoursCancellation(t *testing.T) {
	th, err := NewThrottle(30, 30)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	d, err := th.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 30*time.Second, d)
	assert.Less(t, time.Since(start), time.Second)
}

func TestThrottle_WaitZeroReturnsImmediately(t *testing.T) {
	th, err := NewThrottle(0, 0)
	require.NoError(t, err)
	d, err := th.Wait(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, d)
}
