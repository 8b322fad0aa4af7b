package dispatch

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Throttle blocks for a uniformly random whole number of seconds between two
// bounds. It keeps the send pace irregular so the channel doesn't flag the
// traffic as automated.
type Throttle struct {
	min, max int
	intn     func(n int) int
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewThrottle validates the bounds once, at startup.
func NewThrottle(minSeconds, maxSeconds int) (*Throttle, error) {
	if minSeconds < 0 || maxSeconds < 0 {
		return nil, fmt.Errorf("%w: delay bounds must not be negative (min=%d max=%d)", ErrConfiguration, minSeconds, maxSeconds)
	}
	if minSeconds > maxSeconds {
		return nil, fmt.Errorf("%w: min delay %ds exceeds max delay %ds", ErrConfiguration, minSeconds, maxSeconds)
	}
	return &Throttle{
		min:   minSeconds,
		max:   maxSeconds,
		intn:  rand.Intn,
		sleep: sleepContext,
	}, nil
}

// Next draws the next pause in [min, max] seconds inclusive.
func (t *Throttle) Next() time.Duration {
	return time.Duration(t.min+t.intn(t.max-t.min+1)) * time.Second
}

// Wait blocks for Next(). It returns early only when ctx is cancelled, which
// the dispatcher treats as the end of the run.
func (t *Throttle) Wait(ctx context.Context) (time.Duration, error) {
	d := t.Next()
	return d, t.sleep(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
