package util

import (
	"context"
	"lobby-pilot/fault"
	"sync"
	"time"
)

// Clock is the time source of every scripted wait, so tests can run a
// 600 second monitor loop instantly.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fault.FromContext(err)
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fault.FromContext(ctx.Err())
	}
}

// ManualClock advances its own time on every Sleep without blocking.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	slept   time.Duration
	onSleep func(now time.Time)
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fault.FromContext(err)
	}

	c.mu.Lock()
	if d > 0 {
		c.now = c.now.Add(d)
		c.slept += d
	}
	now := c.now
	hook := c.onSleep
	c.mu.Unlock()

	if hook != nil {
		hook(now)
	}

	return fault.FromContext(ctx.Err())
}

// OnSleep registers a hook called after every Sleep with the advanced time.
func (c *ManualClock) OnSleep(hook func(now time.Time)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSleep = hook
}

// Slept returns the total duration passed to Sleep so far.
func (c *ManualClock) Slept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slept
}

// CheckCancelled returns fault.ErrCancelled when ctx is already done.
func CheckCancelled(ctx context.Context) error {
	return fault.FromContext(ctx.Err())
}
