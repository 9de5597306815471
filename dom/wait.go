package dom

import (
	"context"
	"time"
)

// WaitFor polls cond every poll interval until it returns true, the timeout
// elapses, or ctx is done. It returns whether cond was satisfied. cond is
// always evaluated at least once.
func WaitFor(ctx context.Context, timeout, poll time.Duration, cond func() bool) bool {
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		wait := poll
		if remaining < wait {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
	}
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
