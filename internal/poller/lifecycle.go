// internal/poller/lifecycle.go
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// lifecycle is the cancellation and state machinery shared by both workers.
// The cancel flag is only observed at iteration boundaries; wake lets the
// interval sleep and a blocked delivery return early.
type lifecycle struct {
	state    atomic.Int32
	cancel   atomic.Bool
	interval atomic.Int64

	once sync.Once
	wake chan struct{}
	done chan struct{}
}

func newLifecycle(interval time.Duration) *lifecycle {
	l := &lifecycle{
		wake: make(chan struct{}),
		done: make(chan struct{}),
	}
	l.interval.Store(int64(interval))
	return l
}

// begin moves Idle to Running. It fails for a worker that already ran.
func (l *lifecycle) begin() bool {
	return l.state.CompareAndSwap(int32(StateIdle), int32(StateRunning))
}

func (l *lifecycle) finish() {
	l.state.Store(int32(StateStopped))
	close(l.done)
}

// stopping is checked at the top of every iteration.
func (l *lifecycle) stopping(ctx context.Context) bool {
	return l.cancel.Load() || ctx.Err() != nil
}

// sleep waits one interval. It returns false if the worker must exit.
func (l *lifecycle) sleep(ctx context.Context) bool {
	t := time.NewTimer(l.Interval())
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-l.wake:
		return false
	case <-t.C:
		return true
	}
}

// Cancel requests a stop. The worker exits at its next iteration boundary;
// an acquisition already in progress runs to completion.
func (l *lifecycle) Cancel() {
	l.once.Do(func() {
		l.cancel.Store(true)
		l.state.CompareAndSwap(int32(StateRunning), int32(StateCancelling))
		close(l.wake)
	})
}

func (l *lifecycle) State() State { return State(l.state.Load()) }

// Done is closed once the worker has stopped.
func (l *lifecycle) Done() <-chan struct{} { return l.done }

// Interval returns the sleep between iterations.
func (l *lifecycle) Interval() time.Duration { return time.Duration(l.interval.Load()) }

// SetInterval retunes the rate limit; it applies from the next sleep.
func (l *lifecycle) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	l.interval.Store(int64(d))
}
