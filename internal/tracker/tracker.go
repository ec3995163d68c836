// internal/tracker/tracker.go
package tracker

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrWorkersActive = errors.New("workers still active")
	ErrShuttingDown  = errors.New("shutdown in progress")
)

// Tracker counts active workers. It gates the destructive driver close:
// a shutdown requested while workers are active is deferred until the
// last one reports Done, and the close function runs exactly once.
type Tracker struct {
	mu     sync.Mutex
	active int
	idle   chan struct{} // closed while active == 0

	pending  bool // shutdown requested, close not yet run
	started  bool // close claimed by one goroutine
	closeFn  func() error
	closeErr error
	done     chan struct{} // closed once close has run
}

func New() *Tracker {
	idle := make(chan struct{})
	close(idle)
	return &Tracker{idle: idle, done: make(chan struct{})}
}

// Begin registers one active worker.
func (t *Tracker) Begin() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending || t.started {
		return ErrShuttingDown
	}
	if t.active == 0 {
		t.idle = make(chan struct{})
	}
	t.active++
	return nil
}

// Done reports that one worker has stopped. The last Done runs a pending
// shutdown on the caller's goroutine.
func (t *Tracker) Done() {
	t.mu.Lock()
	if t.active == 0 {
		t.mu.Unlock()
		return
	}
	t.active--
	if t.active > 0 {
		t.mu.Unlock()
		return
	}
	close(t.idle)
	fn := t.claimCloseLocked()
	t.mu.Unlock()

	if fn != nil {
		t.runClose(fn)
	}
}

// Active returns the number of workers that have not reported Done.
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Running is true while any worker is active.
func (t *Tracker) Running() bool { return t.Active() > 0 }

// Quiesced returns nil when no worker is active, ErrWorkersActive otherwise.
func (t *Tracker) Quiesced() error {
	if t.Running() {
		return ErrWorkersActive
	}
	return nil
}

// Wait blocks until no worker is active or ctx ends.
func (t *Tracker) Wait(ctx context.Context) error {
	t.mu.Lock()
	idle := t.idle
	t.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestShutdown runs closeFn now if no worker is active, otherwise defers
// it to the last Done. Callers signal cancellation to the workers first.
// Only the first request counts; it reports whether the close was deferred.
func (t *Tracker) RequestShutdown(closeFn func() error) (deferred bool) {
	t.mu.Lock()
	if t.pending || t.started {
		t.mu.Unlock()
		return false
	}
	t.pending = true
	t.closeFn = closeFn

	if t.active > 0 {
		t.mu.Unlock()
		return true
	}
	fn := t.claimCloseLocked()
	t.mu.Unlock()

	t.runClose(fn)
	return false
}

// ShutdownPending is true between a deferred request and its close.
func (t *Tracker) ShutdownPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// ShutdownDone is closed once the close function has returned.
func (t *Tracker) ShutdownDone() <-chan struct{} { return t.done }

// ShutdownErr returns the close function's error after ShutdownDone.
func (t *Tracker) ShutdownErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeErr
}

func (t *Tracker) claimCloseLocked() func() error {
	if !t.pending || t.started {
		return nil
	}
	t.started = true
	fn := t.closeFn
	if fn == nil {
		fn = func() error { return nil }
	}
	return fn
}

func (t *Tracker) runClose(fn func() error) {
	err := fn()

	t.mu.Lock()
	t.closeErr = err
	t.pending = false
	t.mu.Unlock()

	close(t.done)
}
