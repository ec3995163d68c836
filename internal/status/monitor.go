// internal/status/monitor.go
package status

import (
	"context"
	"sync"
	"time"

	"github.com/tamzrod/spectro-coordinator/internal/eventlog"
)

// Writer is the delivery-only contract for device status.
type Writer interface {
	WriteStatus(s Snapshot) error
}

// Monitor owns the health snapshot of one spectrometer.
//
// Observe* calls come from the worker goroutines and only update state;
// delivery to the Writer happens on the Run goroutine, so a slow status
// endpoint never stalls acquisition.
type Monitor struct {
	name string
	w    Writer // nil when mirroring is disabled
	log  *eventlog.Task

	mu    sync.Mutex
	snap  Snapshot
	dirty bool

	kick chan struct{}
}

// NewMonitor creates a monitor in HealthUnknown. w may be nil.
func NewMonitor(name string, w Writer, log *eventlog.Log) *Monitor {
	return &Monitor{
		name: name,
		w:    w,
		log:  log.Task("status"),
		snap: Snapshot{Health: HealthUnknown},
		kick: make(chan struct{}, 1),
	}
}

// Name returns the device name the monitor reports for.
func (m *Monitor) Name() string { return m.name }

// Observe records one acquisition attempt.
func (m *Monitor) Observe(err error) {
	m.mu.Lock()
	changed := false

	if err == nil {
		// Recovery / OK. The frame count changes every time.
		m.snap.FrameCount++
		m.snap.Health = HealthOK
		m.snap.LastErrorCode = 0
		m.snap.SecondsInError = 0
		changed = true
	} else {
		if m.snap.Health != HealthError {
			m.snap.Health = HealthError
			changed = true
		}
		code := ErrorCode(err)
		if m.snap.LastErrorCode != code {
			m.snap.LastErrorCode = code
			changed = true
		}
		// NOTE: seconds_in_error increments on the 1Hz tick only.
	}

	m.markLocked(changed)
	m.mu.Unlock()
}

// ObserveTemperature records a detector temperature reading.
func (m *Monitor) ObserveTemperature(degC float64) {
	v := CentiC(degC)

	m.mu.Lock()
	m.markLocked(m.snap.TemperatureCentiC != v)
	m.snap.TemperatureCentiC = v
	m.mu.Unlock()
}

// Disable marks the device as not acquiring.
func (m *Monitor) Disable() {
	m.mu.Lock()
	m.markLocked(m.snap.Health != HealthDisabled)
	m.snap.Health = HealthDisabled
	m.snap.SecondsInError = 0
	m.mu.Unlock()
}

// Tick advances seconds_in_error while the device is in error.
func (m *Monitor) Tick() {
	m.mu.Lock()
	if m.snap.Health == HealthError && m.snap.SecondsInError < 65535 {
		m.snap.SecondsInError++
		m.markLocked(true)
	}
	m.mu.Unlock()
}

// Snapshot returns the current state.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

func (m *Monitor) markLocked(changed bool) {
	if !changed {
		return
	}
	m.dirty = true
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// Run delivers the snapshot: once at start (full block), then on every
// change, with a 1 Hz tick for seconds_in_error. It returns when ctx ends.
func (m *Monitor) Run(ctx context.Context) {
	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	m.mu.Lock()
	m.dirty = true
	m.mu.Unlock()
	m.Flush()

	for {
		select {
		case <-ctx.Done():
			m.Flush()
			return
		case <-m.kick:
			m.Flush()
		case <-secTicker.C:
			m.Tick()
			m.Flush()
		}
	}
}

// Flush writes the snapshot if it changed since the last successful write.
func (m *Monitor) Flush() {
	if m.w == nil {
		return
	}

	m.mu.Lock()
	if !m.dirty {
		m.mu.Unlock()
		return
	}
	snap := m.snap
	m.dirty = false
	m.mu.Unlock()

	if err := m.w.WriteStatus(snap); err != nil {
		m.log.Errorf("status write failed (device=%s): %v", m.name, err)

		m.mu.Lock()
		m.dirty = true
		m.mu.Unlock()
	}
}
