// internal/status/monitor_test.go
package status

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/spectro-coordinator/internal/eventlog"
)

type codeErr struct{ code uint16 }

func (e codeErr) Error() string { return "coded" }
func (e codeErr) Code() uint16  { return e.code }

type fakeWriter struct {
	mu    sync.Mutex
	snaps []Snapshot
	fail  bool
}

func (f *fakeWriter) WriteStatus(s Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("endpoint down")
	}
	f.snaps = append(f.snaps, s)
	return nil
}

func (f *fakeWriter) last() (Snapshot, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.snaps) == 0 {
		return Snapshot{}, 0
	}
	return f.snaps[len(f.snaps)-1], len(f.snaps)
}

func testLog() *eventlog.Log {
	return eventlog.New(eventlog.WithConsole(io.Discard))
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, uint16(0), ErrorCode(nil))
	assert.Equal(t, uint16(1), ErrorCode(errors.New("plain")))
	assert.Equal(t, uint16(3), ErrorCode(codeErr{3}))
	assert.Equal(t, uint16(4), ErrorCode(fmtWrap(codeErr{4})))
}

func fmtWrap(err error) error { return errors.Join(errors.New("context"), err) }

func TestEncode(t *testing.T) {
	regs := Encode(Snapshot{Health: HealthError, LastErrorCode: 2, SecondsInError: 9, TemperatureCentiC: -1050, FrameCount: 7})
	require.Len(t, regs, SlotsPerDevice)
	assert.Equal(t, HealthError, regs[SlotHealthCode])
	assert.Equal(t, uint16(2), regs[SlotLastErrorCode])
	assert.Equal(t, uint16(9), regs[SlotSecondsInError])
	assert.Equal(t, int16(-1050), int16(regs[SlotTemperature]))
	assert.Equal(t, uint16(7), regs[SlotFrameCount])
}

func TestCentiC(t *testing.T) {
	assert.Equal(t, int16(2150), CentiC(21.5))
	assert.Equal(t, int16(-1000), CentiC(-10))
	assert.Equal(t, int16(32767), CentiC(1e6))
	assert.Equal(t, int16(-32768), CentiC(-1e6))
}

func TestMonitor_ErrorThenRecovery(t *testing.T) {
	m := NewMonitor("WP-00561", nil, testLog())
	assert.Equal(t, HealthUnknown, m.Snapshot().Health)

	m.Observe(codeErr{2})
	m.Tick()
	m.Tick()
	s := m.Snapshot()
	assert.Equal(t, HealthError, s.Health)
	assert.Equal(t, uint16(2), s.LastErrorCode)
	assert.Equal(t, uint16(2), s.SecondsInError)

	m.Observe(nil)
	s = m.Snapshot()
	assert.Equal(t, HealthOK, s.Health)
	assert.Equal(t, uint16(0), s.LastErrorCode)
	assert.Equal(t, uint16(0), s.SecondsInError)
	assert.Equal(t, uint16(1), s.FrameCount)

	m.Tick()
	assert.Equal(t, uint16(0), m.Snapshot().SecondsInError, "no ticking while healthy")
}

func TestMonitor_Disable(t *testing.T) {
	m := NewMonitor("x", nil, testLog())
	m.Observe(errors.New("boom"))
	m.Disable()
	m.Tick()
	s := m.Snapshot()
	assert.Equal(t, HealthDisabled, s.Health)
	assert.Equal(t, uint16(0), s.SecondsInError)
}

func TestMonitor_FlushOnlyWhenDirty(t *testing.T) {
	w := &fakeWriter{}
	m := NewMonitor("x", w, testLog())

	m.ObserveTemperature(21.5)
	m.Flush()
	m.Flush()

	s, n := w.last()
	assert.Equal(t, 1, n)
	assert.Equal(t, int16(2150), s.TemperatureCentiC)

	m.ObserveTemperature(21.5)
	m.Flush()
	_, n = w.last()
	assert.Equal(t, 1, n, "unchanged temperature is not rewritten")
}

func TestMonitor_FailedWriteRetried(t *testing.T) {
	w := &fakeWriter{fail: true}
	log := testLog()
	m := NewMonitor("x", w, log)

	m.Observe(nil)
	m.Flush()
	assert.True(t, log.HasError())

	w.mu.Lock()
	w.fail = false
	w.mu.Unlock()

	m.Flush()
	s, n := w.last()
	assert.Equal(t, 1, n)
	assert.Equal(t, HealthOK, s.Health)
}

func TestMonitor_RunDelivers(t *testing.T) {
	w := &fakeWriter{}
	m := NewMonitor("x", w, testLog())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { _, n := w.last(); return n >= 1 }, time.Second, time.Millisecond)

	m.Observe(nil)
	require.Eventually(t, func() bool {
		s, _ := w.last()
		return s.Health == HealthOK
	}, time.Second, time.Millisecond)

	cancel()
	<-done
}
