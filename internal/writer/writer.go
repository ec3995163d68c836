// internal/writer/writer.go
package writer

import (
	"github.com/tamzrod/spectro-coordinator/internal/status"
)

// Mirror holds one status writer per registry index, all sharing a
// single endpoint connection.
type Mirror struct {
	writers map[int]*deviceStatusWriter
	closeFn func() error
}

// NewMirror builds writers for every plan that has status enabled.
// closeFn releases the shared client; it may be nil.
func NewMirror(plans []Plan, cli endpointClient, closeFn func() error) *Mirror {
	m := &Mirror{
		writers: make(map[int]*deviceStatusWriter, len(plans)),
		closeFn: closeFn,
	}
	for _, p := range plans {
		if sw, ok := NewDeviceStatusWriter(p, cli); ok {
			m.writers[p.Index] = sw
		}
	}
	return m
}

// Writer returns the status writer for registry index i, or nil.
func (m *Mirror) Writer(i int) status.Writer {
	if m == nil {
		return nil
	}
	sw, ok := m.writers[i]
	if !ok {
		return nil
	}
	return sw
}

// Len returns the number of mirrored devices.
func (m *Mirror) Len() int {
	if m == nil {
		return 0
	}
	return len(m.writers)
}

// Close releases the endpoint connection.
func (m *Mirror) Close() error {
	if m == nil || m.closeFn == nil {
		return nil
	}
	return m.closeFn()
}
