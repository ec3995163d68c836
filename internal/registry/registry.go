// internal/registry/registry.go
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tamzrod/spectro-coordinator/internal/device"
	"github.com/tamzrod/spectro-coordinator/internal/eventlog"
	"github.com/tamzrod/spectro-coordinator/internal/gateway"
)

var (
	ErrAlreadyOpen   = errors.New("spectrometers already open")
	ErrNotOpen       = errors.New("spectrometers not open")
	ErrUnknownDevice = errors.New("unknown device")
)

// Registry discovers the attached spectrometers and owns the handles that
// passed validation. Registry indices are dense and zero-based; they can
// differ from the driver's enumeration index when devices were rejected.
//
// The registry does not know about workers. Callers must make sure no
// acquisition is running before CloseAll.
type Registry struct {
	gw  *gateway.Gateway
	log *eventlog.Log

	mu      sync.RWMutex
	open    bool
	devices []*device.Spectrometer
}

func New(gw *gateway.Gateway, log *eventlog.Log) *Registry {
	return &Registry{gw: gw, log: log}
}

// OpenAll opens every enumerated device and returns how many are usable.
// Zero devices is a valid result. Discovery is never retried; a second
// call without CloseAll fails with ErrAlreadyOpen.
func (r *Registry) OpenAll() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.open {
		return len(r.devices), ErrAlreadyOpen
	}

	opened, err := r.gw.OpenAll()
	if err != nil {
		r.log.Errorf("open all spectrometers: %v", err)
		return 0, fmt.Errorf("open all: %w", err)
	}
	r.open = true

	// the count can move between the two calls; trust the later answer
	count, err := r.gw.SpectrometerCount()
	if err != nil {
		r.log.Debugf("number of spectrometers: %v (using %d)", err, opened)
		count = opened
	} else if count != opened {
		r.log.Debugf("open reported %d spectrometers, count now %d", opened, count)
	}

	r.devices = r.devices[:0]
	for i := 0; i < count; i++ {
		s := device.New(r.gw, r.log, i, len(r.devices))
		if s.Pixels() <= 0 {
			r.log.Infof("rejecting spectrometer %d (%s): %d pixels", i, s.SerialNumber(), s.Pixels())
			if err := s.Close(); err != nil {
				r.log.Errorf("close rejected spectrometer %d: %v", i, err)
			}
			continue
		}
		r.devices = append(r.devices, s)
	}

	return len(r.devices), nil
}

// CloseAll closes the driver once for every device and releases the handles.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.open {
		return ErrNotOpen
	}

	err := r.gw.CloseAll()
	if err != nil {
		r.log.Errorf("close all spectrometers: %v", err)
	}
	for _, s := range r.devices {
		s.Release()
	}
	r.devices = nil
	r.open = false

	return err
}

// IsOpen reports whether OpenAll has run without a matching CloseAll.
func (r *Registry) IsOpen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.open
}

// Len returns the number of usable devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Devices returns the usable devices in registry order.
func (r *Registry) Devices() []*device.Spectrometer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*device.Spectrometer(nil), r.devices...)
}

// Device returns the device at registry index i.
func (r *Registry) Device(i int) (*device.Spectrometer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i < 0 || i >= len(r.devices) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDevice, i)
	}
	return r.devices[i], nil
}
