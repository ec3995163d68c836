// internal/poller/temperature.go
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/tamzrod/spectro-coordinator/internal/eventlog"
)

// TemperatureTask is the log tag of the temperature worker.
const TemperatureTask = "temperature"

// TemperatureSource is satisfied by *device.Spectrometer.
type TemperatureSource interface {
	Index() int
	DetectorTemperatureDegC() (float64, error)
}

// TemperaturePoller reads one device's detector temperature at a lower
// rate than acquisition. It shares the acquisition worker's lifecycle.
type TemperaturePoller struct {
	*lifecycle

	src     TemperatureSource
	log     *eventlog.Task
	observe func(Temperature, error)
}

// NewTemperature creates the temperature worker. observe, when set, sees
// every reading and every failure.
func NewTemperature(interval time.Duration, src TemperatureSource, log *eventlog.Log, observe func(Temperature, error)) (*TemperaturePoller, error) {
	if src == nil {
		return nil, errors.New("temperature poller: source required")
	}
	if interval <= 0 {
		return nil, errors.New("temperature poller: interval must be > 0")
	}
	if log == nil {
		return nil, errors.New("temperature poller: log required")
	}
	return &TemperaturePoller{
		lifecycle: newLifecycle(interval),
		src:       src,
		log:       log.Task(TemperatureTask),
		observe:   observe,
	}, nil
}

// Run delivers readings on out until cancelled. Failed reads are skipped.
func (t *TemperaturePoller) Run(ctx context.Context, out chan<- Temperature) {
	if !t.begin() {
		return
	}
	defer t.finish()

	for {
		if t.stopping(ctx) {
			return
		}

		degC, err := t.src.DetectorTemperatureDegC()
		reading := Temperature{Index: t.src.Index(), At: time.Now(), DegC: degC}
		if t.observe != nil {
			t.observe(reading, err)
		}

		if err != nil {
			t.log.Debugf("skipping reading: %v", err)
		} else {
			select {
			case out <- reading:
			case <-ctx.Done():
				return
			case <-t.wake:
				return
			}
		}

		if !t.sleep(ctx) {
			return
		}
	}
}
