// internal/poller/poller.go
package poller

import (
	"errors"
	"strconv"
	"time"

	"github.com/tamzrod/spectro-coordinator/internal/eventlog"
)

// Source abstracts the device operations the acquisition worker needs.
// *device.Spectrometer satisfies it.
type Source interface {
	Index() int
	Spectrum() ([]float64, error)
	CancelOperation() error
}

// Config is the minimal runtime config the poller needs.
type Config struct {
	Interval time.Duration

	// Observe, when set, sees every attempt on the worker goroutine.
	// It must not block.
	Observe func(PollResult)
}

// Poller is the acquisition worker of one device: read a frame, deliver
// it, sleep, repeat. A failed read is skipped and the loop carries on.
type Poller struct {
	*lifecycle

	cfg Config
	src Source
	log *eventlog.Task
	seq uint64
}

// New creates a poller bound to src for its lifetime.
func New(cfg Config, src Source, log *eventlog.Log) (*Poller, error) {
	if src == nil {
		return nil, errors.New("poller: source required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if log == nil {
		return nil, errors.New("poller: log required")
	}
	return &Poller{
		lifecycle: newLifecycle(cfg.Interval),
		cfg:       cfg,
		src:       src,
		log:       log.Task(TaskName(src.Index())),
	}, nil
}

// TaskName is the log tag of the worker for registry index i.
func TaskName(i int) string {
	return "acq-" + strconv.Itoa(i)
}

// Index returns the registry index of the bound device.
func (p *Poller) Index() int { return p.src.Index() }

// PollOnce performs exactly one acquisition.
// On failure the result carries no spectrum.
func (p *Poller) PollOnce() PollResult {
	start := time.Now()
	spectrum, err := p.src.Spectrum()

	res := PollResult{
		Index:    p.src.Index(),
		At:       time.Now(),
		Duration: time.Since(start),
	}
	if err != nil {
		res.Err = err
		return res
	}
	res.Spectrum = spectrum
	return res
}

// AbortInFlight asks the driver to cut short a read that is blocking the
// worker. Errors are only logged.
func (p *Poller) AbortInFlight() {
	if err := p.src.CancelOperation(); err != nil {
		p.log.Debugf("cancel operation: %v", err)
	}
}

func (p *Poller) observe(res PollResult) {
	if p.cfg.Observe != nil {
		p.cfg.Observe(res)
	}
}
