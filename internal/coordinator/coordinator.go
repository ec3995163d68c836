// internal/coordinator/coordinator.go
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tamzrod/spectro-coordinator/internal/config"
	"github.com/tamzrod/spectro-coordinator/internal/device"
	"github.com/tamzrod/spectro-coordinator/internal/eventlog"
	"github.com/tamzrod/spectro-coordinator/internal/gateway"
	"github.com/tamzrod/spectro-coordinator/internal/metrics"
	"github.com/tamzrod/spectro-coordinator/internal/poller"
	"github.com/tamzrod/spectro-coordinator/internal/registry"
	"github.com/tamzrod/spectro-coordinator/internal/status"
	"github.com/tamzrod/spectro-coordinator/internal/tracker"
	"github.com/tamzrod/spectro-coordinator/internal/writer"
)

var (
	ErrAcquisitionRunning = errors.New("acquisition already running")
	ErrNoDevices          = errors.New("no spectrometers")
)

// MirrorFunc builds the status mirror once device names are known.
// A nil mirror disables mirroring.
type MirrorFunc func(names []string) (*writer.Mirror, error)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMetrics records acquisition metrics.
func WithMetrics(m *metrics.CoordinatorMetrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithMirror replaces the status mirror factory.
func WithMirror(fn MirrorFunc) Option {
	return func(c *Coordinator) { c.mirrorFn = fn }
}

// Coordinator is the application object: it owns the registry, the
// workers, the tracker that gates the driver close, and the per-device
// health monitors. Consumers drain Samples and Temperatures on their own
// goroutine.
type Coordinator struct {
	gw  *gateway.Gateway
	log *eventlog.Log
	cfg *config.Config

	reg      *registry.Registry
	trk      *tracker.Tracker
	metrics  *metrics.CoordinatorMetrics
	mirrorFn MirrorFunc

	samples chan poller.Sample
	temps   chan poller.Temperature

	mu       sync.Mutex
	session  *session
	pollers  []*poller.Poller
	temp     *poller.TemperaturePoller
	shutdown bool
}

// session holds what lives between Open and CloseAll.
type session struct {
	monitors []*status.Monitor
	mirror   *writer.Mirror
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a coordinator. cfg must already be validated and normalized.
func New(gw *gateway.Gateway, log *eventlog.Log, cfg *config.Config, opts ...Option) (*Coordinator, error) {
	if gw == nil {
		return nil, errors.New("coordinator: gateway required")
	}
	if log == nil {
		return nil, errors.New("coordinator: log required")
	}
	if cfg == nil {
		return nil, errors.New("coordinator: config required")
	}

	c := &Coordinator{
		gw:      gw,
		log:     log,
		cfg:     cfg,
		reg:     registry.New(gw, log),
		trk:     tracker.New(),
		samples: make(chan poller.Sample, cfg.Acquisition.SampleBuffer),
		temps:   make(chan poller.Temperature, 1),
	}
	c.mirrorFn = c.defaultMirror
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Coordinator) defaultMirror(names []string) (*writer.Mirror, error) {
	if !c.cfg.StatusMirror.Enabled {
		return nil, nil
	}
	return writer.BuildMirror(c.cfg.StatusMirror, names)
}

// Samples is the consumer channel of delivered frames. It is closed once
// a shutdown has completed.
func (c *Coordinator) Samples() <-chan poller.Sample { return c.samples }

// Temperatures carries the temperature worker's readings. It is closed
// together with Samples.
func (c *Coordinator) Temperatures() <-chan poller.Temperature { return c.temps }

// ---- discovery ----

// Open configures the driver, discovers every spectrometer and applies
// the configured initial settings. It returns the number of usable devices.
func (c *Coordinator) Open() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shutdown {
		return 0, tracker.ErrShuttingDown
	}

	drv := c.cfg.Driver
	if drv.LogLevel != nil {
		if err := c.gw.SetLogLevel(*drv.LogLevel); err != nil {
			c.log.Errorf("set driver log level: %v", err)
		}
	}
	if drv.Logfile != "" {
		if err := c.gw.SetLogfilePath(drv.Logfile); err != nil {
			c.log.Errorf("set driver logfile %s: %v", drv.Logfile, err)
		}
	}
	if v, err := c.gw.LibraryVersion(); err != nil {
		c.log.Errorf("driver library version: %v", err)
	} else {
		c.log.Infof("driver library version %s", v)
	}

	n, err := c.reg.OpenAll()
	if err != nil {
		return n, err
	}

	c.log.Infof("Found %d spectrometers", n)
	devs := c.reg.Devices()
	for _, d := range devs {
		c.log.Infof("%s", d.Describe())
	}
	c.metrics.SetDevices(n)

	if n > 0 {
		if err := c.applySettings(c.cfg.Settings); err != nil {
			c.log.Errorf("initial settings: %v", err)
		}
	}

	c.session = c.openSession(devs)
	return n, nil
}

func (c *Coordinator) openSession(devs []*device.Spectrometer) *session {
	names := make([]string, len(devs))
	for i, d := range devs {
		names[i] = d.SerialNumber()
	}

	s := &session{}
	if c.mirrorFn != nil {
		m, err := c.mirrorFn(names)
		if err != nil {
			c.log.Errorf("status mirror disabled: %v", err)
		}
		s.mirror = m
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.monitors = make([]*status.Monitor, len(devs))
	for i, name := range names {
		mon := status.NewMonitor(name, s.mirror.Writer(i), c.log)
		s.monitors[i] = mon
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			mon.Run(ctx)
		}()
	}
	return s
}

// close stops the monitors (each does a final flush) and the mirror.
func (s *session) close() error {
	if s == nil {
		return nil
	}
	s.cancel()
	s.wg.Wait()
	return s.mirror.Close()
}

// ---- acquisition ----

// StartAll starts one acquisition worker per device. Workers are fresh on
// every start; the previous set must have stopped.
func (c *Coordinator) StartAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shutdown {
		return tracker.ErrShuttingDown
	}
	if !c.reg.IsOpen() {
		return registry.ErrNotOpen
	}
	if c.acquiringLocked() {
		return ErrAcquisitionRunning
	}

	devs := c.reg.Devices()
	if len(devs) == 0 {
		return ErrNoDevices
	}

	mons := c.session.monitors
	pcfg := poller.Config{
		Interval: time.Duration(c.cfg.Acquisition.IntervalMs) * time.Millisecond,
		Observe: func(res poller.PollResult) {
			mons[res.Index].Observe(res.Err)
			c.metrics.RecordRead(res.Index, res.Duration, res.Err)
		},
	}
	ps, err := poller.Build(devs, pcfg, c.log)
	if err != nil {
		return err
	}

	for _, p := range ps {
		if err := c.trk.Begin(); err != nil {
			return err
		}
		c.metrics.WorkerStarted()

		mon := mons[p.Index()]
		go func() {
			defer c.trk.Done()
			defer c.metrics.WorkerStopped()
			defer mon.Disable()
			p.Run(ctx, c.samples)
		}()
	}
	c.pollers = ps

	c.log.Infof("started %d acquisition workers", len(ps))
	return nil
}

// StopAll cancels every acquisition worker and asks the driver to abort
// reads in flight. It does not wait; see Wait.
func (c *Coordinator) StopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Coordinator) stopLocked() {
	for _, p := range c.pollers {
		if p.State() == poller.StateStopped {
			continue
		}
		p.Cancel()
		p.AbortInFlight()
	}
}

func (c *Coordinator) acquiringLocked() bool {
	for _, p := range c.pollers {
		if p.State() != poller.StateStopped {
			return true
		}
	}
	return false
}

// Acquiring reports whether any acquisition worker has not stopped.
func (c *Coordinator) Acquiring() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquiringLocked()
}

// WorkerStates returns the state of each acquisition worker in registry order.
func (c *Coordinator) WorkerStates() []poller.State {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]poller.State, len(c.pollers))
	for i, p := range c.pollers {
		out[i] = p.State()
	}
	return out
}

// SetInterval retunes the acquisition interval of running workers and of
// future starts.
func (c *Coordinator) SetInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: interval %v", device.ErrInvalidSetting, d)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cfg.Acquisition.IntervalMs = int(d / time.Millisecond)
	for _, p := range c.pollers {
		p.SetInterval(d)
	}
	return nil
}

// Wait blocks until every worker (acquisition and temperature) has stopped.
func (c *Coordinator) Wait(ctx context.Context) error {
	return c.trk.Wait(ctx)
}

// ---- temperature ----

// StartTemperature starts the lower-rate detector temperature worker on
// the first device.
func (c *Coordinator) StartTemperature(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shutdown {
		return tracker.ErrShuttingDown
	}
	if !c.reg.IsOpen() {
		return registry.ErrNotOpen
	}
	if c.temp != nil && c.temp.State() != poller.StateStopped {
		return ErrAcquisitionRunning
	}

	dev, err := c.reg.Device(0)
	if err != nil {
		return ErrNoDevices
	}

	mon := c.session.monitors[0]
	observe := func(t poller.Temperature, err error) {
		if err != nil {
			return
		}
		mon.ObserveTemperature(t.DegC)
		c.metrics.RecordTemperature(t.Index, t.DegC)
	}

	interval := time.Duration(c.cfg.Acquisition.TemperatureIntervalMs) * time.Millisecond
	tp, err := poller.NewTemperature(interval, dev, c.log, observe)
	if err != nil {
		return err
	}
	if err := c.trk.Begin(); err != nil {
		return err
	}

	go func() {
		defer c.trk.Done()
		tp.Run(ctx, c.temps)
	}()
	c.temp = tp
	return nil
}

// StopTemperature cancels the temperature worker.
func (c *Coordinator) StopTemperature() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.temp != nil {
		c.temp.Cancel()
	}
}

// ---- teardown ----

// CloseAll closes every device. It fails with tracker.ErrWorkersActive
// while any worker has not stopped.
func (c *Coordinator) CloseAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.trk.Quiesced(); err != nil {
		return err
	}

	s := c.session
	c.session = nil
	c.pollers = nil
	c.temp = nil
	return c.teardown(s)
}

func (c *Coordinator) teardown(s *session) error {
	err := c.reg.CloseAll()
	if errors.Is(err, registry.ErrNotOpen) {
		err = nil
	}
	if serr := s.close(); serr != nil {
		c.log.Errorf("close status mirror: %v", serr)
	}
	c.metrics.SetDevices(0)
	return err
}

// Shutdown cancels every worker and closes the driver once the last one
// has stopped. It reports whether the close was deferred; Done is closed
// when it has run. Later calls are ignored.
func (c *Coordinator) Shutdown() (deferred bool) {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return false
	}
	c.shutdown = true

	c.stopLocked()
	if c.temp != nil {
		c.temp.Cancel()
	}
	s := c.session
	c.session = nil
	c.mu.Unlock()

	deferred = c.trk.RequestShutdown(func() error {
		err := c.teardown(s)
		close(c.samples)
		close(c.temps)
		return err
	})
	if deferred {
		c.log.Infof("shutdown deferred until %d workers stop", c.trk.Active())
	}
	return deferred
}

// Done is closed once a shutdown has closed the driver.
func (c *Coordinator) Done() <-chan struct{} { return c.trk.ShutdownDone() }

// Err returns the driver close error after Done.
func (c *Coordinator) Err() error { return c.trk.ShutdownErr() }

// ---- inspection ----

// Devices returns the usable devices in registry order.
func (c *Coordinator) Devices() []*device.Spectrometer { return c.reg.Devices() }

// Device returns the device at registry index i.
func (c *Coordinator) Device(i int) (*device.Spectrometer, error) { return c.reg.Device(i) }

// Health returns each device's status snapshot in registry order.
func (c *Coordinator) Health() []status.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil
	}
	out := make([]status.Snapshot, len(c.session.monitors))
	for i, m := range c.session.monitors {
		out[i] = m.Snapshot()
	}
	return out
}

// EEPROMPage reads one raw 64-byte EEPROM page of device i.
func (c *Coordinator) EEPROMPage(i, page int) ([]byte, error) {
	d, err := c.reg.Device(i)
	if err != nil {
		return nil, err
	}
	return d.EEPROMPage(page)
}
