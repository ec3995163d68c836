// cmd/coordinator/setup.go
package main

import (
	"errors"
	"fmt"

	"github.com/tamzrod/spectro-coordinator/internal/config"
	"github.com/tamzrod/spectro-coordinator/internal/coordinator"
	"github.com/tamzrod/spectro-coordinator/internal/eventlog"
	"github.com/tamzrod/spectro-coordinator/internal/gateway"
	"github.com/tamzrod/spectro-coordinator/internal/native"
	"github.com/tamzrod/spectro-coordinator/internal/native/sim"
)

// runtime is the set of process-lifetime objects every command needs.
type runtime struct {
	log      *eventlog.Log
	gw       *gateway.Gateway
	closeLib func() error
}

func (r *runtime) close() {
	if r.closeLib != nil {
		if err := r.closeLib(); err != nil {
			r.log.Errorf("unload driver: %v", err)
		}
	}
	_ = r.log.Close()
}

func buildLog(cfg config.LogConfig) *eventlog.Log {
	log := eventlog.New(eventlog.WithLevel(eventlog.ParseLevel(cfg.Level)))
	if cfg.File != "" {
		// failures are already in the error ring; keep going on the console
		_ = log.SetFile(cfg.File, eventlog.Rotation{
			MaxSizeMB:  cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAgeDays: cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
	}
	return log
}

// openDriver picks the simulated or the native driver.
func openDriver(cfg config.DriverConfig, log *eventlog.Log) (native.Library, func() error, error) {
	if cfg.Simulate {
		lib := sim.Default(cfg.SimulatedDevices)
		lib.RealTime = true
		log.Infof("using simulated driver with %d spectrometers", cfg.SimulatedDevices)
		return lib, nil, nil
	}

	path := cfg.Library
	if path == "" {
		path = native.DefaultLibraryName
	}
	lib, err := native.Open(path)
	if err != nil {
		if errors.Is(err, native.ErrUnsupportedPlatform) {
			return nil, nil, fmt.Errorf("load %s: %w (use --simulate)", path, err)
		}
		return nil, nil, fmt.Errorf("load %s: %w", path, err)
	}
	log.Debugf("loaded driver library %s", path)
	for _, name := range lib.Missing() {
		log.Infof("driver library lacks %s; calls to it will fail", name)
	}
	return lib, lib.Close, nil
}

func (a *app) setup() (*runtime, error) {
	log := buildLog(a.cfg.Log)

	lib, closeLib, err := openDriver(a.cfg.Driver, log)
	if err != nil {
		_ = log.Close()
		return nil, err
	}
	return &runtime{log: log, gw: gateway.New(lib), closeLib: closeLib}, nil
}

// shutdown closes the driver and waits for the deferred close.
func shutdown(c *coordinator.Coordinator) error {
	c.Shutdown()
	<-c.Done()
	return c.Err()
}
