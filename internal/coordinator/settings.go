// internal/coordinator/settings.go
package coordinator

import (
	"errors"
	"fmt"

	"github.com/tamzrod/spectro-coordinator/internal/config"
	"github.com/tamzrod/spectro-coordinator/internal/device"
)

// broadcast applies one setting to every device. A failing device does
// not stop the others; failures are logged and joined.
func (c *Coordinator) broadcast(setting string, fn func(d *device.Spectrometer) error) error {
	var errs []error
	for _, d := range c.reg.Devices() {
		if err := fn(d); err != nil {
			c.log.Errorf("set %s on %s: %v", setting, d.SerialNumber(), err)
			c.metrics.RecordSettingFailure(d.Index(), setting)
			errs = append(errs, fmt.Errorf("device %d: %w", d.Index(), err))
		}
	}
	return errors.Join(errs...)
}

func (c *Coordinator) SetIntegrationTimeMS(ms int) error {
	c.log.Debugf("setting integration time to %d ms", ms)
	return c.broadcast("integration_time_ms", func(d *device.Spectrometer) error {
		return d.SetIntegrationTimeMS(ms)
	})
}

func (c *Coordinator) SetLaserEnable(on bool) error {
	c.log.Debugf("setting laser enable to %t", on)
	return c.broadcast("laser_enable", func(d *device.Spectrometer) error {
		return d.SetLaserEnable(on)
	})
}

func (c *Coordinator) SetDetectorTECEnable(on bool) error {
	return c.broadcast("tec_enable", func(d *device.Spectrometer) error {
		return d.SetDetectorTECEnable(on)
	})
}

func (c *Coordinator) SetDetectorTECSetpointDegC(degC int) error {
	return c.broadcast("tec_setpoint_deg_c", func(d *device.Spectrometer) error {
		return d.SetDetectorTECSetpointDegC(degC)
	})
}

func (c *Coordinator) SetDetectorGain(v float64) error {
	return c.broadcast("detector_gain", func(d *device.Spectrometer) error {
		return d.SetDetectorGain(v)
	})
}

func (c *Coordinator) SetDetectorGainOdd(v float64) error {
	return c.broadcast("detector_gain_odd", func(d *device.Spectrometer) error {
		return d.SetDetectorGainOdd(v)
	})
}

func (c *Coordinator) SetDetectorOffset(v int) error {
	return c.broadcast("detector_offset", func(d *device.Spectrometer) error {
		return d.SetDetectorOffset(v)
	})
}

func (c *Coordinator) SetDetectorOffsetOdd(v int) error {
	return c.broadcast("detector_offset_odd", func(d *device.Spectrometer) error {
		return d.SetDetectorOffsetOdd(v)
	})
}

func (c *Coordinator) SetHighGainModeEnable(on bool) error {
	return c.broadcast("high_gain_mode", func(d *device.Spectrometer) error {
		return d.SetHighGainModeEnable(on)
	})
}

func (c *Coordinator) SetMaxTimeoutMS(ms int) error {
	return c.broadcast("max_timeout_ms", func(d *device.Spectrometer) error {
		return d.SetMaxTimeoutMS(ms)
	})
}

// applySettings pushes every configured value to every device. It does
// not take c.mu; Open calls it with the lock held.
// The timeout goes first so a long integration time is not cut short.
func (c *Coordinator) applySettings(sc config.SettingsConfig) error {
	var errs []error
	apply := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if sc.MaxTimeoutMs != nil {
		apply(c.SetMaxTimeoutMS(*sc.MaxTimeoutMs))
	}
	if sc.IntegrationTimeMs != nil {
		apply(c.SetIntegrationTimeMS(*sc.IntegrationTimeMs))
	}
	if sc.TECSetpointDegC != nil {
		apply(c.SetDetectorTECSetpointDegC(*sc.TECSetpointDegC))
	}
	if sc.TECEnable != nil {
		apply(c.SetDetectorTECEnable(*sc.TECEnable))
	}
	if sc.DetectorGain != nil {
		apply(c.SetDetectorGain(*sc.DetectorGain))
	}
	if sc.DetectorGainOdd != nil {
		apply(c.SetDetectorGainOdd(*sc.DetectorGainOdd))
	}
	if sc.DetectorOffset != nil {
		apply(c.SetDetectorOffset(*sc.DetectorOffset))
	}
	if sc.DetectorOffsetOdd != nil {
		apply(c.SetDetectorOffsetOdd(*sc.DetectorOffsetOdd))
	}
	if sc.HighGainMode != nil {
		apply(c.SetHighGainModeEnable(*sc.HighGainMode))
	}
	if sc.LaserEnable != nil {
		apply(c.SetLaserEnable(*sc.LaserEnable))
	}
	return errors.Join(errs...)
}
