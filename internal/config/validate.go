// internal/config/validate.go
package config

import (
	"fmt"
	"math"
	"strings"
)

// maxBaseSlot keeps at least one full status block inside the 16-bit
// register space (20 registers per slot).
const maxBaseSlot = math.MaxUint16/20 - 1

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}

	// ------------------------------------------------------------
	// DRIVER
	// ------------------------------------------------------------

	if cfg.Driver.SimulatedDevices < 0 {
		return fmt.Errorf("driver: simulated_devices must be >= 0, got %d", cfg.Driver.SimulatedDevices)
	}
	if lv := cfg.Driver.LogLevel; lv != nil && (*lv < 0 || *lv > 1) {
		return fmt.Errorf("driver: log_level must be 0 (debug) or 1 (info), got %d", *lv)
	}

	// ------------------------------------------------------------
	// LOG
	// ------------------------------------------------------------

	switch strings.ToLower(strings.TrimSpace(cfg.Log.Level)) {
	case "", "debug", "info", "error":
	default:
		return fmt.Errorf("log: unknown level %q", cfg.Log.Level)
	}
	if cfg.Log.MaxSizeMB < 0 || cfg.Log.MaxBackups < 0 || cfg.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log: rotation limits must be >= 0")
	}

	// ------------------------------------------------------------
	// ACQUISITION
	// ------------------------------------------------------------

	a := cfg.Acquisition
	if a.IntervalMs < 0 {
		return fmt.Errorf("acquisition: interval_ms must be >= 0, got %d", a.IntervalMs)
	}
	if a.TemperatureIntervalMs < 0 {
		return fmt.Errorf("acquisition: temperature_interval_ms must be >= 0, got %d", a.TemperatureIntervalMs)
	}
	if a.SampleBuffer < 0 {
		return fmt.Errorf("acquisition: sample_buffer must be >= 0, got %d", a.SampleBuffer)
	}

	// ------------------------------------------------------------
	// INITIAL SETTINGS
	// ------------------------------------------------------------

	s := cfg.Settings
	if v := s.IntegrationTimeMs; v != nil && (*v < 1 || *v > math.MaxInt32) {
		return fmt.Errorf("settings: integration_time_ms must be >= 1, got %d", *v)
	}
	if v := s.MaxTimeoutMs; v != nil && (*v < 1 || *v > math.MaxInt32) {
		return fmt.Errorf("settings: max_timeout_ms must be >= 1, got %d", *v)
	}
	for name, v := range map[string]*int{"detector_offset": s.DetectorOffset, "detector_offset_odd": s.DetectorOffsetOdd} {
		if v != nil && (*v < math.MinInt16 || *v > math.MaxInt16) {
			return fmt.Errorf("settings: %s %d out of int16 range", name, *v)
		}
	}
	for name, v := range map[string]*float64{"detector_gain": s.DetectorGain, "detector_gain_odd": s.DetectorGainOdd} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return fmt.Errorf("settings: %s must be finite", name)
		}
	}

	// ------------------------------------------------------------
	// MQTT (OPT-IN)
	// ------------------------------------------------------------

	if m := cfg.MQTT; m.Enabled {
		if m.Broker == "" {
			return fmt.Errorf("mqtt: broker is required when enabled")
		}
		if m.QoS > 2 {
			return fmt.Errorf("mqtt: qos must be 0, 1 or 2, got %d", m.QoS)
		}
		if strings.ContainsAny(m.TopicPrefix, "+#") {
			return fmt.Errorf("mqtt: topic_prefix %q must not contain wildcards", m.TopicPrefix)
		}
		if m.ConnectTimeoutMs < 0 {
			return fmt.Errorf("mqtt: connect_timeout_ms must be >= 0")
		}
	}

	// ------------------------------------------------------------
	// STATUS MIRROR (OPT-IN)
	// ------------------------------------------------------------

	if sm := cfg.StatusMirror; sm.Enabled {
		if sm.Endpoint == "" {
			return fmt.Errorf("status_mirror: endpoint is required when enabled")
		}
		if sm.BaseSlot > maxBaseSlot {
			return fmt.Errorf("status_mirror: base_slot %d exceeds %d", sm.BaseSlot, maxBaseSlot)
		}
		if sm.TimeoutMs < 0 {
			return fmt.Errorf("status_mirror: timeout_ms must be >= 0")
		}
	}

	// ------------------------------------------------------------
	// METRICS (OPT-IN)
	// ------------------------------------------------------------

	if m := cfg.Metrics; m.Enabled {
		if m.Listen == "" {
			return fmt.Errorf("metrics: listen address is required when enabled")
		}
		if m.Path != "" && !strings.HasPrefix(m.Path, "/") {
			return fmt.Errorf("metrics: path %q must start with /", m.Path)
		}
	}

	return nil
}
