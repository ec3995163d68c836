// internal/config/normalize.go
package config

import "strings"

// Defaults applied by Normalize.
const (
	DefaultIntervalMs            = 100
	DefaultTemperatureIntervalMs = 1000
	DefaultSampleBuffer          = 16
	DefaultSimulatedDevices      = 2
	DefaultTopicPrefix           = "spectro"
	DefaultMQTTConnectTimeoutMs  = 5000
	DefaultStatusTimeoutMs       = 1000
	DefaultMetricsPath           = "/metrics"
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Driver.Simulate && cfg.Driver.SimulatedDevices == 0 {
		cfg.Driver.SimulatedDevices = DefaultSimulatedDevices
	}

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	a := &cfg.Acquisition
	if a.IntervalMs == 0 {
		a.IntervalMs = DefaultIntervalMs
	}
	if a.TemperatureIntervalMs == 0 {
		a.TemperatureIntervalMs = DefaultTemperatureIntervalMs
	}
	if a.SampleBuffer == 0 {
		a.SampleBuffer = DefaultSampleBuffer
	}
	if a.MonitorTemperature == nil {
		on := true
		a.MonitorTemperature = &on
	}

	// Native driver log level follows our own level unless set.
	if cfg.Driver.LogLevel == nil {
		lv := 1
		if cfg.Log.Level == "debug" {
			lv = 0
		}
		cfg.Driver.LogLevel = &lv
	}

	if cfg.MQTT.Enabled {
		cfg.MQTT.TopicPrefix = strings.Trim(cfg.MQTT.TopicPrefix, "/")
		if cfg.MQTT.TopicPrefix == "" {
			cfg.MQTT.TopicPrefix = DefaultTopicPrefix
		}
		if cfg.MQTT.ConnectTimeoutMs == 0 {
			cfg.MQTT.ConnectTimeoutMs = DefaultMQTTConnectTimeoutMs
		}
	}

	if cfg.StatusMirror.Enabled && cfg.StatusMirror.TimeoutMs == 0 {
		cfg.StatusMirror.TimeoutMs = DefaultStatusTimeoutMs
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
}
