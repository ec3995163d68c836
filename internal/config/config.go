// internal/config/config.go
package config

type Config struct {
	Driver       DriverConfig       `yaml:"driver"`
	Log          LogConfig          `yaml:"log"`
	Acquisition  AcquisitionConfig  `yaml:"acquisition"`
	Settings     SettingsConfig     `yaml:"settings"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	StatusMirror StatusMirrorConfig `yaml:"status_mirror"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// ---- DRIVER ----

type DriverConfig struct {
	// Library is the shared library path; empty means the platform default name.
	Library string `yaml:"library"`

	// Simulate replaces the native library with the in-process simulator.
	Simulate         bool `yaml:"simulate"`
	SimulatedDevices int  `yaml:"simulated_devices"`

	// Native driver's own log (optional).
	Logfile  string `yaml:"logfile"`
	LogLevel *int   `yaml:"log_level"` // 0 = debug, 1 = info
}

// ---- LOG ----

type LogConfig struct {
	Level string `yaml:"level"` // debug | info | error
	File  string `yaml:"file"`

	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`
}

// ---- ACQUISITION ----

type AcquisitionConfig struct {
	IntervalMs            int   `yaml:"interval_ms"`
	TemperatureIntervalMs int   `yaml:"temperature_interval_ms"`
	MonitorTemperature    *bool `yaml:"monitor_temperature"`
	SampleBuffer          int   `yaml:"sample_buffer"`
}

// ---- INITIAL SETTINGS (applied to every device after discovery) ----

type SettingsConfig struct {
	IntegrationTimeMs *int     `yaml:"integration_time_ms"`
	MaxTimeoutMs      *int     `yaml:"max_timeout_ms"`
	LaserEnable       *bool    `yaml:"laser_enable"`
	TECEnable         *bool    `yaml:"tec_enable"`
	TECSetpointDegC   *int     `yaml:"tec_setpoint_deg_c"`
	HighGainMode      *bool    `yaml:"high_gain_mode"`
	DetectorGain      *float64 `yaml:"detector_gain"`
	DetectorGainOdd   *float64 `yaml:"detector_gain_odd"`
	DetectorOffset    *int     `yaml:"detector_offset"`
	DetectorOffsetOdd *int     `yaml:"detector_offset_odd"`
}

// ---- MQTT ----

type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	TopicPrefix      string `yaml:"topic_prefix"`
	QoS              byte   `yaml:"qos"`
	Retain           bool   `yaml:"retain"`
	PublishSpectra   bool   `yaml:"publish_spectra"`
	PublishLog       bool   `yaml:"publish_log"`
	ConnectTimeoutMs int    `yaml:"connect_timeout_ms"`
}

// ---- STATUS MIRROR (Modbus memory) ----

type StatusMirrorConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	BaseSlot  uint16 `yaml:"base_slot"` // device i owns slot base_slot+i
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ---- METRICS ----

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`
}
