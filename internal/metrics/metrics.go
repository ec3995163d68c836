// Package metrics provides Prometheus instrumentation for the acquisition coordinator.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "spectro"

// Result label values for frame counters.
const (
	ResultDelivered = "delivered"
	ResultFailed    = "failed"
)

// CoordinatorMetrics contains the acquisition metrics.
// A nil *CoordinatorMetrics records nothing.
type CoordinatorMetrics struct {
	Frames          *prometheus.CounterVec
	ReadDuration    *prometheus.HistogramVec
	ActiveWorkers   prometheus.Gauge
	DetectorTempC   *prometheus.GaugeVec
	Devices         prometheus.Gauge
	ErrorRingSize   prometheus.GaugeFunc
	SettingFailures *prometheus.CounterVec
}

// NewCoordinatorMetrics creates and registers the coordinator metrics.
// errorRing reports the current size of the log's error ring; it may be nil.
func NewCoordinatorMetrics(registry *prometheus.Registry, errorRing func() int) (*CoordinatorMetrics, error) {
	m := &CoordinatorMetrics{}
	m.initMetrics(errorRing)
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register coordinator metrics: %w", err)
	}
	return m, nil
}

func (m *CoordinatorMetrics) initMetrics(errorRing func() int) {
	m.Frames = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_total",
		Help:      "Spectrum reads per device by result (delivered, failed)",
	}, []string{"device", "result"})

	m.ReadDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "read_duration_seconds",
		Help:      "Duration of native spectrum reads",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
	}, []string{"device"})

	m.ActiveWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_workers",
		Help:      "Number of acquisition workers that have not stopped",
	})

	m.DetectorTempC = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "detector_temperature_celsius",
		Help:      "Last detector temperature reading",
	}, []string{"device"})

	m.Devices = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "devices",
		Help:      "Number of spectrometers in the registry",
	})

	m.ErrorRingSize = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "error_ring_entries",
		Help:      "Error entries retained and not yet drained",
	}, func() float64 {
		if errorRing == nil {
			return 0
		}
		return float64(errorRing())
	})

	m.SettingFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "setting_failures_total",
		Help:      "Failed setting mutations per device and setting",
	}, []string{"device", "setting"})
}

// RecordRead records one spectrum read attempt.
func (m *CoordinatorMetrics) RecordRead(index int, d time.Duration, err error) {
	if m == nil {
		return
	}
	dev := strconv.Itoa(index)
	result := ResultDelivered
	if err != nil {
		result = ResultFailed
	}
	m.Frames.WithLabelValues(dev, result).Inc()
	m.ReadDuration.WithLabelValues(dev).Observe(d.Seconds())
}

// RecordTemperature records a detector temperature reading.
func (m *CoordinatorMetrics) RecordTemperature(index int, degC float64) {
	if m == nil {
		return
	}
	m.DetectorTempC.WithLabelValues(strconv.Itoa(index)).Set(degC)
}

// RecordSettingFailure counts one failed setting mutation.
func (m *CoordinatorMetrics) RecordSettingFailure(index int, setting string) {
	if m == nil {
		return
	}
	m.SettingFailures.WithLabelValues(strconv.Itoa(index), setting).Inc()
}

// WorkerStarted and WorkerStopped track the active worker gauge.
func (m *CoordinatorMetrics) WorkerStarted() {
	if m != nil {
		m.ActiveWorkers.Inc()
	}
}

func (m *CoordinatorMetrics) WorkerStopped() {
	if m != nil {
		m.ActiveWorkers.Dec()
	}
}

// SetDevices records the registry size.
func (m *CoordinatorMetrics) SetDevices(n int) {
	if m != nil {
		m.Devices.Set(float64(n))
	}
}

// Collect implements the prometheus.Collector interface.
func (m *CoordinatorMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Frames.Collect(ch)
	m.ReadDuration.Collect(ch)
	ch <- m.ActiveWorkers
	m.DetectorTempC.Collect(ch)
	ch <- m.Devices
	ch <- m.ErrorRingSize
	m.SettingFailures.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *CoordinatorMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Frames.Describe(ch)
	m.ReadDuration.Describe(ch)
	ch <- m.ActiveWorkers.Desc()
	m.DetectorTempC.Describe(ch)
	ch <- m.Devices.Desc()
	ch <- m.ErrorRingSize.Desc()
	m.SettingFailures.Describe(ch)
}
