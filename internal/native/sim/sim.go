// Package sim is an in-process stand-in for the spectrometer driver library.
//
// It implements native.Library with the same buffer and status conventions
// as the shared library, so everything above the gateway can run without
// hardware. Tests use its hooks to inject failures and latency.
package sim

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tamzrod/spectro-coordinator/internal/native"
)

// EEPROMPageSize and EEPROMPages describe the simulated EEPROM geometry.
const (
	EEPROMPageSize = 64
	EEPROMPages    = 8
)

const libraryVersion = "1.0.14-sim"

// Device describes one simulated spectrometer.
type Device struct {
	Serial       string
	Model        string
	Pixels       int
	Firmware     string
	FPGA         string
	ExcitationNM float64 // 0 for non-Raman units (no wavenumber axis)

	// FailSpectrum makes every spectrum read fail.
	FailSpectrum bool

	// SpectrumDelay is added to every read on top of the integration time.
	SpectrumDelay time.Duration
}

type unit struct {
	Device

	open bool

	integrationMS uint32
	laser         bool
	tecEnable     bool
	tecSetpoint   int32
	gain          float32
	gainOdd       float32
	offset        int16
	offsetOdd     int16
	highGain      bool
	maxTimeoutMS  int32

	fields [][2]string
	pages  [][]byte

	cancel chan struct{}
}

// Library is a simulated driver. The zero value is not usable; use New.
type Library struct {
	mu      sync.Mutex
	devices []Device
	units   []*unit
	opened  bool

	// ReportedCount overrides wp_get_number_of_spectrometers when >= 0.
	ReportedCount int

	// RealTime makes spectrum reads sleep for the integration time.
	RealTime bool

	strings []string // CString tokens are 1-based indexes into this table

	logLevel int32
	logPath  string
	debugLog []string

	OpenAllCalls  atomic.Int32
	CloseAllCalls atomic.Int32
	CloseCalls    atomic.Int32
	CancelCalls   atomic.Int32
	SpectrumCalls atomic.Int64

	// BeforeSpectrum, when set, runs at the start of every spectrum read,
	// outside the simulator lock. Tests use it to hold a read in flight.
	BeforeSpectrum func(spec int)

	// AfterCloseAll, when set, runs after wp_close_all_spectrometers.
	AfterCloseAll func()
}

// New returns a simulated driver that will enumerate devs on open.
func New(devs ...Device) *Library {
	return &Library{devices: devs, ReportedCount: -1}
}

// Default returns n healthy simulated devices.
func Default(n int) *Library {
	devs := make([]Device, 0, n)
	for i := 0; i < n; i++ {
		devs = append(devs, Device{
			Serial:       fmt.Sprintf("WP-%05d", 1000+i),
			Model:        "WP-785X-ILP",
			Pixels:       1024,
			Firmware:     "10.0.0.8",
			FPGA:         "026-007",
			ExcitationNM: 785,
		})
	}
	return New(devs...)
}

// SetFailSpectrum toggles spectrum failures on an opened device.
func (l *Library) SetFailSpectrum(spec int, fail bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if u := l.unitLocked(int32(spec)); u != nil {
		u.FailSpectrum = fail
	}
}

// DebugLines returns the messages injected with wp_log_debug.
func (l *Library) DebugLines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.debugLog...)
}

func (l *Library) unitLocked(spec int32) *unit {
	if spec < 0 || int(spec) >= len(l.units) {
		return nil
	}
	u := l.units[spec]
	if !u.open {
		return nil
	}
	return u
}

// ---- library-wide ----

func (l *Library) SetLogfilePath(path []byte) int32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logPath = string(trimNUL(path))
	return native.Success
}

func (l *Library) SetLogLevel(level int32) int32 {
	if level < native.LogLevelDebug || level > native.LogLevelInfo+1 {
		return native.Error
	}
	l.mu.Lock()
	l.logLevel = level
	l.mu.Unlock()
	return native.Success
}

func (l *Library) LogDebug(msg []byte) int32 {
	l.mu.Lock()
	l.debugLog = append(l.debugLog, string(trimNUL(msg)))
	l.mu.Unlock()
	return native.Success
}

func (l *Library) GetLibraryVersion(buf []byte) int32 {
	return exportString(libraryVersion, buf)
}

// ---- lifecycle ----

func (l *Library) OpenAllSpectrometers() int32 {
	l.OpenAllCalls.Add(1)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.units = l.units[:0]
	for _, d := range l.devices {
		l.units = append(l.units, newUnit(d))
	}
	l.opened = true
	return int32(len(l.units))
}

func (l *Library) GetNumberOfSpectrometers() int32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ReportedCount >= 0 {
		return int32(l.ReportedCount)
	}
	return int32(len(l.units))
}

func (l *Library) CloseAllSpectrometers() int32 {
	l.CloseAllCalls.Add(1)

	l.mu.Lock()
	for _, u := range l.units {
		u.open = false
	}
	l.opened = false
	hook := l.AfterCloseAll
	l.mu.Unlock()

	if hook != nil {
		hook()
	}
	return native.Success
}

func (l *Library) CloseSpectrometer(spec int32) int32 {
	l.CloseCalls.Add(1)

	l.mu.Lock()
	defer l.mu.Unlock()
	u := l.unitLocked(spec)
	if u == nil {
		return native.ErrorInvalidSpectrometer
	}
	u.open = false
	return native.Success
}

// ---- identity / EEPROM ----

func (l *Library) GetPixels(spec int32) int32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	u := l.unitLocked(spec)
	if u == nil {
		return native.ErrorInvalidSpectrometer
	}
	return int32(u.Pixels)
}

func (l *Library) stringCall(spec int32, buf []byte, pick func(u *unit) string) int32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	u := l.unitLocked(spec)
	if u == nil {
		return native.ErrorInvalidSpectrometer
	}
	return exportString(pick(u), buf)
}

func (l *Library) GetModel(spec int32, buf []byte) int32 {
	return l.stringCall(spec, buf, func(u *unit) string { return u.Model })
}

func (l *Library) GetSerialNumber(spec int32, buf []byte) int32 {
	return l.stringCall(spec, buf, func(u *unit) string { return u.Serial })
}

func (l *Library) GetFirmwareVersion(spec int32, buf []byte) int32 {
	return l.stringCall(spec, buf, func(u *unit) string { return u.Firmware })
}

func (l *Library) GetFPGAVersion(spec int32, buf []byte) int32 {
	return l.stringCall(spec, buf, func(u *unit) string { return u.FPGA })
}

func (l *Library) GetEEPROMFieldCount(spec int32) int32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	u := l.unitLocked(spec)
	if u == nil {
		return native.ErrorInvalidSpectrometer
	}
	return int32(len(u.fields))
}

func (l *Library) GetEEPROM(spec int32, names, values []uintptr) int32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	u := l.unitLocked(spec)
	if u == nil {
		return native.ErrorInvalidSpectrometer
	}
	if len(names) < len(u.fields) || len(values) < len(u.fields) {
		return native.ErrorInsufficientStorage
	}
	for i, f := range u.fields {
		names[i] = l.internLocked(f[0])
		values[i] = l.internLocked(f[1])
	}
	return native.Success
}

func (l *Library) internLocked(s string) uintptr {
	l.strings = append(l.strings, s)
	return uintptr(len(l.strings))
}

func (l *Library) CString(p uintptr, max int) []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p == 0 || int(p) > len(l.strings) || max <= 0 {
		return nil
	}
	b := []byte(l.strings[p-1])
	if len(b) > max {
		b = b[:max]
	}
	return b
}

func (l *Library) GetEEPROMField(spec int32, name []byte, value []byte) int32 {
	key := string(trimNUL(name))

	l.mu.Lock()
	defer l.mu.Unlock()
	u := l.unitLocked(spec)
	if u == nil {
		return native.ErrorInvalidSpectrometer
	}
	for _, f := range u.fields {
		if f[0] == key {
			return exportString(f[1], value)
		}
	}
	return native.Error
}

func (l *Library) GetEEPROMPage(spec int32, page int32, buf []byte) int32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	u := l.unitLocked(spec)
	if u == nil {
		return native.ErrorInvalidSpectrometer
	}
	if page < 0 || int(page) >= len(u.pages) {
		return native.Error
	}
	if len(buf) < EEPROMPageSize {
		return native.ErrorInsufficientStorage
	}
	copy(buf, u.pages[page])
	return native.Success
}

// ---- arrays ----

func (l *Library) GetWavelengths(spec int32, out []float64) int32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	u := l.unitLocked(spec)
	if u == nil {
		return native.ErrorInvalidSpectrometer
	}
	if len(out) < u.Pixels {
		return native.ErrorInsufficientStorage
	}
	for i := 0; i < u.Pixels; i++ {
		out[i] = wavelength(i)
	}
	return native.Success
}

func (l *Library) GetWavenumbers(spec int32, out []float64) int32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	u := l.unitLocked(spec)
	if u == nil {
		return native.ErrorInvalidSpectrometer
	}
	if u.ExcitationNM <= 0 {
		return native.ErrorNoLaser
	}
	if len(out) < u.Pixels {
		return native.ErrorInsufficientStorage
	}
	for i := 0; i < u.Pixels; i++ {
		out[i] = 1e7/u.ExcitationNM - 1e7/wavelength(i)
	}
	return native.Success
}

func (l *Library) GetSpectrum(spec int32, out []float64) int32 {
	l.SpectrumCalls.Add(1)

	if hook := l.BeforeSpectrum; hook != nil {
		hook(int(spec))
	}

	l.mu.Lock()
	u := l.unitLocked(spec)
	if u == nil {
		l.mu.Unlock()
		return native.ErrorInvalidSpectrometer
	}
	wait := u.SpectrumDelay
	if l.RealTime {
		wait += time.Duration(u.integrationMS) * time.Millisecond
	}
	maxWait := time.Duration(u.maxTimeoutMS) * time.Millisecond
	cancel := u.cancel
	fail := u.FailSpectrum
	pixels := u.Pixels
	integration := float64(u.integrationMS)
	laser := u.laser
	gain := float64(u.gain)
	l.mu.Unlock()

	if wait > 0 {
		timedOut := false
		if maxWait > 0 && wait > maxWait {
			wait = maxWait
			timedOut = true
		}
		select {
		case <-time.After(wait):
		case <-cancel:
			return native.Error
		}
		if timedOut {
			return native.Error
		}
	}

	if fail {
		return native.Error
	}
	if len(out) < pixels {
		return native.ErrorInsufficientStorage
	}

	for i := 0; i < pixels; i++ {
		v := 800 + integration*0.5 + rand.NormFloat64()*4
		if laser {
			v += gain * integration * 20 * math.Exp(-math.Pow(float64(i-pixels/3)/12, 2))
			v += gain * integration * 8 * math.Exp(-math.Pow(float64(i-2*pixels/3)/20, 2))
		}
		out[i] = v
	}
	return native.Success
}

// ---- settings ----

func (l *Library) set(spec int32, apply func(u *unit) int32) int32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	u := l.unitLocked(spec)
	if u == nil {
		return native.ErrorInvalidSpectrometer
	}
	return apply(u)
}

func (l *Library) getInt(spec int32, fail int32, read func(u *unit) int32) int32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	u := l.unitLocked(spec)
	if u == nil {
		return fail
	}
	return read(u)
}

func (l *Library) getFloat(spec int32, read func(u *unit) float32) float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	u := l.unitLocked(spec)
	if u == nil {
		return native.ValueError
	}
	return read(u)
}

func (l *Library) SetIntegrationTimeMS(spec int32, ms uint32) int32 {
	return l.set(spec, func(u *unit) int32 {
		if ms == 0 {
			return native.Error
		}
		u.integrationMS = ms
		return native.Success
	})
}

func (l *Library) GetIntegrationTimeMS(spec int32) int32 {
	return l.getInt(spec, native.Error, func(u *unit) int32 { return int32(u.integrationMS) })
}

func (l *Library) SetLaserEnable(spec int32, v int32) int32 {
	return l.set(spec, func(u *unit) int32 {
		if u.ExcitationNM <= 0 {
			return native.ErrorNoLaser
		}
		u.laser = v != 0
		return native.Success
	})
}

func (l *Library) GetLaserEnable(spec int32) int32 {
	return l.getInt(spec, native.Error, func(u *unit) int32 { return boolInt(u.laser) })
}

func (l *Library) SetDetectorTECEnable(spec int32, v int32) int32 {
	return l.set(spec, func(u *unit) int32 { u.tecEnable = v != 0; return native.Success })
}

func (l *Library) GetDetectorTECEnable(spec int32) int32 {
	return l.getInt(spec, native.Error, func(u *unit) int32 { return boolInt(u.tecEnable) })
}

func (l *Library) SetDetectorTECSetpointDegC(spec int32, v int32) int32 {
	return l.set(spec, func(u *unit) int32 { u.tecSetpoint = v; return native.Success })
}

func (l *Library) GetDetectorTECSetpointDegC(spec int32) float32 {
	return l.getFloat(spec, func(u *unit) float32 { return float32(u.tecSetpoint) })
}

func (l *Library) SetDetectorGain(spec int32, v float32) int32 {
	return l.set(spec, func(u *unit) int32 { u.gain = v; return native.Success })
}

func (l *Library) GetDetectorGain(spec int32) float32 {
	return l.getFloat(spec, func(u *unit) float32 { return u.gain })
}

func (l *Library) SetDetectorGainOdd(spec int32, v float32) int32 {
	return l.set(spec, func(u *unit) int32 { u.gainOdd = v; return native.Success })
}

func (l *Library) GetDetectorGainOdd(spec int32) float32 {
	return l.getFloat(spec, func(u *unit) float32 { return u.gainOdd })
}

func (l *Library) SetDetectorOffset(spec int32, v int16) int32 {
	return l.set(spec, func(u *unit) int32 { u.offset = v; return native.Success })
}

func (l *Library) GetDetectorOffset(spec int32) int32 {
	return l.getInt(spec, native.ValueError, func(u *unit) int32 { return int32(u.offset) })
}

func (l *Library) SetDetectorOffsetOdd(spec int32, v int16) int32 {
	return l.set(spec, func(u *unit) int32 { u.offsetOdd = v; return native.Success })
}

func (l *Library) GetDetectorOffsetOdd(spec int32) int32 {
	return l.getInt(spec, native.ValueError, func(u *unit) int32 { return int32(u.offsetOdd) })
}

func (l *Library) SetHighGainModeEnable(spec int32, v int32) int32 {
	return l.set(spec, func(u *unit) int32 { u.highGain = v != 0; return native.Success })
}

func (l *Library) GetHighGainModeEnable(spec int32) int32 {
	return l.getInt(spec, native.Error, func(u *unit) int32 { return boolInt(u.highGain) })
}

func (l *Library) SetMaxTimeoutMS(spec int32, ms int32) int32 {
	return l.set(spec, func(u *unit) int32 {
		if ms <= 0 {
			return native.Error
		}
		u.maxTimeoutMS = ms
		return native.Success
	})
}

func (l *Library) GetMaxTimeoutMS(spec int32) int32 {
	return l.getInt(spec, native.Error, func(u *unit) int32 { return u.maxTimeoutMS })
}

// CancelOperation aborts a read currently waiting in GetSpectrum.
func (l *Library) CancelOperation(spec int32) int32 {
	l.CancelCalls.Add(1)

	l.mu.Lock()
	defer l.mu.Unlock()
	u := l.unitLocked(spec)
	if u == nil {
		return native.ErrorInvalidSpectrometer
	}
	close(u.cancel)
	u.cancel = make(chan struct{})
	return native.Success
}

func (l *Library) GetDetectorTemperatureDegC(spec int32) float32 {
	return l.getFloat(spec, func(u *unit) float32 {
		base := float32(22)
		if u.tecEnable {
			base = float32(u.tecSetpoint)
		}
		return base + float32(rand.NormFloat64()*0.05)
	})
}

// ---- helpers ----

func newUnit(d Device) *unit {
	u := &unit{
		Device:        d,
		open:          true,
		integrationMS: 100,
		tecSetpoint:   10,
		gain:          1.9,
		gainOdd:       1.9,
		maxTimeoutMS:  10000,
		cancel:        make(chan struct{}),
	}

	u.fields = [][2]string{
		{"model", d.Model},
		{"serialNumber", d.Serial},
		{"excitationNM", fmt.Sprintf("%.2f", d.ExcitationNM)},
		{"activePixelsHoriz", fmt.Sprintf("%d", d.Pixels)},
		{"detectorName", "S11510"},
		{"hasCooling", "true"},
		{"hasLaser", fmt.Sprintf("%t", d.ExcitationNM > 0)},
		{"wavecalCoeffs[0]", fmt.Sprintf("%e", wavecal[0])},
		{"wavecalCoeffs[1]", fmt.Sprintf("%e", wavecal[1])},
		{"wavecalCoeffs[2]", fmt.Sprintf("%e", wavecal[2])},
		{"calibrationBy", "SIM"},
		{"userData", "00000000000000000000000000000000000000000000000000000000000000"},
	}

	u.pages = make([][]byte, EEPROMPages)
	for p := range u.pages {
		page := make([]byte, EEPROMPageSize)
		for i := range page {
			page[i] = byte(p*EEPROMPageSize + i)
		}
		u.pages[p] = page
	}
	copy(u.pages[0][0:16], d.Model)
	copy(u.pages[0][16:32], d.Serial)

	return u
}

var wavecal = [3]float64{780.0, 0.21, -1.2e-5}

func wavelength(i int) float64 {
	x := float64(i)
	return wavecal[0] + wavecal[1]*x + wavecal[2]*x*x
}

// exportString mirrors the driver: zero the buffer, copy, fail when it does not fit.
func exportString(s string, buf []byte) int32 {
	for i := range buf {
		buf[i] = 0
	}
	if len(s) > len(buf) {
		return native.ErrorInsufficientStorage
	}
	copy(buf, s)
	return native.Success
}

func trimNUL(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

var _ native.Library = (*Library)(nil)
