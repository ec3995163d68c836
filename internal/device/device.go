// internal/device/device.go
package device

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/tamzrod/spectro-coordinator/internal/eventlog"
	"github.com/tamzrod/spectro-coordinator/internal/gateway"
)

// ErrorString replaces identity strings the driver could not return.
const ErrorString = "ERROR"

// ReservedField is kept out of the metadata map (large raw hex) but stays
// individually queryable through EEPROMField.
const ReservedField = "userData"

// EEPROMPages is the number of 64-byte pages exposed by the driver.
const EEPROMPages = 8

var (
	ErrInvalidSetting = errors.New("invalid setting")
	ErrInvalidPage    = errors.New("invalid EEPROM page")
	ErrClosed         = errors.New("spectrometer closed")
)

// Spectrometer is the handle of one physical instrument.
//
// Identity, geometry, calibration and metadata are read once at
// construction and never change. Live settings go straight to the driver.
// Every native call routed through the handle holds its mutex, except
// CancelOperation, which must reach the driver while a read is in flight.
type Spectrometer struct {
	gw     *gateway.Gateway
	log    *eventlog.Log
	native int // driver enumeration index
	index  int // dense registry index

	mu     sync.Mutex
	closed bool
	once   sync.Once

	serial       string
	model        string
	firmware     string
	fpga         string
	pixels       int
	excitationNM float64
	wavelengths  []float64
	wavenumbers  []float64
	metadata     *Metadata
}

// New builds the handle for the driver's nativeIndex and assigns it the
// registry index. A handle with Pixels() <= 0 is not functional; its
// calibration and metadata are not read and the caller is expected to
// Close it.
func New(gw *gateway.Gateway, log *eventlog.Log, nativeIndex, index int) *Spectrometer {
	s := &Spectrometer{
		gw:       gw,
		log:      log,
		native:   nativeIndex,
		index:    index,
		metadata: newMetadata(),
	}

	px, err := gw.Pixels(nativeIndex)
	if err != nil {
		log.Errorf("spectrometer %d: pixels: %v", nativeIndex, err)
		px = 0
	}
	s.pixels = px

	s.serial = s.identity(gw.SerialNumber)
	s.model = s.identity(gw.Model)
	s.firmware = s.identity(gw.FirmwareVersion)
	s.fpga = s.identity(gw.FPGAVersion)

	if s.pixels <= 0 {
		return s
	}

	s.loadMetadata()
	s.loadCalibration()
	return s
}

func (s *Spectrometer) identity(read func(int) (string, error)) string {
	v, err := read(s.native)
	if err != nil {
		s.log.Errorf("spectrometer %d: %v", s.native, err)
		return ErrorString
	}
	return v
}

func (s *Spectrometer) loadMetadata() {
	count, err := s.gw.EEPROMFieldCount(s.native)
	if err != nil {
		s.log.Errorf("spectrometer %d: EEPROM field count: %v", s.native, err)
		return
	}

	names, err := s.gw.EEPROMFieldNames(s.native, count)
	if err != nil {
		s.log.Errorf("spectrometer %d: EEPROM field names: %v", s.native, err)
		return
	}

	for _, name := range names {
		if name == ReservedField {
			continue
		}
		v, err := s.gw.EEPROMField(s.native, name)
		if err != nil {
			s.log.Errorf("spectrometer %d: EEPROM field %s: %v", s.native, name, err)
			v = ErrorString
		}
		s.metadata.set(name, v)
	}

	if v, ok := s.metadata.Get("excitationNM"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			s.excitationNM = f
		}
	}
}

func (s *Spectrometer) loadCalibration() {
	wl, err := s.gw.Wavelengths(s.native, s.pixels)
	if err != nil {
		s.log.Errorf("spectrometer %d: wavelengths: %v", s.native, err)
	}
	s.wavelengths = wl

	if s.excitationNM <= 0 {
		return
	}
	wn, err := s.gw.Wavenumbers(s.native, s.pixels)
	if err != nil {
		s.log.Errorf("spectrometer %d: wavenumbers: %v", s.native, err)
	}
	s.wavenumbers = wn
}

// ---- identity ----

func (s *Spectrometer) Index() int              { return s.index }
func (s *Spectrometer) NativeIndex() int        { return s.native }
func (s *Spectrometer) SerialNumber() string    { return s.serial }
func (s *Spectrometer) Model() string           { return s.model }
func (s *Spectrometer) FirmwareVersion() string { return s.firmware }
func (s *Spectrometer) FPGAVersion() string     { return s.fpga }
func (s *Spectrometer) Pixels() int             { return s.pixels }
func (s *Spectrometer) ExcitationNM() float64   { return s.excitationNM }

// Wavelengths returns the wavelength axis in nm, or nil if it could not be read.
// The slice is shared; callers must not modify it.
func (s *Spectrometer) Wavelengths() []float64 { return s.wavelengths }

// Wavenumbers returns the Raman shift axis in 1/cm, or nil when the unit
// has no laser excitation.
func (s *Spectrometer) Wavenumbers() []float64 { return s.wavenumbers }

// Metadata returns the EEPROM field map read at construction.
func (s *Spectrometer) Metadata() *Metadata { return s.metadata }

// Describe renders the discovery banner.
func (s *Spectrometer) Describe() string {
	nm := ""
	if n := len(s.wavelengths); n > 0 {
		nm = fmt.Sprintf(" (%.2f, %.2fnm)", s.wavelengths[0], s.wavelengths[n-1])
	}
	cm := ""
	if n := len(s.wavenumbers); n > 0 {
		cm = fmt.Sprintf(" (%.2f, %.2fcm⁻¹)", s.wavenumbers[0], s.wavenumbers[n-1])
	}
	return fmt.Sprintf("index %d is %s %s with %d pixels%s%s firmware %s FPGA %s",
		s.index, s.model, s.serial, s.pixels, nm, cm, s.firmware, s.fpga)
}

// ---- native access ----

// call runs fn against the native index with the device lock held.
func call[T any](s *Spectrometer, fn func(native int) (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		var zero T
		return zero, ErrClosed
	}
	return fn(s.native)
}

func (s *Spectrometer) exec(fn func(native int) error) error {
	_, err := call(s, func(n int) (struct{}, error) { return struct{}{}, fn(n) })
	return err
}

// Spectrum acquires one frame of exactly Pixels() values. It blocks for up
// to the device's max timeout. On failure no partial data is returned.
func (s *Spectrometer) Spectrum() ([]float64, error) {
	return call(s, func(n int) ([]float64, error) { return s.gw.Spectrum(n, s.pixels) })
}

// CancelOperation asks the driver to abort an in-flight call. It does not
// take the device lock.
func (s *Spectrometer) CancelOperation() error {
	return s.gw.CancelOperation(s.native)
}

func (s *Spectrometer) DetectorTemperatureDegC() (float64, error) {
	return call(s, s.gw.DetectorTemperatureDegC)
}

// EEPROMPage returns one raw 64-byte page.
func (s *Spectrometer) EEPROMPage(page int) ([]byte, error) {
	if page < 0 || page >= EEPROMPages {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}
	return call(s, func(n int) ([]byte, error) { return s.gw.EEPROMPage(n, page) })
}

// EEPROMField queries one field directly, including ReservedField.
func (s *Spectrometer) EEPROMField(name string) (string, error) {
	return call(s, func(n int) (string, error) { return s.gw.EEPROMField(n, name) })
}

// ---- live settings ----

func (s *Spectrometer) IntegrationTimeMS() (int, error) {
	return call(s, s.gw.IntegrationTimeMS)
}

func (s *Spectrometer) SetIntegrationTimeMS(ms int) error {
	if ms < 1 || ms > math.MaxInt32 {
		return fmt.Errorf("%w: integration time %d ms", ErrInvalidSetting, ms)
	}
	return s.exec(func(n int) error { return s.gw.SetIntegrationTimeMS(n, uint32(ms)) })
}

func (s *Spectrometer) LaserEnable() (bool, error) {
	return call(s, s.gw.LaserEnable)
}

func (s *Spectrometer) SetLaserEnable(on bool) error {
	return s.exec(func(n int) error { return s.gw.SetLaserEnable(n, on) })
}

func (s *Spectrometer) DetectorTECEnable() (bool, error) {
	return call(s, s.gw.DetectorTECEnable)
}

func (s *Spectrometer) SetDetectorTECEnable(on bool) error {
	return s.exec(func(n int) error { return s.gw.SetDetectorTECEnable(n, on) })
}

func (s *Spectrometer) DetectorTECSetpointDegC() (float64, error) {
	return call(s, s.gw.DetectorTECSetpointDegC)
}

func (s *Spectrometer) SetDetectorTECSetpointDegC(degC int) error {
	if degC < math.MinInt32 || degC > math.MaxInt32 {
		return fmt.Errorf("%w: TEC setpoint %d degC", ErrInvalidSetting, degC)
	}
	return s.exec(func(n int) error { return s.gw.SetDetectorTECSetpointDegC(n, int32(degC)) })
}

func (s *Spectrometer) DetectorGain() (float64, error) {
	return call(s, s.gw.DetectorGain)
}

func (s *Spectrometer) SetDetectorGain(v float64) error {
	if err := checkGain(v); err != nil {
		return err
	}
	return s.exec(func(n int) error { return s.gw.SetDetectorGain(n, float32(v)) })
}

func (s *Spectrometer) DetectorGainOdd() (float64, error) {
	return call(s, s.gw.DetectorGainOdd)
}

func (s *Spectrometer) SetDetectorGainOdd(v float64) error {
	if err := checkGain(v); err != nil {
		return err
	}
	return s.exec(func(n int) error { return s.gw.SetDetectorGainOdd(n, float32(v)) })
}

func (s *Spectrometer) DetectorOffset() (int, error) {
	return call(s, s.gw.DetectorOffset)
}

func (s *Spectrometer) SetDetectorOffset(v int) error {
	if err := checkOffset(v); err != nil {
		return err
	}
	return s.exec(func(n int) error { return s.gw.SetDetectorOffset(n, int16(v)) })
}

func (s *Spectrometer) DetectorOffsetOdd() (int, error) {
	return call(s, s.gw.DetectorOffsetOdd)
}

func (s *Spectrometer) SetDetectorOffsetOdd(v int) error {
	if err := checkOffset(v); err != nil {
		return err
	}
	return s.exec(func(n int) error { return s.gw.SetDetectorOffsetOdd(n, int16(v)) })
}

func (s *Spectrometer) HighGainModeEnable() (bool, error) {
	return call(s, s.gw.HighGainModeEnable)
}

func (s *Spectrometer) SetHighGainModeEnable(on bool) error {
	return s.exec(func(n int) error { return s.gw.SetHighGainModeEnable(n, on) })
}

func (s *Spectrometer) MaxTimeoutMS() (int, error) {
	return call(s, s.gw.MaxTimeoutMS)
}

func (s *Spectrometer) SetMaxTimeoutMS(ms int) error {
	if ms < 1 || ms > math.MaxInt32 {
		return fmt.Errorf("%w: max timeout %d ms", ErrInvalidSetting, ms)
	}
	return s.exec(func(n int) error { return s.gw.SetMaxTimeoutMS(n, int32(ms)) })
}

func checkGain(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > math.MaxFloat32 {
		return fmt.Errorf("%w: gain %v", ErrInvalidSetting, v)
	}
	return nil
}

func checkOffset(v int) error {
	if v < math.MinInt16 || v > math.MaxInt16 {
		return fmt.Errorf("%w: offset %d", ErrInvalidSetting, v)
	}
	return nil
}

// ---- lifecycle ----

// Close closes this device in the driver. Only the first call has effect.
func (s *Spectrometer) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true
		err = s.gw.Close(s.native)
	})
	return err
}

// Release marks the handle closed after a driver-wide close, without
// issuing a per-device close.
func (s *Spectrometer) Release() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	})
}

// Closed reports whether Close or Release has run.
func (s *Spectrometer) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
