// internal/gateway/gateway.go
package gateway

import (
	"github.com/tamzrod/spectro-coordinator/internal/native"
)

// Buffer sizes per known field. Strings reserve one byte for the terminator.
const (
	SerialNumberLen   = 16 + 1
	ModelLen          = 32 + 1
	VersionLen        = 16
	LibraryVersionLen = 16
	FieldLen          = 256 // largest known EEPROM field
	EEPROMPageSize    = 64
)

const libraryWide = -1

// Gateway is the only code allowed to cross into the native driver.
// Every call gets a zeroed buffer of an explicit size and a checked result.
// It holds no state of its own.
type Gateway struct {
	lib native.Library
}

// New wraps a driver library.
func New(lib native.Library) *Gateway {
	return &Gateway{lib: lib}
}

// ---- call helpers ----

func check(op string, index int, status int32) error {
	if status != native.Success {
		return fail(op, index, status)
	}
	return nil
}

// readString zero-fills a buffer of size bytes, calls, and decodes on success.
func readString(op string, index, size int, call func(buf []byte) int32) (string, error) {
	buf := make([]byte, size)
	if err := check(op, index, call(buf)); err != nil {
		return "", err
	}
	return decodeString(buf), nil
}

// readArray preallocates exactly n values. On failure the buffer is
// discarded, never partially returned.
func readArray(op string, index, n int, call func(out []float64) int32) ([]float64, error) {
	if n <= 0 {
		return nil, fail(op, index, native.ErrorInsufficientStorage)
	}
	out := make([]float64, n)
	if err := check(op, index, call(out)); err != nil {
		return nil, err
	}
	return out, nil
}

func unsignedValue(op string, index int, v int32) (int, error) {
	if v < 0 {
		return 0, fail(op, index, v)
	}
	return int(v), nil
}

func signedValue(op string, index int, v int32) (int, error) {
	if v == native.ValueError {
		return 0, fail(op, index, v)
	}
	return int(v), nil
}

func floatValue(op string, index int, v float32) (float64, error) {
	if v == native.ValueError {
		return 0, fail(op, index, native.ValueError)
	}
	return float64(v), nil
}

func boolValue(op string, index int, v int32) (bool, error) {
	if v < 0 {
		return false, fail(op, index, v)
	}
	return v != 0, nil
}

func flag(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// ---- library-wide ----

func (g *Gateway) LibraryVersion() (string, error) {
	return readString("wp_get_library_version", libraryWide, LibraryVersionLen, g.lib.GetLibraryVersion)
}

func (g *Gateway) SetLogfilePath(path string) error {
	return check("wp_set_logfile_path", libraryWide, g.lib.SetLogfilePath(encodeString(path)))
}

func (g *Gateway) SetLogLevel(level int) error {
	return check("wp_set_log_level", libraryWide, g.lib.SetLogLevel(int32(level)))
}

// LogDebug injects a line into the driver's own log.
func (g *Gateway) LogDebug(msg string) error {
	return check("wp_log_debug", libraryWide, g.lib.LogDebug(encodeString(msg)))
}

// OpenAll opens every enumerated spectrometer and returns how many the
// driver reported.
func (g *Gateway) OpenAll() (int, error) {
	return unsignedValue("wp_open_all_spectrometers", libraryWide, g.lib.OpenAllSpectrometers())
}

// SpectrometerCount re-queries the enumerated count without opening anything.
func (g *Gateway) SpectrometerCount() (int, error) {
	return unsignedValue("wp_get_number_of_spectrometers", libraryWide, g.lib.GetNumberOfSpectrometers())
}

func (g *Gateway) CloseAll() error {
	return check("wp_close_all_spectrometers", libraryWide, g.lib.CloseAllSpectrometers())
}

// ---- identity ----

func (g *Gateway) Close(index int) error {
	return check("wp_close_spectrometer", index, g.lib.CloseSpectrometer(int32(index)))
}

// Pixels returns the pixel count; 0 is returned as-is for the caller to reject.
func (g *Gateway) Pixels(index int) (int, error) {
	return unsignedValue("wp_get_pixels", index, g.lib.GetPixels(int32(index)))
}

func (g *Gateway) Model(index int) (string, error) {
	return readString("wp_get_model", index, ModelLen, func(buf []byte) int32 {
		return g.lib.GetModel(int32(index), buf)
	})
}

func (g *Gateway) SerialNumber(index int) (string, error) {
	return readString("wp_get_serial_number", index, SerialNumberLen, func(buf []byte) int32 {
		return g.lib.GetSerialNumber(int32(index), buf)
	})
}

func (g *Gateway) FirmwareVersion(index int) (string, error) {
	return readString("wp_get_firmware_version", index, VersionLen, func(buf []byte) int32 {
		return g.lib.GetFirmwareVersion(int32(index), buf)
	})
}

func (g *Gateway) FPGAVersion(index int) (string, error) {
	return readString("wp_get_fpga_version", index, VersionLen, func(buf []byte) int32 {
		return g.lib.GetFPGAVersion(int32(index), buf)
	})
}

// ---- EEPROM ----

func (g *Gateway) EEPROMFieldCount(index int) (int, error) {
	return unsignedValue("wp_get_eeprom_field_count", index, g.lib.GetEEPROMFieldCount(int32(index)))
}

// EEPROMFieldNames lists the names of count EEPROM fields in driver order.
func (g *Gateway) EEPROMFieldNames(index, count int) ([]string, error) {
	if count <= 0 {
		return nil, nil
	}
	names := make([]uintptr, count)
	values := make([]uintptr, count)
	if err := check("wp_get_eeprom", index, g.lib.GetEEPROM(int32(index), names, values)); err != nil {
		return nil, err
	}

	out := make([]string, 0, count)
	for _, p := range names {
		if p == 0 {
			continue
		}
		out = append(out, decodeString(g.lib.CString(p, FieldLen)))
	}
	return out, nil
}

// EEPROMField reads one field by name.
func (g *Gateway) EEPROMField(index int, name string) (string, error) {
	key := encodeString(name)
	return readString("wp_get_eeprom_field", index, FieldLen, func(buf []byte) int32 {
		return g.lib.GetEEPROMField(int32(index), key, buf)
	})
}

// EEPROMPage returns one raw 64-byte EEPROM page.
func (g *Gateway) EEPROMPage(index, page int) ([]byte, error) {
	buf := make([]byte, EEPROMPageSize)
	if err := check("wp_get_eeprom_page", index, g.lib.GetEEPROMPage(int32(index), int32(page), buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// ---- arrays ----

func (g *Gateway) Wavelengths(index, pixels int) ([]float64, error) {
	return readArray("wp_get_wavelengths", index, pixels, func(out []float64) int32 {
		return g.lib.GetWavelengths(int32(index), out)
	})
}

func (g *Gateway) Wavenumbers(index, pixels int) ([]float64, error) {
	return readArray("wp_get_wavenumbers", index, pixels, func(out []float64) int32 {
		return g.lib.GetWavenumbers(int32(index), out)
	})
}

// Spectrum blocks for one acquisition (up to the device's max timeout).
func (g *Gateway) Spectrum(index, pixels int) ([]float64, error) {
	return readArray("wp_get_spectrum", index, pixels, func(out []float64) int32 {
		return g.lib.GetSpectrum(int32(index), out)
	})
}

// ---- settings ----

func (g *Gateway) SetIntegrationTimeMS(index int, ms uint32) error {
	return check("wp_set_integration_time_ms", index, g.lib.SetIntegrationTimeMS(int32(index), ms))
}

func (g *Gateway) IntegrationTimeMS(index int) (int, error) {
	return unsignedValue("wp_get_integration_time_ms", index, g.lib.GetIntegrationTimeMS(int32(index)))
}

func (g *Gateway) SetLaserEnable(index int, on bool) error {
	return check("wp_set_laser_enable", index, g.lib.SetLaserEnable(int32(index), flag(on)))
}

func (g *Gateway) LaserEnable(index int) (bool, error) {
	return boolValue("wp_get_laser_enable", index, g.lib.GetLaserEnable(int32(index)))
}

func (g *Gateway) SetDetectorTECEnable(index int, on bool) error {
	return check("wp_set_detector_tec_enable", index, g.lib.SetDetectorTECEnable(int32(index), flag(on)))
}

func (g *Gateway) DetectorTECEnable(index int) (bool, error) {
	return boolValue("wp_get_detector_tec_enable", index, g.lib.GetDetectorTECEnable(int32(index)))
}

func (g *Gateway) SetDetectorTECSetpointDegC(index int, degC int32) error {
	return check("wp_set_detector_tec_setpoint_deg_c", index, g.lib.SetDetectorTECSetpointDegC(int32(index), degC))
}

func (g *Gateway) DetectorTECSetpointDegC(index int) (float64, error) {
	return floatValue("wp_get_detector_tec_setpoint_deg_c", index, g.lib.GetDetectorTECSetpointDegC(int32(index)))
}

func (g *Gateway) SetDetectorGain(index int, v float32) error {
	return check("wp_set_detector_gain", index, g.lib.SetDetectorGain(int32(index), v))
}

func (g *Gateway) DetectorGain(index int) (float64, error) {
	return floatValue("wp_get_detector_gain", index, g.lib.GetDetectorGain(int32(index)))
}

func (g *Gateway) SetDetectorGainOdd(index int, v float32) error {
	return check("wp_set_detector_gain_odd", index, g.lib.SetDetectorGainOdd(int32(index), v))
}

func (g *Gateway) DetectorGainOdd(index int) (float64, error) {
	return floatValue("wp_get_detector_gain_odd", index, g.lib.GetDetectorGainOdd(int32(index)))
}

func (g *Gateway) SetDetectorOffset(index int, v int16) error {
	return check("wp_set_detector_offset", index, g.lib.SetDetectorOffset(int32(index), v))
}

func (g *Gateway) DetectorOffset(index int) (int, error) {
	return signedValue("wp_get_detector_offset", index, g.lib.GetDetectorOffset(int32(index)))
}

func (g *Gateway) SetDetectorOffsetOdd(index int, v int16) error {
	return check("wp_set_detector_offset_odd", index, g.lib.SetDetectorOffsetOdd(int32(index), v))
}

func (g *Gateway) DetectorOffsetOdd(index int) (int, error) {
	return signedValue("wp_get_detector_offset_odd", index, g.lib.GetDetectorOffsetOdd(int32(index)))
}

func (g *Gateway) SetHighGainModeEnable(index int, on bool) error {
	return check("wp_set_high_gain_mode_enable", index, g.lib.SetHighGainModeEnable(int32(index), flag(on)))
}

func (g *Gateway) HighGainModeEnable(index int) (bool, error) {
	return boolValue("wp_get_high_gain_mode_enable", index, g.lib.GetHighGainModeEnable(int32(index)))
}

func (g *Gateway) SetMaxTimeoutMS(index int, ms int32) error {
	return check("wp_set_max_timeout_ms", index, g.lib.SetMaxTimeoutMS(int32(index), ms))
}

func (g *Gateway) MaxTimeoutMS(index int) (int, error) {
	return unsignedValue("wp_get_max_timeout_ms", index, g.lib.GetMaxTimeoutMS(int32(index)))
}

// CancelOperation requests abort of an in-flight call on index.
func (g *Gateway) CancelOperation(index int) error {
	return check("wp_cancel_operation", index, g.lib.CancelOperation(int32(index)))
}

func (g *Gateway) DetectorTemperatureDegC(index int) (float64, error) {
	return floatValue("wp_get_detector_temperature_deg_c", index, g.lib.GetDetectorTemperatureDegC(int32(index)))
}
