//go:build darwin || linux

// internal/native/dynamic.go
package native

import (
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"
)

// DefaultLibraryName is the shared object name searched when no path is configured.
const DefaultLibraryName = "libwasatchvcpp.so"

// Dynamic binds the driver's exported C symbols at runtime.
// No cgo: symbols are resolved with dlopen/dlsym through purego.
type Dynamic struct {
	handle  uintptr
	missing []string

	setLogfilePath           func(path *byte) int32
	setLogLevel              func(level int32) int32
	logDebug                 func(msg *byte) int32
	getLibraryVersion        func(buf *byte, n int32) int32
	openAllSpectrometers     func() int32
	getNumberOfSpectrometers func() int32
	closeAllSpectrometers    func() int32
	closeSpectrometer        func(spec int32) int32
	getPixels                func(spec int32) int32
	getModel                 func(spec int32, buf *byte, n int32) int32
	getSerialNumber          func(spec int32, buf *byte, n int32) int32
	getFirmwareVersion       func(spec int32, buf *byte, n int32) int32
	getFPGAVersion           func(spec int32, buf *byte, n int32) int32
	getEEPROMFieldCount      func(spec int32) int32
	getEEPROM                func(spec int32, names, values *uintptr, n int32) int32
	getEEPROMField           func(spec int32, name *byte, value *byte, n int32) int32
	getEEPROMPage            func(spec int32, page int32, buf *byte, n int32) int32
	getWavelengths           func(spec int32, out *float64, n int32) int32
	getWavenumbers           func(spec int32, out *float64, n int32) int32
	getSpectrum              func(spec int32, out *float64, n int32) int32
	setIntegrationTimeMS     func(spec int32, ms uint) int32 // unsigned long
	getIntegrationTimeMS     func(spec int32) int32
	setLaserEnable           func(spec int32, v int32) int32
	getLaserEnable           func(spec int32) int32
	setDetectorTECEnable     func(spec int32, v int32) int32
	getDetectorTECEnable     func(spec int32) int32
	setDetectorTECSetpoint   func(spec int32, v int32) int32
	getDetectorTECSetpoint   func(spec int32) float32
	setDetectorGain          func(spec int32, v float32) int32
	getDetectorGain          func(spec int32) float32
	setDetectorGainOdd       func(spec int32, v float32) int32
	getDetectorGainOdd       func(spec int32) float32
	setDetectorOffset        func(spec int32, v int16) int32
	getDetectorOffset        func(spec int32) int32
	setDetectorOffsetOdd     func(spec int32, v int16) int32
	getDetectorOffsetOdd     func(spec int32) int32
	setHighGainModeEnable    func(spec int32, v int32) int32
	getHighGainModeEnable    func(spec int32) int32
	setMaxTimeoutMS          func(spec int32, ms int32) int32
	getMaxTimeoutMS          func(spec int32) int32
	cancelOperation          func(spec int32) int32
	getDetectorTemperature   func(spec int32) float32
}

// Open loads the driver shared library and binds its symbols. A missing
// required symbol fails the load; a missing optional one is replaced by a
// stub that reports failure (see Missing).
func Open(path string) (*Dynamic, error) {
	if path == "" {
		path = DefaultLibraryName
	}

	h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLibraryNotFound, path, err)
	}

	d := &Dynamic{handle: h}
	lookup := func(name string) (uintptr, error) { return purego.Dlsym(h, name) }
	if err := d.resolve(lookup, purego.RegisterFunc); err != nil {
		_ = purego.Dlclose(h)
		return nil, err
	}
	return d, nil
}

// Missing lists the optional entry points the loaded driver lacks.
func (d *Dynamic) Missing() []string { return d.missing }

// Close unloads the library. Device handles must be closed first.
func (d *Dynamic) Close() error {
	if d == nil || d.handle == 0 {
		return nil
	}
	err := purego.Dlclose(d.handle)
	d.handle = 0
	return err
}

// ---- symbol table ----

// binding ties one function field to the exported names that may carry it.
// The first name found wins. A nil stub marks the symbol as required.
type binding struct {
	names []string
	fptr  any
	stub  func()
}

func (d *Dynamic) resolve(lookup func(string) (uintptr, error), register func(fptr any, sym uintptr)) error {
	for _, b := range d.bindings() {
		found := false
		for _, name := range b.names {
			sym, err := lookup(name)
			if err != nil || sym == 0 {
				continue
			}
			register(b.fptr, sym)
			found = true
			break
		}
		if found {
			continue
		}
		if b.stub == nil {
			return fmt.Errorf("%w: %s", ErrSymbolMissing, b.names[0])
		}
		b.stub()
		d.missing = append(d.missing, b.names[0])
	}
	return nil
}

func req(fptr any, names ...string) binding { return binding{names: names, fptr: fptr} }

func opt(fptr any, stub func(), names ...string) binding {
	return binding{names: names, fptr: fptr, stub: stub}
}

func failInt(int32) int32     { return Error }
func failValue(int32) int32   { return ValueError }
func failFloat(int32) float32 { return ValueError }

func (d *Dynamic) bindings() []binding {
	return []binding{
		req(&d.setLogfilePath, "wp_set_logfile_path"),
		opt(&d.setLogLevel, func() { d.setLogLevel = failInt }, "wp_set_log_level"),
		opt(&d.logDebug, func() { d.logDebug = func(*byte) int32 { return Error } }, "wp_log_debug"),
		req(&d.getLibraryVersion, "wp_get_library_version"),
		req(&d.openAllSpectrometers, "wp_open_all_spectrometers"),
		req(&d.getNumberOfSpectrometers, "wp_get_number_of_spectrometers"),
		req(&d.closeAllSpectrometers, "wp_close_all_spectrometers"),
		req(&d.closeSpectrometer, "wp_close_spectrometer"),
		req(&d.getPixels, "wp_get_pixels"),
		req(&d.getModel, "wp_get_model"),
		req(&d.getSerialNumber, "wp_get_serial_number"),
		req(&d.getFirmwareVersion, "wp_get_firmware_version"),
		req(&d.getFPGAVersion, "wp_get_fpga_version"),
		req(&d.getEEPROMFieldCount, "wp_get_eeprom_field_count"),
		req(&d.getEEPROM, "wp_get_eeprom"),
		req(&d.getEEPROMField, "wp_get_eeprom_field"),
		opt(&d.getEEPROMPage, func() {
			d.getEEPROMPage = func(int32, int32, *byte, int32) int32 { return Error }
		}, "wp_get_eeprom_page"),
		req(&d.getWavelengths, "wp_get_wavelengths"),
		req(&d.getWavenumbers, "wp_get_wavenumbers"),
		req(&d.getSpectrum, "wp_get_spectrum"),
		req(&d.setIntegrationTimeMS, "wp_set_integration_time_ms"),
		opt(&d.getIntegrationTimeMS, func() { d.getIntegrationTimeMS = failInt }, "wp_get_integration_time_ms"),
		req(&d.setLaserEnable, "wp_set_laser_enable"),
		opt(&d.getLaserEnable, func() { d.getLaserEnable = failInt }, "wp_get_laser_enable"),
		req(&d.setDetectorTECEnable, "wp_set_detector_tec_enable", "wp_set_tec_enable"),
		opt(&d.getDetectorTECEnable, func() { d.getDetectorTECEnable = failInt },
			"wp_get_detector_tec_enable", "wp_get_tec_enable"),
		req(&d.setDetectorTECSetpoint, "wp_set_detector_tec_setpoint_deg_c"),
		opt(&d.getDetectorTECSetpoint, func() { d.getDetectorTECSetpoint = failFloat },
			"wp_get_detector_tec_setpoint_deg_c"),
		req(&d.setDetectorGain, "wp_set_detector_gain"),
		opt(&d.getDetectorGain, func() { d.getDetectorGain = failFloat }, "wp_get_detector_gain"),
		req(&d.setDetectorGainOdd, "wp_set_detector_gain_odd"),
		opt(&d.getDetectorGainOdd, func() { d.getDetectorGainOdd = failFloat }, "wp_get_detector_gain_odd"),
		req(&d.setDetectorOffset, "wp_set_detector_offset"),
		opt(&d.getDetectorOffset, func() { d.getDetectorOffset = failValue }, "wp_get_detector_offset"),
		req(&d.setDetectorOffsetOdd, "wp_set_detector_offset_odd"),
		opt(&d.getDetectorOffsetOdd, func() { d.getDetectorOffsetOdd = failValue }, "wp_get_detector_offset_odd"),
		req(&d.setHighGainModeEnable, "wp_set_high_gain_mode_enable", "wp_set_high_gain_mode"),
		opt(&d.getHighGainModeEnable, func() { d.getHighGainModeEnable = failInt },
			"wp_get_high_gain_mode_enable", "wp_get_high_gain_mode"),
		opt(&d.setMaxTimeoutMS, func() {
			d.setMaxTimeoutMS = func(int32, int32) int32 { return Error }
		}, "wp_set_max_timeout_ms"),
		opt(&d.getMaxTimeoutMS, func() { d.getMaxTimeoutMS = failInt }, "wp_get_max_timeout_ms"),
		opt(&d.cancelOperation, func() { d.cancelOperation = failInt }, "wp_cancel_operation"),
		req(&d.getDetectorTemperature, "wp_get_detector_temperature_deg_c"),
	}
}

// ---- pointer helpers ----

func bytePtr(b []byte) *byte {
	if len(b) == 0 {
		return nil
	}
	return &b[0]
}

func floatPtr(f []float64) *float64 {
	if len(f) == 0 {
		return nil
	}
	return &f[0]
}

func uintptrPtr(u []uintptr) *uintptr {
	if len(u) == 0 {
		return nil
	}
	return &u[0]
}

// ---- Library ----

func (d *Dynamic) SetLogfilePath(path []byte) int32 {
	return d.setLogfilePath(bytePtr(path))
}

func (d *Dynamic) SetLogLevel(level int32) int32 {
	return d.setLogLevel(level)
}

func (d *Dynamic) LogDebug(msg []byte) int32 {
	return d.logDebug(bytePtr(msg))
}

func (d *Dynamic) GetLibraryVersion(buf []byte) int32 {
	return d.getLibraryVersion(bytePtr(buf), int32(len(buf)))
}

func (d *Dynamic) OpenAllSpectrometers() int32 {
	return d.openAllSpectrometers()
}

func (d *Dynamic) GetNumberOfSpectrometers() int32 {
	return d.getNumberOfSpectrometers()
}

func (d *Dynamic) CloseAllSpectrometers() int32 {
	return d.closeAllSpectrometers()
}

func (d *Dynamic) CloseSpectrometer(spec int32) int32 {
	return d.closeSpectrometer(spec)
}

func (d *Dynamic) GetPixels(spec int32) int32 {
	return d.getPixels(spec)
}

func (d *Dynamic) GetModel(spec int32, buf []byte) int32 {
	return d.getModel(spec, bytePtr(buf), int32(len(buf)))
}

func (d *Dynamic) GetSerialNumber(spec int32, buf []byte) int32 {
	return d.getSerialNumber(spec, bytePtr(buf), int32(len(buf)))
}

func (d *Dynamic) GetFirmwareVersion(spec int32, buf []byte) int32 {
	return d.getFirmwareVersion(spec, bytePtr(buf), int32(len(buf)))
}

func (d *Dynamic) GetFPGAVersion(spec int32, buf []byte) int32 {
	return d.getFPGAVersion(spec, bytePtr(buf), int32(len(buf)))
}

func (d *Dynamic) GetEEPROMFieldCount(spec int32) int32 {
	return d.getEEPROMFieldCount(spec)
}

func (d *Dynamic) GetEEPROM(spec int32, names, values []uintptr) int32 {
	n := min(len(names), len(values))
	return d.getEEPROM(spec, uintptrPtr(names), uintptrPtr(values), int32(n))
}

func (d *Dynamic) GetEEPROMField(spec int32, name []byte, value []byte) int32 {
	return d.getEEPROMField(spec, bytePtr(name), bytePtr(value), int32(len(value)))
}

func (d *Dynamic) GetEEPROMPage(spec int32, page int32, buf []byte) int32 {
	return d.getEEPROMPage(spec, page, bytePtr(buf), int32(len(buf)))
}

// CString reads a NUL-terminated string owned by the driver.
func (d *Dynamic) CString(p uintptr, max int) []byte {
	if p == 0 || max <= 0 {
		return nil
	}
	// reinterpret the address without a uintptr->Pointer conversion
	base := *(*unsafe.Pointer)(unsafe.Pointer(&p))
	src := unsafe.Slice((*byte)(base), max)

	out := make([]byte, 0, 32)
	for _, b := range src {
		if b == 0 {
			break
		}
		out = append(out, b)
	}
	return out
}

func (d *Dynamic) GetWavelengths(spec int32, out []float64) int32 {
	return d.getWavelengths(spec, floatPtr(out), int32(len(out)))
}

func (d *Dynamic) GetWavenumbers(spec int32, out []float64) int32 {
	return d.getWavenumbers(spec, floatPtr(out), int32(len(out)))
}

func (d *Dynamic) GetSpectrum(spec int32, out []float64) int32 {
	return d.getSpectrum(spec, floatPtr(out), int32(len(out)))
}

func (d *Dynamic) SetIntegrationTimeMS(spec int32, ms uint32) int32 {
	return d.setIntegrationTimeMS(spec, uint(ms))
}

func (d *Dynamic) GetIntegrationTimeMS(spec int32) int32 {
	return d.getIntegrationTimeMS(spec)
}

func (d *Dynamic) SetLaserEnable(spec int32, v int32) int32 {
	return d.setLaserEnable(spec, v)
}

func (d *Dynamic) GetLaserEnable(spec int32) int32 {
	return d.getLaserEnable(spec)
}

func (d *Dynamic) SetDetectorTECEnable(spec int32, v int32) int32 {
	return d.setDetectorTECEnable(spec, v)
}

func (d *Dynamic) GetDetectorTECEnable(spec int32) int32 {
	return d.getDetectorTECEnable(spec)
}

func (d *Dynamic) SetDetectorTECSetpointDegC(spec int32, v int32) int32 {
	return d.setDetectorTECSetpoint(spec, v)
}

func (d *Dynamic) GetDetectorTECSetpointDegC(spec int32) float32 {
	return d.getDetectorTECSetpoint(spec)
}

func (d *Dynamic) SetDetectorGain(spec int32, v float32) int32 {
	return d.setDetectorGain(spec, v)
}

func (d *Dynamic) GetDetectorGain(spec int32) float32 {
	return d.getDetectorGain(spec)
}

func (d *Dynamic) SetDetectorGainOdd(spec int32, v float32) int32 {
	return d.setDetectorGainOdd(spec, v)
}

func (d *Dynamic) GetDetectorGainOdd(spec int32) float32 {
	return d.getDetectorGainOdd(spec)
}

func (d *Dynamic) SetDetectorOffset(spec int32, v int16) int32 {
	return d.setDetectorOffset(spec, v)
}

func (d *Dynamic) GetDetectorOffset(spec int32) int32 {
	return d.getDetectorOffset(spec)
}

func (d *Dynamic) SetDetectorOffsetOdd(spec int32, v int16) int32 {
	return d.setDetectorOffsetOdd(spec, v)
}

func (d *Dynamic) GetDetectorOffsetOdd(spec int32) int32 {
	return d.getDetectorOffsetOdd(spec)
}

func (d *Dynamic) SetHighGainModeEnable(spec int32, v int32) int32 {
	return d.setHighGainModeEnable(spec, v)
}

func (d *Dynamic) GetHighGainModeEnable(spec int32) int32 {
	return d.getHighGainModeEnable(spec)
}

func (d *Dynamic) SetMaxTimeoutMS(spec int32, ms int32) int32 {
	return d.setMaxTimeoutMS(spec, ms)
}

func (d *Dynamic) GetMaxTimeoutMS(spec int32) int32 {
	return d.getMaxTimeoutMS(spec)
}

func (d *Dynamic) CancelOperation(spec int32) int32 {
	return d.cancelOperation(spec)
}

func (d *Dynamic) GetDetectorTemperatureDegC(spec int32) float32 {
	return d.getDetectorTemperature(spec)
}

var _ Library = (*Dynamic)(nil)
