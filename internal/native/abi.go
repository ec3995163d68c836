// internal/native/abi.go
package native

// Status codes returned by every wp_* entry point unless the call returns a
// value directly.
const (
	Success                  int32 = 0
	Error                    int32 = -1
	ErrorInvalidSpectrometer int32 = -2
	ErrorInsufficientStorage int32 = -3
	ErrorNoLaser             int32 = -4
)

// ValueError is what signed getters (offsets, setpoint, gains, temperature)
// return on failure.
const ValueError = -999

// Log levels understood by wp_set_log_level.
const (
	LogLevelDebug int32 = 0
	LogLevelInfo  int32 = 1
)

// Library is the flat C call surface of the spectrometer driver.
//
// Buffers are owned by the caller and passed with their exact length; the
// implementation must never write past len(buf). Nothing above this
// interface may assume how the calls are carried out (dlopen, simulation).
//
// Getters that return a value instead of a status use the conventions
// documented on each method.
type Library interface {
	// ---- library-wide ----

	SetLogfilePath(path []byte) int32
	SetLogLevel(level int32) int32
	LogDebug(msg []byte) int32
	GetLibraryVersion(buf []byte) int32

	// ---- lifecycle ----

	// OpenAllSpectrometers returns the number of spectrometers opened.
	OpenAllSpectrometers() int32
	GetNumberOfSpectrometers() int32
	CloseAllSpectrometers() int32
	CloseSpectrometer(spec int32) int32

	// ---- identity / EEPROM ----

	// GetPixels returns the pixel count (<= 0 on error).
	GetPixels(spec int32) int32
	GetModel(spec int32, buf []byte) int32
	GetSerialNumber(spec int32, buf []byte) int32
	GetFirmwareVersion(spec int32, buf []byte) int32
	GetFPGAVersion(spec int32, buf []byte) int32

	// GetEEPROMFieldCount returns the number of EEPROM fields (negative on error).
	GetEEPROMFieldCount(spec int32) int32

	// GetEEPROM fills names and values with pointers to NUL-terminated
	// strings owned by the native side. Use CString to read them.
	GetEEPROM(spec int32, names, values []uintptr) int32
	GetEEPROMField(spec int32, name []byte, value []byte) int32
	GetEEPROMPage(spec int32, page int32, buf []byte) int32

	// CString copies at most max bytes starting at a native string pointer
	// returned by GetEEPROM. The copy stops after the first NUL.
	CString(p uintptr, max int) []byte

	// ---- arrays ----

	GetWavelengths(spec int32, out []float64) int32
	GetWavenumbers(spec int32, out []float64) int32
	GetSpectrum(spec int32, out []float64) int32

	// ---- settings ----
	// Unsigned-range getters return a negative value on error.
	// Signed getters return ValueError on error.

	SetIntegrationTimeMS(spec int32, ms uint32) int32
	GetIntegrationTimeMS(spec int32) int32
	SetLaserEnable(spec int32, value int32) int32
	GetLaserEnable(spec int32) int32
	SetDetectorTECEnable(spec int32, value int32) int32
	GetDetectorTECEnable(spec int32) int32
	SetDetectorTECSetpointDegC(spec int32, value int32) int32
	GetDetectorTECSetpointDegC(spec int32) float32
	SetDetectorGain(spec int32, value float32) int32
	GetDetectorGain(spec int32) float32
	SetDetectorGainOdd(spec int32, value float32) int32
	GetDetectorGainOdd(spec int32) float32
	SetDetectorOffset(spec int32, value int16) int32
	GetDetectorOffset(spec int32) int32
	SetDetectorOffsetOdd(spec int32, value int16) int32
	GetDetectorOffsetOdd(spec int32) int32
	SetHighGainModeEnable(spec int32, value int32) int32
	GetHighGainModeEnable(spec int32) int32
	SetMaxTimeoutMS(spec int32, ms int32) int32
	GetMaxTimeoutMS(spec int32) int32

	// CancelOperation asks the driver to abort an in-flight blocking call
	// on spec. It must be safe to call concurrently with that call.
	CancelOperation(spec int32) int32

	GetDetectorTemperatureDegC(spec int32) float32
}
