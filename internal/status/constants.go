// internal/status/constants.go
package status

// Device status block layout constants.
// These values define the mirror protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerDevice is the fixed number of logical slots per spectrometer.
const SlotsPerDevice = 20

// ---- SLOT INDICES ----

// SlotHealthCode holds the acquisition health state.
const SlotHealthCode = 0

// SlotLastErrorCode holds |status| of the last failed native call.
const SlotLastErrorCode = 1

// SlotSecondsInError holds the duration (in seconds) the device has been in error.
const SlotSecondsInError = 2

// SlotTemperature holds the last detector temperature in centi-degrees C,
// two's complement.
const SlotTemperature = 3

// SlotFrameCount holds the delivered frame count modulo 65536.
const SlotFrameCount = 4

// LiveSlots is the number of leading slots rewritten on change.
const LiveSlots = 5

// ---- RESERVED RANGE ----

// Slots 5-10 are reserved.
const SlotReservedStart = 5
const SlotReservedEnd = 10

// ---- DEVICE NAME ----

// SlotDeviceNameStart is the first slot used for the device name
// (the spectrometer serial number). It always sits at the END of the block.
const SlotDeviceNameStart = 11

// SlotDeviceNameSlots is the number of slots reserved for the device name.
const SlotDeviceNameSlots = 8

// SlotDeviceNameEnd is the last slot used for the device name (inclusive).
const SlotDeviceNameEnd = SlotDeviceNameStart + SlotDeviceNameSlots - 1

// ---- LIMITS ----

// DeviceNameMaxChars is the maximum number of ASCII characters stored for device name.
const DeviceNameMaxChars = 16

// ---- HEALTH CODES ----

// HealthUnknown is the state before the first acquisition attempt.
const HealthUnknown uint16 = 0

// HealthOK means the last acquisition delivered a frame.
const HealthOK uint16 = 1

// HealthError means the last acquisition failed.
const HealthError uint16 = 2

// HealthStale means no acquisition has been attempted for a while.
const HealthStale uint16 = 3

// HealthDisabled means the device's worker is stopped.
const HealthDisabled uint16 = 4
