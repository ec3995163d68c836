package gateway

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/spectro-coordinator/internal/native"
	"github.com/tamzrod/spectro-coordinator/internal/native/sim"
)

func openSim(t *testing.T, devs ...sim.Device) (*Gateway, *sim.Library) {
	t.Helper()
	lib := sim.New(devs...)
	g := New(lib)
	n, err := g.OpenAll()
	require.NoError(t, err)
	require.Equal(t, len(devs), n)
	return g, lib
}

func testDevice() sim.Device {
	return sim.Device{
		Serial:       "WP-00561",
		Model:        "WP-785X-ILP",
		Pixels:       1024,
		Firmware:     "10.0.0.8",
		FPGA:         "026-007",
		ExcitationNM: 785,
	}
}

func TestDecodeString(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"nul terminated", []byte("ABC\x00\x00\x00"), "ABC"},
		{"garbage after nul ignored", []byte("AB\x00Z\xff"), "AB"},
		{"no terminator", []byte("ABCD"), "ABCD"},
		{"empty", []byte{0, 0, 0}, ""},
		{"latin1 high byte", []byte{'c', 'm', 0xAF, 0xB9, 0}, "cm¯¹"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeString(tt.in))
		})
	}
}

func TestEncodeString_AlwaysNulTerminated(t *testing.T) {
	b := encodeString("gain")
	assert.Equal(t, []byte("gain\x00"), b)

	b = encodeString("")
	assert.Equal(t, []byte{0}, b)

	b = encodeString("°C")
	assert.Equal(t, []byte{0xB0, 'C', 0}, b)
}

func TestIdentity(t *testing.T) {
	g, _ := openSim(t, testDevice())

	serial, err := g.SerialNumber(0)
	require.NoError(t, err)
	assert.Equal(t, "WP-00561", serial)

	model, err := g.Model(0)
	require.NoError(t, err)
	assert.Equal(t, "WP-785X-ILP", model)

	px, err := g.Pixels(0)
	require.NoError(t, err)
	assert.Equal(t, 1024, px)

	ver, err := g.LibraryVersion()
	require.NoError(t, err)
	assert.NotEmpty(t, ver)
}

func TestStringTooLongFails(t *testing.T) {
	d := testDevice()
	d.Serial = "THIS-SERIAL-IS-TOO-LONG"
	g, _ := openSim(t, d)

	_, err := g.SerialNumber(0)
	require.Error(t, err)

	var ce *CallError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "wp_get_serial_number", ce.Op)
	assert.Equal(t, native.ErrorInsufficientStorage, ce.Status)
	assert.Equal(t, uint16(3), ce.Code())
}

func TestSpectrum_FailureReturnsNoData(t *testing.T) {
	d := testDevice()
	d.FailSpectrum = true
	g, _ := openSim(t, d)

	out, err := g.Spectrum(0, 1024)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrNativeCall)
}

func TestSpectrum_ExactLength(t *testing.T) {
	g, _ := openSim(t, testDevice())

	out, err := g.Spectrum(0, 1024)
	require.NoError(t, err)
	assert.Len(t, out, 1024)

	_, err = g.Spectrum(0, 0)
	assert.ErrorIs(t, err, ErrNativeCall)
}

func TestWavenumbers_NoLaser(t *testing.T) {
	d := testDevice()
	d.ExcitationNM = 0
	g, _ := openSim(t, d)

	_, err := g.Wavenumbers(0, d.Pixels)
	var ce *CallError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, native.ErrorNoLaser, ce.Status)
}

func TestEEPROM(t *testing.T) {
	g, _ := openSim(t, testDevice())

	n, err := g.EEPROMFieldCount(0)
	require.NoError(t, err)
	require.Positive(t, n)

	names, err := g.EEPROMFieldNames(0, n)
	require.NoError(t, err)
	require.Len(t, names, n)
	assert.Equal(t, "model", names[0])
	assert.Equal(t, "serialNumber", names[1])

	v, err := g.EEPROMField(0, "serialNumber")
	require.NoError(t, err)
	assert.Equal(t, "WP-00561", v)

	_, err = g.EEPROMField(0, "noSuchField")
	assert.ErrorIs(t, err, ErrNativeCall)

	page, err := g.EEPROMPage(0, 0)
	require.NoError(t, err)
	assert.Len(t, page, EEPROMPageSize)
	assert.Equal(t, "WP-785X-ILP", decodeString(page[:16]))

	_, err = g.EEPROMPage(0, 99)
	assert.Error(t, err)
}

func TestSettingsRoundTrip(t *testing.T) {
	g, _ := openSim(t, testDevice())

	require.NoError(t, g.SetIntegrationTimeMS(0, 250))
	ms, err := g.IntegrationTimeMS(0)
	require.NoError(t, err)
	assert.Equal(t, 250, ms)

	require.NoError(t, g.SetDetectorOffset(0, -12))
	off, err := g.DetectorOffset(0)
	require.NoError(t, err)
	assert.Equal(t, -12, off)

	require.NoError(t, g.SetDetectorGain(0, 2.5))
	gain, err := g.DetectorGain(0)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, gain, 1e-6)

	require.NoError(t, g.SetHighGainModeEnable(0, true))
	hg, err := g.HighGainModeEnable(0)
	require.NoError(t, err)
	assert.True(t, hg)
}

func TestClosedDeviceGetters(t *testing.T) {
	g, _ := openSim(t, testDevice())
	require.NoError(t, g.Close(0))

	_, err := g.DetectorOffset(0)
	assert.ErrorIs(t, err, ErrNativeCall, "signed getters fail on the -999 sentinel")

	_, err = g.DetectorTemperatureDegC(0)
	assert.ErrorIs(t, err, ErrNativeCall)

	_, err = g.IntegrationTimeMS(0)
	assert.ErrorIs(t, err, ErrNativeCall)

	assert.Error(t, g.Close(0))
}

func TestLogDebugAppendsNul(t *testing.T) {
	lib := sim.New()
	g := New(lib)

	require.NoError(t, g.LogDebug("hello driver"))
	assert.Equal(t, []string{"hello driver"}, lib.DebugLines())
}

func TestCallErrorFormat(t *testing.T) {
	err := fail("wp_get_pixels", 2, -2)
	assert.Equal(t, "wp_get_pixels(spec=2): status -2", err.Error())

	err = fail("wp_close_all_spectrometers", libraryWide, -1)
	assert.Equal(t, "wp_close_all_spectrometers: status -1", err.Error())
}
