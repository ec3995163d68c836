package device

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/spectro-coordinator/internal/eventlog"
	"github.com/tamzrod/spectro-coordinator/internal/gateway"
	"github.com/tamzrod/spectro-coordinator/internal/native/sim"
)

func newTestLog() (*eventlog.Log, *bytes.Buffer) {
	var buf bytes.Buffer
	return eventlog.New(eventlog.WithConsole(&buf), eventlog.WithLevel(eventlog.LevelDebug)), &buf
}

func openOne(t *testing.T, d sim.Device) (*Spectrometer, *sim.Library, *eventlog.Log) {
	t.Helper()
	lib := sim.New(d)
	gw := gateway.New(lib)
	_, err := gw.OpenAll()
	require.NoError(t, err)
	log, _ := newTestLog()
	return New(gw, log, 0, 0), lib, log
}

func raman() sim.Device {
	return sim.Device{
		Serial:       "WP-00561",
		Model:        "WP-785X-ILP",
		Pixels:       1024,
		Firmware:     "10.0.0.8",
		FPGA:         "026-007",
		ExcitationNM: 785,
	}
}

func TestNew_LoadsIdentityAndCalibration(t *testing.T) {
	s, _, log := openOne(t, raman())

	assert.Equal(t, "WP-00561", s.SerialNumber())
	assert.Equal(t, "WP-785X-ILP", s.Model())
	assert.Equal(t, "10.0.0.8", s.FirmwareVersion())
	assert.Equal(t, "026-007", s.FPGAVersion())
	assert.Equal(t, 1024, s.Pixels())
	assert.Equal(t, 785.0, s.ExcitationNM())

	require.Len(t, s.Wavelengths(), 1024)
	for i := 1; i < len(s.Wavelengths()); i++ {
		require.Greater(t, s.Wavelengths()[i], s.Wavelengths()[i-1], "wavelength axis must be monotonic")
	}
	assert.Len(t, s.Wavenumbers(), 1024)
	assert.False(t, log.HasError())
}

func TestNew_NoWavenumbersWithoutExcitation(t *testing.T) {
	d := raman()
	d.ExcitationNM = 0
	s, _, log := openOne(t, d)

	assert.Len(t, s.Wavelengths(), 1024)
	assert.Nil(t, s.Wavenumbers())
	assert.False(t, log.HasError(), "absent wavenumbers are not an error")
	assert.NotContains(t, s.Describe(), "cm⁻¹")
}

func TestNew_IdentityFailureUsesSentinel(t *testing.T) {
	d := raman()
	d.Model = "A-MODEL-NAME-THAT-DOES-NOT-FIT-IN-33-BYTES"
	s, _, log := openOne(t, d)

	assert.Equal(t, ErrorString, s.Model())
	assert.Equal(t, "WP-00561", s.SerialNumber())
	assert.True(t, log.HasError())
}

func TestNew_ZeroPixelsSkipsCalibration(t *testing.T) {
	d := raman()
	d.Pixels = 0
	s, lib, _ := openOne(t, d)

	assert.Equal(t, 0, s.Pixels())
	assert.Nil(t, s.Wavelengths())
	assert.Equal(t, 0, s.Metadata().Len())

	require.NoError(t, s.Close())
	assert.Equal(t, int32(1), lib.CloseCalls.Load())
}

func TestMetadata_OrderedWithoutUserData(t *testing.T) {
	s, _, _ := openOne(t, raman())

	fields := s.Metadata().Fields()
	require.NotEmpty(t, fields)
	assert.Equal(t, "model", fields[0].Name)
	assert.Equal(t, "serialNumber", fields[1].Name)

	_, ok := s.Metadata().Get(ReservedField)
	assert.False(t, ok)

	v, err := s.EEPROMField(ReservedField)
	require.NoError(t, err)
	assert.NotEmpty(t, v)

	v, ok = s.Metadata().Get("excitationNM")
	require.True(t, ok)
	assert.Equal(t, "785.00", v)
}

func TestIntegrationTimeRoundTrip(t *testing.T) {
	s, _, _ := openOne(t, raman())

	for _, ms := range []int{1, 2, 100, 1000, 59999, 600000} {
		require.NoError(t, s.SetIntegrationTimeMS(ms))
		got, err := s.IntegrationTimeMS()
		require.NoError(t, err)
		assert.Equal(t, ms, got)
	}
}

func TestSetterValidation(t *testing.T) {
	s, _, _ := openOne(t, raman())

	assert.ErrorIs(t, s.SetIntegrationTimeMS(0), ErrInvalidSetting)
	assert.ErrorIs(t, s.SetIntegrationTimeMS(-5), ErrInvalidSetting)
	assert.ErrorIs(t, s.SetMaxTimeoutMS(0), ErrInvalidSetting)
	assert.ErrorIs(t, s.SetDetectorOffset(40000), ErrInvalidSetting)
	assert.ErrorIs(t, s.SetDetectorOffsetOdd(-40000), ErrInvalidSetting)

	_, err := s.EEPROMPage(EEPROMPages)
	assert.ErrorIs(t, err, ErrInvalidPage)
}

func TestSettingsSnapshot(t *testing.T) {
	s, _, _ := openOne(t, raman())

	require.NoError(t, s.SetLaserEnable(true))
	require.NoError(t, s.SetDetectorTECSetpointDegC(-15))
	require.NoError(t, s.SetDetectorOffsetOdd(7))
	require.NoError(t, s.SetMaxTimeoutMS(2500))

	st, err := s.Settings()
	require.NoError(t, err)
	assert.True(t, st.LaserEnable)
	assert.Equal(t, -15.0, st.DetectorTECSetpointDegC)
	assert.Equal(t, 7, st.DetectorOffsetOdd)
	assert.Equal(t, 2500, st.MaxTimeoutMS)
	assert.Len(t, st.Lines(), 11)
}

func TestCloseOnce(t *testing.T) {
	s, lib, _ := openOne(t, raman())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, int32(1), lib.CloseCalls.Load())
	assert.True(t, s.Closed())

	_, err := s.Spectrum()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRelease_NoNativeClose(t *testing.T) {
	s, lib, _ := openOne(t, raman())

	s.Release()
	require.NoError(t, s.Close())
	assert.Equal(t, int32(0), lib.CloseCalls.Load())
	assert.True(t, s.Closed())
}

func TestCancelOperation_DoesNotWaitForLock(t *testing.T) {
	d := raman()
	d.SpectrumDelay = 5 * time.Second
	s, lib, _ := openOne(t, d)

	entered := make(chan struct{})
	var once sync.Once
	lib.BeforeSpectrum = func(int) { once.Do(func() { close(entered) }) }

	result := make(chan error, 1)
	go func() {
		_, err := s.Spectrum()
		result <- err
	}()

	<-entered
	// the reader holds the device lock; cancel must still get through
	require.Eventually(t, func() bool {
		assert.NoError(t, s.CancelOperation())
		select {
		case err := <-result:
			assert.Error(t, err)
			return true
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDescribe(t *testing.T) {
	s, _, _ := openOne(t, raman())

	line := s.Describe()
	assert.Contains(t, line, "index 0 is WP-785X-ILP WP-00561 with 1024 pixels (780.00, ")
	assert.Contains(t, line, "cm⁻¹) firmware 10.0.0.8 FPGA 026-007")
}
