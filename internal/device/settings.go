package device

import (
	"errors"
	"fmt"
)

// Settings is a point-in-time read of every live setting.
type Settings struct {
	IntegrationTimeMS       int
	LaserEnable             bool
	DetectorTemperatureDegC float64
	DetectorTECEnable       bool
	DetectorTECSetpointDegC float64
	DetectorGain            float64
	DetectorGainOdd         float64
	DetectorOffset          int
	DetectorOffsetOdd       int
	HighGainModeEnable      bool
	MaxTimeoutMS            int
}

// Settings reads every setting. Values that failed to read are left zero
// and all failures are joined into the returned error.
func (s *Spectrometer) Settings() (Settings, error) {
	var (
		out  Settings
		errs []error
		err  error
	)
	note := func(name string, e error) {
		if e != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, e))
		}
	}

	out.IntegrationTimeMS, err = s.IntegrationTimeMS()
	note("integration time", err)
	out.LaserEnable, err = s.LaserEnable()
	note("laser enable", err)
	out.DetectorTemperatureDegC, err = s.DetectorTemperatureDegC()
	note("detector temperature", err)
	out.DetectorTECEnable, err = s.DetectorTECEnable()
	note("TEC enable", err)
	out.DetectorTECSetpointDegC, err = s.DetectorTECSetpointDegC()
	note("TEC setpoint", err)
	out.DetectorGain, err = s.DetectorGain()
	note("detector gain", err)
	out.DetectorGainOdd, err = s.DetectorGainOdd()
	note("detector gain odd", err)
	out.DetectorOffset, err = s.DetectorOffset()
	note("detector offset", err)
	out.DetectorOffsetOdd, err = s.DetectorOffsetOdd()
	note("detector offset odd", err)
	out.HighGainModeEnable, err = s.HighGainModeEnable()
	note("high gain mode", err)
	out.MaxTimeoutMS, err = s.MaxTimeoutMS()
	note("max timeout", err)

	return out, errors.Join(errs...)
}

// Lines renders the settings block of a metadata dump.
func (st Settings) Lines() []string {
	return []string{
		fmt.Sprintf("  Integration Time:       %d ms", st.IntegrationTimeMS),
		fmt.Sprintf("  Laser Enable:           %t", st.LaserEnable),
		fmt.Sprintf("  Temperature:            %.2f °C", st.DetectorTemperatureDegC),
		fmt.Sprintf("  Detector TEC Enable:    %t", st.DetectorTECEnable),
		fmt.Sprintf("  Detector TEC Setpoint:  %.0f", st.DetectorTECSetpointDegC),
		fmt.Sprintf("  Detector Gain:          %.2f", st.DetectorGain),
		fmt.Sprintf("  Detector Gain Odd:      %.2f", st.DetectorGainOdd),
		fmt.Sprintf("  Detector Offset:        %d", st.DetectorOffset),
		fmt.Sprintf("  Detector Offset Odd:    %d", st.DetectorOffsetOdd),
		fmt.Sprintf("  High-Gain Mode Enable:  %t", st.HighGainModeEnable),
		fmt.Sprintf("  Max Timeout (ms):       %d", st.MaxTimeoutMS),
	}
}
