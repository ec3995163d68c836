package publish

import "fmt"

// Topics builds the coordinator's topic tree under a configurable prefix.
//
//	<prefix>/device/<serial>/spectrum
//	<prefix>/device/<serial>/temperature
//	<prefix>/log
//	<prefix>/status
type Topics struct {
	Prefix string
}

// Spectrum returns the topic for delivered frames of one device.
func (t Topics) Spectrum(serial string) string {
	return fmt.Sprintf("%s/device/%s/spectrum", t.Prefix, serial)
}

// Temperature returns the topic for detector temperature readings.
func (t Topics) Temperature(serial string) string {
	return fmt.Sprintf("%s/device/%s/temperature", t.Prefix, serial)
}

// Log returns the topic carrying emitted log lines.
func (t Topics) Log() string { return t.Prefix + "/log" }

// Status returns the retained online/offline topic (also the LWT topic).
func (t Topics) Status() string { return t.Prefix + "/status" }
