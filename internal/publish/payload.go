package publish

import (
	"encoding/json"
	"time"

	"github.com/tamzrod/spectro-coordinator/internal/poller"
)

// SpectrumPayload is the JSON body of a spectrum message.
type SpectrumPayload struct {
	Device    int       `json:"device"`
	Serial    string    `json:"serial"`
	Seq       uint64    `json:"seq"`
	Timestamp string    `json:"timestamp"`
	Pixels    int       `json:"pixels"`
	Spectrum  []float64 `json:"spectrum"`
}

// TemperaturePayload is the JSON body of a temperature message.
type TemperaturePayload struct {
	Device    int     `json:"device"`
	Serial    string  `json:"serial"`
	Timestamp string  `json:"timestamp"`
	DegC      float64 `json:"deg_c"`
}

// StatusPayload is published retained on the status topic.
type StatusPayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	RunID     string `json:"run_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func buildSpectrumPayload(serial string, s poller.Sample) ([]byte, error) {
	return json.Marshal(SpectrumPayload{
		Device:    s.Index,
		Serial:    serial,
		Seq:       s.Seq,
		Timestamp: s.At.UTC().Format(time.RFC3339Nano),
		Pixels:    len(s.Spectrum),
		Spectrum:  s.Spectrum,
	})
}

func buildTemperaturePayload(serial string, t poller.Temperature) ([]byte, error) {
	return json.Marshal(TemperaturePayload{
		Device:    t.Index,
		Serial:    serial,
		Timestamp: t.At.UTC().Format(time.RFC3339Nano),
		DegC:      t.DegC,
	})
}

func buildStatusPayload(status, clientID, runID, reason string, now time.Time) string {
	b, _ := json.Marshal(StatusPayload{
		Status:    status,
		ClientID:  clientID,
		RunID:     runID,
		Reason:    reason,
		Timestamp: now.UTC().Format(time.RFC3339),
	})
	return string(b)
}
