// internal/poller/types.go
package poller

import "time"

// State of one worker. A worker runs at most once; Stopped is final.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCancelling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCancelling:
		return "cancelling"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Sample is one delivered acquisition frame.
type Sample struct {
	Index    int // registry index
	Seq      uint64
	At       time.Time
	Spectrum []float64
}

// PollResult is the outcome of one acquisition attempt, delivered or not.
type PollResult struct {
	Index    int
	At       time.Time
	Duration time.Duration

	Spectrum []float64
	Err      error // non-nil means the frame was skipped
}

// Temperature is one detector temperature reading.
type Temperature struct {
	Index int
	At    time.Time
	DegC  float64
}
