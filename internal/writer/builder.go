// internal/writer/builder.go
package writer

import (
	"errors"
	"time"

	cfg "github.com/tamzrod/spectro-coordinator/internal/config"
	wmodbus "github.com/tamzrod/spectro-coordinator/internal/writer/modbus"
)

// BuildPlans converts the status mirror config into one plan per device.
// names[i] is the device name (serial number) of registry index i.
// Assumes config has already passed validation.
func BuildPlans(sm cfg.StatusMirrorConfig, names []string) []Plan {
	plans := make([]Plan, 0, len(names))
	for i, name := range names {
		p := Plan{Index: i}
		if sm.Enabled {
			p.Status = &StatusPlan{
				Endpoint:   sm.Endpoint,
				UnitID:     sm.UnitID,
				BaseSlot:   sm.BaseSlot + uint16(i),
				DeviceName: name,
			}
		}
		plans = append(plans, p)
	}
	return plans
}

// BuildEndpointClient creates the status memory client.
// The connection is opened lazily on first write.
func BuildEndpointClient(sm cfg.StatusMirrorConfig) (*wmodbus.EndpointClient, func() error, error) {
	if !sm.Enabled {
		return nil, nil, errors.New("writer: status mirror disabled")
	}

	c, err := wmodbus.NewEndpointClient(wmodbus.Config{
		Endpoint: sm.Endpoint,
		Timeout:  time.Duration(sm.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, nil, err
	}
	return c, c.Close, nil
}

// BuildMirror wires plans and a fresh client into a Mirror.
func BuildMirror(sm cfg.StatusMirrorConfig, names []string) (*Mirror, error) {
	cli, closeFn, err := BuildEndpointClient(sm)
	if err != nil {
		return nil, err
	}
	return NewMirror(BuildPlans(sm, names), cli, closeFn), nil
}
