// internal/writer/status_writer.go
package writer

import (
	"errors"
	"fmt"

	"github.com/tamzrod/spectro-coordinator/internal/status"
)

var errDisabled = errors.New("status writer: disabled")

// deviceStatusWriter mirrors one spectrometer's snapshot into a Modbus
// holding-register block.
//
// The first write, and the first after any failure, asserts the whole
// block including the serial number. Later writes send only the runs of
// live slots that changed.
type deviceStatusWriter struct {
	plan *StatusPlan
	cli  endpointClient

	asserted bool
	shadow   [status.LiveSlots]uint16
	name     []uint16
}

// NewDeviceStatusWriter returns false when the plan has no status block.
func NewDeviceStatusWriter(plan Plan, cli endpointClient) (*deviceStatusWriter, bool) {
	if plan.Status == nil {
		return nil, false
	}
	return &deviceStatusWriter{
		plan: plan.Status,
		cli:  cli,
		name: encodeDeviceNameRegs(plan.Status.DeviceName),
	}, true
}

func (sw *deviceStatusWriter) WriteStatus(s status.Snapshot) error {
	if sw == nil || sw.plan == nil {
		return errDisabled
	}
	if sw.cli == nil {
		return fmt.Errorf("status writer: no client for %s", sw.plan.Endpoint)
	}

	block := status.Encode(s)

	if !sw.asserted {
		copy(block[status.SlotDeviceNameStart:], sw.name)
		if err := sw.cli.WriteRegisters(sw.plan.UnitID, sw.baseAddr(), block); err != nil {
			return fmt.Errorf("status writer: assert block: %w", err)
		}
		copy(sw.shadow[:], block)
		sw.asserted = true
		return nil
	}

	var errs []error
	for _, r := range changedRuns(sw.shadow[:], block[:status.LiveSlots]) {
		regs := block[r.from:r.to]
		if err := sw.cli.WriteRegisters(sw.plan.UnitID, sw.baseAddr()+uint16(r.from), regs); err != nil {
			errs = append(errs, fmt.Errorf("slots %d-%d: %w", r.from, r.to-1, err))
			continue
		}
		copy(sw.shadow[r.from:r.to], regs)
	}

	if len(errs) > 0 {
		// the endpoint may hold anything now
		sw.asserted = false
		return fmt.Errorf("status writer: %w", errors.Join(errs...))
	}
	return nil
}

func (sw *deviceStatusWriter) baseAddr() uint16 {
	return sw.plan.BaseSlot * status.SlotsPerDevice
}

// run is a half-open slot range [from, to).
type run struct{ from, to int }

// changedRuns returns the maximal runs of slots where cur differs from prev.
func changedRuns(prev, cur []uint16) []run {
	var out []run
	for i := 0; i < len(cur); i++ {
		if prev[i] == cur[i] {
			continue
		}
		j := i + 1
		for j < len(cur) && prev[j] != cur[j] {
			j++
		}
		out = append(out, run{from: i, to: j})
		i = j
	}
	return out
}

// encodeDeviceNameRegs packs the name two characters per register, high
// byte first. Non-printable bytes become '?'. Names longer than
// DeviceNameMaxChars are cut.
func encodeDeviceNameRegs(name string) []uint16 {
	var buf [status.DeviceNameMaxChars]byte
	n := copy(buf[:], name)
	for i := 0; i < n; i++ {
		if buf[i] < 0x20 || buf[i] > 0x7E {
			buf[i] = '?'
		}
	}

	out := make([]uint16, status.SlotDeviceNameSlots)
	for i := range out {
		out[i] = uint16(buf[2*i])<<8 | uint16(buf[2*i+1])
	}
	return out
}
