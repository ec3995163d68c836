// internal/writer/writer_test.go
package writer

import (
	"errors"
	"testing"

	cfg "github.com/tamzrod/spectro-coordinator/internal/config"
	"github.com/tamzrod/spectro-coordinator/internal/status"
)

// ---- fake endpoint client ----

type fakeEndpointClient struct {
	writes []writeCall
	fail   bool

	lastRegsAddr uint16
	lastRegs     []uint16
}

type writeCall struct {
	unitID uint8
	addr   uint16
	qty    int
}

func (f *fakeEndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	if f.fail {
		return errors.New("connection refused")
	}
	f.writes = append(f.writes, writeCall{unitID: unitID, addr: addr, qty: len(regs)})
	f.lastRegsAddr = addr
	f.lastRegs = append([]uint16(nil), regs...)
	return nil
}

// ---- tests ----

func TestBuildPlans_SlotPerDevice(t *testing.T) {
	sm := cfg.StatusMirrorConfig{Enabled: true, Endpoint: "ep", UnitID: 3, BaseSlot: 10}

	plans := BuildPlans(sm, []string{"WP-00001", "WP-00002"})
	if len(plans) != 2 {
		t.Fatalf("expected 2 plans, got %d", len(plans))
	}
	for i, p := range plans {
		if p.Index != i {
			t.Fatalf("plan %d: index %d", i, p.Index)
		}
		if p.Status == nil {
			t.Fatalf("plan %d: status disabled", i)
		}
		if p.Status.BaseSlot != uint16(10+i) {
			t.Fatalf("plan %d: base slot %d", i, p.Status.BaseSlot)
		}
	}
	if plans[1].Status.DeviceName != "WP-00002" {
		t.Fatalf("device name: %q", plans[1].Status.DeviceName)
	}
}

func TestBuildPlans_Disabled(t *testing.T) {
	plans := BuildPlans(cfg.StatusMirrorConfig{}, []string{"a"})
	if plans[0].Status != nil {
		t.Fatalf("status should be disabled")
	}

	m := NewMirror(plans, &fakeEndpointClient{}, nil)
	if m.Len() != 0 {
		t.Fatalf("expected empty mirror, got %d", m.Len())
	}
	if m.Writer(0) != nil {
		t.Fatalf("expected nil writer")
	}
}

func TestMirror_WritersShareClient(t *testing.T) {
	fake := &fakeEndpointClient{}
	sm := cfg.StatusMirrorConfig{Enabled: true, Endpoint: "ep", UnitID: 1}
	closed := false

	m := NewMirror(BuildPlans(sm, []string{"A", "B"}), fake, func() error { closed = true; return nil })
	if m.Len() != 2 {
		t.Fatalf("expected 2 writers, got %d", m.Len())
	}

	for i := 0; i < 2; i++ {
		if err := m.Writer(i).WriteStatus(status.Snapshot{Health: status.HealthOK}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	if len(fake.writes) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(fake.writes))
	}
	if fake.writes[1].addr != status.SlotsPerDevice {
		t.Fatalf("device 1 block addr: got %d want %d", fake.writes[1].addr, status.SlotsPerDevice)
	}
	if m.Writer(2) != nil {
		t.Fatalf("unknown index should have no writer")
	}

	if err := m.Close(); err != nil || !closed {
		t.Fatalf("close: err=%v closed=%v", err, closed)
	}
}

func TestMirror_NilSafe(t *testing.T) {
	var m *Mirror
	if m.Writer(0) != nil || m.Len() != 0 || m.Close() != nil {
		t.Fatalf("nil mirror must be inert")
	}
}
