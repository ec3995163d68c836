// internal/writer/types.go
package writer

// StatusPlan locates one spectrometer's status block in status memory.
type StatusPlan struct {
	Endpoint   string
	UnitID     uint8
	BaseSlot   uint16 // block index; register address = BaseSlot * SlotsPerDevice
	DeviceName string // serial number, ASCII, <= 16 chars
}

// Plan is the fully-built status plan for one registry index.
type Plan struct {
	Index  int
	Status *StatusPlan // nil when mirroring is disabled
}

// endpointClient is the exact contract the status writer uses.
// EndpointClient in writer/modbus satisfies it; tests use fakes.
type endpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}
