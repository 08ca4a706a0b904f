package lapic

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tinyrange/vlapic/internal/hv"
)

// DefaultBaseAddress is the architectural reset value of IA32_APIC_BASE.
const DefaultBaseAddress uint64 = 0xFEE00000

var (
	ErrInvalidAccess = errors.New("lapic: invalid register access")
	ErrInvalidMSR    = errors.New("lapic: invalid x2APIC MSR access")
)

// SetBaseAddress moves the xAPIC MMIO window to base, which must be page
// aligned.
func (l *LAPIC) SetBaseAddress(base uint64) error {
	if base&(PageSize-1) != 0 {
		return fmt.Errorf("lapic: base address %#x is not page aligned", base)
	}
	l.base = base
	return nil
}

func (l *LAPIC) DeviceId() string { return "lapic" }

// MMIORegions implements hv.MemoryMappedIODevice.
func (l *LAPIC) MMIORegions() []hv.MMIORegion {
	return []hv.MMIORegion{{Address: l.base, Size: PageSize}}
}

// ReadMMIO implements hv.MemoryMappedIODevice. Only 32-bit accesses to the
// start of a register slot are accepted.
func (l *LAPIC) ReadMMIO(addr uint64, data []byte) error {
	off, err := l.decodeMMIO(addr, data)
	if err != nil {
		return err
	}

	var value uint32
	switch off {
	case OffsetEOI, OffsetSelfIPI:
		// write-only
	default:
		value = l.regs.Read(off)
	}
	binary.LittleEndian.PutUint32(data, value)
	return nil
}

// WriteMMIO implements hv.MemoryMappedIODevice.
func (l *LAPIC) WriteMMIO(addr uint64, data []byte) error {
	off, err := l.decodeMMIO(addr, data)
	if err != nil {
		return err
	}
	l.writeFromGuest(off, uint64(binary.LittleEndian.Uint32(data)))
	return nil
}

func (l *LAPIC) decodeMMIO(addr uint64, data []byte) (Offset, error) {
	region := hv.MMIORegion{Address: l.base, Size: PageSize}
	if !region.Contains(addr, uint64(len(data))) {
		return 0, fmt.Errorf("lapic: %#x: %w", addr, hv.ErrOutsideMMIORange)
	}
	if len(data) != 4 {
		return 0, fmt.Errorf("%w: %d-byte access at %#x", ErrInvalidAccess, len(data), addr)
	}
	off, ok := OffsetFromMemOffset(addr - l.base)
	if !ok {
		return 0, fmt.Errorf("%w: no register at page offset %#x", ErrInvalidAccess, addr-l.base)
	}
	return off, nil
}

// writeFromGuest applies a guest register write, dropping writes to
// registers the guest cannot change.
func (l *LAPIC) writeFromGuest(off Offset, val uint64) {
	switch {
	case off == OffsetEOI:
		l.WriteEOI()
	case off == OffsetTPR:
		l.WriteTPR(val)
	case off == OffsetSVR:
		l.WriteSVR(val)
	case off == OffsetSelfIPI:
		l.WriteSelfIPI(val)
	case off == OffsetVersion, off == OffsetPPR, off == OffsetRRD, off == OffsetCurCount,
		off >= OffsetISR0 && off <= OffsetIRR7:
		l.logger.Debug("lapic: ignoring write to read-only register", "vcpu", l.vcpu, "reg", off)
	default:
		l.regs.Write(off, val)
	}
}

// ReadMSR services RDMSR of an x2APIC register. The ICR is a single 64-bit
// MSR in x2APIC mode.
func (l *LAPIC) ReadMSR(msr uint32) (uint64, error) {
	off, ok := OffsetFromMSR(msr)
	if !ok || !ReadableInX2APIC(off) {
		return 0, fmt.Errorf("%w: rdmsr %#x", ErrInvalidMSR, msr)
	}
	if off == OffsetICR0 {
		return l.ReadICR(), nil
	}
	return uint64(l.regs.Read(off)), nil
}

// WriteMSR services WRMSR of an x2APIC register.
func (l *LAPIC) WriteMSR(msr uint32, val uint64) error {
	off, ok := OffsetFromMSR(msr)
	if !ok || !WritableInX2APIC(off) {
		return fmt.Errorf("%w: wrmsr %#x", ErrInvalidMSR, msr)
	}
	if off == OffsetICR0 {
		l.WriteICR(val)
		return nil
	}
	l.writeFromGuest(off, val)
	return nil
}

var (
	_ hv.MemoryMappedIODevice = (*LAPIC)(nil)
)
