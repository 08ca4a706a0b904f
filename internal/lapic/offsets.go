package lapic

import (
	"fmt"
	"strings"
)

// Offset names a register in the local APIC register space. Its value is the
// x2APIC MSR index minus X2APICMSRBase; the register occupies the 32-bit slot
// at byte Offset<<4 of the xAPIC register page.
type Offset uint16

const (
	// X2APICMSRBase is the MSR address of register offset zero.
	X2APICMSRBase uint32 = 0x800

	// PageSize is the size of the register page.
	PageSize = 0x1000

	offsetShift = 4
)

const (
	OffsetID          Offset = 0x02
	OffsetVersion     Offset = 0x03
	OffsetTPR         Offset = 0x08
	OffsetAPR         Offset = 0x09
	OffsetPPR         Offset = 0x0A
	OffsetEOI         Offset = 0x0B
	OffsetRRD         Offset = 0x0C
	OffsetLDR         Offset = 0x0D
	OffsetDFR         Offset = 0x0E
	OffsetSVR         Offset = 0x0F
	OffsetISR0        Offset = 0x10
	OffsetISR7        Offset = 0x17
	OffsetTMR0        Offset = 0x18
	OffsetTMR7        Offset = 0x1F
	OffsetIRR0        Offset = 0x20
	OffsetIRR7        Offset = 0x27
	OffsetESR         Offset = 0x28
	OffsetLVTCMCI     Offset = 0x2F
	OffsetICR0        Offset = 0x30
	OffsetICR1        Offset = 0x31
	OffsetLVTTimer    Offset = 0x32
	OffsetLVTThermal  Offset = 0x33
	OffsetLVTPMI      Offset = 0x34
	OffsetLVTLINT0    Offset = 0x35
	OffsetLVTLINT1    Offset = 0x36
	OffsetLVTError    Offset = 0x37
	OffsetInitCount   Offset = 0x38
	OffsetCurCount    Offset = 0x39
	OffsetDivideConf  Offset = 0x3E
	OffsetSelfIPI     Offset = 0x3F
	offsetLastDefined        = OffsetSelfIPI
)

type offsetAttrs uint8

const (
	attrDefined offsetAttrs = 1 << iota
	// readable through the x2APIC MSR interface of a physical controller
	attrX2APICReadable
	attrX2APICWritable
	attrLVT
)

var offsetNames = map[Offset]string{
	OffsetID:         "id",
	OffsetVersion:    "version",
	OffsetTPR:        "tpr",
	OffsetAPR:        "apr",
	OffsetPPR:        "ppr",
	OffsetEOI:        "eoi",
	OffsetRRD:        "rrd",
	OffsetLDR:        "ldr",
	OffsetDFR:        "dfr",
	OffsetSVR:        "svr",
	OffsetESR:        "esr",
	OffsetLVTCMCI:    "lvt_cmci",
	OffsetICR0:       "icr0",
	OffsetICR1:       "icr1",
	OffsetLVTTimer:   "lvt_timer",
	OffsetLVTThermal: "lvt_thermal",
	OffsetLVTPMI:     "lvt_pmi",
	OffsetLVTLINT0:   "lvt_lint0",
	OffsetLVTLINT1:   "lvt_lint1",
	OffsetLVTError:   "lvt_error",
	OffsetInitCount:  "init_count",
	OffsetCurCount:   "cur_count",
	OffsetDivideConf: "div_conf",
	OffsetSelfIPI:    "self_ipi",
}

var (
	attrs      [offsetLastDefined + 1]offsetAttrs
	offsetList []Offset
	nameToOff  = make(map[string]Offset)
)

func init() {
	const (
		ro = attrDefined | attrX2APICReadable
		rw = attrDefined | attrX2APICReadable | attrX2APICWritable
		wo = attrDefined | attrX2APICWritable
		// present in the xAPIC page but not reachable through x2APIC MSRs
		xapicOnly = attrDefined
	)

	attrs[OffsetID] = ro
	attrs[OffsetVersion] = ro
	attrs[OffsetTPR] = rw
	attrs[OffsetAPR] = xapicOnly
	attrs[OffsetPPR] = ro
	attrs[OffsetEOI] = wo
	attrs[OffsetRRD] = xapicOnly
	attrs[OffsetLDR] = ro
	attrs[OffsetDFR] = xapicOnly
	attrs[OffsetSVR] = rw
	for off := OffsetISR0; off <= OffsetIRR7; off++ {
		attrs[off] = ro
	}
	attrs[OffsetESR] = rw
	attrs[OffsetLVTCMCI] = rw | attrLVT
	attrs[OffsetICR0] = rw
	attrs[OffsetICR1] = xapicOnly
	for off := OffsetLVTTimer; off <= OffsetLVTError; off++ {
		attrs[off] = rw | attrLVT
	}
	attrs[OffsetInitCount] = rw
	attrs[OffsetCurCount] = ro
	attrs[OffsetDivideConf] = rw
	attrs[OffsetSelfIPI] = wo

	for off := range attrs {
		if attrs[off]&attrDefined != 0 {
			offsetList = append(offsetList, Offset(off))
		}
	}

	for off := Offset(0); off < 8; off++ {
		offsetNames[OffsetISR0+off] = fmt.Sprintf("isr%d", off)
		offsetNames[OffsetTMR0+off] = fmt.Sprintf("tmr%d", off)
		offsetNames[OffsetIRR0+off] = fmt.Sprintf("irr%d", off)
	}
	for off, name := range offsetNames {
		nameToOff[name] = off
	}
}

// Offsets returns every architecturally defined register offset in
// ascending order.
func Offsets() []Offset {
	out := make([]Offset, len(offsetList))
	copy(out, offsetList)
	return out
}

// Defined reports whether o names a register of the local APIC.
func (o Offset) Defined() bool {
	return int(o) < len(attrs) && attrs[o]&attrDefined != 0
}

// IsLVT reports whether o is a local vector table register.
func (o Offset) IsLVT() bool {
	return o.Defined() && attrs[o]&attrLVT != 0
}

// MemOffset is the byte offset of the register's slot in the register page.
func (o Offset) MemOffset() uint32 {
	return uint32(o) << offsetShift
}

// MSR is the x2APIC MSR address of the register.
func (o Offset) MSR() uint32 {
	return X2APICMSRBase + uint32(o)
}

func (o Offset) String() string {
	if name, ok := offsetNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Offset(%#x)", uint16(o))
}

// ParseOffset resolves a register name as printed by Offset.String.
func ParseOffset(name string) (Offset, error) {
	off, ok := nameToOff[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("lapic: unknown register %q", name)
	}
	return off, nil
}

// OffsetFromMSR maps an x2APIC MSR address back to a register offset.
func OffsetFromMSR(msr uint32) (Offset, bool) {
	if msr < X2APICMSRBase {
		return 0, false
	}
	off := Offset(msr - X2APICMSRBase)
	if !off.Defined() {
		return 0, false
	}
	return off, true
}

// OffsetFromMemOffset maps a byte offset in the register page to a register.
// Accesses that do not start on a register slot are rejected.
func OffsetFromMemOffset(mem uint64) (Offset, bool) {
	if mem >= PageSize || mem&((1<<offsetShift)-1) != 0 {
		return 0, false
	}
	off := Offset(mem >> offsetShift)
	if !off.Defined() {
		return 0, false
	}
	return off, true
}

// ReadableInX2APIC reports whether a physical x2APIC exposes o through a
// readable MSR. Only those registers are seeded from the physical controller.
func ReadableInX2APIC(o Offset) bool {
	return o.Defined() && attrs[o]&attrX2APICReadable != 0
}

// WritableInX2APIC reports whether o accepts WRMSR in x2APIC mode.
func WritableInX2APIC(o Offset) bool {
	return o.Defined() && attrs[o]&attrX2APICWritable != 0
}
