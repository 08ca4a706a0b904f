package lapic

// Architectural reset values, SDM Vol. 3 section 10.4.7.1 and table 10-7.
const (
	// LVTEntries is the number of local vector table registers this model
	// exposes: CMCI, timer, thermal, PMI, LINT0, LINT1 and error.
	LVTEntries = 7

	versionResetValue = 0x10

	versionMaxLVTShift          = 16
	versionMaxLVTMask           = 0xFF << versionMaxLVTShift
	versionSuppressEOIBroadcast = 1 << 24

	// LVTResetValue masks the entry.
	LVTResetValue uint32 = 1 << 16
	// SVRResetValue leaves the APIC software-disabled with spurious vector 0xFF.
	SVRResetValue uint32 = 0xFF
	// DFRResetValue selects the flat model.
	DFRResetValue uint32 = 0xFFFFFFFF
)

// The version register encodes LVTEntries-1, which must not underflow.
var _ = [LVTEntries - 1]struct{}{}

type resetPolicy uint8

const (
	resetZero resetPolicy = iota
	resetConstant
	resetVersion
)

type resetRule struct {
	policy resetPolicy
	value  uint32
}

var resetRules = map[Offset]resetRule{
	OffsetVersion:    {policy: resetVersion},
	OffsetLVTCMCI:    {policy: resetConstant, value: LVTResetValue},
	OffsetLVTTimer:   {policy: resetConstant, value: LVTResetValue},
	OffsetLVTThermal: {policy: resetConstant, value: LVTResetValue},
	OffsetLVTPMI:     {policy: resetConstant, value: LVTResetValue},
	OffsetLVTLINT0:   {policy: resetConstant, value: LVTResetValue},
	OffsetLVTLINT1:   {policy: resetConstant, value: LVTResetValue},
	OffsetLVTError:   {policy: resetConstant, value: LVTResetValue},
	OffsetSVR:        {policy: resetConstant, value: SVRResetValue},
	OffsetDFR:        {policy: resetConstant, value: DFRResetValue},
}

// VersionResetValue is the value of the version register after reset.
func VersionResetValue() uint32 {
	var val uint32
	val |= versionResetValue
	val = val&^versionMaxLVTMask | (LVTEntries-1)<<versionMaxLVTShift
	val &^= versionSuppressEOIBroadcast
	return val
}

// ResetValue returns the value the register at off holds after reset.
func ResetValue(off Offset) uint32 {
	checkOffset(off)
	rule := resetRules[off]
	switch rule.policy {
	case resetVersion:
		return VersionResetValue()
	case resetConstant:
		return rule.value
	default:
		return 0
	}
}

// ResetRegister restores the register at off to its reset value.
func (l *LAPIC) ResetRegister(off Offset) {
	l.regs.Write(off, uint64(ResetValue(off)))
}

// Reset restores every register to its reset value. Pending and in-service
// vectors are discarded.
func (l *LAPIC) Reset() {
	for _, off := range offsetList {
		l.ResetRegister(off)
	}
	l.logger.Debug("lapic: reset", "vcpu", l.vcpu)
}
