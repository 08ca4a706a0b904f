package lapic

func (l *LAPIC) ReadID() uint32      { return l.regs.Read(OffsetID) }
func (l *LAPIC) ReadVersion() uint32 { return l.regs.Read(OffsetVersion) }
func (l *LAPIC) ReadTPR() uint32     { return l.regs.Read(OffsetTPR) }
func (l *LAPIC) ReadSVR() uint32     { return l.regs.Read(OffsetSVR) }

// ReadICR assembles the 64-bit interrupt command register, ICR0 holding the
// low half.
func (l *LAPIC) ReadICR() uint64 {
	icr0 := uint64(l.regs.Read(OffsetICR0))
	icr1 := uint64(l.regs.Read(OffsetICR1))
	return icr1<<32 | icr0
}

func (l *LAPIC) WriteTPR(tpr uint64) { l.regs.Write(OffsetTPR, tpr) }
func (l *LAPIC) WriteSVR(svr uint64) { l.regs.Write(OffsetSVR, svr) }

// WriteICR splits icr over ICR1 and ICR0. The high half goes first: on real
// hardware the write to the low half is what sends the IPI.
func (l *LAPIC) WriteICR(icr uint64) {
	l.regs.Write(OffsetICR1, icr>>32)
	l.regs.Write(OffsetICR0, icr&0xFFFFFFFF)
}

func (l *LAPIC) WriteSelfIPI(vector uint64) { l.regs.Write(OffsetSelfIPI, vector) }

// WriteEOI acknowledges the highest-priority in-service vector and tells the
// attached EOI targets which vector it was.
func (l *LAPIC) WriteEOI() {
	l.regs.Write(OffsetEOI, 0)

	isr := l.regs.ISR()
	vector, inService := isr.Highest()
	isr.Pop()
	l.stats.EOIs++

	if !inService {
		l.logger.Debug("lapic: eoi with no vector in service", "vcpu", l.vcpu)
		return
	}
	for _, t := range l.eoiTargets {
		t.HandleEOI(uint32(vector))
	}
}

func (l *LAPIC) TopIRR() uint8    { return l.regs.IRR().Top() }
func (l *LAPIC) TopISR() uint8    { return l.regs.ISR().Top() }
func (l *LAPIC) PopIRR()          { l.regs.IRR().Pop() }
func (l *LAPIC) PopISR()          { l.regs.ISR().Pop() }
func (l *LAPIC) IRRIsEmpty() bool { return l.regs.IRR().IsEmpty() }
func (l *LAPIC) ISRIsEmpty() bool { return l.regs.ISR().IsEmpty() }

// HighestIRR returns the highest pending vector, if any.
func (l *LAPIC) HighestIRR() (uint8, bool) { return l.regs.IRR().Highest() }

// HighestISR returns the highest in-service vector, if any.
func (l *LAPIC) HighestISR() (uint8, bool) { return l.regs.ISR().Highest() }

func (l *LAPIC) IRRTest(vector uint8) bool { return l.regs.IRR().Test(vector) }
func (l *LAPIC) ISRTest(vector uint8) bool { return l.regs.ISR().Test(vector) }
