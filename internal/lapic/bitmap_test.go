package lapic

import "testing"

func TestBitmapSingleVector(t *testing.T) {
	regs := newTestRegisterFile(t)
	irr := regs.IRR()

	for v := 0; v < 256; v++ {
		vector := uint8(v)
		irr.Set(vector)

		if got := irr.Top(); got != vector {
			t.Fatalf("top with only %d set = %d", vector, got)
		}
		off, bit := vectorSlot(OffsetIRR7, vector)
		if got, want := regs.Read(off), uint32(1)<<bit; got != want {
			t.Fatalf("vector %d: %v = %#x, want %#x", vector, off, got, want)
		}

		irr.Pop()
		if !irr.IsEmpty() {
			t.Fatalf("bitmap not empty after popping %d: %v", vector, irr.Vectors())
		}
	}
}

func TestBitmapPriorityOrder(t *testing.T) {
	regs := newTestRegisterFile(t)
	irr := regs.IRR()
	for _, v := range []uint8{17, 200, 201, 64} {
		irr.Set(v)
	}

	for _, want := range []uint8{201, 200, 64, 17} {
		if irr.IsEmpty() {
			t.Fatalf("bitmap empty, want %d next", want)
		}
		if got := irr.Top(); got != want {
			t.Fatalf("top = %d, want %d", got, want)
		}
		irr.Pop()
	}
	if !irr.IsEmpty() {
		t.Fatalf("bitmap not empty: %v", irr.Vectors())
	}
}

func TestBitmapEmptySentinel(t *testing.T) {
	regs := newTestRegisterFile(t)
	isr := regs.ISR()

	if got := isr.Top(); got != 0 {
		t.Fatalf("top of empty bitmap = %d, want 0", got)
	}
	if _, ok := isr.Highest(); ok {
		t.Fatalf("highest reported a vector in an empty bitmap")
	}
	isr.Pop()
	if !isr.IsEmpty() {
		t.Fatalf("pop of empty bitmap set bits")
	}

	// Vector 0 pending looks exactly like an empty bitmap through Top.
	isr.Set(0)
	if got := isr.Top(); got != 0 {
		t.Fatalf("top with vector 0 set = %d", got)
	}
	if v, ok := isr.Highest(); !ok || v != 0 {
		t.Fatalf("highest = %d, %v; want 0, true", v, ok)
	}
	if isr.IsEmpty() {
		t.Fatalf("bitmap with vector 0 reported empty")
	}
}

func TestBitmapRangesAreIndependent(t *testing.T) {
	regs := newTestRegisterFile(t)
	regs.IRR().Set(0x31)
	regs.TMR().Set(0x31)

	if !regs.ISR().IsEmpty() {
		t.Fatalf("ISR picked up bits from neighbouring ranges")
	}
	regs.IRR().Clear(0x31)
	if !regs.TMR().Test(0x31) {
		t.Fatalf("clearing IRR cleared TMR")
	}
	regs.IRR().Clear(0x31)
	if !regs.IRR().IsEmpty() {
		t.Fatalf("double clear set bits")
	}
}

func TestBitmapVectors(t *testing.T) {
	regs := newTestRegisterFile(t)
	irr := regs.IRR()
	for _, v := range []uint8{0, 31, 32, 255, 128} {
		irr.Set(v)
	}

	got := irr.Vectors()
	want := []uint8{255, 128, 32, 31, 0}
	if len(got) != len(want) {
		t.Fatalf("vectors = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("vectors = %v, want %v", got, want)
		}
	}
}

func TestBitmapRejectsUnknownRange(t *testing.T) {
	regs := newTestRegisterFile(t)
	defer func() {
		if recover() == nil {
			t.Fatalf("top over a non-bitmap range did not panic")
		}
	}()
	regs.top256(OffsetICR1)
}
