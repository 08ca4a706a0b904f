package lapic

import (
	"fmt"
	"math/bits"
)

// 256-bit registers (IRR, ISR, TMR) are eight consecutive 32-bit registers.
// Bit b of register base+k is vector 32*k+b, so the register holding vectors
// 224-255 is the last one. Higher vectors have higher priority, hence the
// scans walk registers from last to first and bits from the MSB down.
const (
	bitmapRegisters = 8
	bitmapRegBits   = 32
)

func checkBitmapLast(last Offset) {
	switch last {
	case OffsetIRR7, OffsetISR7, OffsetTMR7:
	default:
		panic(fmt.Sprintf("lapic: %v does not end a 256-bit register", last))
	}
}

func vectorSlot(last Offset, vector uint8) (Offset, uint32) {
	first := last - (bitmapRegisters - 1)
	return first + Offset(vector/bitmapRegBits), uint32(vector % bitmapRegBits)
}

// highest256 returns the highest set vector in the range ending at last.
func (r *RegisterFile) highest256(last Offset) (uint8, bool) {
	checkBitmapLast(last)
	for i := Offset(0); i < bitmapRegisters; i++ {
		reg := r.Read(last - i)
		if reg == 0 {
			continue
		}
		msb := bitmapRegBits - 1 - bits.LeadingZeros32(reg)
		return uint8(int(bitmapRegisters-1-i)*bitmapRegBits + msb), true
	}
	return 0, false
}

// top256 is highest256 with 0 standing in for "empty". Callers that care
// about vector 0 must check isEmpty256 first.
func (r *RegisterFile) top256(last Offset) uint8 {
	vector, _ := r.highest256(last)
	return vector
}

// pop256 clears the highest set vector in the range ending at last. It is a
// no-op on an empty range.
func (r *RegisterFile) pop256(last Offset) {
	checkBitmapLast(last)
	for i := Offset(0); i < bitmapRegisters; i++ {
		off := last - i
		reg := r.Read(off)
		if reg == 0 {
			continue
		}
		msb := bitmapRegBits - 1 - bits.LeadingZeros32(reg)
		r.Write(off, uint64(reg&^(1<<msb)))
		return
	}
}

func (r *RegisterFile) isEmpty256(last Offset) bool {
	checkBitmapLast(last)
	for i := Offset(0); i < bitmapRegisters; i++ {
		if r.Read(last-i) != 0 {
			return false
		}
	}
	return true
}

func (r *RegisterFile) set256(last Offset, vector uint8) {
	checkBitmapLast(last)
	off, bit := vectorSlot(last, vector)
	r.Write(off, uint64(r.Read(off)|1<<bit))
}

func (r *RegisterFile) clear256(last Offset, vector uint8) {
	checkBitmapLast(last)
	off, bit := vectorSlot(last, vector)
	r.Write(off, uint64(r.Read(off)&^(1<<bit)))
}

func (r *RegisterFile) test256(last Offset, vector uint8) bool {
	checkBitmapLast(last)
	off, bit := vectorSlot(last, vector)
	return r.Read(off)&(1<<bit) != 0
}

// Bitmap is a handle on one 256-bit register range of a register file.
type Bitmap struct {
	regs *RegisterFile
	last Offset
}

// IRR returns the interrupt request bitmap of r.
func (r *RegisterFile) IRR() Bitmap { return Bitmap{regs: r, last: OffsetIRR7} }

// ISR returns the in-service bitmap of r.
func (r *RegisterFile) ISR() Bitmap { return Bitmap{regs: r, last: OffsetISR7} }

// TMR returns the trigger mode bitmap of r.
func (r *RegisterFile) TMR() Bitmap { return Bitmap{regs: r, last: OffsetTMR7} }

// Top returns the highest set vector, or 0 when the bitmap is empty.
func (b Bitmap) Top() uint8 { return b.regs.top256(b.last) }

// Highest returns the highest set vector and whether any vector is set.
func (b Bitmap) Highest() (uint8, bool) { return b.regs.highest256(b.last) }

// Pop clears the highest set vector.
func (b Bitmap) Pop() { b.regs.pop256(b.last) }

func (b Bitmap) IsEmpty() bool          { return b.regs.isEmpty256(b.last) }
func (b Bitmap) Set(vector uint8)       { b.regs.set256(b.last, vector) }
func (b Bitmap) Clear(vector uint8)     { b.regs.clear256(b.last, vector) }
func (b Bitmap) Test(vector uint8) bool { return b.regs.test256(b.last, vector) }

// Vectors lists the set vectors from highest to lowest priority.
func (b Bitmap) Vectors() []uint8 {
	var out []uint8
	for i := Offset(0); i < bitmapRegisters; i++ {
		reg := b.regs.Read(b.last - i)
		for reg != 0 {
			msb := bitmapRegBits - 1 - bits.LeadingZeros32(reg)
			out = append(out, uint8(int(bitmapRegisters-1-i)*bitmapRegBits+msb))
			reg &^= 1 << msb
		}
	}
	return out
}
