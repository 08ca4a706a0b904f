package lapic

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"
)

var (
	ErrNilRegisterPage        = errors.New("lapic: register page is nil")
	ErrShortRegisterPage      = errors.New("lapic: register page is smaller than 4096 bytes")
	ErrMisalignedRegisterPage = errors.New("lapic: register page is not 4 KiB aligned")
)

// RegisterFile is a view over a caller-owned, page-aligned register page laid
// out like the xAPIC register space. It never allocates or frees the page.
type RegisterFile struct {
	page []byte
}

// NewRegisterFile validates page and returns a register file backed by it.
// The page must stay valid for as long as the register file is in use.
func NewRegisterFile(page []byte) (*RegisterFile, error) {
	if page == nil {
		return nil, ErrNilRegisterPage
	}
	if len(page) < PageSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrShortRegisterPage, len(page))
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(page)))
	if base&(PageSize-1) != 0 {
		return nil, fmt.Errorf("%w: base %#x", ErrMisalignedRegisterPage, base)
	}
	return &RegisterFile{page: page[:PageSize:PageSize]}, nil
}

// Page returns the backing register page.
func (r *RegisterFile) Page() []byte { return r.page }

// Read returns the 32-bit value of the register at off.
func (r *RegisterFile) Read(off Offset) uint32 {
	mem := checkOffset(off)
	return binary.LittleEndian.Uint32(r.page[mem : mem+4])
}

// Write stores the low 32 bits of val in the register at off. Wider values
// are truncated.
func (r *RegisterFile) Write(off Offset, val uint64) {
	mem := checkOffset(off)
	binary.LittleEndian.PutUint32(r.page[mem:mem+4], uint32(val))
}

func checkOffset(off Offset) uint32 {
	if !off.Defined() {
		panic(fmt.Sprintf("lapic: access to undefined register offset %#x", uint16(off)))
	}
	return off.MemOffset()
}
