//go:build !unix

package lapic

import "unsafe"

// AllocPage returns a page-aligned register page carved out of a larger heap
// allocation.
func AllocPage() ([]byte, error) {
	buf := make([]byte, 2*PageSize)
	base := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	skip := int((PageSize - base&(PageSize-1)) & (PageSize - 1))
	return buf[skip : skip+PageSize : skip+PageSize], nil
}

// FreePage is a no-op; the page is reclaimed by the garbage collector.
func FreePage([]byte) error { return nil }
