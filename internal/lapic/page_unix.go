//go:build unix

package lapic

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// AllocPage maps a fresh anonymous, page-aligned register page. Release it
// with FreePage once every register file using it is gone.
func AllocPage() ([]byte, error) {
	page, err := unix.Mmap(-1, 0, PageSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("lapic: mmap register page: %w", err)
	}
	return page, nil
}

// FreePage unmaps a page returned by AllocPage.
func FreePage(page []byte) error {
	if err := unix.Munmap(page); err != nil {
		return fmt.Errorf("lapic: munmap register page: %w", err)
	}
	return nil
}
