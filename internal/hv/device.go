// Package hv holds the vocabulary shared by device models: MMIO regions,
// memory-mapped devices and device snapshots.
package hv

import "errors"

var (
	ErrInvalidSnapshot  = errors.New("invalid device snapshot")
	ErrOutsideMMIORange = errors.New("access outside MMIO window")
)

// Device is anything that can be attached to a virtual CPU's device model.
type Device interface {
	DeviceId() string
}

type MMIORegion struct {
	Address uint64
	Size    uint64
}

// Contains reports whether the access [addr, addr+size) lies entirely inside r.
func (r MMIORegion) Contains(addr, size uint64) bool {
	end := addr + size
	if end < addr {
		return false
	}
	return addr >= r.Address && end <= r.Address+r.Size
}

type MemoryMappedIODevice interface {
	Device

	MMIORegions() []MMIORegion

	ReadMMIO(addr uint64, data []byte) error
	WriteMMIO(addr uint64, data []byte) error
}

// DeviceSnapshot is an opaque, gob-encodable device state blob.
type DeviceSnapshot interface{}

type DeviceSnapshotter interface {
	Device

	CaptureSnapshot() (DeviceSnapshot, error)
	RestoreSnapshot(snap DeviceSnapshot) error
}
