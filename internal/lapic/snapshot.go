package lapic

import (
	"encoding/gob"
	"fmt"

	"github.com/tinyrange/vlapic/internal/hv"
)

func init() {
	gob.Register(&lapicSnapshot{})
}

type lapicSnapshot struct {
	Base  uint64
	State State
	Page  []byte
}

// CaptureSnapshot implements hv.DeviceSnapshotter.
func (l *LAPIC) CaptureSnapshot() (hv.DeviceSnapshot, error) {
	page := make([]byte, PageSize)
	copy(page, l.regs.page)
	return &lapicSnapshot{
		Base:  l.base,
		State: l.state,
		Page:  page,
	}, nil
}

// RestoreSnapshot implements hv.DeviceSnapshotter. The register page is
// overwritten in place; the LAPIC keeps using the page it was built over.
func (l *LAPIC) RestoreSnapshot(snap hv.DeviceSnapshot) error {
	data, ok := snap.(*lapicSnapshot)
	if !ok {
		return fmt.Errorf("lapic: %w: %T", hv.ErrInvalidSnapshot, snap)
	}
	if len(data.Page) != PageSize {
		return fmt.Errorf("lapic: %w: page is %d bytes, want %d", hv.ErrInvalidSnapshot, len(data.Page), PageSize)
	}
	if err := l.SetBaseAddress(data.Base); err != nil {
		return err
	}
	copy(l.regs.page, data.Page)
	l.state = data.State
	return nil
}

var _ hv.DeviceSnapshotter = (*LAPIC)(nil)
