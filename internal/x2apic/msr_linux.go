//go:build linux

package x2apic

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/tinyrange/vlapic/internal/lapic"
)

// MSRReader reads x2APIC registers of one physical CPU through the Linux msr
// driver (/dev/cpu/N/msr). It needs CAP_SYS_RAWIO and an x2APIC-mode host.
type MSRReader struct {
	cpu int
	fd  int

	logger *slog.Logger
}

// OpenMSR opens the msr device of the given CPU.
func OpenMSR(cpu int) (*MSRReader, error) {
	return openMSRFile(cpu, fmt.Sprintf("/dev/cpu/%d/msr", cpu))
}

// openMSRFile opens any file laid out like the msr device: the value of MSR n
// is the 8 little-endian bytes at file offset n.
func openMSRFile(cpu int, path string) (*MSRReader, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("x2apic: open %s: %w", path, err)
	}
	return &MSRReader{cpu: cpu, fd: fd, logger: slog.Default()}, nil
}

func (r *MSRReader) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	r.logger = logger
}

// ReadMSR reads a 64-bit MSR.
func (r *MSRReader) ReadMSR(msr uint32) (uint64, error) {
	var buf [8]byte
	n, err := unix.Pread(r.fd, buf[:], int64(msr))
	if err != nil {
		return 0, fmt.Errorf("x2apic: cpu %d rdmsr %#x: %w", r.cpu, msr, err)
	}
	if n != len(buf) {
		return 0, fmt.Errorf("x2apic: cpu %d rdmsr %#x: short read of %d bytes", r.cpu, msr, n)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// ReadRegister implements lapic.PhysicalSource. Registers that cannot be
// read are logged and read as zero.
func (r *MSRReader) ReadRegister(off lapic.Offset) uint32 {
	val, err := r.ReadMSR(off.MSR())
	if err != nil {
		r.logger.Warn("x2apic: register read failed", "reg", off, "err", err)
		return 0
	}
	return uint32(val)
}

func (r *MSRReader) Close() error {
	if r.fd < 0 {
		return nil
	}
	err := unix.Close(r.fd)
	r.fd = -1
	return err
}

var _ lapic.PhysicalSource = (*MSRReader)(nil)
