// Package lapic implements the virtual local APIC of a virtual CPU: an
// x2APIC-compatible register page, the IRR/ISR priority bitmaps and the
// protocol that hands pending vectors to the vCPU's interrupt window.
//
// A LAPIC belongs to exactly one virtual CPU and must only be used from that
// vCPU's exit-handling thread; it does no locking of its own.
package lapic

import (
	"errors"
	"log/slog"

	"github.com/tinyrange/vlapic/internal/vmexit"
)

var (
	ErrNilWindow        = errors.New("lapic: interrupt window is nil")
	ErrNilExitRegistrar = errors.New("lapic: exit registrar is nil")
)

// InterruptWindow is the vCPU's interrupt-window control. It decides whether
// the guest can take an interrupt right now and performs the injection.
type InterruptWindow interface {
	IsOpen() bool
	// EnableExiting asks for an interrupt-window exit once the window opens.
	EnableExiting()
	DisableExiting()
	Inject(vector uint8)
}

// ExitRegistrar is where the LAPIC registers its interrupt-window exit
// handler.
type ExitRegistrar interface {
	AddInterruptWindowHandler(h vmexit.Handler) error
}

// PhysicalSource reads registers of the physical x2APIC. It is only consulted
// while constructing a LAPIC, and only for offsets ReadableInX2APIC accepts.
type PhysicalSource interface {
	ReadRegister(off Offset) uint32
}

// EOITarget is notified of every vector retired through an EOI write, the
// way an IO-APIC observes EOI broadcasts.
type EOITarget interface {
	HandleEOI(vector uint32)
}

// Stats counts the traffic seen by a LAPIC.
type Stats struct {
	Queued          uint64
	Injected        uint64
	SpuriousSent    uint64
	SpuriousDropped uint64
	WindowExits     uint64
	EOIs            uint64
}

type LAPIC struct {
	regs   *RegisterFile
	window InterruptWindow
	base   uint64

	vcpu       int
	state      State
	eoiTargets []EOITarget

	logger *slog.Logger
	stats  Stats
}

// New builds the LAPIC of a virtual CPU over regs. Registers the physical
// x2APIC can read are copied from phys; every other register, or all of them
// when phys is nil, takes its reset value. The LAPIC registers its
// interrupt-window handler with exits.
//
// regs, window and exits must outlive the LAPIC. An error means the owning
// vCPU cannot be brought up.
func New(regs *RegisterFile, window InterruptWindow, exits ExitRegistrar, phys PhysicalSource) (*LAPIC, error) {
	if regs == nil || regs.page == nil {
		return nil, ErrNilRegisterPage
	}
	if window == nil {
		return nil, ErrNilWindow
	}
	if exits == nil {
		return nil, ErrNilExitRegistrar
	}

	l := &LAPIC{
		regs:   regs,
		window: window,
		base:   DefaultBaseAddress,
		logger: slog.Default(),
	}

	if err := exits.AddInterruptWindowHandler(l.HandleInterruptWindowExit); err != nil {
		return nil, err
	}
	l.initRegisters(phys)

	return l, nil
}

func (l *LAPIC) initRegisters(phys PhysicalSource) {
	for _, off := range offsetList {
		if phys != nil && ReadableInX2APIC(off) {
			l.regs.Write(off, uint64(phys.ReadRegister(off)))
			continue
		}
		l.ResetRegister(off)
	}
}

// SetLogger overrides the logger used for diagnostics. A nil logger restores
// slog.Default().
func (l *LAPIC) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	l.logger = logger
}

// SetVCPU records the vCPU index used in log records.
func (l *LAPIC) SetVCPU(id int) { l.vcpu = id }

// AttachEOITarget adds t to the targets told about retired vectors.
func (l *LAPIC) AttachEOITarget(t EOITarget) {
	if t != nil {
		l.eoiTargets = append(l.eoiTargets, t)
	}
}

// Registers exposes the register file, for device models that need registers
// without a named accessor.
func (l *LAPIC) Registers() *RegisterFile { return l.regs }

// ReadRegister returns the raw value of the register at off.
func (l *LAPIC) ReadRegister(off Offset) uint32 { return l.regs.Read(off) }

// WriteRegister stores the low 32 bits of val at off without any of the side
// effects of the named writers.
func (l *LAPIC) WriteRegister(off Offset, val uint64) { l.regs.Write(off, val) }

func (l *LAPIC) Stats() Stats { return l.stats }
