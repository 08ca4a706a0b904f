package scenario

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tinyrange/vlapic/internal/irqwindow"
	"github.com/tinyrange/vlapic/internal/lapic"
	"github.com/tinyrange/vlapic/internal/vmexit"
	"github.com/tinyrange/vlapic/internal/x2apic"
)

// maxDrainEntries bounds a drain step: one entry per vector plus the final
// entry that delivers the last one.
const maxDrainEntries = 257

type Options struct {
	// Physical overrides the scenario's own physical register map.
	Physical lapic.PhysicalSource
	Logger   *slog.Logger
	// Progress is called after every completed step.
	Progress func(index int, step Step)
	// Deliver is called with every vector the guest receives on VM entry.
	Deliver func(vector uint8)
}

type Result struct {
	Delivered []uint8
	Registers x2apic.Snapshot
	Stats     lapic.Stats
	State     lapic.State
	Exits     map[vmexit.Reason]uint64
}

type machine struct {
	lapic  *lapic.LAPIC
	window *irqwindow.Window
	exits  *vmexit.Dispatcher
	vcpu   int
}

// Run builds a fresh LAPIC and replays sc against it. Cancelling ctx stops
// the replay between steps.
func Run(ctx context.Context, sc *Scenario, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	phys := opts.Physical
	if phys == nil && len(sc.Physical) > 0 {
		snap, err := x2apic.FromNames(sc.Physical)
		if err != nil {
			return nil, fmt.Errorf("scenario: physical registers: %w", err)
		}
		phys = snap
	}

	page, err := lapic.AllocPage()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lapic.FreePage(page); err != nil {
			logger.Warn("scenario: release register page", "err", err)
		}
	}()
	regs, err := lapic.NewRegisterFile(page)
	if err != nil {
		return nil, err
	}

	m := &machine{
		window: irqwindow.New(),
		exits:  vmexit.NewDispatcher(),
		vcpu:   sc.VCPU,
	}
	m.window.SetLogger(logger)
	if opts.Deliver != nil {
		m.window.OnDeliver(opts.Deliver)
	}
	m.exits.SetLogger(logger)

	m.lapic, err = lapic.New(regs, m.window, m.exits, phys)
	if err != nil {
		return nil, fmt.Errorf("scenario: create lapic: %w", err)
	}
	m.lapic.SetLogger(logger)
	m.lapic.SetVCPU(sc.VCPU)

	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scenario: stopped before step %d: %w", i, err)
		}
		if err := m.apply(step); err != nil {
			return nil, fmt.Errorf("scenario: step %d (%v): %w", i, step, err)
		}
		logger.Debug("scenario: step", "index", i, "step", step.String(), "state", m.lapic.State())
		if opts.Progress != nil {
			opts.Progress(i, step)
		}
	}

	return &Result{
		Delivered: m.window.Delivered(),
		Registers: x2apic.Capture(regs),
		Stats:     m.lapic.Stats(),
		State:     m.lapic.State(),
		Exits:     m.exits.Counts(),
	}, nil
}

func (m *machine) apply(step Step) error {
	l := m.lapic
	switch step.Op {
	case OpReady:
		m.window.SetReady(step.Ready)
	case OpQueue:
		l.QueueInjection(step.Vector)
	case OpSpurious:
		l.InjectSpurious(step.Vector)
	case OpEOI:
		l.WriteEOI()
	case OpEnter:
		count := max(step.Count, 1)
		for range count {
			if err := m.enter(); err != nil {
				return err
			}
		}
	case OpDrain:
		for range maxDrainEntries {
			if err := m.enter(); err != nil {
				return err
			}
			if _, staged := m.window.Staged(); !staged && !m.window.ExitingEnabled() {
				return nil
			}
		}
		return fmt.Errorf("window did not drain after %d entries", maxDrainEntries)
	case OpWrite:
		off, err := lapic.ParseOffset(step.Register)
		if err != nil {
			return err
		}
		l.WriteRegister(off, step.Value)
	case OpICR:
		l.WriteICR(step.Value)
	case OpTPR:
		l.WriteTPR(step.Value)
	case OpSVR:
		l.WriteSVR(step.Value)
	case OpSelfIPI:
		l.WriteSelfIPI(step.Value)
	case OpReset:
		l.Reset()
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

// enter performs one VM entry and services the interrupt-window exit that
// follows it, if one is due.
func (m *machine) enter() error {
	_, _, exitDue := m.window.Enter()
	if !exitDue {
		return nil
	}
	return m.exits.Dispatch(&vmexit.Exit{Reason: vmexit.ReasonInterruptWindow, VCPU: m.vcpu})
}
