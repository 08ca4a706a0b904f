// Package vmexit routes virtual CPU exits to the handlers registered for
// them.
package vmexit

import (
	"errors"
	"fmt"
	"log/slog"
)

var ErrUnhandledExit = errors.New("unhandled exit")

type Reason uint8

const (
	ReasonInvalid Reason = iota
	ReasonExternalInterrupt
	ReasonInterruptWindow
	ReasonMSRRead
	ReasonMSRWrite
	ReasonMMIO

	reasonCount
)

func (r Reason) String() string {
	switch r {
	case ReasonExternalInterrupt:
		return "external_interrupt"
	case ReasonInterruptWindow:
		return "interrupt_window"
	case ReasonMSRRead:
		return "msr_read"
	case ReasonMSRWrite:
		return "msr_write"
	case ReasonMMIO:
		return "mmio"
	default:
		return fmt.Sprintf("Reason(%d)", uint8(r))
	}
}

// Exit describes a single exit of a virtual CPU.
type Exit struct {
	Reason Reason
	VCPU   int
}

// Handler services an exit. It returns true once the exit is fully handled;
// returning false passes the exit on to the next handler.
type Handler func(exit *Exit) bool

// Dispatcher holds the exit handlers of one virtual CPU. Like the rest of a
// vCPU's exit path it is only used from the vCPU's own thread.
type Dispatcher struct {
	handlers [reasonCount][]Handler
	counts   [reasonCount]uint64
	logger   *slog.Logger
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{logger: slog.Default()}
}

func (d *Dispatcher) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	d.logger = logger
}

// AddHandler registers h for exits with the given reason. Handlers added
// later run first.
func (d *Dispatcher) AddHandler(reason Reason, h Handler) error {
	if reason == ReasonInvalid || reason >= reasonCount {
		return fmt.Errorf("vmexit: cannot register handler for %v", reason)
	}
	if h == nil {
		return fmt.Errorf("vmexit: nil handler for %v", reason)
	}
	d.handlers[reason] = append(d.handlers[reason], h)
	return nil
}

// AddInterruptWindowHandler registers h to run whenever the interrupt window
// of the vCPU reopens.
func (d *Dispatcher) AddInterruptWindowHandler(h Handler) error {
	return d.AddHandler(ReasonInterruptWindow, h)
}

// Dispatch runs the handlers registered for exit.Reason until one of them
// reports the exit handled.
func (d *Dispatcher) Dispatch(exit *Exit) error {
	if exit == nil || exit.Reason == ReasonInvalid || exit.Reason >= reasonCount {
		return fmt.Errorf("vmexit: invalid exit: %w", ErrUnhandledExit)
	}
	d.counts[exit.Reason]++

	handlers := d.handlers[exit.Reason]
	for i := len(handlers) - 1; i >= 0; i-- {
		if handlers[i](exit) {
			d.logger.Debug("vmexit: handled", "reason", exit.Reason, "vcpu", exit.VCPU)
			return nil
		}
	}
	return fmt.Errorf("vmexit: %v on vcpu %d: %w", exit.Reason, exit.VCPU, ErrUnhandledExit)
}

// Counts returns how many exits of each reason have been dispatched.
func (d *Dispatcher) Counts() map[Reason]uint64 {
	out := make(map[Reason]uint64)
	for reason, n := range d.counts {
		if n != 0 {
			out[Reason(reason)] = n
		}
	}
	return out
}
