// Package irqwindow models the interrupt window of a virtual CPU the way KVM
// exposes it in its run structure: the guest reports whether it can take an
// interrupt (ready_for_interrupt_injection with RFLAGS.IF set), the VMM can ask
// for an exit once it can (request_interrupt_window), and at most one event is
// injected per VM entry.
package irqwindow

import (
	"fmt"
	"log/slog"
)

// Window is the software interrupt window of one virtual CPU. It is driven
// from the vCPU's own thread and does no locking.
type Window struct {
	ready   bool
	exiting bool

	staged    uint8
	hasStaged bool

	delivered []uint8
	onDeliver func(vector uint8)

	logger *slog.Logger
}

func New() *Window {
	return &Window{logger: slog.Default()}
}

func (w *Window) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	w.logger = logger
}

// OnDeliver installs a hook called with every vector delivered on VM entry.
func (w *Window) OnDeliver(fn func(vector uint8)) { w.onDeliver = fn }

// SetReady records whether the guest can currently accept an external
// interrupt.
func (w *Window) SetReady(ready bool) { w.ready = ready }

// IsOpen reports whether an interrupt can be injected on the next entry.
func (w *Window) IsOpen() bool { return w.ready && !w.hasStaged }

func (w *Window) EnableExiting()       { w.exiting = true }
func (w *Window) DisableExiting()      { w.exiting = false }
func (w *Window) ExitingEnabled() bool { return w.exiting }

// Inject stages vector for delivery on the next VM entry. Injecting into a
// closed window is a caller bug.
func (w *Window) Inject(vector uint8) {
	if !w.IsOpen() {
		panic(fmt.Sprintf("irqwindow: inject of vector %#x into a closed window", vector))
	}
	w.staged = vector
	w.hasStaged = true
}

// Staged returns the vector waiting for the next entry, if any.
func (w *Window) Staged() (uint8, bool) { return w.staged, w.hasStaged }

// Enter simulates a VM entry. The staged vector, if any, is delivered to the
// guest. exitDue reports whether the vCPU would now take an interrupt-window
// exit: exiting is requested and the window is open.
func (w *Window) Enter() (vector uint8, delivered bool, exitDue bool) {
	if w.hasStaged {
		vector, delivered = w.staged, true
		w.hasStaged = false
		w.delivered = append(w.delivered, vector)
		w.logger.Debug("irqwindow: delivered", "vector", vector)
		if w.onDeliver != nil {
			w.onDeliver(vector)
		}
	}
	return vector, delivered, w.exiting && w.IsOpen()
}

// Delivered returns every vector delivered so far, oldest first.
func (w *Window) Delivered() []uint8 {
	out := make([]uint8, len(w.delivered))
	copy(out, w.delivered)
	return out
}
