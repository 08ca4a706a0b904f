package lapic

import (
	"fmt"

	"github.com/tinyrange/vlapic/internal/vmexit"
)

// State is the injection state of a LAPIC as of its last decision.
type State uint8

const (
	// StateIdle: nothing pending in the IRR.
	StateIdle State = iota
	// StatePending: vectors wait in the IRR for the window to open, and
	// window exiting is armed.
	StatePending
	// StateInjecting: a vector is being handed to an open window.
	StateInjecting
	// StateDraining: an interrupt-window exit is popping the IRR.
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateInjecting:
		return "injecting"
	case StateDraining:
		return "draining"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// State returns the injection state of the LAPIC. Between calls it is
// StateIdle or StatePending; StateInjecting and StateDraining are only
// visible to the window while its Inject runs.
func (l *LAPIC) State() State { return l.state }

// settle records the resting state once a call is done with the window.
func (l *LAPIC) settle() {
	if l.regs.IRR().IsEmpty() {
		l.state = StateIdle
	} else {
		l.state = StatePending
	}
}

// QueueInjection delivers vector to the guest as soon as it can take it:
// right away when the interrupt window is open, otherwise once the window
// reopens.
func (l *LAPIC) QueueInjection(vector uint8) {
	l.stats.Queued++

	if l.window.IsOpen() {
		l.state = StateInjecting
		l.injectInterrupt(vector)
		l.settle()
		return
	}

	l.regs.IRR().Set(vector)
	l.state = StatePending
	l.window.EnableExiting()
}

// injectInterrupt moves vector from the IRR to the ISR and hands it to the
// window. The vector is in service before the window sees it.
func (l *LAPIC) injectInterrupt(vector uint8) {
	l.regs.IRR().Clear(vector)
	l.regs.ISR().Set(vector)
	l.stats.Injected++

	l.window.Inject(vector)
}

// InjectSpurious injects vector without recording it in the IRR or ISR. A
// spurious vector is best effort: with the window closed it is dropped.
func (l *LAPIC) InjectSpurious(vector uint8) {
	if l.window.IsOpen() {
		l.stats.SpuriousSent++
		l.window.Inject(vector)
		return
	}

	l.stats.SpuriousDropped++
	l.logger.Warn("lapic: inject spurious denied: interrupt window closed",
		"vcpu", l.vcpu,
		"vector", vector,
		"dropped", l.stats.SpuriousDropped,
	)
}

// HandleInterruptWindowExit runs when the interrupt window reopens. It
// injects the highest pending vector and keeps window exiting armed for as
// long as vectors remain. The exit is always handled.
func (l *LAPIC) HandleInterruptWindowExit(*vmexit.Exit) bool {
	l.stats.WindowExits++

	if l.regs.IRR().IsEmpty() {
		l.window.DisableExiting()
		l.state = StateIdle
		return true
	}

	l.state = StateDraining
	vector := l.regs.IRR().Top()
	l.regs.IRR().Pop()
	l.injectInterrupt(vector)

	l.settle()
	if l.state == StateIdle {
		l.window.DisableExiting()
	} else {
		l.window.EnableExiting()
	}
	return true
}
