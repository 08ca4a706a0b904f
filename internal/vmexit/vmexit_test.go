package vmexit

import (
	"errors"
	"testing"
)

func TestDispatchRunsLatestHandlerFirst(t *testing.T) {
	d := NewDispatcher()
	var order []string

	if err := d.AddInterruptWindowHandler(func(*Exit) bool {
		order = append(order, "first")
		return true
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := d.AddInterruptWindowHandler(func(*Exit) bool {
		order = append(order, "second")
		return false
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := d.Dispatch(&Exit{Reason: ReasonInterruptWindow, VCPU: 1}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Fatalf("handler order = %v", order)
	}
	if got := d.Counts()[ReasonInterruptWindow]; got != 1 {
		t.Fatalf("interrupt window count = %d", got)
	}
}

func TestDispatchUnhandled(t *testing.T) {
	d := NewDispatcher()
	if err := d.Dispatch(&Exit{Reason: ReasonMSRWrite}); !errors.Is(err, ErrUnhandledExit) {
		t.Fatalf("err = %v, want %v", err, ErrUnhandledExit)
	}
	if err := d.Dispatch(nil); !errors.Is(err, ErrUnhandledExit) {
		t.Fatalf("nil exit: err = %v", err)
	}
}

func TestAddHandlerValidates(t *testing.T) {
	d := NewDispatcher()
	if err := d.AddHandler(ReasonInvalid, func(*Exit) bool { return true }); err == nil {
		t.Fatalf("registered handler for invalid reason")
	}
	if err := d.AddHandler(ReasonMMIO, nil); err == nil {
		t.Fatalf("registered nil handler")
	}
}

func TestReasonString(t *testing.T) {
	if got := ReasonInterruptWindow.String(); got != "interrupt_window" {
		t.Fatalf("String() = %q", got)
	}
	if got := Reason(200).String(); got != "Reason(200)" {
		t.Fatalf("String() = %q", got)
	}
}
