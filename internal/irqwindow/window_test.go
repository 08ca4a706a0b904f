package irqwindow

import (
	"testing"

	"github.com/tinyrange/vlapic/internal/lapic"
	"github.com/tinyrange/vlapic/internal/vmexit"
)

var _ lapic.InterruptWindow = (*Window)(nil)

func TestWindowOneEventPerEntry(t *testing.T) {
	w := New()
	if w.IsOpen() {
		t.Fatalf("window open before the guest is ready")
	}

	w.SetReady(true)
	w.Inject(0x40)
	if w.IsOpen() {
		t.Fatalf("window still open with an event staged")
	}

	vector, delivered, _ := w.Enter()
	if !delivered || vector != 0x40 {
		t.Fatalf("enter delivered %#x, %v", vector, delivered)
	}
	if !w.IsOpen() {
		t.Fatalf("window closed after delivery")
	}
}

func TestWindowOnDeliver(t *testing.T) {
	w := New()
	var got []uint8
	w.OnDeliver(func(vector uint8) { got = append(got, vector) })

	w.SetReady(true)
	w.Enter()
	if len(got) != 0 {
		t.Fatalf("hook called with nothing staged: %v", got)
	}

	w.Inject(0x22)
	w.Enter()
	w.Inject(0x21)
	w.Enter()
	if len(got) != 2 || got[0] != 0x22 || got[1] != 0x21 {
		t.Fatalf("hook saw %v, want [0x22 0x21]", got)
	}
}

func TestWindowInjectClosedPanics(t *testing.T) {
	w := New()
	defer func() {
		if recover() == nil {
			t.Fatalf("inject into closed window did not panic")
		}
	}()
	w.Inject(0x20)
}

func TestWindowExitDue(t *testing.T) {
	w := New()
	w.EnableExiting()

	if _, _, exitDue := w.Enter(); exitDue {
		t.Fatalf("exit due while guest is not ready")
	}
	w.SetReady(true)
	if _, _, exitDue := w.Enter(); !exitDue {
		t.Fatalf("no exit due with exiting armed and window open")
	}
	w.DisableExiting()
	if _, _, exitDue := w.Enter(); exitDue {
		t.Fatalf("exit due with exiting disarmed")
	}
}

// The LAPIC and the window together deliver queued vectors highest first,
// one per entry, across interrupt-window exits.
func TestWindowDrivesLAPIC(t *testing.T) {
	page, err := lapic.AllocPage()
	if err != nil {
		t.Fatalf("alloc page: %v", err)
	}
	defer lapic.FreePage(page)
	regs, err := lapic.NewRegisterFile(page)
	if err != nil {
		t.Fatalf("register file: %v", err)
	}

	w := New()
	exits := vmexit.NewDispatcher()
	l, err := lapic.New(regs, w, exits, nil)
	if err != nil {
		t.Fatalf("new lapic: %v", err)
	}

	for _, v := range []uint8{0x30, 0x50, 0x40} {
		l.QueueInjection(v)
	}
	w.SetReady(true)

	for i := 0; i < 8; i++ {
		_, _, exitDue := w.Enter()
		if !exitDue {
			break
		}
		if err := exits.Dispatch(&vmexit.Exit{Reason: vmexit.ReasonInterruptWindow}); err != nil {
			t.Fatalf("dispatch: %v", err)
		}
	}
	w.Enter()

	got := w.Delivered()
	want := []uint8{0x50, 0x40, 0x30}
	if len(got) != len(want) {
		t.Fatalf("delivered %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delivered %v, want %v", got, want)
		}
	}
	if w.ExitingEnabled() {
		t.Fatalf("exiting still armed after the IRR drained")
	}
}
