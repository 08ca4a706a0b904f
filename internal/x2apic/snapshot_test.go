package x2apic

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/tinyrange/vlapic/internal/lapic"
)

const testDump = `
registers:
  id: 0x01000000
  version: 0x01050014
  svr: 0x1ff
  lvt_timer: 0x400ec
  irr1: 8
`

func TestParseSnapshot(t *testing.T) {
	snap, err := ParseSnapshot([]byte(testDump))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	for off, want := range map[lapic.Offset]uint32{
		lapic.OffsetID:       0x01000000,
		lapic.OffsetVersion:  0x01050014,
		lapic.OffsetSVR:      0x1ff,
		lapic.OffsetLVTTimer: 0x400ec,
		lapic.OffsetIRR0 + 1: 8,
		lapic.OffsetTPR:      0,
	} {
		if got := snap.ReadRegister(off); got != want {
			t.Fatalf("%v = %#x, want %#x", off, got, want)
		}
	}
}

func TestParseSnapshotUnknownRegister(t *testing.T) {
	_, err := ParseSnapshot([]byte("registers:\n  bogus: 1\n"))
	if err == nil || !strings.Contains(err.Error(), "bogus") {
		t.Fatalf("err = %v, want unknown register error", err)
	}
}

func TestSnapshotYAMLRoundTrip(t *testing.T) {
	snap := Snapshot{
		lapic.OffsetID:       0x03000000,
		lapic.OffsetDFR:      0xFFFFFFFF,
		lapic.OffsetLVTLINT0: 0x700,
	}
	data, err := yaml.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	path := filepath.Join(t.TempDir(), "regs.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("load: %v\n%s", err, data)
	}
	if len(loaded) != len(snap) {
		t.Fatalf("loaded %v, want %v", loaded, snap)
	}
	for off, want := range snap {
		if got := loaded[off]; got != want {
			t.Fatalf("%v = %#x, want %#x\n%s", off, got, want, data)
		}
	}
}

func TestSnapshotSeedsLAPIC(t *testing.T) {
	page, err := lapic.AllocPage()
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	defer lapic.FreePage(page)
	regs, err := lapic.NewRegisterFile(page)
	if err != nil {
		t.Fatalf("register file: %v", err)
	}

	snap, err := ParseSnapshot([]byte(testDump))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	l, err := lapic.New(regs, nopWindow{}, nopRegistrar{}, snap)
	if err != nil {
		t.Fatalf("new lapic: %v", err)
	}

	if got := l.ReadID(); got != 0x01000000 {
		t.Fatalf("id = %#x", got)
	}
	if got := l.ReadRegister(lapic.OffsetDFR); got != lapic.DFRResetValue {
		t.Fatalf("dfr = %#x, want reset value", got)
	}

	captured := Capture(regs).NonZero()
	if got := captured[lapic.OffsetSVR]; got != 0x1ff {
		t.Fatalf("captured svr = %#x", got)
	}
	if _, ok := captured[lapic.OffsetTPR]; ok {
		t.Fatalf("NonZero kept a zero register")
	}
}
