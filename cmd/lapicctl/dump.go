package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/tinyrange/vlapic/internal/lapic"
	"github.com/tinyrange/vlapic/internal/x2apic"
)

var changedStyle = ansi.Style{}.Bold()

type dumpOptions struct {
	// all includes registers holding zero.
	all bool
	// color highlights registers that differ from their reset value.
	color bool
}

// writeDump prints one register per line: name, page offset, value.
func writeDump(w io.Writer, regs x2apic.Snapshot, opts dumpOptions) error {
	nameWidth := 0
	for _, off := range lapic.Offsets() {
		nameWidth = max(nameWidth, ansi.StringWidth(off.String()))
	}

	for _, off := range lapic.Offsets() {
		val := regs[off]
		if val == 0 && !opts.all {
			continue
		}

		name := off.String()
		line := fmt.Sprintf("%s%s  0x%03x  0x%08x", name, strings.Repeat(" ", nameWidth-ansi.StringWidth(name)), off.MemOffset(), val)
		if opts.color && val != lapic.ResetValue(off) {
			line = changedStyle.Styled(line)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func writeVectors(w io.Writer, label string, vectors []uint8) error {
	parts := make([]string, len(vectors))
	for i, v := range vectors {
		parts[i] = fmt.Sprintf("0x%02x", v)
	}
	_, err := fmt.Fprintf(w, "%s: [%s]\n", label, strings.Join(parts, " "))
	return err
}
