//go:build linux

package main

import (
	"io"

	"github.com/tinyrange/vlapic/internal/lapic"
	"github.com/tinyrange/vlapic/internal/x2apic"
)

func openMSRSource(cpu int) (lapic.PhysicalSource, io.Closer, error) {
	r, err := x2apic.OpenMSR(cpu)
	if err != nil {
		return nil, nil, err
	}
	return r, r, nil
}
