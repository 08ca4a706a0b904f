//go:build !linux

package main

import (
	"fmt"
	"io"
	"runtime"

	"github.com/tinyrange/vlapic/internal/lapic"
)

func openMSRSource(cpu int) (lapic.PhysicalSource, io.Closer, error) {
	return nil, nil, fmt.Errorf("reading x2APIC MSRs of cpu %d is not supported on %s", cpu, runtime.GOOS)
}
