// Package x2apic provides read sources for the registers of a physical
// x2APIC, used to seed a virtual LAPIC when it is created.
package x2apic

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/tinyrange/vlapic/internal/lapic"
)

// Snapshot is a captured set of register values. Registers missing from the
// snapshot read as zero.
type Snapshot map[lapic.Offset]uint32

// ReadRegister implements lapic.PhysicalSource.
func (s Snapshot) ReadRegister(off lapic.Offset) uint32 { return s[off] }

// Capture copies every register of regs into a snapshot.
func Capture(regs *lapic.RegisterFile) Snapshot {
	snap := make(Snapshot)
	for _, off := range lapic.Offsets() {
		snap[off] = regs.Read(off)
	}
	return snap
}

// NonZero returns the snapshot without its zero registers.
func (s Snapshot) NonZero() Snapshot {
	out := make(Snapshot)
	for off, val := range s {
		if val != 0 {
			out[off] = val
		}
	}
	return out
}

type snapshotFile struct {
	Registers map[string]uint32 `yaml:"registers"`
}

// ParseSnapshot decodes a YAML register dump of the form
//
//	registers:
//	  id: 0x01000000
//	  svr: 0x1ff
func ParseSnapshot(data []byte) (Snapshot, error) {
	var file snapshotFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("x2apic: parse snapshot: %w", err)
	}
	return FromNames(file.Registers)
}

// FromNames builds a snapshot from register names as printed by
// lapic.Offset.String.
func FromNames(regs map[string]uint32) (Snapshot, error) {
	snap := make(Snapshot, len(regs))
	for name, val := range regs {
		off, err := lapic.ParseOffset(name)
		if err != nil {
			return nil, fmt.Errorf("x2apic: %w", err)
		}
		snap[off] = val
	}
	return snap, nil
}

// LoadSnapshot reads a YAML register dump from path.
func LoadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("x2apic: read snapshot: %w", err)
	}
	return ParseSnapshot(data)
}

// MarshalYAML writes the snapshot in the format ParseSnapshot reads, with
// registers in offset order and values in hex.
func (s Snapshot) MarshalYAML() (interface{}, error) {
	offs := make([]lapic.Offset, 0, len(s))
	for off := range s {
		offs = append(offs, off)
	}
	sort.Slice(offs, func(i, j int) bool { return offs[i] < offs[j] })

	regs := &yaml.Node{Kind: yaml.MappingNode}
	for _, off := range offs {
		regs.Content = append(regs.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: off.String()},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: fmt.Sprintf("%#x", s[off])},
		)
	}
	return &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "registers"},
			regs,
		},
	}, nil
}

var _ lapic.PhysicalSource = Snapshot(nil)
