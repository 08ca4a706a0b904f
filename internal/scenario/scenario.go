// Package scenario replays scripted interrupt traffic against a virtual
// LAPIC wired to a software interrupt window and exit dispatcher.
package scenario

import (
	"fmt"
	"os"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/tinyrange/vlapic/internal/lapic"
)

// SupportedMajor is the scenario format major version this package reads.
const SupportedMajor = "v1"

type Op string

const (
	OpReady    Op = "ready"
	OpQueue    Op = "queue"
	OpSpurious Op = "spurious"
	OpEOI      Op = "eoi"
	OpEnter    Op = "enter"
	OpDrain    Op = "drain"
	OpWrite    Op = "write"
	OpICR      Op = "icr"
	OpTPR      Op = "tpr"
	OpSVR      Op = "svr"
	OpSelfIPI  Op = "self_ipi"
	OpReset    Op = "reset"
)

// Scenario is a scripted sequence of operations on one vCPU's LAPIC.
type Scenario struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	VCPU    int    `yaml:"vcpu"`
	// Physical seeds the LAPIC as if read from a physical x2APIC.
	Physical map[string]uint32 `yaml:"physical,omitempty"`
	Steps    []Step            `yaml:"steps"`
}

// Step is one scenario operation. Which fields matter depends on Op.
type Step struct {
	Op       Op     `yaml:"op"`
	Vector   uint8  `yaml:"vector,omitempty"`
	Ready    bool   `yaml:"ready,omitempty"`
	Register string `yaml:"register,omitempty"`
	Value    uint64 `yaml:"value,omitempty"`
	// Count repeats enter steps; zero means once.
	Count int `yaml:"count,omitempty"`
}

func (s Step) String() string {
	switch s.Op {
	case OpReady:
		return fmt.Sprintf("ready=%v", s.Ready)
	case OpQueue, OpSpurious:
		return fmt.Sprintf("%s %#x", s.Op, s.Vector)
	case OpWrite:
		return fmt.Sprintf("write %s=%#x", s.Register, s.Value)
	case OpICR, OpTPR, OpSVR, OpSelfIPI:
		return fmt.Sprintf("%s=%#x", s.Op, s.Value)
	default:
		return string(s.Op)
	}
}

// Parse decodes and validates a YAML scenario.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("scenario: parse: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: read %s: %w", path, err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Validate checks the format version and every step.
func (sc *Scenario) Validate() error {
	if !semver.IsValid(sc.Version) {
		return fmt.Errorf("scenario: invalid version %q", sc.Version)
	}
	if major := semver.Major(sc.Version); major != SupportedMajor {
		return fmt.Errorf("scenario: unsupported version %s (want %s.x)", sc.Version, SupportedMajor)
	}
	if sc.VCPU < 0 {
		return fmt.Errorf("scenario: negative vcpu %d", sc.VCPU)
	}
	for i, step := range sc.Steps {
		if err := step.validate(); err != nil {
			return fmt.Errorf("scenario: step %d: %w", i, err)
		}
	}
	return nil
}

func (s Step) validate() error {
	switch s.Op {
	case OpReady, OpQueue, OpSpurious, OpEOI, OpDrain, OpICR, OpTPR, OpSVR, OpSelfIPI, OpReset:
	case OpEnter:
		if s.Count < 0 {
			return fmt.Errorf("negative count %d", s.Count)
		}
	case OpWrite:
		if s.Register == "" {
			return fmt.Errorf("write needs a register")
		}
		if _, err := lapic.ParseOffset(s.Register); err != nil {
			return err
		}
	case "":
		return fmt.Errorf("missing op")
	default:
		return fmt.Errorf("unknown op %q", s.Op)
	}
	return nil
}
