// Command lapicctl builds a virtual local APIC, replays an interrupt scenario
// against it and prints the resulting register page.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/tinyrange/vlapic/internal/scenario"
	"github.com/tinyrange/vlapic/internal/x2apic"
)

func run() error {
	scenarioFile := flag.String("scenario", "", "scenario YAML file to replay")
	physFile := flag.String("physical", "", "YAML register dump to seed the LAPIC from")
	msrCPU := flag.Int("msr-cpu", -1, "seed the LAPIC from this host CPU's x2APIC MSRs (linux, needs root)")
	dumpFile := flag.String("dump", "", "write the final registers as YAML to this file")
	all := flag.Bool("all", false, "print registers that are zero")
	verbose := flag.Bool("v", false, "enable debug logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: lapicctl [flags]

Replays an interrupt scenario against a virtual local APIC and prints its
registers. Without -scenario the freshly initialised register page is printed.

Flags:
`)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 0 {
		flag.Usage()
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	sc := &scenario.Scenario{Name: "init", Version: scenario.SupportedMajor + ".0.0"}
	if *scenarioFile != "" {
		var err error
		sc, err = scenario.Load(*scenarioFile)
		if err != nil {
			return err
		}
	}

	opts := scenario.Options{Logger: logger}
	switch {
	case *physFile != "" && *msrCPU >= 0:
		return fmt.Errorf("-physical and -msr-cpu are mutually exclusive")
	case *physFile != "":
		snap, err := x2apic.LoadSnapshot(*physFile)
		if err != nil {
			return err
		}
		opts.Physical = snap
	case *msrCPU >= 0:
		phys, closer, err := openMSRSource(*msrCPU)
		if err != nil {
			return err
		}
		defer closer.Close()
		opts.Physical = phys
	}

	interactive := term.IsTerminal(int(os.Stderr.Fd()))
	if interactive && len(sc.Steps) > 0 {
		bar := progressbar.NewOptions(len(sc.Steps),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(sc.Name),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
		opts.Progress = func(int, scenario.Step) { _ = bar.Add(1) }
		opts.Deliver = func(vector uint8) {
			bar.Describe(fmt.Sprintf("%s: delivered 0x%02x", sc.Name, vector))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := scenario.Run(ctx, sc, opts)
	if err != nil {
		return err
	}

	color := term.IsTerminal(int(os.Stdout.Fd()))
	if err := writeDump(os.Stdout, res.Registers, dumpOptions{all: *all, color: color}); err != nil {
		return err
	}
	if err := writeVectors(os.Stdout, "delivered", res.Delivered); err != nil {
		return err
	}
	fmt.Printf("state: %v\n", res.State)
	if res.Stats.SpuriousDropped != 0 {
		fmt.Printf("spurious dropped: %d\n", res.Stats.SpuriousDropped)
	}

	if *dumpFile != "" {
		data, err := yaml.Marshal(res.Registers)
		if err != nil {
			return fmt.Errorf("encode register dump: %w", err)
		}
		if err := os.WriteFile(*dumpFile, data, 0o644); err != nil {
			return fmt.Errorf("write register dump: %w", err)
		}
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "lapicctl: %v\n", err)
		os.Exit(1)
	}
}
