// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package host wires up whichever GPIO backend the operator selected —
// the Linux gpiochip character device (default) or an FTDI MPSSE adapter
// (behind the ftdi build tag) — and drives periph.io's driver registry
// through initialization, the same shape as periph.io/x/host/v3's own
// host.Init. It hands cmd/glitchprobe a ready-to-use target.Target and
// swd.Bus instead of raw gpio.PinIO handles.
package host

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/driver/driverreg"

	"github.com/obermaierlabs/glitchprobe/internal/gpiochip"
	"github.com/obermaierlabs/glitchprobe/internal/swd"
	"github.com/obermaierlabs/glitchprobe/internal/target"
)

// Backend names the GPIO driver to bring up.
type Backend string

const (
	BackendGPIOChip Backend = "gpiochip"
	BackendFTDI     Backend = "ftdi"
)

// Config selects and parameterizes the backend to register before Init
// is called.
type Config struct {
	Backend Backend

	ChipPath string
	Lines    gpiochip.LineNames

	FTDIIndex int

	// LineDelay is the per-SWD-edge settle time.
	LineDelay time.Duration

	EnableJTAGToSWD bool
}

// DefaultConfig targets /dev/gpiochip0 with the rig's reference wiring,
// no JTAG-to-SWD sequence, and a 1us line delay, slow enough for any
// SWD-capable target to sample cleanly.
func DefaultConfig() Config {
	return Config{
		Backend:   BackendGPIOChip,
		ChipPath:  "/dev/gpiochip0",
		Lines:     gpiochip.DefaultLineNames(),
		LineDelay: time.Microsecond,
	}
}

// Init registers the configured backend, runs driverreg.Init(), and
// returns a Target and SWD Bus wired over the resulting lines.
func Init(cfg Config) (*target.Target, *swd.Bus, error) {
	switch cfg.Backend {
	case BackendGPIOChip, "":
		return initGPIOChip(cfg)
	case BackendFTDI:
		return openFTDI(cfg)
	default:
		return nil, nil, fmt.Errorf("host: unknown backend %q", cfg.Backend)
	}
}

func initGPIOChip(cfg Config) (*target.Target, *swd.Bus, error) {
	gpiochip.Register(cfg.ChipPath, cfg.Lines)
	if _, err := driverreg.Init(); err != nil {
		return nil, nil, err
	}
	lines := gpiochip.Opened()
	if lines == nil {
		return nil, nil, fmt.Errorf("host: gpiochip backend did not open any lines")
	}
	tgt := target.New(lines.Power, lines.Reset, lines.LED, lines.StatusLED, lines.Button)
	bus := &swd.Bus{
		SWDIO:           lines.SWDIO,
		SWCLK:           lines.SWCLK,
		LineDelay:       cfg.LineDelay,
		EnableJTAGToSWD: cfg.EnableJTAGToSWD,
	}
	return tgt, bus, nil
}
