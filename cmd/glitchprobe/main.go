// Copyright (C) 2017 Obermaier Johannes
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this file,
// you can obtain one at https://opensource.org/licenses/MIT

// Command glitchprobe is the attacker box: it bit-bangs SWD against a
// read-protected STM32F0, power-glitches past RDP level 1 one word at a
// time, and streams recovered Flash contents to an operator over a
// serial console. See internal/swd, internal/extractor and
// internal/console for the protocol this wires together.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/obermaierlabs/glitchprobe/internal/console"
	"github.com/obermaierlabs/glitchprobe/internal/extractor"
	"github.com/obermaierlabs/glitchprobe/internal/gpiochip"
	"github.com/obermaierlabs/glitchprobe/internal/host"
	"github.com/obermaierlabs/glitchprobe/internal/swd"
	"github.com/obermaierlabs/glitchprobe/internal/transport"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		logger.Fatal("flag parse", "err", err)
	}

	tgt, bus, err := host.Init(cfg.hostConfig())
	if err != nil {
		logger.Fatal("gpio backend init", "backend", cfg.backend, "err", err)
	}
	tgt.Init()

	port, err := transport.Open(cfg.serialPort)
	if err != nil {
		logger.Fatal("serial open", "port", cfg.serialPort, "err", err)
	}
	defer func() { _ = port.Close() }()

	ex := extractor.New(bus, tgt, logger)
	if cfg.jitterMin != 0 || cfg.jitterStep != 0 || cfg.jitterMax != 0 {
		start := cfg.jitterMin
		if start == 0 {
			start = extractor.JitterMin
		}
		ex.Jitter = extractor.JitterState{DelayMS: start, Min: cfg.jitterMin, Step: cfg.jitterStep, Max: cfg.jitterMax}
	}

	con := console.New(port, &statsAdapter{ex})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("glitchprobe ready", "port", cfg.serialPort, "backend", cfg.backend)
	runLoop(con, ex, tgt, port, logger, sigCh)
}

// statsAdapter presents extractor.Extractor's Stats struct fields as the
// single Stats() method internal/console's 'p' command needs. It exists
// only because Extractor already has a field named Stats: Go forbids a
// method and a field of the same name on one type.
type statsAdapter struct{ ex *extractor.Extractor }

func (s *statsAdapter) Stats() (attempts, successes, failures uint32) {
	return s.ex.Stats.Attempts, s.ex.Stats.Successes, s.ex.Stats.Failures
}

// runLoop is the top-level loop: poll the console, poll the start button,
// and while a readout is active or the button has latched one, extract
// the next word of the configured window.
func runLoop(con *console.Console, ex *extractor.Extractor, tgt interface{ ButtonPressed() bool }, in interface{ Read([]byte) (int, error) }, logger *log.Logger, sigCh chan os.Signal) {
	var readoutIndex uint32
	var btnActive, runActive bool
	var buf [64]byte

	for {
		select {
		case <-sigCh:
			logger.Info("shutting down")
			return
		default:
		}

		n, _ := in.Read(buf[:])
		for i := 0; i < n; i++ {
			con.Feed(buf[i])
		}

		if tgt.ButtonPressed() {
			btnActive = true
		}

		if !con.Cfg.Active && !btnActive {
			runActive = false
			continue
		}

		if !runActive {
			// First iteration of a new run: zero the counters before
			// the first attempt of this activation.
			ex.Stats.Reset()
			runActive = true
		}

		addr := con.Cfg.BaseAddress + readoutIndex
		status, data := ex.ExtractWord(addr)

		if status == swd.StatusOK {
			con.EmitWord(data)
			readoutIndex += 4
			logger.Debug("word recovered", "addr", addr, "data", data)
		} else {
			logger.Warn("extraction failed, ending run", "addr", addr, "status", status)
			con.EmitFailure(uint8(status))
			readoutIndex = con.Cfg.Length // force end-of-run below
		}

		if readoutIndex >= con.Cfg.Length {
			con.EmitEndOfRun()
			con.Cfg.Active = false
			btnActive = false
			runActive = false
			readoutIndex = 0
		}
	}
}

type flags struct {
	serialPort string
	backend    string
	chipPath   string
	ftdiIndex  int

	pinSWDIO, pinSWCLK, pinReset, pinPower, pinLED, pinStatusLED, pinButton uint32

	lineDelay       time.Duration
	jitterMin       uint16
	jitterStep      uint16
	jitterMax       uint16
	enableJTAGToSWD bool
}

func parseFlags(args []string) (flags, error) {
	fs := pflag.NewFlagSet("glitchprobe", pflag.ContinueOnError)

	serialPort := fs.String("serial-port", "/dev/ttyUSB0", "operator console serial device")
	_ = fs.Int("baud", 115200, "console baud rate (the console protocol is fixed at 115200 8N1; this flag exists for documentation/future transports)")
	backend := fs.String("backend", "gpiochip", `GPIO backend: "gpiochip" or "ftdi"`)
	chipPath := fs.String("chip", "/dev/gpiochip0", "gpiochip backend: character device path")
	ftdiIndex := fs.Int("ftdi-index", 0, "ftdi backend: device index")

	pinSWDIO := fs.Uint32("pin-swdio", gpiochip.DefaultLineNames().SWDIO, "gpiochip backend: SWDIO line offset")
	pinSWCLK := fs.Uint32("pin-swclk", gpiochip.DefaultLineNames().SWCLK, "gpiochip backend: SWCLK line offset")
	pinReset := fs.Uint32("pin-reset", gpiochip.DefaultLineNames().Reset, "gpiochip backend: target RESET line offset")
	pinPower := fs.Uint32("pin-power", gpiochip.DefaultLineNames().Power, "gpiochip backend: target POWER line offset")
	pinLED := fs.Uint32("pin-led", gpiochip.DefaultLineNames().LED, "gpiochip backend: per-attempt LED line offset")
	pinStatusLED := fs.Uint32("pin-status-led", gpiochip.DefaultLineNames().StatusLED, "gpiochip backend: always-on status LED line offset")
	pinButton := fs.Uint32("pin-button", gpiochip.DefaultLineNames().Button, "gpiochip backend: manual start button line offset")

	lineDelay := fs.Duration("line-delay", time.Microsecond, "SWD per-edge settle delay")
	jitterMin := fs.Uint16("jitter-min", 0, "override the jitter schedule's minimum delay in ms (0 = package default of 20)")
	jitterStep := fs.Uint16("jitter-step", 0, "override the jitter schedule's step in ms (0 = package default of 1)")
	jitterMax := fs.Uint16("jitter-max", 0, "override the jitter schedule's wrap point in ms (0 = package default of 50)")
	enableJTAGToSWD := fs.Bool("enable-jtag-to-swd", false, "send the JTAG-to-SWD selection sequence during line reset (SWD-only targets leave this off)")

	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}

	if *backend != "gpiochip" && *backend != "ftdi" {
		return flags{}, fmt.Errorf("--backend must be \"gpiochip\" or \"ftdi\", got %q", *backend)
	}

	return flags{
		serialPort:      *serialPort,
		backend:         *backend,
		chipPath:        *chipPath,
		ftdiIndex:       *ftdiIndex,
		pinSWDIO:        *pinSWDIO,
		pinSWCLK:        *pinSWCLK,
		pinReset:        *pinReset,
		pinPower:        *pinPower,
		pinLED:          *pinLED,
		pinStatusLED:    *pinStatusLED,
		pinButton:       *pinButton,
		lineDelay:       *lineDelay,
		jitterMin:       *jitterMin,
		jitterStep:      *jitterStep,
		jitterMax:       *jitterMax,
		enableJTAGToSWD: *enableJTAGToSWD,
	}, nil
}

func (f flags) hostConfig() host.Config {
	return host.Config{
		Backend:  host.Backend(f.backend),
		ChipPath: f.chipPath,
		Lines: gpiochip.LineNames{
			SWDIO: f.pinSWDIO, SWCLK: f.pinSWCLK, Reset: f.pinReset,
			Power: f.pinPower, LED: f.pinLED, StatusLED: f.pinStatusLED, Button: f.pinButton,
		},
		FTDIIndex:       f.ftdiIndex,
		LineDelay:       f.lineDelay,
		EnableJTAGToSWD: f.enableJTAGToSWD,
	}
}
