// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpiochip

import (
	"fmt"
	"os"

	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// LineNames are the seven lines the rig drives, fixed at these offsets on
// the board's GPIO header. A real deployment's wiring is constant, so
// unlike periph-host/gpioioctl this backend does not discover/enumerate
// every chip and line on the system — it opens exactly one chip and
// requests exactly these offsets.
type LineNames struct {
	SWDIO, SWCLK, Reset, Power, LED, StatusLED, Button uint32
}

// DefaultLineNames matches the attack rig's reference wiring.
func DefaultLineNames() LineNames {
	return LineNames{SWDIO: 17, SWCLK: 27, Reset: 22, Power: 23, LED: 24, StatusLED: 26, Button: 25}
}

// Lines holds the seven opened gpio.PinIO handles: SWDIO/SWCLK/Reset/
// Power/LED/Button plus an always-on boot/alive indicator.
type Lines struct {
	SWDIO, SWCLK, Reset, Power, LED, StatusLED, Button *Line
}

// driver implements periph.Driver so host.Init can register this backend
// alongside the others without the caller needing to know it exists.
type driver struct {
	chipPath string
	names    LineNames
	lines    *Lines
}

func (d *driver) String() string { return "gpiochip" }
func (d *driver) Prerequisites() []string { return nil }
func (d *driver) After() []string { return nil }

func (d *driver) Init() (bool, error) {
	if _, err := os.Stat(d.chipPath); err != nil {
		return false, nil
	}
	chip, err := Open(d.chipPath)
	if err != nil {
		return true, err
	}
	consumer := fmt.Sprintf("glitchprobe@%d", os.Getpid())

	open := func(offset uint32, name string) (*Line, error) {
		l, err := chip.Line(offset, name, consumer)
		if err != nil {
			return nil, err
		}
		if err := gpioreg.Register(l); err != nil {
			return nil, err
		}
		return l, nil
	}

	var lines Lines
	var err2 error
	if lines.SWDIO, err2 = open(d.names.SWDIO, "SWDIO"); err2 != nil {
		return true, err2
	}
	if lines.SWCLK, err2 = open(d.names.SWCLK, "SWCLK"); err2 != nil {
		return true, err2
	}
	if lines.Reset, err2 = open(d.names.Reset, "RESET"); err2 != nil {
		return true, err2
	}
	if lines.Power, err2 = open(d.names.Power, "POWER"); err2 != nil {
		return true, err2
	}
	if lines.LED, err2 = open(d.names.LED, "LED"); err2 != nil {
		return true, err2
	}
	if lines.StatusLED, err2 = open(d.names.StatusLED, "STATUS_LED"); err2 != nil {
		return true, err2
	}
	if lines.Button, err2 = open(d.names.Button, "BUTTON"); err2 != nil {
		return true, err2
	}
	d.lines = &lines
	return true, nil
}

var defaultDriver = &driver{chipPath: "/dev/gpiochip0", names: DefaultLineNames()}

// Register installs the gpiochip backend with driverreg, opening chipPath
// and requesting names' offsets on first Init(). Called from
// internal/host; not in an init() func, since the chip path and line
// offsets are both deployment-specific flags, not compile-time constants.
func Register(chipPath string, names LineNames) {
	defaultDriver = &driver{chipPath: chipPath, names: names}
	driverreg.MustRegister(defaultDriver)
}

// Opened returns the seven lines requested by the most recent successful
// Init(), or nil before that has happened.
func Opened() *Lines {
	return defaultDriver.lines
}
