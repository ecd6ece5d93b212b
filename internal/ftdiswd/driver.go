// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build ftdi

package ftdiswd

import (
	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// driver implements periph.Driver, registering this backend's lines with
// the shared gpio registry the same way internal/gpiochip's driver does,
// so internal/host.Init can bring either one up without the caller
// branching on backend type.
type driver struct {
	index int
	bits  LineBits
	lines *Lines
}

func (d *driver) String() string { return "ftdiswd" }
func (d *driver) Prerequisites() []string { return nil }
func (d *driver) After() []string { return nil }

func (d *driver) Init() (bool, error) {
	lines, err := Open(d.index, d.bits)
	if err != nil {
		return true, err
	}
	for _, p := range []*Pin{lines.SWDIO, lines.SWCLK, lines.Reset, lines.Power, lines.LED, lines.StatusLED, lines.Button} {
		if err := gpioreg.Register(p); err != nil {
			return true, err
		}
	}
	d.lines = lines
	return true, nil
}

var defaultDriver = &driver{index: 0, bits: DefaultLineBits()}

// Register installs the ftdiswd backend with driverreg, opening device
// index and bits on first Init().
func Register(index int, bits LineBits) {
	defaultDriver = &driver{index: index, bits: bits}
	driverreg.MustRegister(defaultDriver)
}

// Opened returns the lines requested by the most recent successful
// Init(), or nil before that has happened.
func Opened() *Lines {
	return defaultDriver.lines
}
