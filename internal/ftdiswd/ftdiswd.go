// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build ftdi

// Package ftdiswd drives the seven lines the attack rig needs (SWDIO, SWCLK,
// RESET, POWER, LED, BUTTON, plus the boot-indicator STATUS_LED) over an
// FT232H/FT232R's MPSSE GPIO-set/GPIO-read opcodes, for operators who
// prefer a USB dongle to a bare SBC GPIO header. It is the secondary
// backend behind the "ftdi" build tag; the gpiochip backend is the
// default.
//
// The MPSSE opcode framing (gpioSetD/gpioReadD, a trailing "Send
// Immediate" flush) is generalized from periph-host's ftdi/mpsse.go,
// which uses the same bytes for its own synchronous bit-bang GPIO mode;
// here every line is driven individually through the 8-bit D-bus byte
// rather than through periph-host's JTAG/SPI/I2C framing.
package ftdiswd

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/d2xx"
)

const (
	bitModeReset byte = 0x00
	bitModeMPSSE byte = 0x02

	gpioSetD  byte = 0x80
	gpioReadD byte = 0x81
	flush     byte = 0x87
)

// LineBits maps the seven logical lines to D-bus bit positions (D0..D7) on
// the FTDI device.
type LineBits struct {
	SWDIO, SWCLK, Reset, Power, LED, StatusLED, Button uint
}

// DefaultLineBits matches the rig's reference wiring on the FT232H D-bus.
func DefaultLineBits() LineBits {
	return LineBits{SWDIO: 0, SWCLK: 1, Reset: 2, Power: 3, LED: 4, StatusLED: 5, Button: 6}
}

// dbus is the shared, cached D-bus state: one MPSSE GPIO-set call touches
// all 8 bits at once, so every pin.Out must go through this single mutex-
// guarded byte pair rather than addressing its bit in isolation.
type dbus struct {
	mu        sync.Mutex
	h         d2xx.Handle
	direction byte
	value     byte
}

func (d *dbus) err(op string, e d2xx.Err) error {
	if e == 0 {
		return nil
	}
	return fmt.Errorf("ftdiswd: %s: %d", op, e)
}

func (d *dbus) write() error {
	_, e := d.h.Write([]byte{gpioSetD, d.value, d.direction})
	return d.err("gpioSetD", e)
}

func (d *dbus) setDirection(bit uint, output bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if output {
		d.direction |= 1 << bit
	} else {
		d.direction &^= 1 << bit
	}
	return d.write()
}

func (d *dbus) set(bit uint, level gpio.Level) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.direction |= 1 << bit
	if level {
		d.value |= 1 << bit
	} else {
		d.value &^= 1 << bit
	}
	return d.write()
}

func (d *dbus) readAll() (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, e := d.h.Write([]byte{gpioReadD, flush}); e != 0 {
		return 0, d.err("gpioReadD", e)
	}
	var b [1]byte
	if _, e := d.h.Read(b[:]); e != 0 {
		return 0, d.err("gpioReadD read", e)
	}
	return b[0], nil
}

// Pin is one logical line bit-banged through the shared dbus.
type Pin struct {
	d    *dbus
	bit  uint
	name string
}

var _ gpio.PinIO = &Pin{}

func (p *Pin) String() string { return p.name }
func (p *Pin) Name() string { return p.name }
func (p *Pin) Number() int { return int(p.bit) }
func (p *Pin) Function() string { return "" }
func (p *Pin) Halt() error { return nil }
func (p *Pin) Pull() gpio.Pull { return gpio.PullUp }
func (p *Pin) DefaultPull() gpio.Pull { return gpio.PullUp }
func (p *Pin) PWM(gpio.Duty, physic.Frequency) error {
	return fmt.Errorf("ftdiswd: %s: PWM not supported", p.name)
}

// In switches the line to input; the FT232H's GPIO bit positions carry a
// fixed ~75kOhm pull-up, so SWDIO's idle/high-Z turnaround needs no
// extra configuration to float high between transactions.
func (p *Pin) In(gpio.Pull, gpio.Edge) error {
	return p.d.setDirection(p.bit, false)
}

// Out drives the line push-pull to level.
func (p *Pin) Out(level gpio.Level) error {
	return p.d.set(p.bit, level)
}

// Read samples the line's current bit in the last D-bus readback.
func (p *Pin) Read() gpio.Level {
	v, err := p.d.readAll()
	if err != nil {
		return gpio.Low
	}
	return gpio.Level(v&(1<<p.bit) != 0)
}

func (p *Pin) WaitForEdge(time.Duration) bool { return false }

// Lines holds the seven opened gpio.PinIO handles, mirroring
// internal/gpiochip.Lines so internal/target and internal/host treat
// both backends identically.
type Lines struct {
	SWDIO, SWCLK, Reset, Power, LED, StatusLED, Button *Pin
}

// Open opens device index idx (0 for the first attached FTDI adapter),
// switches it into MPSSE mode, and returns the seven named lines per bits.
func Open(idx int, bits LineBits) (*Lines, error) {
	num, e := d2xx.CreateDeviceInfoList()
	if e != 0 {
		return nil, fmt.Errorf("ftdiswd: device list: %d", e)
	}
	if idx >= num {
		return nil, fmt.Errorf("ftdiswd: device index %d out of range (%d attached)", idx, num)
	}
	h, e := d2xx.Open(idx)
	if e != 0 {
		return nil, fmt.Errorf("ftdiswd: open device %d: %d", idx, e)
	}
	if e := h.SetBitMode(0, bitModeReset); e != 0 {
		return nil, fmt.Errorf("ftdiswd: reset bitmode: %d", e)
	}
	if e := h.SetBitMode(0, bitModeMPSSE); e != 0 {
		return nil, fmt.Errorf("ftdiswd: mpsse mode: %d", e)
	}

	d := &dbus{h: h}
	pin := func(bit uint, name string) *Pin { return &Pin{d: d, bit: bit, name: name} }

	return &Lines{
		SWDIO:     pin(bits.SWDIO, "SWDIO"),
		SWCLK:     pin(bits.SWCLK, "SWCLK"),
		Reset:     pin(bits.Reset, "RESET"),
		Power:     pin(bits.Power, "POWER"),
		LED:       pin(bits.LED, "LED"),
		StatusLED: pin(bits.StatusLED, "STATUS_LED"),
		Button:    pin(bits.Button, "BUTTON"),
	}, nil
}
