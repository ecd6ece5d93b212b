// Copyright (C) 2017 Obermaier Johannes
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this file,
// you can obtain one at https://opensource.org/licenses/MIT

// Package target controls the device under attack: its supply rail, its
// NRST line, the attempt/boot indicator LEDs, and the manual start button.
// The SWD lines themselves belong to internal/swd; this package only owns
// the sequencing lines around them.
package target

import (
	"periph.io/x/conn/v3/gpio"
)

// Target wraps the five sequencing lines as gpio.PinIO so either hardware
// backend (gpiochip or ftdiswd) can supply them.
type Target struct {
	power     gpio.PinIO
	reset     gpio.PinIO
	led       gpio.PinIO
	statusLED gpio.PinIO
	button    gpio.PinIO
}

// New wires a Target over the given lines. NRST is active-low: ResetAssert
// drives the line low, ResetRelease drives it high.
func New(power, reset, led, statusLED, button gpio.PinIO) *Target {
	return &Target{power: power, reset: reset, led: led, statusLED: statusLED, button: button}
}

// Init puts the target into the known pre-attack state: unpowered, held in
// reset, attempt LED off, and lights the boot indicator so the operator can
// see the rig came up.
func (t *Target) Init() {
	t.PowerOff()
	t.ResetAssert()
	t.AttemptLEDOff()
	_ = t.statusLED.Out(gpio.High)
}

// PowerOn raises the target's supply rail.
func (t *Target) PowerOn() {
	_ = t.power.Out(gpio.High)
}

// PowerOff cuts the target's supply rail.
func (t *Target) PowerOff() {
	_ = t.power.Out(gpio.Low)
}

// ResetAssert holds the target in reset.
func (t *Target) ResetAssert() {
	_ = t.reset.Out(gpio.Low)
}

// ResetRelease lets the target out of reset; the glitch window opens here.
func (t *Target) ResetRelease() {
	_ = t.reset.Out(gpio.High)
}

// AttemptLEDOn lights the per-attempt LED, signalling a recovered word.
func (t *Target) AttemptLEDOn() {
	_ = t.led.Out(gpio.High)
}

// AttemptLEDOff clears the per-attempt LED at the start of an attempt.
func (t *Target) AttemptLEDOff() {
	_ = t.led.Out(gpio.Low)
}

// ButtonPressed samples the manual start button. There is no debounce; a
// single high read latches a run in the top-level loop.
func (t *Target) ButtonPressed() bool {
	return t.button.Read() == gpio.High
}
