// Copyright (C) 2017 Obermaier Johannes
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this file,
// you can obtain one at https://opensource.org/licenses/MIT

package target

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

type fakePin struct {
	name  string
	level gpio.Level
}

func (p *fakePin) String() string { return p.name }
func (p *fakePin) Name() string { return p.name }
func (p *fakePin) Number() int { return 0 }
func (p *fakePin) Function() string { return "" }
func (p *fakePin) Halt() error { return nil }
func (p *fakePin) In(gpio.Pull, gpio.Edge) error { return nil }
func (p *fakePin) Read() gpio.Level { return p.level }
func (p *fakePin) WaitForEdge(time.Duration) bool { return false }
func (p *fakePin) Pull() gpio.Pull { return gpio.PullNoChange }
func (p *fakePin) DefaultPull() gpio.Pull { return gpio.PullNoChange }
func (p *fakePin) PWM(gpio.Duty, physic.Frequency) error { return nil }

func (p *fakePin) Out(l gpio.Level) error {
	p.level = l
	return nil
}

var _ gpio.PinIO = &fakePin{}

func newTestTarget() (*Target, *fakePin, *fakePin, *fakePin, *fakePin, *fakePin) {
	power := &fakePin{name: "POWER"}
	reset := &fakePin{name: "RESET", level: gpio.High}
	led := &fakePin{name: "LED", level: gpio.High}
	statusLED := &fakePin{name: "STATUS_LED"}
	button := &fakePin{name: "BUTTON"}
	return New(power, reset, led, statusLED, button), power, reset, led, statusLED, button
}

func TestInitKnownState(t *testing.T) {
	tgt, power, reset, led, statusLED, _ := newTestTarget()
	tgt.Init()
	assert.Equal(t, gpio.Low, power.level, "target unpowered after Init")
	assert.Equal(t, gpio.Low, reset.level, "target held in reset after Init")
	assert.Equal(t, gpio.Low, led.level, "attempt LED cleared after Init")
	assert.Equal(t, gpio.High, statusLED.level, "boot indicator lit after Init")
}

func TestResetIsActiveLow(t *testing.T) {
	tgt, _, reset, _, _, _ := newTestTarget()
	tgt.ResetAssert()
	assert.Equal(t, gpio.Low, reset.level)
	tgt.ResetRelease()
	assert.Equal(t, gpio.High, reset.level)
}

func TestButtonPressed(t *testing.T) {
	tgt, _, _, _, _, button := newTestTarget()
	assert.False(t, tgt.ButtonPressed())
	button.level = gpio.High
	assert.True(t, tgt.ButtonPressed())
}
