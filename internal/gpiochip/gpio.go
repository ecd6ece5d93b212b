// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package gpiochip is the primary hardware backend: the seven lines the rig
// drives (SWDIO, SWCLK, RESET, POWER, LED, STATUS_LED, BUTTON), bit-banged
// over a
// Linux /dev/gpiochipN character device instead of the generic
// multi-chip/multi-consumer registry a desktop GPIO library would offer.
// SWDIO is the only line that flips between input (pulled up, to sample
// the target's drive) and output (push-pull, to drive the bus); every
// other line is fixed-direction for the lifetime of the process.
package gpiochip

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Chip wraps one open /dev/gpiochipN character device.
type Chip struct {
	path string
	file *os.File
}

// Open opens the chip at path (e.g. "/dev/gpiochip0").
func Open(path string) (*Chip, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("gpiochip: open %s: %w", path, err)
	}
	var info gpiochipInfo
	if err := ioctlChipInfo(int(f.Fd()), &info); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("gpiochip: chip info %s: %w", path, err)
	}
	return &Chip{path: path, file: f}, nil
}

// Close releases the chip's file descriptor.
func (c *Chip) Close() error {
	return c.file.Close()
}

// Line requests exclusive control of one offset on the chip, returning it
// as a gpio.PinIO named name. The line starts as an input with no bias;
// In/Out reconfigure it.
func (c *Chip) Line(offset uint32, name, consumer string) (*Line, error) {
	var req gpioV2LineRequest
	req.offsets[0] = offset
	req.numLines = 1
	copy(req.consumer[:], sanitizeConsumer(consumer))
	if err := ioctlLineRequest(int(c.file.Fd()), &req); err != nil {
		return nil, fmt.Errorf("gpiochip: request line %s (offset %d): %w", name, offset, err)
	}
	return &Line{fd: int(req.fd), offset: offset, name: name}, nil
}

// Line is one requested line of a Chip, implementing gpio.PinIO.
type Line struct {
	mu        sync.Mutex
	fd        int
	offset    uint32
	name      string
	direction gpio.Level
	isOutput  bool
	pull      gpio.Pull
}

var _ gpio.PinIO = &Line{}

func (l *Line) String() string { return l.name }
func (l *Line) Name() string { return l.name }
func (l *Line) Number() int { return int(l.offset) }
func (l *Line) Function() string { return "" }
func (l *Line) Halt() error { return nil }
func (l *Line) Pull() gpio.Pull { return l.pull }
func (l *Line) DefaultPull() gpio.Pull { return gpio.PullNoChange }

func (l *Line) PWM(gpio.Duty, physic.Frequency) error {
	return fmt.Errorf("gpiochip: %s: PWM not supported", l.name)
}

func (l *Line) WaitForEdge(time.Duration) bool { return false }

func flagsFor(pull gpio.Pull, output bool) uint64 {
	var flags uint64
	if output {
		flags |= lineFlagOutput
	} else {
		flags |= lineFlagInput
	}
	switch pull {
	case gpio.PullUp:
		flags |= lineFlagBiasPullUp
	case gpio.PullDown:
		flags |= lineFlagBiasPullDown
	}
	return flags
}

func (l *Line) reconfigure(flags uint64) error {
	var cfg gpioV2LineConfig
	cfg.flags = flags
	return ioctlLineConfig(l.fd, &cfg)
}

// In switches the line to input with the given pull. For SWDIO this is
// the "release to high-Z, let the target or pull-up hold the level" half
// of the SWD line-turnaround idiom.
func (l *Line) In(pull gpio.Pull, _ gpio.Edge) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.reconfigure(flagsFor(pull, false)); err != nil {
		return fmt.Errorf("gpiochip: %s: In: %w", l.name, err)
	}
	l.isOutput = false
	l.pull = pull
	return nil
}

// Out drives the line push-pull to the given level, reconfiguring it to
// output first if needed.
func (l *Line) Out(level gpio.Level) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.isOutput {
		if err := l.reconfigure(flagsFor(gpio.PullNoChange, true)); err != nil {
			return fmt.Errorf("gpiochip: %s: Out: %w", l.name, err)
		}
		l.isOutput = true
	}
	var v gpioV2LineValues
	v.mask = 1
	if level {
		v.bits = 1
	}
	if err := ioctlSetLineValues(l.fd, &v); err != nil {
		return fmt.Errorf("gpiochip: %s: set value: %w", l.name, err)
	}
	l.direction = level
	return nil
}

// Read samples the line, switching it to input first if it is currently
// driven as an output.
func (l *Line) Read() gpio.Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.isOutput {
		if err := l.reconfigure(flagsFor(l.pull, false)); err == nil {
			l.isOutput = false
		}
	}
	var v gpioV2LineValues
	v.mask = 1
	if err := ioctlGetLineValues(l.fd, &v); err != nil {
		return gpio.Low
	}
	return v.bits&1 == 1
}

func sanitizeConsumer(name string) string {
	s := strings.TrimSpace(name)
	if len(s) >= gpioMaxNameSize {
		s = s[:gpioMaxNameSize-1]
	}
	return s
}
