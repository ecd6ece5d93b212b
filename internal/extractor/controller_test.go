// Copyright (C) 2017 Obermaier Johannes
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this file,
// you can obtain one at https://opensource.org/licenses/MIT

package extractor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obermaierlabs/glitchprobe/internal/swd"
)

type fakeSession struct {
	initStatus swd.Status
	readStatus swd.Status
	word       uint32
}

func (f *fakeSession) Init() (swd.Status, uint32) { return f.initStatus, 0 }
func (f *fakeSession) EnableDebugIF() swd.Status { return swd.StatusOK }
func (f *fakeSession) SetAP32BitMode() (swd.Status, uint32) { return swd.StatusOK, 0 }
func (f *fakeSession) SelectAHBAP() swd.Status { return swd.StatusOK }
func (f *fakeSession) ReadAHB(addr uint32) (swd.Status, uint32) {
	return f.readStatus, f.word
}

type fakeTarget struct {
	powerOnCount, powerOffCount int
	resetAssertCount            int
	resetReleaseCount           int
}

func (f *fakeTarget) PowerOn() { f.powerOnCount++ }
func (f *fakeTarget) PowerOff() { f.powerOffCount++ }
func (f *fakeTarget) ResetAssert() { f.resetAssertCount++ }
func (f *fakeTarget) ResetRelease() { f.resetReleaseCount++ }
func (f *fakeTarget) AttemptLEDOff() {}
func (f *fakeTarget) AttemptLEDOn() {}

func newTestExtractor(session Session, target Target) *Extractor {
	e := New(session, target, nil)
	e.sleep = func(time.Duration) {}
	return e
}

func TestExtractWordSuccess(t *testing.T) {
	session := &fakeSession{initStatus: swd.StatusOK, readStatus: swd.StatusOK, word: 0xDEADBEEF}
	target := &fakeTarget{}
	e := newTestExtractor(session, target)

	status, data := e.ExtractWord(0x08000000)

	require.Equal(t, swd.StatusOK, status)
	assert.Equal(t, uint32(0xDEADBEEF), data)
	assert.Equal(t, uint32(1), e.Stats.Attempts)
	assert.Equal(t, uint32(1), e.Stats.Successes)
	assert.Equal(t, uint32(0), e.Stats.Failures)
	assert.Equal(t, 1, target.resetReleaseCount)
	assert.Equal(t, 1, target.resetAssertCount)
}

func TestExtractWordRetryBound(t *testing.T) {
	session := &fakeSession{initStatus: swd.StatusOK, readStatus: swd.StatusFault}
	target := &fakeTarget{}
	e := newTestExtractor(session, target)

	status, _ := e.ExtractWord(0x08000000)

	assert.Equal(t, swd.StatusFault, status)
	assert.Equal(t, uint32(MaxReadAttempts), e.Stats.Attempts)
	assert.Equal(t, uint32(0), e.Stats.Successes)
	assert.Equal(t, uint32(MaxReadAttempts), e.Stats.Failures)
	assert.Equal(t, e.Stats.Attempts, e.Stats.Successes+e.Stats.Failures)
}

func TestJitterSchedule(t *testing.T) {
	j := NewJitterState()
	span := JitterMax - JitterMin
	for k := uint16(1); k <= uint16(2*span); k++ {
		j.OnFailure()
		want := JitterMin + (k*JitterStep)%span
		assert.Equal(t, want, j.DelayMS, "after %d consecutive failures", k)
	}
}

func TestStatsResetOnNewRun(t *testing.T) {
	var s Stats
	s.Attempts, s.Successes, s.Failures = 5, 3, 2
	s.Reset()
	assert.Equal(t, Stats{}, s)
}
