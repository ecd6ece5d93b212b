// Copyright (C) 2017 Obermaier Johannes
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this file,
// you can obtain one at https://opensource.org/licenses/MIT

package main

import (
	"os"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obermaierlabs/glitchprobe/internal/console"
	"github.com/obermaierlabs/glitchprobe/internal/extractor"
	"github.com/obermaierlabs/glitchprobe/internal/swd"
)

func TestParseFlagsDefaults(t *testing.T) {
	f, err := parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, "gpiochip", f.backend)
	assert.Equal(t, uint16(0), f.jitterMin)
}

func TestParseFlagsRejectsUnknownBackend(t *testing.T) {
	_, err := parseFlags([]string{"--backend", "bogus"})
	assert.Error(t, err)
}

type fakeSession struct{ status swd.Status }

func (f *fakeSession) Init() (swd.Status, uint32) { return f.status, 0 }
func (f *fakeSession) EnableDebugIF() swd.Status { return f.status }
func (f *fakeSession) SetAP32BitMode() (swd.Status, uint32) { return f.status, 0 }
func (f *fakeSession) SelectAHBAP() swd.Status { return f.status }
func (f *fakeSession) ReadAHB(uint32) (swd.Status, uint32) { return f.status, 0xDEADBEEF }

type fakeTarget struct{ pressed bool }

func (f *fakeTarget) PowerOn() {}
func (f *fakeTarget) PowerOff() {}
func (f *fakeTarget) ResetAssert() {}
func (f *fakeTarget) ResetRelease() {}
func (f *fakeTarget) AttemptLEDOff() {}
func (f *fakeTarget) AttemptLEDOn() {}
func (f *fakeTarget) ButtonPressed() bool { return f.pressed }

// chunkReader feeds a fixed command line once, then returns 0 bytes
// forever, followed by os.ErrDeadlineExceeded to simulate a polled
// serial port with a read timeout.
type chunkReader struct {
	chunks [][]byte
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, os.ErrDeadlineExceeded
	}
	n := copy(p, c.chunks[0])
	c.chunks = c.chunks[1:]
	return n, nil
}

func TestRunLoopCompletesShortRunThenStops(t *testing.T) {
	session := &fakeSession{status: swd.StatusOK}
	target := &fakeTarget{}
	ex := extractor.New(session, target, nil)
	ex.Jitter.DelayMS = 0

	var out chunkBuffer
	con := console.New(&out, nil)
	reader := &chunkReader{chunks: [][]byte{[]byte("l8\rs\r")}}

	sigCh := make(chan os.Signal, 1)
	go func() {
		// Two words at 0ms jitter complete almost immediately; give the
		// loop a generous window to finish the run before shutting it
		// down from the outside, the way an operator's Ctrl-C would.
		time.Sleep(50 * time.Millisecond)
		sigCh <- os.Interrupt
	}()

	logger := log.New(os.Stderr)
	done := make(chan struct{})
	go func() {
		runLoop(con, ex, target, reader, logger, sigCh)
		close(done)
	}()
	<-done

	assert.False(t, con.Cfg.Active)
	assert.Equal(t, uint32(2), ex.Stats.Successes)
}

// TestRunLoopResetsStatsOnActivation pre-loads stale counters from an
// earlier run and checks the loop zeroes them before the first attempt of
// a new activation: the final counts reflect only this run's two words.
func TestRunLoopResetsStatsOnActivation(t *testing.T) {
	session := &fakeSession{status: swd.StatusOK}
	target := &fakeTarget{}
	ex := extractor.New(session, target, nil)
	ex.Jitter.DelayMS = 0
	ex.Stats = extractor.Stats{Attempts: 99, Successes: 57, Failures: 42}

	var out chunkBuffer
	con := console.New(&out, nil)
	reader := &chunkReader{chunks: [][]byte{[]byte("l8\rs\r")}}

	sigCh := make(chan os.Signal, 1)
	go func() {
		time.Sleep(50 * time.Millisecond)
		sigCh <- os.Interrupt
	}()

	logger := log.New(os.Stderr)
	runLoop(con, ex, target, reader, logger, sigCh)

	assert.Equal(t, uint32(2), ex.Stats.Attempts)
	assert.Equal(t, uint32(2), ex.Stats.Successes)
	assert.Equal(t, uint32(0), ex.Stats.Failures)
}

type chunkBuffer struct{ data []byte }

func (b *chunkBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}
