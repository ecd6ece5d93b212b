// Copyright (C) 2017 Obermaier Johannes
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this file,
// you can obtain one at https://opensource.org/licenses/MIT

package console

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStats struct{ a, s, f uint32 }

func (f fakeStats) Stats() (uint32, uint32, uint32) { return f.a, f.s, f.f }

func feedString(c *Console, s string) {
	for i := 0; i < len(s); i++ {
		c.Feed(s[i])
	}
}

func TestAddressAlignmentRoundsDown(t *testing.T) {
	var out bytes.Buffer
	c := New(&out, nil)
	feedString(c, "a08000003\r")
	assert.Equal(t, uint32(0x08000000), c.Cfg.BaseAddress)
	assert.Equal(t, "Start address set to 0x08000000\r\n", out.String())
}

func TestLengthAlignmentRoundsUp(t *testing.T) {
	var out bytes.Buffer
	c := New(&out, nil)
	feedString(c, "l1\r")
	assert.Equal(t, uint32(4), c.Cfg.Length)
	assert.Equal(t, "Readout length set to 0x00000004\r\n", out.String())
}

func TestCommandEchoTable(t *testing.T) {
	cases := []struct {
		cmd  string
		want string
	}{
		{"b\r", "Binary output mode selected\r\n"},
		{"B\r", "Binary output mode selected\r\n"},
		{"h\r", "Hex output mode selected\r\n"},
		{"H\r", "Hex output mode selected\r\n"},
		{"e\r", "Little Endian mode enabled\r\n"},
		{"E\r", "Big Endian mode enabled\r\n"},
		{"s\r", "Flash readout started!\r\n"},
		{"S\r", "Flash readout started!\r\n"},
		{"z\r", "ERROR: unknown command\r\n"},
	}
	for _, tc := range cases {
		var out bytes.Buffer
		c := New(&out, nil)
		feedString(c, tc.cmd)
		assert.Equal(t, tc.want, out.String(), "cmd %q", tc.cmd)
	}
}

func TestLowercaseEDoesNotFlipUppercaseE(t *testing.T) {
	var out bytes.Buffer
	c := New(&out, nil)
	c.Cfg.LittleEndian = true
	feedString(c, "E\r")
	assert.False(t, c.Cfg.LittleEndian)
	out.Reset()
	feedString(c, "e\r")
	assert.True(t, c.Cfg.LittleEndian)
}

func TestNoOpCommandsAreSilent(t *testing.T) {
	var out bytes.Buffer
	c := New(&out, nil)
	feedString(c, "\r\n")
	assert.Equal(t, "", out.String())
}

func TestPrintStatistics(t *testing.T) {
	var out bytes.Buffer
	c := New(&out, fakeStats{a: 0x100, s: 0x0F, f: 0xF1})
	feedString(c, "p\r")
	want := "Statistics: \r\n" +
		"Attempts: 0x00000100\r\n" +
		"Success: 0x0000000F\r\n" +
		"Failure: 0x000000F1\r\n"
	assert.Equal(t, want, out.String())
}

func TestLineBufferTruncatesOverlongInput(t *testing.T) {
	var out bytes.Buffer
	c := New(&out, nil)
	// 30 bytes, no delimiter: no dispatch should occur.
	feedString(c, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	assert.Equal(t, "", out.String())

	// Only the first 11 bytes (one command byte + 10 hex digits) are kept;
	// the rest were silently dropped while waiting for the delimiter. The
	// 32-bit accumulator holds 0xAAAAAAAA, rounded down to 0xAAAAAAA8.
	feedString(c, "\r")
	require.NotEqual(t, "", out.String())
	assert.Equal(t, uint32(0xAAAAAAA8), c.Cfg.BaseAddress)
}

func TestEmitWordEncodings(t *testing.T) {
	const w = 0xDEADBEEF

	t.Run("hex LE", func(t *testing.T) {
		var out bytes.Buffer
		c := New(&out, nil)
		c.Cfg.HexOutput, c.Cfg.LittleEndian = true, true
		c.EmitWord(w)
		assert.Equal(t, "EFBEADDE ", out.String())
	})
	t.Run("hex BE", func(t *testing.T) {
		var out bytes.Buffer
		c := New(&out, nil)
		c.Cfg.HexOutput, c.Cfg.LittleEndian = true, false
		c.EmitWord(w)
		assert.Equal(t, "DEADBEEF ", out.String())
	})
	t.Run("bin LE", func(t *testing.T) {
		var out bytes.Buffer
		c := New(&out, nil)
		c.Cfg.HexOutput, c.Cfg.LittleEndian = false, true
		c.EmitWord(w)
		assert.Equal(t, []byte{0xEF, 0xBE, 0xAD, 0xDE}, out.Bytes())
	})
	t.Run("bin BE", func(t *testing.T) {
		var out bytes.Buffer
		c := New(&out, nil)
		c.Cfg.HexOutput, c.Cfg.LittleEndian = false, false
		c.EmitWord(w)
		assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, out.Bytes())
	})
}

func TestEndOfRunMarker(t *testing.T) {
	var out bytes.Buffer
	c := New(&out, nil)
	c.Cfg.HexOutput = true
	c.EmitWord(0x11111111)
	c.EmitWord(0x22222222)
	c.EmitEndOfRun()
	assert.Equal(t, "11111111 22222222 ", out.String()[:18])
	assert.Equal(t, "\r\n", out.String()[len(out.String())-2:])
}
