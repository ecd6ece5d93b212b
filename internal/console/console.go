// Copyright (C) 2017 Obermaier Johannes
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this file,
// you can obtain one at https://opensource.org/licenses/MIT

// Package console implements the line-buffered ASCII command protocol that
// configures the extraction window/output format and streams recovered
// words back to the operator in one of four encodings.
package console

import (
	"io"
)

// lineBufferCap is the number of command bytes the line buffer keeps;
// no slot is reserved for a terminator.
const lineBufferCap = 11

const hexDigits = "0123456789ABCDEF"

// Config is mutated only by the console and read by the top-level loop.
type Config struct {
	BaseAddress  uint32
	Length       uint32
	HexOutput    bool
	LittleEndian bool
	Active       bool
}

// DefaultConfig is the power-up configuration: the full 64KiB Flash
// window from address zero, raw little-endian binary output, idle.
func DefaultConfig() Config {
	return Config{
		BaseAddress:  0,
		Length:       64 * 1024,
		HexOutput:    false,
		LittleEndian: true,
		Active:       false,
	}
}

// LineBuffer accumulates up to lineBufferCap ASCII bytes; bytes beyond the
// limit are silently dropped until the next delimiter resets it.
type LineBuffer struct {
	buf [lineBufferCap]byte
	n   int
}

// Push appends b if there is room; otherwise it is dropped.
func (l *LineBuffer) Push(b byte) {
	if l.n < len(l.buf) {
		l.buf[l.n] = b
		l.n++
	}
}

// Reset zero-fills the buffer and clears its length.
func (l *LineBuffer) Reset() {
	*l = LineBuffer{}
}

// Bytes returns the accumulated bytes.
func (l *LineBuffer) Bytes() []byte {
	return l.buf[:l.n]
}

// StatsSource supplies the attempt/success/failure counters for the 'p'
// command, without the console package depending on internal/extractor.
type StatsSource interface {
	Stats() (attempts, successes, failures uint32)
}

// Console owns the line discipline, command dispatch and output encoders.
type Console struct {
	Cfg   Config
	Stats StatsSource
	Out   io.Writer

	buf LineBuffer
}

// New returns a Console with the power-up configuration.
func New(out io.Writer, stats StatsSource) *Console {
	return &Console{Cfg: DefaultConfig(), Stats: stats, Out: out}
}

func (c *Console) writeStr(s string) {
	_, _ = io.WriteString(c.Out, s)
}

// Feed processes one incoming byte of the line discipline: '\t' is
// ignored, '\r'/'\n' dispatch the accumulated command and reset the
// buffer, anything else is appended (subject to the buffer cap).
func (c *Console) Feed(b byte) {
	switch b {
	case '\t':
	case '\r', '\n':
		c.dispatch(c.buf.Bytes())
		c.buf.Reset()
	default:
		c.buf.Push(b)
	}
}

func isHexDigit(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 0x0A, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 0x0A, true
	}
	return 0, false
}

// parseHexField accumulates hex digits found in cmd[1:], MSB-first,
// stopping at the first non-hex byte.
func parseHexField(cmd []byte) uint32 {
	var v uint32
	for i := 1; i < len(cmd); i++ {
		d, ok := isHexDigit(cmd[i])
		if !ok {
			break
		}
		v = v<<4 | uint32(d)
	}
	return v
}

func (c *Console) dispatch(cmd []byte) {
	if len(cmd) == 0 {
		return
	}
	switch cmd[0] {
	case 'a', 'A':
		v := parseHexField(cmd) &^ 0x03 // round down to 32-bit alignment
		c.Cfg.BaseAddress = v
		c.writeStr("Start address set to 0x")
		c.writeStr(hex32BE(v))
		c.writeStr("\r\n")

	case 'l', 'L':
		v := (parseHexField(cmd) + 0x03) &^ 0x03 // round up to 32-bit alignment
		c.Cfg.Length = v
		c.writeStr("Readout length set to 0x")
		c.writeStr(hex32BE(v))
		c.writeStr("\r\n")

	case 'b', 'B':
		c.Cfg.HexOutput = false
		c.writeStr("Binary output mode selected\r\n")

	case 'h', 'H':
		c.Cfg.HexOutput = true
		c.writeStr("Hex output mode selected\r\n")

	case 'e':
		c.Cfg.LittleEndian = true
		c.writeStr("Little Endian mode enabled\r\n")

	case 'E':
		c.Cfg.LittleEndian = false
		c.writeStr("Big Endian mode enabled\r\n")

	case 'p', 'P':
		c.printStatistics()

	case 's', 'S':
		c.Cfg.Active = true
		c.writeStr("Flash readout started!\r\n")

	case '\r', '\n', 0:
		// no-op

	default:
		c.writeStr("ERROR: unknown command\r\n")
	}
}

func (c *Console) printStatistics() {
	c.writeStr("Statistics: \r\n")
	var attempts, successes, failures uint32
	if c.Stats != nil {
		attempts, successes, failures = c.Stats.Stats()
	}
	c.writeStr("Attempts: 0x")
	c.writeStr(hex32BE(attempts))
	c.writeStr("\r\n")
	c.writeStr("Success: 0x")
	c.writeStr(hex32BE(successes))
	c.writeStr("\r\n")
	c.writeStr("Failure: 0x")
	c.writeStr(hex32BE(failures))
	c.writeStr("\r\n")
}

func hexByte(b byte) string {
	return string([]byte{hexDigits[(b>>4)&0x0F], hexDigits[b&0x0F]})
}

func hex32BE(v uint32) string {
	return hexByte(byte(v>>24)) + hexByte(byte(v>>16)) + hexByte(byte(v>>8)) + hexByte(byte(v))
}

// EmitWord writes one 32-bit word in the console's configured encoding. In
// hex mode each word is followed by a separating space.
func (c *Console) EmitWord(v uint32) {
	if c.Cfg.HexOutput {
		if c.Cfg.LittleEndian {
			c.writeStr(hexByte(byte(v)) + hexByte(byte(v>>8)) + hexByte(byte(v>>16)) + hexByte(byte(v>>24)))
		} else {
			c.writeStr(hexByte(byte(v>>24)) + hexByte(byte(v>>16)) + hexByte(byte(v>>8)) + hexByte(byte(v)))
		}
		c.writeStr(" ")
		return
	}
	var buf [4]byte
	if c.Cfg.LittleEndian {
		buf = [4]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
	} else {
		buf = [4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
	}
	_, _ = c.Out.Write(buf[:])
}

// EmitFailure reports that a run could not recover a word. Binary mode
// terminates silently; hex mode reports the terminal status code.
func (c *Console) EmitFailure(status uint8) {
	if !c.Cfg.HexOutput {
		return
	}
	c.writeStr("\r\n!ExtractionFailure")
	c.writeStr(hex32BE(uint32(status)))
}

// EmitEndOfRun writes the trailing CRLF a successful hex-mode run ends
// with.
func (c *Console) EmitEndOfRun() {
	if c.Cfg.HexOutput {
		c.writeStr("\r\n")
	}
}
