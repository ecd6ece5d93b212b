// Copyright (C) 2017 Obermaier Johannes
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this file,
// you can obtain one at https://opensource.org/licenses/MIT

// Package swd bit-bangs the ARM Serial Wire Debug two-wire protocol over a
// pair of periph.io GPIO lines: framing, parity, turnaround, ACK decode and
// the DP/AP register sequencing needed to read a word from the AHB-AP.
//
// The line layer (this file) samples SWDIO before each clock edge and
// packs the result back-to-front into its output buffer: bit i ends up
// high-bit-first in byte ceil(n/8)-1-(i/8). This packing is load-bearing
// for the 33-bit payload decode in transaction.go, and must be preserved
// exactly by anything that touches ReadBits. The 3-bit ACK is sampled
// separately by ReadACK, in natural bit order.
package swd

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Status mirrors the 3-bit ACK value returned on the wire by the target's
// debug port. Only StatusOK means the accompanying data is valid.
type Status uint8

const (
	StatusNone          Status = 0
	StatusOK            Status = 1
	StatusWait          Status = 2
	StatusFault         Status = 4
	StatusProtocolError Status = 7
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWait:
		return "WAIT"
	case StatusFault:
		return "FAULT"
	case StatusNone:
		return "NONE"
	default:
		return "PROTOCOL_ERROR"
	}
}

// Direction selects the access direction encoded in a transaction header.
type Direction int

const (
	DirectionRead Direction = iota
	DirectionWrite
)

// Port selects whether a transaction addresses the Debug Port or an Access
// Port register bank.
type Port int

const (
	PortDP Port = iota
	PortAP
)

// Bus drives SWDIO/SWCLK directly. It owns no target-specific register
// knowledge; that lives in session.go.
type Bus struct {
	SWDIO gpio.PinIO
	SWCLK gpio.PinIO

	// LineDelay is the settle time held between a data change and the
	// following clock edge, needed because SWDIO/SWCLK edges must stay
	// ordered and spaced widely enough for the target to sample cleanly.
	LineDelay time.Duration

	// EnableJTAGToSWD sends the JTAG-to-SWD selection sequence during
	// LineReset before the normal line reset, for targets whose debug
	// port powers up in JTAG mode. SWD-only targets leave this false.
	EnableJTAGToSWD bool
}

func (b *Bus) wait() {
	if b.LineDelay > 0 {
		time.Sleep(b.LineDelay)
	}
}

func (b *Bus) clockPulse() {
	_ = b.SWCLK.Out(gpio.High)
	b.wait()
	_ = b.SWCLK.Out(gpio.Low)
	b.wait()
}

// Parity returns the XOR of the first n bits of data, LSB first within each
// byte. Used both for the 4-bit header parity and the 32-bit data parity.
func Parity(data []byte, n int) byte {
	var par, cur byte
	for i := 0; i < n; i++ {
		if i&0x07 == 0 {
			cur = data[i>>3]
		}
		par ^= cur & 0x01
		cur >>= 1
	}
	return par
}

// SendBits clocks out bits LSB-first; data[0] supplies bits 0..7, data[1]
// bits 8..15, and so on.
func (b *Bus) SendBits(data []byte, nBits int) {
	var cur byte
	for i := 0; i < nBits; i++ {
		if i&0x07 == 0 {
			cur = data[i>>3]
		}
		if cur&0x01 == 0x01 {
			_ = b.SWDIO.Out(gpio.High)
		} else {
			_ = b.SWDIO.Out(gpio.Low)
		}
		b.wait()
		_ = b.SWCLK.Out(gpio.High)
		b.wait()
		_ = b.SWCLK.Out(gpio.Low)
		cur >>= 1
		b.wait()
	}
}

// ReadACK samples the 3-bit ACK field that follows every transaction
// header, bit 0 (OK) first, in natural bit order — ACK is never more than
// 3 bits wide so there is no byte-packing ambiguity to preserve, unlike
// the 33-bit payload read below.
func (b *Bus) ReadACK() Status {
	b.wait()
	b.DriveIdle()
	b.wait()

	var ack byte
	for i := 0; i < 3; i++ {
		if b.SWDIO.Read() == gpio.High {
			ack |= 1 << uint(i)
		}
		_ = b.SWCLK.Out(gpio.High)
		b.wait()
		_ = b.SWCLK.Out(gpio.Low)
		b.wait()
	}
	return Status(ack)
}

// ReadBits switches SWDIO to input (pull-up) and samples it before each
// clock edge. Bit i is placed at out[ceil(n/8)-1-(i/8)], high bit of that
// byte first — a big-endian byte order relative to on-wire bit order. Any
// reimplementation must preserve this exactly; see transaction.go.
func (b *Bus) ReadBits(out []byte, nBits int) {
	b.wait()
	b.DriveIdle()
	b.wait()

	var cur byte
	nBytes := (nBits + 7) >> 3
	for i := 0; i < nBits; i++ {
		cur >>= 1
		if b.SWDIO.Read() == gpio.High {
			cur |= 0x80
		}
		out[nBytes-1-(i>>3)] = cur

		_ = b.SWCLK.Out(gpio.High)
		b.wait()
		_ = b.SWCLK.Out(gpio.Low)
		b.wait()

		if i&0x07 == 0x07 {
			cur = 0
		}
	}
}

// Turnaround clocks one bit while SWDIO is not driven by either side, to
// satisfy the SWD turnaround period.
func (b *Bus) Turnaround() {
	b.clockPulse()
}

// DriveIdle releases SWDIO to high-Z with a pull-up.
func (b *Bus) DriveIdle() {
	_ = b.SWDIO.Out(gpio.High)
	b.wait()
	_ = b.SWDIO.In(gpio.PullUp, gpio.NoEdge)
	b.wait()
}

// DriveActive switches SWDIO back to push-pull output, driven low.
func (b *Bus) DriveActive() {
	b.wait()
	_ = b.SWDIO.Out(gpio.Low)
	b.wait()
}

var jtagToSWDSequence = [16]uint8{0, 1, 1, 1, 1, 0, 0, 1, 1, 1, 1, 0, 0, 1, 1, 1}

// LineReset drives SWDIO high and clocks at least 50 cycles, then clocks
// three low bits to leave the target in the idle state.
func (b *Bus) LineReset() {
	b.wait()
	_ = b.SWDIO.Out(gpio.High)
	_ = b.SWCLK.Out(gpio.Low)
	b.wait()

	if b.EnableJTAGToSWD {
		for i := 0; i < 60; i++ {
			b.clockPulse()
		}
		for _, bit := range jtagToSWDSequence {
			if bit != 0 {
				_ = b.SWDIO.Out(gpio.High)
			} else {
				_ = b.SWDIO.Out(gpio.Low)
			}
			b.wait()
			b.clockPulse()
		}
	}

	for i := 0; i < 60; i++ {
		b.clockPulse()
	}

	_ = b.SWDIO.Out(gpio.Low)
	for i := 0; i < 3; i++ {
		b.clockPulse()
	}
}
