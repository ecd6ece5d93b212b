// Copyright (C) 2017 Obermaier Johannes
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this file,
// you can obtain one at https://opensource.org/licenses/MIT

package swd

// ReadIDCode reads the 32-bit IDCODE from DP register 0.
func (b *Bus) ReadIDCode() (Status, uint32) {
	return b.ReadPacket(PortDP, 0)
}

// SelectAPBank writes the DP SELECT register (A32=2), choosing the AP
// number and its 4-bit register bank.
func (b *Bus) SelectAPBank(ap, bank uint8) Status {
	data := uint32(ap)<<24 | uint32(bank&0x0F)
	return b.WritePacket(PortDP, 2, data)
}

// EnableDebugIF sets CDBGPWRUPREQ|CSYSPWRUPREQ in the DP CTRL/STAT
// register (A32=1) to power up the debug interface.
func (b *Bus) EnableDebugIF() Status {
	return b.WritePacket(PortDP, 1, 0x50000000)
}

// readAP0 performs an AP register 0 priming read whose ack is discarded:
// the read only exists to push a value into the AP pipeline, so its own
// status never decides whether a bring-up attempt proceeds.
func (b *Bus) readAP0() (Status, uint32) {
	_, data := b.ReadPacket(PortAP, 0)
	return StatusNone, data
}

// SetAP32BitMode selects AHB-AP bank 0, primes the AP pipeline with a read
// of CSW via RDBUFF, clears the size field and sets it to Word (0b010),
// writes CSW back, then re-reads to flush the pipeline.
//
// The initial SelectAPBank's status and both priming reads' acks are
// intentionally not folded into the returned status, so a glitch that
// only corrupts one of those steps is still reported as success if every
// following step ACKs OK.
func (b *Bus) SetAP32BitMode() (Status, uint32) {
	b.SelectAPBank(0, 0)

	var ret Status
	var d uint32

	s, _ := b.readAP0()
	ret |= s
	s, d = b.ReadPacket(PortDP, 3)
	ret |= s

	d &^= 0x07
	d |= 0x02

	s = b.WritePacket(PortAP, 0, d)
	ret |= s

	s, _ = b.readAP0()
	ret |= s
	s, d = b.ReadPacket(PortDP, 3)
	ret |= s

	return ret, d
}

// SelectAHBAP selects AP 0 bank 0, the AHB-AP used to reach Flash/SRAM.
func (b *Bus) SelectAHBAP() Status {
	return b.SelectAPBank(0, 0)
}

// ReadAHB reads one 32-bit word from the AHB memory bus through the
// AHB-AP: TAR=addr, then a pipelined DRW read (returns the previous
// result), then RDBUFF to obtain the word actually addressed by this call.
func (b *Bus) ReadAHB(addr uint32) (Status, uint32) {
	var ret Status
	var d uint32

	ret |= b.WritePacket(PortAP, 1, addr)

	s, _ := b.ReadPacket(PortAP, 3)
	ret |= s
	s, d = b.ReadPacket(PortDP, 3)
	ret |= s

	return ret, d
}

// Init performs a line reset and reads IDCODE, establishing a known state
// before the debug interface is brought up.
func (b *Bus) Init() (Status, uint32) {
	b.LineReset()
	return b.ReadIDCode()
}
