// Copyright (C) 2017 Obermaier Johannes
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this file,
// you can obtain one at https://opensource.org/licenses/MIT

// Package transport opens the operator-facing serial link the console
// protocol runs over.
package transport

import (
	"time"

	serial "github.com/daedaluz/goserial"
)

// Baud is the fixed line rate the console protocol runs at.
const Baud = serial.B115200

// Serial wraps a raw TTY as an io.ReadWriter, configured 115200 8N1 raw.
// TX/RX are logically swapped at the target's pad — a pinout quirk of the
// rig's MCU, not something this layer compensates for; the physical
// crossover is handled by the board, not the driver.
type Serial struct {
	port *serial.Port
}

// Open opens name (e.g. "/dev/ttyUSB0"), configures it 115200 8N1 raw, and
// drains any stale bytes already sitting in the receive FIFO, so a partial
// or noisy line left over from before this process attached doesn't get
// parsed as the first command.
func Open(name string) (*Serial, error) {
	port, err := serial.Open(name, serial.NewOptions().SetReadTimeout(100*time.Millisecond))
	if err != nil {
		return nil, err
	}
	attrs, err := port.GetAttr2()
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	attrs.MakeRaw()
	attrs.SetSpeed(Baud)
	if err := port.SetAttr2(serial.TCSANOW, attrs); err != nil {
		_ = port.Close()
		return nil, err
	}

	s := &Serial{port: port}
	s.drain()
	return s, nil
}

func (s *Serial) drain() {
	var scratch [64]byte
	for i := 0; i < 3; i++ {
		n, err := s.port.Read(scratch[:])
		if err != nil || n == 0 {
			return
		}
	}
}

// Read implements io.Reader.
func (s *Serial) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

// Write implements io.Writer.
func (s *Serial) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

// Close releases the underlying file descriptor.
func (s *Serial) Close() error {
	return s.port.Close()
}
