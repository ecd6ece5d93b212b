// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build ftdi

package host

import (
	"fmt"

	"periph.io/x/conn/v3/driver/driverreg"

	"github.com/obermaierlabs/glitchprobe/internal/ftdiswd"
	"github.com/obermaierlabs/glitchprobe/internal/swd"
	"github.com/obermaierlabs/glitchprobe/internal/target"
)

func openFTDI(cfg Config) (*target.Target, *swd.Bus, error) {
	ftdiswd.Register(cfg.FTDIIndex, ftdiswd.DefaultLineBits())
	if _, err := driverreg.Init(); err != nil {
		return nil, nil, err
	}
	lines := ftdiswd.Opened()
	if lines == nil {
		return nil, nil, fmt.Errorf("host: ftdi backend did not open any lines")
	}
	tgt := target.New(lines.Power, lines.Reset, lines.LED, lines.StatusLED, lines.Button)
	bus := &swd.Bus{
		SWDIO:           lines.SWDIO,
		SWCLK:           lines.SWCLK,
		LineDelay:       cfg.LineDelay,
		EnableJTAGToSWD: cfg.EnableJTAGToSWD,
	}
	return tgt, bus, nil
}
