// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build !ftdi

package host

import (
	"fmt"

	"github.com/obermaierlabs/glitchprobe/internal/swd"
	"github.com/obermaierlabs/glitchprobe/internal/target"
)

func openFTDI(Config) (*target.Target, *swd.Bus, error) {
	return nil, nil, fmt.Errorf("host: ftdi backend not compiled in; rebuild with -tags ftdi")
}
