// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpiochip

// Linux GPIO v2 character-device ABI, trimmed to exactly what the seven
// named lines of the rig need: chip info, line request, line config and
// line value get/set. See
// https://docs.kernel.org/userspace-api/gpio/chardev.html

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	gpioMaxNameSize    = 32
	gpioV2LinesMax     = 64
	gpioV2LineNumAttrs = 10
)

const (
	lineFlagInput        uint64 = 1 << 2
	lineFlagOutput       uint64 = 1 << 3
	lineFlagEdgeRising   uint64 = 1 << 4
	lineFlagEdgeFalling  uint64 = 1 << 5
	lineFlagOpenDrain    uint64 = 1 << 6
	lineFlagBiasPullUp   uint64 = 1 << 8
	lineFlagBiasPullDown uint64 = 1 << 9
)

const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift
}

func ior(typ, nr, size uintptr) uintptr { return ioc(iocRead, typ, nr, size) }
func iowr(typ, nr, size uintptr) uintptr { return ioc(iocRead|iocWrite, typ, nr, size) }

type gpiochipInfo struct {
	name  [gpioMaxNameSize]byte
	label [gpioMaxNameSize]byte
	lines uint32
}

type gpioV2LineAttribute struct {
	id      uint32
	padding uint32
	value   uint64
}

type gpioV2LineConfigAttribute struct {
	attr gpioV2LineAttribute
	mask uint64
}

type gpioV2LineConfig struct {
	flags    uint64
	numAttrs uint32
	padding  [5]uint32
	attrs    [gpioV2LineNumAttrs]gpioV2LineConfigAttribute
}

type gpioV2LineRequest struct {
	offsets         [gpioV2LinesMax]uint32
	consumer        [gpioMaxNameSize]byte
	config          gpioV2LineConfig
	numLines        uint32
	eventBufferSize uint32
	padding         [5]uint32
	fd              int32
}

type gpioV2LineValues struct {
	bits uint64
	mask uint64
}

func doIoctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func ioctlChipInfo(fd int, info *gpiochipInfo) error {
	return doIoctl(fd, ior(0xb4, 0x01, unsafe.Sizeof(gpiochipInfo{})), unsafe.Pointer(info))
}

func ioctlLineRequest(fd int, req *gpioV2LineRequest) error {
	return doIoctl(fd, iowr(0xb4, 0x07, unsafe.Sizeof(gpioV2LineRequest{})), unsafe.Pointer(req))
}

func ioctlLineConfig(fd int, cfg *gpioV2LineConfig) error {
	return doIoctl(fd, iowr(0xb4, 0x0d, unsafe.Sizeof(gpioV2LineConfig{})), unsafe.Pointer(cfg))
}

func ioctlGetLineValues(fd int, v *gpioV2LineValues) error {
	return doIoctl(fd, iowr(0xb4, 0x0e, unsafe.Sizeof(gpioV2LineValues{})), unsafe.Pointer(v))
}

func ioctlSetLineValues(fd int, v *gpioV2LineValues) error {
	return doIoctl(fd, iowr(0xb4, 0x0f, unsafe.Sizeof(gpioV2LineValues{})), unsafe.Pointer(v))
}
