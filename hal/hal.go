// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hal defines the boundary between the pxar core and the
// hardware abstraction layer it drives (USB firmware, FPGA
// deserializer, NIOS soft-core). The core never talks to hardware
// directly; it only calls the operations enumerated here.
//
// The source this core is derived from dispatched among test-loop entry
// points via raw member-function pointers. Capability re-expresses that
// as a struct of optional function fields, Go's idiomatic answer to "a
// set of operations, any of which may be absent", instead of an
// interface every HAL implementation would have to fully satisfy even
// for entry points it cannot support.
package hal // import "github.com/psi-pxar/pxar/hal"

import "github.com/psi-pxar/pxar/event"

// Params bundles the register sweep state a test-loop entry needs: the
// DAC(s) being swept and their current value(s), plus the number of
// triggers to fire per sweep point.
type Params struct {
	DAC1, DAC1Value uint8
	DAC2, DAC2Value uint8
	TwoDacs         bool
	NTriggers       uint16
}

// Capability is the set of test-loop entry points a HAL implementation
// may expose. Any field may be nil; the Loop Expander (package loop)
// picks the most efficient non-nil combination for a given sweep.
type Capability struct {
	// Pixel runs params on a single pixel of a single ROC.
	Pixel func(rocI2C uint8, col, row uint8, params Params) ([]event.Event, error)

	// MultiPixel runs params on the same (col,row) pixel across every
	// listed ROC in a single HAL call.
	MultiPixel func(rocsI2C []uint8, col, row uint8, params Params) ([]event.Event, error)

	// ROC runs params on every enabled pixel of a single ROC.
	ROC func(rocI2C uint8, params Params) ([]event.Event, error)

	// MultiROC runs params on every enabled pixel of every listed ROC in
	// a single HAL call. Per the source's own comment on the DAC×DAC
	// "all pixels" entry point ("would take years"), implementers are
	// expected to leave this nil for two-DAC sweeps.
	MultiROC func(rocsI2C []uint8, params Params) ([]event.Event, error)
}

// DUT is the HAL surface the Programmer (package program) and DAQ
// Controller (package daq) drive to bring the testboard and the
// module's chips into the state the in-memory dut.DUT model describes.
// A concrete implementation owns the USB connection to the DTB; this
// core owns only the DUT interface value.
type DUT interface {
	PowerOn() error
	PowerOff() error

	SetHubID(id uint8) error
	SetSigDelay(reg uint8, value uint8) error

	InitTBM(coreIndex int, dacs map[uint8]uint16) error
	InitROC(i2c uint8, chipType uint8, dacs map[uint8]uint16) error

	MaskPixel(i2c uint8, col, row uint8, mask bool) error
	MaskAllPixels(i2c uint8, mask bool) error
	TrimPixel(i2c uint8, col, row uint8, trim uint8) error
	PushTrimsToNIOS(i2c uint8, trims [][]uint8) error

	// SetCalibrate arms or disarms the calibrate-injection bit of one
	// pixel. The DAQ Controller (package daq) sets it on every enabled
	// pixel at session start and clears it at session stop.
	SetCalibrate(i2c uint8, col, row uint8, on bool) error
	// EnableColumns arms or disarms every column of a ROC for readout.
	EnableColumns(i2c uint8, on bool) error

	SetProbe(channel string, signal uint8) error

	ProgramPatternGenerator(entries []PatternEntry) error

	// GetReadbackValue is a stub in the source ("intended semantics
	// unknown"); this port preserves that: it always returns -1.
	GetReadbackValue(i2c uint8, name string) int32
}

// PatternEntry is the wire representation of one pattern-generator
// program step: a command word and the delay before the next step.
// Delay==0 on the last entry is the required stop marker.
type PatternEntry struct {
	Pattern uint16
	Delay   uint8
}

// DAQ is the HAL surface the DAQ Controller (package daq) drives for a
// continuous acquisition session.
type DAQ interface {
	DAQStart(deserPhase uint8, nEnabledTBMs int, bufferSize uint32) error
	DAQStop() error

	// DAQStatus reports the current fill level of the DTB's source
	// buffer, in (filled, capacity) bytes.
	DAQStatus() (filled, capacity uint32, err error)

	DAQTrigger(n uint32, period uint32) error
	DAQTriggerLoopStart(period uint32) error
	DAQTriggerLoopHalt() error

	// DAQGetBuffer drains up to maxBytes of raw bytes from the DTB
	// source buffer.
	DAQGetBuffer(maxBytes uint32) ([]byte, error)
}
