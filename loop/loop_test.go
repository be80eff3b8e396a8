// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loop

import (
	"io"
	"log"
	"testing"

	"github.com/psi-pxar/pxar/dut"
	"github.com/psi-pxar/pxar/event"
	"github.com/psi-pxar/pxar/hal"
	"github.com/psi-pxar/pxar/program"
)

func nopLogger() *log.Logger { return log.New(io.Discard, "", 0) }

// nopHAL satisfies hal.DUT with no-ops, enough to drive program.Programmer
// through the mask/trim discipline Expander.Run applies around a sweep.
type nopHAL struct{}

func (nopHAL) PowerOn() error                                     { return nil }
func (nopHAL) PowerOff() error                                    { return nil }
func (nopHAL) SetHubID(id uint8) error                            { return nil }
func (nopHAL) SetSigDelay(reg, v uint8) error                     { return nil }
func (nopHAL) InitTBM(i int, dacs map[uint8]uint16) error         { return nil }
func (nopHAL) InitROC(i2c, t uint8, dacs map[uint8]uint16) error  { return nil }
func (nopHAL) MaskPixel(i2c, col, row uint8, mask bool) error     { return nil }
func (nopHAL) MaskAllPixels(i2c uint8, mask bool) error           { return nil }
func (nopHAL) TrimPixel(i2c, col, row, trim uint8) error          { return nil }
func (nopHAL) PushTrimsToNIOS(i2c uint8, trims [][]uint8) error   { return nil }
func (nopHAL) SetCalibrate(i2c, col, row uint8, on bool) error    { return nil }
func (nopHAL) EnableColumns(i2c uint8, on bool) error             { return nil }
func (nopHAL) SetProbe(channel string, signal uint8) error        { return nil }
func (nopHAL) ProgramPatternGenerator(e []hal.PatternEntry) error { return nil }
func (nopHAL) GetReadbackValue(i2c uint8, name string) int32      { return -1 }

func oneROCDUT(nPixels int) *dut.DUT {
	d := dut.New()
	var pixels []dut.PixelConfig
	for i := 0; i < nPixels; i++ {
		pixels = append(pixels, dut.PixelConfig{Column: uint8(i), Row: 0, Enable: true})
	}
	d.ROCs = []dut.RocConfig{{I2CAddress: 0, Enable: true, Pixels: pixels}}
	return d
}

func twoROCDUT(nPixels int) *dut.DUT {
	d := dut.New()
	var pixels []dut.PixelConfig
	for i := 0; i < nPixels; i++ {
		pixels = append(pixels, dut.PixelConfig{Column: uint8(i), Row: 0, Enable: true})
	}
	d.ROCs = []dut.RocConfig{
		{I2CAddress: 0, Enable: true, Pixels: pixels},
		{I2CAddress: 1, Enable: true, Pixels: pixels},
	}
	return d
}

func TestRunMultiROC(t *testing.T) {
	d := twoROCDUT(2)
	var called [][]uint8
	cap := hal.Capability{
		MultiROC: func(rocs []uint8, p hal.Params) ([]event.Event, error) {
			called = append(called, rocs)
			return []event.Event{{}}, nil
		},
	}
	prog := program.New(nopHAL{}, nopLogger())
	e := New(cap, prog, nopLogger())

	evts, err := e.Run(d, hal.Params{}, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(evts) != 1 {
		t.Fatalf("len(evts) = %d, want 1", len(evts))
	}
	if len(called) != 1 || len(called[0]) != 2 {
		t.Fatalf("MultiROC called with %v, want one call with 2 ROCs", called)
	}
}

func TestRunSerialROCWhenForceSerial(t *testing.T) {
	d := twoROCDUT(2)
	var calledROCs []uint8
	cap := hal.Capability{
		ROC: func(i2c uint8, p hal.Params) ([]event.Event, error) {
			calledROCs = append(calledROCs, i2c)
			return []event.Event{{}}, nil
		},
		MultiROC: func(rocs []uint8, p hal.Params) ([]event.Event, error) {
			t.Fatal("MultiROC should not be called under FORCE_SERIAL")
			return nil, nil
		},
	}
	prog := program.New(nopHAL{}, nopLogger())
	e := New(cap, prog, nopLogger())

	evts, err := e.Run(d, hal.Params{}, FORCE_SERIAL)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(evts) != 2 {
		t.Fatalf("len(evts) = %d, want 2", len(evts))
	}
	if len(calledROCs) != 2 || calledROCs[0] != 0 || calledROCs[1] != 1 {
		t.Fatalf("calledROCs = %v, want [0 1]", calledROCs)
	}
}

func TestRunSerialPixelWhenOnlyPixelEntry(t *testing.T) {
	d := oneROCDUT(3)
	n := 0
	cap := hal.Capability{
		Pixel: func(i2c, col, row uint8, p hal.Params) ([]event.Event, error) {
			n++
			return []event.Event{{}}, nil
		},
	}
	prog := program.New(nopHAL{}, nopLogger())
	e := New(cap, prog, nopLogger())

	evts, err := e.Run(d, hal.Params{}, FORCE_SERIAL)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 3 {
		t.Fatalf("Pixel called %d times, want 3", n)
	}
	if len(evts) != 3 {
		t.Fatalf("len(evts) = %d, want 3", len(evts))
	}
}

func TestRunCriticalErrorWhenNoCapability(t *testing.T) {
	d := oneROCDUT(1)
	prog := program.New(nopHAL{}, nopLogger())
	e := New(hal.Capability{}, prog, nopLogger())

	_, err := e.Run(d, hal.Params{}, 0)
	if err == nil {
		t.Fatal("Run: want critical error when no HAL entry point is usable")
	}
	if _, ok := err.(*CriticalError); !ok {
		t.Fatalf("err = %T, want *CriticalError", err)
	}
}

func TestRunForceSerialForceUnmaskedTrimsPerROC(t *testing.T) {
	d := twoROCDUT(1)
	trimmed := map[uint8]bool{}
	cap := hal.Capability{
		ROC: func(i2c uint8, p hal.Params) ([]event.Event, error) {
			return []event.Event{{}}, nil
		},
	}
	h := &trimTrackingHAL{nopHAL: nopHAL{}, trimmed: trimmed}
	prog := program.New(h, nopLogger())
	e := New(cap, prog, nopLogger())

	if _, err := e.Run(d, hal.Params{}, FORCE_SERIAL|FORCE_UNMASKED); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !trimmed[0] || !trimmed[1] {
		t.Fatalf("trimmed = %v, want both ROC 0 and 1 trimmed", trimmed)
	}
}

type trimTrackingHAL struct {
	nopHAL
	trimmed map[uint8]bool
}

func (h *trimTrackingHAL) TrimPixel(i2c, col, row, trim uint8) error {
	h.trimmed[i2c] = true
	return nil
}

func TestRunAccumulatesDecoderErrors(t *testing.T) {
	d := oneROCDUT(1)
	cap := hal.Capability{
		Pixel: func(i2c, col, row uint8, p hal.Params) ([]event.Event, error) {
			return []event.Event{{NumDecoderErrors: 3}, {NumDecoderErrors: 4}}, nil
		},
	}
	prog := program.New(nopHAL{}, nopLogger())
	e := New(cap, prog, nopLogger())

	if _, err := e.Run(d, hal.Params{}, FORCE_SERIAL); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := e.LastDecoderErrors(); got != 7 {
		t.Fatalf("LastDecoderErrors() = %d, want 7", got)
	}
}
