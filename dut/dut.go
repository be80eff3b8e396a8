// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dut holds the in-memory model of the device under test: a
// hybrid pixel module made of one or more ROCs and zero, one or two
// TBMs, plus the DTB-side settings (hub id, signal delays, pattern
// generator program, power limits) that go with it.
//
// dut.DUT is a pure data structure: every query method here is a read.
// Its configuration is written by package validate and by
// confdb.Preset.ApplyTo; package program sets and clears Programmed.
package dut // import "github.com/psi-pxar/pxar/dut"

// PixelConfig is the per-pixel programmable state: its trim DAC, and
// its independent enable/mask bits.
type PixelConfig struct {
	Column uint8 // 0..51
	Row    uint8 // 0..79
	Trim   uint8 // 0..15
	Enable bool
	Mask   bool
}

// RocConfig is one Readout Chip's configuration: its chip-type code,
// its I2C address on the module hub, its DAC register map, and its
// pixel table.
type RocConfig struct {
	Type       uint8
	I2CAddress uint8
	Enable     bool
	DACs       map[uint8]uint16
	Pixels     []PixelConfig
}

// TBMConfig is one Token-Bit Manager core's configuration (either its
// alpha or its beta core; a TBM chip is always represented as two
// consecutive TBMConfig entries in DUT.TBMs).
type TBMConfig struct {
	Type   uint8
	Enable bool
	DACs   map[uint8]uint16
}

// PGEntry is one pattern-generator program step: the command word to
// issue, and the delay (in DTB clock cycles) before the next step.
type PGEntry struct {
	Pattern uint16
	Delay   uint8
}

// DUT is the in-memory model of the device under test.
type DUT struct {
	HubID     uint8
	SigDelays map[uint8]uint8 // DTB delay register id -> value
	PGSetup   []PGEntry
	PGSum     uint32 // cycle length: sum(delay+1) over all entries but the last, + 1

	VA, VD, IA, ID float64 // power-supply limits (volts, amps)

	TBMs []TBMConfig
	ROCs []RocConfig

	Initialized bool
	Programmed  bool
}

// New returns an empty, uninitialized DUT.
func New() *DUT {
	return &DUT{
		SigDelays: make(map[uint8]uint8),
	}
}

// EnabledROCs returns the indices, into d.ROCs, of every enabled ROC.
func (d *DUT) EnabledROCs() []int {
	var out []int
	for i, roc := range d.ROCs {
		if roc.Enable {
			out = append(out, i)
		}
	}
	return out
}

// EnabledROCI2C returns the I2C addresses of every enabled ROC, in
// D.ROCs order.
func (d *DUT) EnabledROCI2C() []uint8 {
	var out []uint8
	for _, roc := range d.ROCs {
		if roc.Enable {
			out = append(out, roc.I2CAddress)
		}
	}
	return out
}

// EnabledTBMs returns the indices, into d.TBMs, of every enabled TBM
// core.
func (d *DUT) EnabledTBMs() []int {
	var out []int
	for i, tbm := range d.TBMs {
		if tbm.Enable {
			out = append(out, i)
		}
	}
	return out
}

// EnabledPixels returns the enabled pixel configs of the ROC at index
// roc. The mask bit is not consulted.
func (d *DUT) EnabledPixels(roc int) []PixelConfig {
	var out []PixelConfig
	for _, px := range d.ROCs[roc].Pixels {
		if px.Enable {
			out = append(out, px)
		}
	}
	return out
}

// DAC returns the current value of DAC id on the ROC at index roc, and
// whether that DAC is set at all.
func (d *DUT) DAC(roc int, id uint8) (uint16, bool) {
	v, ok := d.ROCs[roc].DACs[id]
	return v, ok
}

// MaskedPixelCount returns the number of masked pixels on the ROC at
// index roc.
func (d *DUT) MaskedPixelCount(roc int) int {
	n := 0
	for _, px := range d.ROCs[roc].Pixels {
		if px.Mask {
			n++
		}
	}
	return n
}

// AllPixelsEnabled reports whether every pixel of every enabled ROC is
// enabled, the condition the Loop Expander needs to pick its
// most-efficient dispatch strategy.
func (d *DUT) AllPixelsEnabled() bool {
	for _, roc := range d.ROCs {
		if !roc.Enable {
			continue
		}
		for _, px := range roc.Pixels {
			if !px.Enable {
				return false
			}
		}
	}
	return true
}
