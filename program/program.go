// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package program implements the pxar core's Programmer (C4): it
// flushes a validated dut.DUT to the hal.DUT boundary and keeps the
// per-pixel mask/trim state in sync with it across power cycles.
package program // import "github.com/psi-pxar/pxar/program"

import (
	"fmt"
	"log"

	"github.com/psi-pxar/pxar/dut"
	"github.com/psi-pxar/pxar/hal"
)

// Programmer owns the HAL handle used to flush dut.DUT state to
// hardware. It holds no DUT state of its own (the DUT model always
// belongs to the caller), matching the source's "sole owner" redesign:
// components take a *dut.DUT borrowed for the duration of one call
// rather than holding a raw pointer back to it.
type Programmer struct {
	hal hal.DUT
	msg *log.Logger
}

// New returns a Programmer driving h, logging through msg.
func New(h hal.DUT, msg *log.Logger) *Programmer {
	return &Programmer{hal: h, msg: msg}
}

// ProgramDUT flushes d to hardware: powers the testboard on, sets the
// hub id and signal delays, initializes every enabled TBM and ROC, then
// masks every pixel (the baseline safe state). On success d.Programmed
// is set.
//
// d must already be Initialized; ProgramDUT does not validate, that is
// package validate's job.
func (p *Programmer) ProgramDUT(d *dut.DUT) error {
	if !d.Initialized {
		return fmt.Errorf("pxar: program: DUT not initialized")
	}

	if err := p.hal.PowerOn(); err != nil {
		return fmt.Errorf("pxar: program: could not power on: %w", err)
	}

	if err := p.hal.SetHubID(d.HubID); err != nil {
		return fmt.Errorf("pxar: program: could not set hub id: %w", err)
	}

	for reg, v := range d.SigDelays {
		if err := p.hal.SetSigDelay(reg, v); err != nil {
			return fmt.Errorf("pxar: program: could not set delay 0x%x: %w", reg, err)
		}
	}

	for i, tbm := range d.TBMs {
		if !tbm.Enable {
			continue
		}
		if err := p.hal.InitTBM(i, tbm.DACs); err != nil {
			return fmt.Errorf("pxar: program: could not init TBM %d: %w", i, err)
		}
	}

	for _, roc := range d.ROCs {
		if !roc.Enable {
			continue
		}
		if err := p.hal.InitROC(roc.I2CAddress, roc.Type, roc.DACs); err != nil {
			return fmt.Errorf("pxar: program: could not init ROC 0x%x: %w", roc.I2CAddress, err)
		}
	}

	if len(d.PGSetup) > 0 {
		entries := make([]hal.PatternEntry, len(d.PGSetup))
		for i, e := range d.PGSetup {
			entries[i] = hal.PatternEntry{Pattern: e.Pattern, Delay: e.Delay}
		}
		if err := p.hal.ProgramPatternGenerator(entries); err != nil {
			return fmt.Errorf("pxar: program: could not program pattern generator: %w", err)
		}
	}

	if err := p.MaskAll(d, false); err != nil {
		return fmt.Errorf("pxar: program: could not mask DUT after programming: %w", err)
	}

	d.Programmed = true
	p.msg.Printf("DUT programmed: hub=0x%x rocs=%d tbms=%d",
		d.HubID, len(d.EnabledROCs()), len(d.EnabledTBMs()))
	return nil
}

// PowerOff turns the testboard's power off. d.Programmed is cleared but
// the in-memory model is preserved, so the next PowerOn+ProgramDUT
// re-runs the exact same sequence.
func (p *Programmer) PowerOff(d *dut.DUT) error {
	if err := p.hal.PowerOff(); err != nil {
		return fmt.Errorf("pxar: program: could not power off: %w", err)
	}
	d.Programmed = false
	return nil
}

// MaskAll brings every enabled ROC to its baseline-safe state: with
// trim false it blanket-masks every pixel; with trim true it pushes the
// ROC's trim table and then unmasks, so the configured pixels can take
// calibrate-injected hits during acquisition.
func (p *Programmer) MaskAll(d *dut.DUT, trim bool) error {
	for _, i := range d.EnabledROCs() {
		roc := d.ROCs[i]
		if !trim {
			if err := p.hal.MaskAllPixels(roc.I2CAddress, true); err != nil {
				return fmt.Errorf("pxar: program: could not mask ROC 0x%x: %w", roc.I2CAddress, err)
			}
			continue
		}
		if err := p.pushRocTrims(roc); err != nil {
			return err
		}
		if err := p.hal.MaskAllPixels(roc.I2CAddress, false); err != nil {
			return fmt.Errorf("pxar: program: could not unmask ROC 0x%x: %w", roc.I2CAddress, err)
		}
	}
	return nil
}

// TrimThenMaskROC pushes roc's trim table, then masks every one of its
// pixels. Package loop uses this for the FORCE_SERIAL+FORCE_UNMASKED
// per-ROC dispatch case, where each ROC must be re-trimmed immediately
// before its own HAL call.
func (p *Programmer) TrimThenMaskROC(roc dut.RocConfig) error {
	if err := p.pushRocTrims(roc); err != nil {
		return err
	}
	return p.hal.MaskAllPixels(roc.I2CAddress, true)
}

func (p *Programmer) pushRocTrims(roc dut.RocConfig) error {
	for _, px := range roc.Pixels {
		if err := p.hal.TrimPixel(roc.I2CAddress, px.Column, px.Row, px.Trim); err != nil {
			return fmt.Errorf("pxar: program: could not trim ROC 0x%x pixel (%d,%d): %w",
				roc.I2CAddress, px.Column, px.Row, err)
		}
	}
	return nil
}

// PushTrimsToNIOS uploads the full trim table of every enabled ROC to
// the DTB's soft core, so firmware-side parallel routines (multi-pixel,
// multi-ROC HAL entries) can execute without a per-pixel round-trip
// through the host.
func (p *Programmer) PushTrimsToNIOS(d *dut.DUT) error {
	for _, i := range d.EnabledROCs() {
		roc := d.ROCs[i]
		table := make([][]uint8, 80)
		for r := range table {
			table[r] = make([]uint8, 52)
		}
		for _, px := range roc.Pixels {
			table[px.Row][px.Column] = px.Trim
		}
		if err := p.hal.PushTrimsToNIOS(roc.I2CAddress, table); err != nil {
			return fmt.Errorf("pxar: program: could not push trims for ROC 0x%x: %w", roc.I2CAddress, err)
		}
	}
	return nil
}
