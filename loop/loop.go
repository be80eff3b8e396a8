// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package loop implements the Loop Expander (C5): given a hal.Capability
// exposing up to four dispatch entry points, it picks the most
// efficient one available for the DUT's current enabled-ROC/enabled-pixel
// shape and runs a sweep across it.
//
// The source this core is derived from selected among its four entry
// points by raw member-function pointer. Here that becomes a plain
// branch over which hal.Capability fields are non-nil (see hal.Capability
// for the struct-of-optional-functions re-expression of that dispatch).
package loop // import "github.com/psi-pxar/pxar/loop"

import (
	"fmt"
	"log"

	"github.com/psi-pxar/pxar/dut"
	"github.com/psi-pxar/pxar/event"
	"github.com/psi-pxar/pxar/hal"
	"github.com/psi-pxar/pxar/program"
)

// Flags is the single bit-flags word shared by the Loop Expander and the
// Repacker (package repack): one value travels from a test's config down
// through both the sweep and the subsequent re-indexing of its results.
type Flags uint16

const (
	// FORCE_SERIAL prohibits multi-ROC HAL calls; ROCs are iterated one
	// by one even when a multi-ROC entry point is available.
	FORCE_SERIAL Flags = 1 << iota
	// FORCE_UNMASKED skips masking the whole DUT before and after the
	// sweep (trims are still loaded); the caller accepts whatever noise
	// unswept pixels contribute.
	FORCE_UNMASKED
	// CHECK_ORDER enforces that incoming pixels appear in column-major
	// raster order; mis-ordered pixels are flagged (value = -1) rather
	// than rejected. Consumed by package repack, not by Expander.Run.
	CHECK_ORDER
	// NOSORT suppresses the final sort of repacked results. Consumed by
	// package repack, not by Expander.Run.
	NOSORT
	// RISING_EDGE makes threshold extraction iterate DAC values
	// low-to-high instead of high-to-low. Consumed by package repack,
	// not by Expander.Run.
	RISING_EDGE
)

func (f Flags) has(bit Flags) bool { return f&bit != 0 }

// CriticalError reports a sweep that could not be dispatched at all:
// neither a parallel nor a serial HAL entry point was available for the
// DUT's current shape.
type CriticalError struct {
	Msg string
}

func (e *CriticalError) Error() string { return "pxar: loop: " + e.Msg }

// Expander runs sweeps across a hal.Capability, applying the source's
// mask/trim discipline and dispatch-strategy selection around each one.
type Expander struct {
	cap  hal.Capability
	prog *program.Programmer
	msg  *log.Logger

	lastDecoderErrors uint32
}

// New returns an Expander dispatching through cap, using prog to apply
// the mask/trim discipline around each sweep.
func New(cap hal.Capability, prog *program.Programmer, msg *log.Logger) *Expander {
	return &Expander{cap: cap, prog: prog, msg: msg}
}

// LastDecoderErrors returns the number of decoder errors accumulated
// across the events of the most recent Run call.
func (e *Expander) LastDecoderErrors() uint32 { return e.lastDecoderErrors }

// Run dispatches params across every enabled ROC/pixel of d, selecting
// the most efficient non-nil entry point of e.cap for d's current shape,
// applying flags' mask/trim discipline around the sweep.
func (e *Expander) Run(d *dut.DUT, params hal.Params, flags Flags) ([]event.Event, error) {
	if err := e.applyPreMaskDiscipline(d, flags); err != nil {
		return nil, err
	}

	evts, err := e.dispatch(d, params, flags)

	if !flags.has(FORCE_UNMASKED) {
		if merr := e.prog.MaskAll(d, false); merr != nil && err == nil {
			err = merr
		}
	}
	if err != nil {
		return nil, err
	}

	var nerr uint32
	for _, ev := range evts {
		nerr += ev.NumDecoderErrors
	}
	e.lastDecoderErrors = nerr

	return evts, nil
}

func (e *Expander) applyPreMaskDiscipline(d *dut.DUT, flags Flags) error {
	switch {
	case !flags.has(FORCE_UNMASKED):
		if err := e.prog.PushTrimsToNIOS(d); err != nil {
			return err
		}
		return e.prog.MaskAll(d, false)
	case flags.has(FORCE_UNMASKED) && !flags.has(FORCE_SERIAL):
		return e.prog.PushTrimsToNIOS(d)
	}
	// FORCE_UNMASKED && FORCE_SERIAL: trimming happens per-ROC, just
	// before each ROC's own HAL call, inside the serial dispatch below.
	return nil
}

func (e *Expander) dispatch(d *dut.DUT, params hal.Params, flags Flags) ([]event.Event, error) {
	rocs := d.EnabledROCs()
	parallelEligible := len(rocs) > 1 && !flags.has(FORCE_SERIAL)

	if parallelEligible {
		if d.AllPixelsEnabled() && e.cap.MultiROC != nil {
			return e.cap.MultiROC(d.EnabledROCI2C(), params)
		}
		if e.cap.MultiPixel != nil {
			return e.dispatchMultiPixel(d, rocs, params)
		}
	} else {
		if d.AllPixelsEnabled() && e.cap.ROC != nil {
			return e.dispatchSerialROC(d, rocs, params, flags)
		}
		if e.cap.Pixel != nil {
			return e.dispatchSerialPixel(d, rocs, params)
		}
	}

	return nil, &CriticalError{Msg: fmt.Sprintf(
		"no usable HAL entry point for %d enabled ROC(s), all-pixels=%v, FORCE_SERIAL=%v",
		len(rocs), d.AllPixelsEnabled(), flags.has(FORCE_SERIAL))}
}

func (e *Expander) dispatchMultiPixel(d *dut.DUT, rocs []int, params hal.Params) ([]event.Event, error) {
	rocsI2C := d.EnabledROCI2C()
	pixels := d.EnabledPixels(rocs[0])

	var out []event.Event
	for _, px := range pixels {
		evts, err := e.cap.MultiPixel(rocsI2C, px.Column, px.Row, params)
		if err != nil {
			return nil, err
		}
		out = append(out, evts...)
	}
	return out, nil
}

func (e *Expander) dispatchSerialROC(d *dut.DUT, rocs []int, params hal.Params, flags Flags) ([]event.Event, error) {
	var out []event.Event
	for _, i := range rocs {
		roc := d.ROCs[i]
		if flags.has(FORCE_SERIAL) && flags.has(FORCE_UNMASKED) {
			if err := e.prog.TrimThenMaskROC(roc); err != nil {
				return nil, err
			}
		}
		evts, err := e.cap.ROC(roc.I2CAddress, params)
		if err != nil {
			return nil, err
		}
		out = append(out, evts...)
	}
	return out, nil
}

func (e *Expander) dispatchSerialPixel(d *dut.DUT, rocs []int, params hal.Params) ([]event.Event, error) {
	var out []event.Event
	for _, i := range rocs {
		roc := d.ROCs[i]
		for _, px := range d.EnabledPixels(i) {
			evts, err := e.cap.Pixel(roc.I2CAddress, px.Column, px.Row, params)
			if err != nil {
				return nil, err
			}
			out = append(out, evts...)
		}
	}
	return out, nil
}
