// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package daq implements the DAQ Controller (C6): a small Idle/Running
// state machine wrapping the DTB's free-running source buffer, plus the
// drain paths of increasing granularity the caller-side back-pressure
// protocol relies on.
package daq // import "github.com/psi-pxar/pxar/daq"

import (
	"fmt"
	"io"
	"log"
	"math"

	"github.com/psi-pxar/pxar/dut"
	"github.com/psi-pxar/pxar/event"
	"github.com/psi-pxar/pxar/hal"
	"github.com/psi-pxar/pxar/program"
)

// DefaultBufferSize is the compile-time DTB source-buffer capacity, in
// bytes, used when a caller does not override it with WithBufferSize.
const DefaultBufferSize = 1 << 20 // 1 MiB

const (
	overflowWarnFrac = 0.9
	// PauseThresholdPercent is the back-pressure threshold callers are
	// expected to poll for: once Status reports perFull above it, halt
	// the trigger loop, drain with GetEventBuffer, then resume.
	PauseThresholdPercent = 80
)

// State is the DAQ Controller's run state.
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "Running"
	}
	return "Idle"
}

// Option configures a Controller.
type Option func(*Controller)

// WithBufferSize overrides the DTB source-buffer capacity a session is
// started with.
func WithBufferSize(n uint32) Option {
	return func(c *Controller) { c.bufferSize = n }
}

// Controller drives one DAQ session at a time against a hal.DAQ and
// hal.DUT pair, enforcing the Idle/Running state machine and the
// period-vs-pg_sum clamp.
type Controller struct {
	hal  hal.DAQ
	dut  hal.DUT
	prog *program.Programmer
	msg  *log.Logger

	bufferSize uint32

	state             State
	deserPhase        uint8
	lastDecoderErrors uint32
}

// New returns an idle Controller driving hq and hd, using prog for the
// mask/trim discipline around a session.
func New(hq hal.DAQ, hd hal.DUT, prog *program.Programmer, msg *log.Logger, opts ...Option) *Controller {
	c := &Controller{
		hal:        hq,
		dut:        hd,
		prog:       prog,
		msg:        msg,
		bufferSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State reports the controller's current run state.
func (c *Controller) State() State { return c.state }

// LastDecoderErrors returns the number of decoder errors accumulated
// across every GetEventBuffer/GetEvent call of the current session.
func (c *Controller) LastDecoderErrors() uint32 { return c.lastDecoderErrors }

// Start begins a DAQ session: it loads d's trims and unmasks its
// enabled ROCs (program.Programmer.MaskAll with trim), enables calibrate
// injection and readout columns on every enabled pixel/ROC, and starts
// the HAL source buffer with room for nEnabledTBMs deserializer streams
// at deserPhase.
func (c *Controller) Start(d *dut.DUT, deserPhase uint8) error {
	if c.state == Running {
		return fmt.Errorf("pxar: daq: already running")
	}

	if err := c.hal.DAQStop(); err != nil {
		return fmt.Errorf("pxar: daq: could not clear HAL DAQ state: %w", err)
	}
	if err := c.prog.MaskAll(d, true); err != nil {
		return fmt.Errorf("pxar: daq: could not mask+trim DUT: %w", err)
	}

	for _, i := range d.EnabledROCs() {
		roc := d.ROCs[i]
		for _, px := range d.EnabledPixels(i) {
			if err := c.dut.SetCalibrate(roc.I2CAddress, px.Column, px.Row, true); err != nil {
				return fmt.Errorf("pxar: daq: could not set calibrate bit on ROC 0x%x pixel (%d,%d): %w",
					roc.I2CAddress, px.Column, px.Row, err)
			}
		}
		if err := c.dut.EnableColumns(roc.I2CAddress, true); err != nil {
			return fmt.Errorf("pxar: daq: could not enable columns on ROC 0x%x: %w", roc.I2CAddress, err)
		}
	}

	nTBMs := len(d.EnabledTBMs())
	if err := c.hal.DAQStart(deserPhase, nTBMs, c.bufferSize); err != nil {
		return fmt.Errorf("pxar: daq: could not start HAL DAQ: %w", err)
	}

	c.deserPhase = deserPhase
	c.state = Running
	c.lastDecoderErrors = 0
	return nil
}

// Status reports whether the session is healthy: false if the
// controller is not Running, or if the source buffer fill exceeds the
// 90% overflow-warning threshold. perFull receives floor(100*filled/capacity).
func (c *Controller) Status() (ok bool, perFull int, err error) {
	if c.state != Running {
		return false, 0, nil
	}

	filled, capacity, err := c.hal.DAQStatus()
	if err != nil {
		return false, 0, fmt.Errorf("pxar: daq: could not read status: %w", err)
	}
	if capacity == 0 {
		return false, 0, fmt.Errorf("pxar: daq: zero-capacity buffer reported")
	}

	perFull = int(math.Floor(100 * float64(filled) / float64(capacity)))
	if float64(filled)/float64(capacity) > overflowWarnFrac {
		c.msg.Printf("warning: daq: source buffer %d%% full, imminent overflow", perFull)
		return false, perFull, nil
	}
	return true, perFull, nil
}

// clampPeriod raises period to d.PGSum, with a warning, when it is too
// short to let one full pattern-generator program run between triggers.
func (c *Controller) clampPeriod(d *dut.DUT, period uint32) uint32 {
	if period < d.PGSum {
		c.msg.Printf("warning: daq: trigger period %d below pg_sum %d, raising to %d",
			period, d.PGSum, d.PGSum)
		return d.PGSum
	}
	return period
}

// Trigger fires n triggers spaced period DTB clock cycles apart. It
// fails if the session is not healthy (see Status). The effective
// period used (after the pg_sum clamp) is returned.
func (c *Controller) Trigger(d *dut.DUT, n uint32, period uint32) (uint32, error) {
	ok, _, err := c.Status()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("pxar: daq: session not ready for trigger")
	}

	period = c.clampPeriod(d, period)
	if err := c.hal.DAQTrigger(n, period); err != nil {
		return 0, fmt.Errorf("pxar: daq: could not trigger: %w", err)
	}
	return period, nil
}

// TriggerLoopStart starts a free-running trigger generator at period
// DTB clock cycles, after the same pg_sum clamp as Trigger. It fails if
// the session is not healthy.
func (c *Controller) TriggerLoopStart(d *dut.DUT, period uint32) (uint32, error) {
	ok, _, err := c.Status()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("pxar: daq: session not ready for trigger loop")
	}

	period = c.clampPeriod(d, period)
	if err := c.hal.DAQTriggerLoopStart(period); err != nil {
		return 0, fmt.Errorf("pxar: daq: could not start trigger loop: %w", err)
	}
	return period, nil
}

// TriggerLoopHalt stops a free-running trigger generator started by
// TriggerLoopStart. This is the caller-side back-pressure protocol's
// entry point for pausing a long run to drain the buffer.
func (c *Controller) TriggerLoopHalt() error {
	if err := c.hal.DAQTriggerLoopHalt(); err != nil {
		return fmt.Errorf("pxar: daq: could not halt trigger loop: %w", err)
	}
	return nil
}

// GetBuffer drains up to maxBytes of raw, undecoded bytes from the
// source buffer.
func (c *Controller) GetBuffer(maxBytes uint32) ([]byte, error) {
	b, err := c.hal.DAQGetBuffer(maxBytes)
	if err != nil {
		return nil, fmt.Errorf("pxar: daq: could not drain buffer: %w", err)
	}
	return b, nil
}

// GetRawEventBuffer drains up to maxBytes and splits them into
// undecoded per-event byte frames. Unlike GetEventBuffer, this does not
// update the decoder-error counter; it is a debugging/passthrough path.
func (c *Controller) GetRawEventBuffer(maxBytes uint32) ([][]byte, error) {
	raw, err := c.GetBuffer(maxBytes)
	if err != nil {
		return nil, err
	}
	dec := newRawDecoder(raw)
	var out [][]byte
	for {
		frame, err := dec.next()
		if err != nil {
			break
		}
		out = append(out, frame)
	}
	return out, nil
}

// GetRawEvent drains a single raw, undecoded event frame.
func (c *Controller) GetRawEvent() ([]byte, error) {
	frames, err := c.GetRawEventBuffer(maxSingleEventBytes)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("pxar: daq: no event available")
	}
	return frames[0], nil
}

// maxSingleEventBytes bounds a single getRawEvent/getEvent drain so it
// does not pull an entire sweep's worth of data off the DTB.
const maxSingleEventBytes = 4096

// GetEventBuffer drains up to maxBytes and decodes the complete event
// frames found, in order. A frame with a bad header marker, trailer
// marker or CRC counts as one decoder error and ends decoding: the
// bytes after it, like a frame cut short at the end of the drained
// bytes, are not decoded. Decoder errors reported inside a decoded
// event are added to the counter too.
func (c *Controller) GetEventBuffer(maxBytes uint32) ([]event.Event, error) {
	raw, err := c.GetBuffer(maxBytes)
	if err != nil {
		return nil, err
	}
	dec := newRawDecoder(raw)
	var out []event.Event
	for {
		frame, err := dec.next()
		if err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				c.lastDecoderErrors++
			}
			break
		}
		ev, err := decodeEvent(frame)
		if err != nil {
			c.lastDecoderErrors++
			continue
		}
		c.lastDecoderErrors += ev.NumDecoderErrors
		out = append(out, ev)
	}
	return out, nil
}

// GetEvent drains and decodes a single event.
func (c *Controller) GetEvent() (event.Event, error) {
	evts, err := c.GetEventBuffer(maxSingleEventBytes)
	if err != nil {
		return event.Event{}, err
	}
	if len(evts) == 0 {
		return event.Event{}, fmt.Errorf("pxar: daq: no event available")
	}
	return evts[0], nil
}

// Stop ends a Running session: stops the HAL DAQ engine, re-masks the
// DUT, clears calibrate bits, and disables readout columns. Fails if
// not Running.
func (c *Controller) Stop(d *dut.DUT) error {
	if c.state != Running {
		return fmt.Errorf("pxar: daq: not running")
	}

	if err := c.hal.DAQStop(); err != nil {
		return fmt.Errorf("pxar: daq: could not stop HAL DAQ: %w", err)
	}
	if err := c.prog.MaskAll(d, false); err != nil {
		return fmt.Errorf("pxar: daq: could not re-mask DUT: %w", err)
	}

	for _, i := range d.EnabledROCs() {
		roc := d.ROCs[i]
		for _, px := range d.EnabledPixels(i) {
			if err := c.dut.SetCalibrate(roc.I2CAddress, px.Column, px.Row, false); err != nil {
				return fmt.Errorf("pxar: daq: could not clear calibrate bit on ROC 0x%x pixel (%d,%d): %w",
					roc.I2CAddress, px.Column, px.Row, err)
			}
		}
		if err := c.dut.EnableColumns(roc.I2CAddress, false); err != nil {
			return fmt.Errorf("pxar: daq: could not disable columns on ROC 0x%x: %w", roc.I2CAddress, err)
		}
	}

	c.state = Idle
	return nil
}
