// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package usbdtb is a concrete hal.DUT/hal.DAQ implementation talking to
// a USB-attached Digital Test Board over a NIOS soft-core command
// protocol: every call marshals a command word plus its arguments into
// a frame written to a bulk OUT endpoint and reads the NIOS reply from a
// bulk IN endpoint.
//
// It is the one place in this repository that is allowed to import a
// USB host-side library and open a real device; every other package
// only ever sees the hal.DUT/hal.DAQ interfaces.
package usbdtb // import "github.com/psi-pxar/pxar/usbdtb"

import (
	"encoding/binary"
	"fmt"
	"log"
	"sort"

	"github.com/google/gousb"

	"github.com/psi-pxar/pxar/hal"
)

// vendorID is the DTB's USB vendor id; productIDs are the two bulk
// endpoint configurations the boards have shipped with, mirroring the
// source's own two-product-id FTDI probe.
const vendorID = 0x0403

var productIDs = []gousb.ID{0x6001, 0x6014}

// Board describes one enumerated, unopened DTB.
type Board struct {
	VendorID  gousb.ID
	ProductID gousb.ID
	Serial    string
}

// Scan lists every DTB currently attached to the host's USB bus.
func Scan(ctx *gousb.Context) ([]Board, error) {
	var boards []Board
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor != gousb.ID(vendorID) {
			return false
		}
		for _, pid := range productIDs {
			if desc.Product == pid {
				return true
			}
		}
		return false
	})
	if err != nil {
		return nil, fmt.Errorf("usbdtb: could not enumerate USB devices: %w", err)
	}
	defer func() {
		for _, dev := range devs {
			dev.Close()
		}
	}()

	for _, dev := range devs {
		serial, err := dev.SerialNumber()
		if err != nil {
			serial = ""
		}
		boards = append(boards, Board{
			VendorID:  dev.Desc.Vendor,
			ProductID: dev.Desc.Product,
			Serial:    serial,
		})
	}

	sort.Slice(boards, func(i, j int) bool { return boards[i].Serial < boards[j].Serial })
	return boards, nil
}

// command words of the NIOS wire protocol. Values are placeholders for
// the firmware's actual opcode map; what matters here is the framing,
// not the exact numbering.
const (
	cmdPowerOn       = 0x01
	cmdPowerOff      = 0x02
	cmdSetHubID      = 0x03
	cmdSetSigDelay   = 0x04
	cmdInitTBM       = 0x05
	cmdInitROC       = 0x06
	cmdMaskPixel     = 0x07
	cmdMaskAll       = 0x08
	cmdTrimPixel     = 0x09
	cmdPushTrims     = 0x0a
	cmdSetCalibrate  = 0x0b
	cmdEnableColumns = 0x0c
	cmdSetProbe      = 0x0d
	cmdProgramPG     = 0x0e
	cmdGetReadback   = 0x0f

	cmdDAQStart          = 0x20
	cmdDAQStop           = 0x21
	cmdDAQStatus         = 0x22
	cmdDAQTrigger        = 0x23
	cmdDAQTriggerLoopSet = 0x24
	cmdDAQTriggerLoopOff = 0x25
	cmdDAQGetBuffer      = 0x26
)

// DTB is a hal.DUT and hal.DAQ driving one USB-attached testboard.
type DTB struct {
	dev *gousb.Device
	cfg *gousb.Config
	iif *gousb.Interface
	out *gousb.OutEndpoint
	in  *gousb.InEndpoint

	msg *log.Logger
}

// Open claims the DTB's USB interface and its bulk endpoints.
func Open(dev *gousb.Device, msg *log.Logger) (*DTB, error) {
	if err := dev.SetAutoDetach(true); err != nil {
		return nil, fmt.Errorf("usbdtb: could not enable auto-detach: %w", err)
	}

	cfg, err := dev.Config(1)
	if err != nil {
		return nil, fmt.Errorf("usbdtb: could not claim config: %w", err)
	}

	iif, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		return nil, fmt.Errorf("usbdtb: could not claim interface: %w", err)
	}

	out, err := iif.OutEndpoint(2)
	if err != nil {
		iif.Close()
		cfg.Close()
		return nil, fmt.Errorf("usbdtb: could not open OUT endpoint: %w", err)
	}

	in, err := iif.InEndpoint(1)
	if err != nil {
		iif.Close()
		cfg.Close()
		return nil, fmt.Errorf("usbdtb: could not open IN endpoint: %w", err)
	}

	if msg == nil {
		msg = log.New(log.Writer(), "usbdtb: ", log.LstdFlags)
	}

	return &DTB{dev: dev, cfg: cfg, iif: iif, out: out, in: in, msg: msg}, nil
}

// Close releases the USB interface and device handle.
func (d *DTB) Close() error {
	d.iif.Close()
	d.cfg.Close()
	return d.dev.Close()
}

// call writes a command frame (cmd word + payload) and reads back a
// reply frame of exactly wantReply bytes.
func (d *DTB) call(cmd uint16, payload []byte, wantReply int) ([]byte, error) {
	frame := make([]byte, 2+len(payload))
	binary.BigEndian.PutUint16(frame[:2], cmd)
	copy(frame[2:], payload)

	if _, err := d.out.Write(frame); err != nil {
		return nil, fmt.Errorf("usbdtb: could not write command 0x%02x: %w", cmd, err)
	}

	if wantReply == 0 {
		return nil, nil
	}
	reply := make([]byte, wantReply)
	n, err := d.in.Read(reply)
	if err != nil {
		return nil, fmt.Errorf("usbdtb: could not read reply to command 0x%02x: %w", cmd, err)
	}
	if n != wantReply {
		return nil, fmt.Errorf("usbdtb: short reply to command 0x%02x: got %d bytes, want %d", cmd, n, wantReply)
	}
	return reply, nil
}

func (d *DTB) PowerOn() error {
	_, err := d.call(cmdPowerOn, nil, 0)
	return err
}

func (d *DTB) PowerOff() error {
	_, err := d.call(cmdPowerOff, nil, 0)
	return err
}

func (d *DTB) SetHubID(id uint8) error {
	_, err := d.call(cmdSetHubID, []byte{id}, 0)
	return err
}

func (d *DTB) SetSigDelay(reg uint8, value uint8) error {
	_, err := d.call(cmdSetSigDelay, []byte{reg, value}, 0)
	return err
}

func (d *DTB) InitTBM(coreIndex int, dacs map[uint8]uint16) error {
	payload := []byte{uint8(coreIndex)}
	payload = appendDACMap(payload, dacs)
	_, err := d.call(cmdInitTBM, payload, 0)
	return err
}

func (d *DTB) InitROC(i2c uint8, chipType uint8, dacs map[uint8]uint16) error {
	payload := []byte{i2c, chipType}
	payload = appendDACMap(payload, dacs)
	_, err := d.call(cmdInitROC, payload, 0)
	return err
}

func appendDACMap(buf []byte, dacs map[uint8]uint16) []byte {
	ids := make([]uint8, 0, len(dacs))
	for id := range dacs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	buf = append(buf, uint8(len(ids)))
	for _, id := range ids {
		var v [2]byte
		binary.BigEndian.PutUint16(v[:], dacs[id])
		buf = append(buf, id, v[0], v[1])
	}
	return buf
}

func (d *DTB) MaskPixel(i2c uint8, col, row uint8, mask bool) error {
	_, err := d.call(cmdMaskPixel, []byte{i2c, col, row, boolByte(mask)}, 0)
	return err
}

func (d *DTB) MaskAllPixels(i2c uint8, mask bool) error {
	_, err := d.call(cmdMaskAll, []byte{i2c, boolByte(mask)}, 0)
	return err
}

func (d *DTB) TrimPixel(i2c uint8, col, row uint8, trim uint8) error {
	_, err := d.call(cmdTrimPixel, []byte{i2c, col, row, trim}, 0)
	return err
}

func (d *DTB) PushTrimsToNIOS(i2c uint8, trims [][]uint8) error {
	payload := []byte{i2c}
	for _, row := range trims {
		payload = append(payload, row...)
	}
	_, err := d.call(cmdPushTrims, payload, 0)
	return err
}

func (d *DTB) SetCalibrate(i2c uint8, col, row uint8, on bool) error {
	_, err := d.call(cmdSetCalibrate, []byte{i2c, col, row, boolByte(on)}, 0)
	return err
}

func (d *DTB) EnableColumns(i2c uint8, on bool) error {
	_, err := d.call(cmdEnableColumns, []byte{i2c, boolByte(on)}, 0)
	return err
}

func (d *DTB) SetProbe(channel string, signal uint8) error {
	payload := append([]byte(channel), 0, signal)
	_, err := d.call(cmdSetProbe, payload, 0)
	return err
}

func (d *DTB) ProgramPatternGenerator(entries []hal.PatternEntry) error {
	payload := make([]byte, 0, 3*len(entries))
	for _, e := range entries {
		var p [2]byte
		binary.BigEndian.PutUint16(p[:], e.Pattern)
		payload = append(payload, p[0], p[1], e.Delay)
	}
	_, err := d.call(cmdProgramPG, payload, 0)
	return err
}

// GetReadbackValue preserves the source's own "intended semantics
// unknown" stub: it always returns -1, regardless of whether the
// command round-trip itself succeeds.
func (d *DTB) GetReadbackValue(i2c uint8, name string) int32 {
	_, _ = d.call(cmdGetReadback, append([]byte{i2c}, []byte(name)...), 4)
	return -1
}

func (d *DTB) DAQStart(deserPhase uint8, nEnabledTBMs int, bufferSize uint32) error {
	payload := make([]byte, 6)
	payload[0] = deserPhase
	payload[1] = uint8(nEnabledTBMs)
	binary.BigEndian.PutUint32(payload[2:], bufferSize)
	_, err := d.call(cmdDAQStart, payload, 0)
	return err
}

func (d *DTB) DAQStop() error {
	_, err := d.call(cmdDAQStop, nil, 0)
	return err
}

func (d *DTB) DAQStatus() (filled, capacity uint32, err error) {
	reply, err := d.call(cmdDAQStatus, nil, 8)
	if err != nil {
		return 0, 0, err
	}
	filled = binary.BigEndian.Uint32(reply[0:4])
	capacity = binary.BigEndian.Uint32(reply[4:8])
	return filled, capacity, nil
}

func (d *DTB) DAQTrigger(n uint32, period uint32) error {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint32(payload[0:4], n)
	binary.BigEndian.PutUint32(payload[4:8], period)
	_, err := d.call(cmdDAQTrigger, payload, 0)
	return err
}

func (d *DTB) DAQTriggerLoopStart(period uint32) error {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, period)
	_, err := d.call(cmdDAQTriggerLoopSet, payload, 0)
	return err
}

func (d *DTB) DAQTriggerLoopHalt() error {
	_, err := d.call(cmdDAQTriggerLoopOff, nil, 0)
	return err
}

func (d *DTB) DAQGetBuffer(maxBytes uint32) ([]byte, error) {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, maxBytes)
	if _, err := d.out.Write(append([]byte{0, cmdDAQGetBuffer}, payload...)); err != nil {
		return nil, fmt.Errorf("usbdtb: could not request buffer drain: %w", err)
	}

	buf := make([]byte, maxBytes)
	n, err := d.in.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("usbdtb: could not read drained buffer: %w", err)
	}
	return buf[:n], nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

var (
	_ hal.DUT = (*DTB)(nil)
	_ hal.DAQ = (*DTB)(nil)
)
