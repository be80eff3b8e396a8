// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validate

import (
	"github.com/psi-pxar/pxar/dict"
	"github.com/psi-pxar/pxar/dut"
)

// PixelInput is the caller-supplied per-pixel configuration, prior to
// range/duplicate checking.
type PixelInput struct {
	Column, Row uint8
	Trim        uint8
	Enable      bool
	Mask        bool
}

// RocInput is the caller-supplied configuration for one ROC. Its I2C
// address is not taken from the caller: it is always the ROC's
// zero-based position in the Rocs slice passed to Init, per the DUT's
// invariant that every enabled ROC's i2c_address equals its index.
type RocInput struct {
	Type   string
	Enable bool
	DACs   map[string]uint32
	Pixels []PixelInput
}

// TBMChipInput is the caller-supplied configuration for one physical
// TBM chip. If Beta is nil, the beta core is synthesised from Alpha by
// flipping the core-selector bit of every register id and copying its
// value, per the spec's single-core submission rule.
type TBMChipInput struct {
	Type   string
	Enable bool
	Alpha  map[string]uint32
	Beta   map[string]uint32
}

// Init validates a full DUT configuration and, on success, populates d
// and marks it Initialized. On any InvalidConfigError, d is left
// untouched (it is only mutated once every input has been checked).
func Init(msg Logger, d *dut.DUT, hubID uint8, rocs []RocInput, tbms []TBMChipInput) error {
	newROCs, err := buildROCs(msg, rocs)
	if err != nil {
		return err
	}
	newTBMs, err := buildTBMs(msg, tbms)
	if err != nil {
		return err
	}

	d.HubID = hubID
	d.ROCs = newROCs
	d.TBMs = newTBMs
	d.Initialized = true
	return nil
}

func buildROCs(msg Logger, rocs []RocInput) ([]dut.RocConfig, error) {
	out := make([]dut.RocConfig, 0, len(rocs))
	for i, in := range rocs {
		typeID, _, err := VerifyRegister(msg, dict.DeviceType, in.Type, 0)
		if err != nil {
			return nil, err
		}

		dacs := make(map[uint8]uint16, len(in.DACs))
		for name, v := range in.DACs {
			id, clamped, err := VerifyRegister(msg, dict.RocDAC, name, v)
			if err != nil {
				return nil, err
			}
			dacs[id] = uint16(clamped)
		}

		pixels, err := buildPixels(msg, in.Pixels)
		if err != nil {
			return nil, err
		}

		out = append(out, dut.RocConfig{
			Type:       typeID,
			I2CAddress: uint8(i),
			Enable:     in.Enable,
			DACs:       dacs,
			Pixels:     pixels,
		})
	}
	return out, nil
}

func buildPixels(msg Logger, pixels []PixelInput) ([]dut.PixelConfig, error) {
	const (
		maxCol = 51
		maxRow = 79
	)

	seen := make(map[[2]uint8]bool, len(pixels))
	out := make([]dut.PixelConfig, 0, len(pixels))
	for _, in := range pixels {
		if in.Column > maxCol || in.Row > maxRow {
			return nil, invalid("initDUT", "pixel (col=%d, row=%d) out of range [0,%d]x[0,%d]",
				in.Column, in.Row, maxCol, maxRow)
		}
		key := [2]uint8{in.Column, in.Row}
		if seen[key] {
			return nil, invalid("initDUT", "duplicate pixel (col=%d, row=%d)", in.Column, in.Row)
		}
		seen[key] = true

		trim := in.Trim
		if trim > 15 {
			msg.Printf("warning: pixel (col=%d, row=%d): trim %d exceeds max 15, clamped",
				in.Column, in.Row, trim)
			trim = 15
		}

		out = append(out, dut.PixelConfig{
			Column: in.Column,
			Row:    in.Row,
			Trim:   trim,
			Enable: in.Enable,
			Mask:   in.Mask,
		})
	}
	return out, nil
}

func buildTBMs(msg Logger, tbms []TBMChipInput) ([]dut.TBMConfig, error) {
	out := make([]dut.TBMConfig, 0, 2*len(tbms))
	for _, in := range tbms {
		typeID, _, err := VerifyRegister(msg, dict.DeviceType, in.Type, 0)
		if err != nil {
			return nil, err
		}

		alpha, err := buildTBMCore(msg, dict.CoreAlpha, in.Alpha)
		if err != nil {
			return nil, err
		}

		var beta map[uint8]uint16
		if in.Beta != nil {
			beta, err = buildTBMCore(msg, dict.CoreBeta, in.Beta)
			if err != nil {
				return nil, err
			}
		} else {
			beta = make(map[uint8]uint16, len(alpha))
			for reg, v := range alpha {
				beta[dict.OtherCore(reg)] = v
			}
		}

		out = append(out,
			dut.TBMConfig{Type: typeID, Enable: in.Enable, DACs: alpha},
			dut.TBMConfig{Type: typeID, Enable: in.Enable, DACs: beta},
		)
	}
	return out, nil
}

func buildTBMCore(msg Logger, core dict.Core, regs map[string]uint32) (map[uint8]uint16, error) {
	out := make(map[uint8]uint16, len(regs))
	for name, v := range regs {
		base, clamped, err := VerifyRegister(msg, dict.TBMReg, name, v)
		if err != nil {
			return nil, err
		}
		out[dict.RegisterID(core, base)] = uint16(clamped)
	}
	return out, nil
}
