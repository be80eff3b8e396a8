// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dict

// RocDAC is the name->id registry for ROC (Readout Chip) DAC registers.
// All ROC DACs on the psi46-family chips are 8-bit; a handful (Vcal's
// high/low range switch aside) share that same [0,255] size.
var RocDAC = newTable("roc-dac", []Entry{
	{Name: "Vdig", ID: 0x01, Size: 255},
	{Name: "Vana", ID: 0x02, Size: 255},
	{Name: "Vsh", ID: 0x03, Size: 255},
	{Name: "Vcomp", ID: 0x04, Size: 255},
	{Name: "Vwllpr", ID: 0x05, Size: 255},
	{Name: "Vwllsh", ID: 0x06, Size: 255},
	{Name: "VhldDel", ID: 0x07, Size: 255},
	{Name: "Vtrim", ID: 0x08, Size: 255},
	{Name: "VthrComp", ID: 0x09, Size: 255},
	{Name: "VIbias_bus", ID: 0x0A, Size: 255},
	{Name: "Vbias_sf", ID: 0x0B, Size: 255},
	{Name: "VoffsetOp", ID: 0x0C, Size: 255},
	{Name: "VIbiasOp", ID: 0x0D, Size: 255},
	{Name: "VoffsetRO", ID: 0x0E, Size: 255},
	{Name: "VIon", ID: 0x0F, Size: 255},
	{Name: "VIbias_PH", ID: 0x10, Size: 255},
	{Name: "VIbias_DAC", ID: 0x11, Size: 255},
	{Name: "VIbias_roc", ID: 0x12, Size: 255},
	{Name: "VIColOr", ID: 0x13, Size: 255},
	{Name: "Vnpix", ID: 0x14, Size: 255},
	{Name: "VsumCol", ID: 0x15, Size: 255},
	{Name: "Vcal", ID: 0x16, Size: 255},
	{Name: "CalDel", ID: 0x17, Size: 255},
	{Name: "TempRange", ID: 0x18, Size: 15},
	{Name: "WBC", ID: 0xFE, Size: 255},
	{Name: "CtrlReg", ID: 0xFD, Size: 255},
})

// DeviceType is the name->id registry for ROC and TBM chip type strings,
// as they appear in a DUT config file (e.g. "psi46digv21").
var DeviceType = newTable("device-type", []Entry{
	{Name: "psi46digv1", ID: 0x01},
	{Name: "psi46digv2", ID: 0x02},
	{Name: "psi46digv21", ID: 0x03},
	{Name: "psi46digv21respin", ID: 0x04},
	{Name: "psi46dig2x1", ID: 0x05},
	{Name: "tbm08", ID: 0x81},
	{Name: "tbm08a", ID: 0x82},
	{Name: "tbm09", ID: 0x83},
	{Name: "tbm09c", ID: 0x84},
	{Name: "tbm10c", ID: 0x85},
})
