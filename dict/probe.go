// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dict

// ProbeDigital is the name->id registry for the DTB's digital probe
// outputs (d1, d2): internal digital signals that can be routed to a
// scope-visible pin.
var ProbeDigital = newTable("probe-digital", []Entry{
	{Name: "off", ID: 0x00},
	{Name: "clk", ID: 0x01},
	{Name: "sda", ID: 0x02},
	{Name: "sdawrite", ID: 0x03},
	{Name: "sdaread", ID: 0x04},
	{Name: "pgtok", ID: 0x05},
	{Name: "pgtrg", ID: 0x06},
	{Name: "pgcal", ID: 0x07},
	{Name: "pgresr", ID: 0x08},
	{Name: "rda", ID: 0x09},
	{Name: "tin", ID: 0x0A},
	{Name: "tout", ID: 0x0B},
})

// ProbeAnalog is the name->id registry for the DTB's analog probe
// outputs (a1, a2).
var ProbeAnalog = newTable("probe-analog", []Entry{
	{Name: "off", ID: 0x00},
	{Name: "vd", ID: 0x01},
	{Name: "va", ID: 0x02},
	{Name: "vcal", ID: 0x03},
	{Name: "ctr", ID: 0x04},
	{Name: "clk", ID: 0x05},
	{Name: "sda", ID: 0x06},
	{Name: "tout", ID: 0x07},
})
