// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dict

// DTBDelay is the name->id registry for DTB timing-delay signals (clock
// and data-line skew adjustments the testboard applies before sampling).
var DTBDelay = newTable("dtb-delay", []Entry{
	{Name: "clk", ID: 0x00, Size: 20},
	{Name: "ctr", ID: 0x01, Size: 20},
	{Name: "sda", ID: 0x02, Size: 20},
	{Name: "tin", ID: 0x03, Size: 20},
	{Name: "tout", ID: 0x04, Size: 20},
	{Name: "deser160phase", ID: 0x05, Size: 7},
	{Name: "level", ID: 0x06, Size: 255},
	{Name: "triggerlatency", ID: 0x07, Size: 255},
	{Name: "triggertimeout", ID: 0x08, Size: 255},
})
