// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dict

// Core selects one of a TBM chip's two register cores.
type Core uint8

const (
	CoreAlpha Core = 0xE0
	CoreBeta  Core = 0xF0
)

// coreMask isolates the core-selector nibble of a TBM register byte;
// baseMask isolates the base register id.
const (
	coreMask = 0xF0
	baseMask = 0x0F
)

// TBMReg is the name->id registry for TBM base registers. The id stored
// here is the 4-bit base register number; RegisterID combines it with a
// Core to produce the full 8-bit register byte the spec describes
// ("bits [7:4] = core selector, bits [3:0] = base register").
var TBMReg = newTable("tbm-reg", []Entry{
	{Name: "Base0", ID: 0x0, Size: 255},
	{Name: "Base1", ID: 0x1, Size: 255},
	{Name: "Base2", ID: 0x2, Size: 255},
	{Name: "Base3", ID: 0x3, Size: 255},
	{Name: "Base4", ID: 0x4, Size: 255},
	{Name: "Base5", ID: 0x5, Size: 255},
	{Name: "Base6", ID: 0x6, Size: 255},
	{Name: "Base7", ID: 0x7, Size: 255},
	{Name: "Base8", ID: 0x8, Size: 255},
	{Name: "Base9", ID: 0x9, Size: 255},
	{Name: "Basea", ID: 0xA, Size: 255},
	{Name: "Baseb", ID: 0xB, Size: 255},
	{Name: "Basec", ID: 0xC, Size: 255},
	{Name: "Based", ID: 0xD, Size: 255},
	{Name: "Basee", ID: 0xE, Size: 255},
	{Name: "Basef", ID: 0xF, Size: 255},
})

// RegisterID combines a core selector and a base register id into the
// full 8-bit TBM register byte.
func RegisterID(core Core, base uint8) uint8 {
	return uint8(core) | (base & baseMask)
}

// OtherCore flips the core-selector bit (bit 4) of a TBM register byte,
// turning an alpha-core register id into its beta-core twin or vice
// versa. Used when a caller supplies only one core's config and the
// second core must be synthesised.
func OtherCore(reg uint8) uint8 {
	return reg ^ 0x10
}

// SplitRegisterID decomposes a full TBM register byte back into its
// core selector and base register id.
func SplitRegisterID(reg uint8) (Core, uint8) {
	return Core(reg & coreMask), reg & baseMask
}
