// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dut

import "testing"

func rocWith(enable bool, pixels ...PixelConfig) RocConfig {
	return RocConfig{Enable: enable, DACs: map[uint8]uint16{}, Pixels: pixels}
}

func TestEnabledROCs(t *testing.T) {
	d := New()
	d.ROCs = []RocConfig{
		rocWith(true),
		rocWith(false),
		rocWith(true),
	}
	got := d.EnabledROCs()
	want := []int{0, 2}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("EnabledROCs() = %v, want %v", got, want)
	}
}

func TestEnabledROCI2C(t *testing.T) {
	d := New()
	d.ROCs = []RocConfig{
		{Enable: true, I2CAddress: 0},
		{Enable: false, I2CAddress: 1},
		{Enable: true, I2CAddress: 2},
	}
	got := d.EnabledROCI2C()
	if len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Fatalf("EnabledROCI2C() = %v, want [0 2]", got)
	}
}

func TestEnabledPixels(t *testing.T) {
	d := New()
	d.ROCs = []RocConfig{
		rocWith(true,
			PixelConfig{Column: 0, Row: 0, Enable: true},
			PixelConfig{Column: 0, Row: 1, Enable: false},
		),
	}
	got := d.EnabledPixels(0)
	if len(got) != 1 || got[0].Row != 0 {
		t.Fatalf("EnabledPixels(0) = %v, want one pixel at row 0", got)
	}
}

func TestMaskedPixelCount(t *testing.T) {
	d := New()
	d.ROCs = []RocConfig{
		rocWith(true,
			PixelConfig{Mask: true},
			PixelConfig{Mask: false},
			PixelConfig{Mask: true},
		),
	}
	if got, want := d.MaskedPixelCount(0), 2; got != want {
		t.Fatalf("MaskedPixelCount(0) = %d, want %d", got, want)
	}
}

func TestAllPixelsEnabled(t *testing.T) {
	d := New()
	d.ROCs = []RocConfig{
		rocWith(true, PixelConfig{Enable: true}, PixelConfig{Enable: true}),
		rocWith(false, PixelConfig{Enable: false}), // disabled ROC, ignored
	}
	if !d.AllPixelsEnabled() {
		t.Fatal("AllPixelsEnabled() = false, want true")
	}

	d.ROCs[0].Pixels[1].Enable = false
	if d.AllPixelsEnabled() {
		t.Fatal("AllPixelsEnabled() = true, want false")
	}
}

func TestDAC(t *testing.T) {
	d := New()
	d.ROCs = []RocConfig{{DACs: map[uint8]uint16{0x02: 42}}}
	if v, ok := d.DAC(0, 0x02); !ok || v != 42 {
		t.Fatalf("DAC(0, 0x02) = (%d, %v), want (42, true)", v, ok)
	}
	if _, ok := d.DAC(0, 0x99); ok {
		t.Fatal("DAC(0, 0x99): want not found")
	}
}
