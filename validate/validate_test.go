// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validate

import (
	"log"
	"io"
	"testing"

	"github.com/psi-pxar/pxar/dict"
	"github.com/psi-pxar/pxar/dut"
)

func nopLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestVerifyPatternGeneratorBoundary1(t *testing.T) {
	d := dut.New()
	err := VerifyPatternGenerator(nopLogger(), d, []PGEntryInput{
		{Signal: "resetroc;trg", Delay: 10},
		{Signal: "tok", Delay: 0},
	})
	if err != nil {
		t.Fatalf("VerifyPatternGenerator: %v", err)
	}
	if d.PGSum != 12 {
		t.Fatalf("PGSum = %d, want 12", d.PGSum)
	}
	if got := d.PGSetup[len(d.PGSetup)-1].Delay; got != 0 {
		t.Fatalf("terminator delay = %d, want 0", got)
	}
}

func TestVerifyPatternGeneratorBoundary2(t *testing.T) {
	d := dut.New()
	err := VerifyPatternGenerator(nopLogger(), d, []PGEntryInput{
		{Signal: "trg", Delay: 0},
		{Signal: "tok", Delay: 0},
	})
	if err == nil {
		t.Fatal("VerifyPatternGenerator: want error for interior zero delay")
	}
	if _, ok := err.(*InvalidConfigError); !ok {
		t.Fatalf("err = %T, want *InvalidConfigError", err)
	}
}

func TestVerifyPatternGeneratorTerminatorFixup(t *testing.T) {
	d := dut.New()
	err := VerifyPatternGenerator(nopLogger(), d, []PGEntryInput{
		{Signal: "trg", Delay: 5},
		{Signal: "tok", Delay: 3}, // non-zero terminator, gets forced to 0
	})
	if err != nil {
		t.Fatalf("VerifyPatternGenerator: %v", err)
	}
	if got := d.PGSetup[1].Delay; got != 0 {
		t.Fatalf("terminator delay = %d, want 0 after fix-up", got)
	}
}

func TestVerifyPatternGeneratorTooLong(t *testing.T) {
	entries := make([]PGEntryInput, maxPGEntries+1)
	for i := range entries {
		entries[i] = PGEntryInput{Signal: "trg", Delay: 1}
	}
	entries[len(entries)-1].Delay = 0

	d := dut.New()
	if err := VerifyPatternGenerator(nopLogger(), d, entries); err == nil {
		t.Fatal("VerifyPatternGenerator: want error for too-long program")
	}
}

func TestCheckPowerBoundary4(t *testing.T) {
	d := dut.New()
	err := CheckPower(nopLogger(), d, map[string]float64{"va": 5.0})
	if err != nil {
		t.Fatalf("CheckPower: %v", err)
	}
	if d.VA != 2.5 {
		t.Fatalf("VA = %v, want 2.5", d.VA)
	}
}

func TestCheckPowerNegativeFatal(t *testing.T) {
	d := dut.New()
	if err := CheckPower(nopLogger(), d, map[string]float64{"va": -1}); err == nil {
		t.Fatal("CheckPower: want error for negative limit")
	}
}

func TestCheckPowerTooLowFatal(t *testing.T) {
	d := dut.New()
	if err := CheckPower(nopLogger(), d, map[string]float64{"vd": 0.001}); err == nil {
		t.Fatal("CheckPower: want error for sub-0.01 limit")
	}
}

func TestCheckDelaysDuplicateOverwrite(t *testing.T) {
	d := dut.New()
	err := CheckDelays(nopLogger(), d, []DelaySetting{
		{Name: "clk", Value: 3},
		{Name: "clk", Value: 7},
	})
	if err != nil {
		t.Fatalf("CheckDelays: %v", err)
	}
	id, _, _ := VerifyRegister(nopLogger(), dict.DTBDelay, "clk", 0)
	if got := d.SigDelays[id]; got != 7 {
		t.Fatalf("SigDelays[clk] = %d, want 7 (last write wins)", got)
	}
}

func TestInitBoundary3(t *testing.T) {
	d := dut.New()
	err := Init(nopLogger(), d, 0, nil, []TBMChipInput{
		{Type: "tbm08", Enable: true, Alpha: map[string]uint32{"base0": 0x42}},
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if len(d.TBMs) != 2 {
		t.Fatalf("len(TBMs) = %d, want 2", len(d.TBMs))
	}
	alpha, beta := d.TBMs[0], d.TBMs[1]
	if v, ok := alpha.DACs[0xE0]; !ok || v != 0x42 {
		t.Fatalf("alpha.DACs[0xE0] = (%d, %v), want (0x42, true)", v, ok)
	}
	if v, ok := beta.DACs[0xF0]; !ok || v != 0x42 {
		t.Fatalf("beta.DACs[0xF0] = (%d, %v), want (0x42, true)", v, ok)
	}
}

func TestInitI2CAddressIsIndex(t *testing.T) {
	d := dut.New()
	rocs := []RocInput{
		{Type: "psi46digv21", Enable: true},
		{Type: "psi46digv21", Enable: true},
		{Type: "psi46digv21", Enable: true},
	}
	if err := Init(nopLogger(), d, 0, rocs, nil); err != nil {
		t.Fatalf("Init: %v", err)
	}
	for i, roc := range d.ROCs {
		if int(roc.I2CAddress) != i {
			t.Fatalf("ROCs[%d].I2CAddress = %d, want %d", i, roc.I2CAddress, i)
		}
	}
}

func TestInitDuplicatePixel(t *testing.T) {
	d := dut.New()
	rocs := []RocInput{
		{
			Type:   "psi46digv21",
			Enable: true,
			Pixels: []PixelInput{
				{Column: 1, Row: 1},
				{Column: 1, Row: 1},
			},
		},
	}
	if err := Init(nopLogger(), d, 0, rocs, nil); err == nil {
		t.Fatal("Init: want error for duplicate pixel")
	}
}

func TestInitPixelOutOfRange(t *testing.T) {
	d := dut.New()
	rocs := []RocInput{
		{
			Type:   "psi46digv21",
			Enable: true,
			Pixels: []PixelInput{{Column: 52, Row: 0}},
		},
	}
	if err := Init(nopLogger(), d, 0, rocs, nil); err == nil {
		t.Fatal("Init: want error for out-of-range column")
	}
}

func TestInitTrimClamp(t *testing.T) {
	d := dut.New()
	rocs := []RocInput{
		{
			Type:   "psi46digv21",
			Enable: true,
			Pixels: []PixelInput{{Column: 0, Row: 0, Trim: 20}},
		},
	}
	if err := Init(nopLogger(), d, 0, rocs, nil); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if got := d.ROCs[0].Pixels[0].Trim; got != 15 {
		t.Fatalf("Trim = %d, want 15 (clamped)", got)
	}
}
