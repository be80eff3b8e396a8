// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package repack

import (
	"testing"

	"github.com/psi-pxar/pxar/event"
)

func px(roc, col, row uint8, val int16) event.Pixel {
	return event.Pixel{ROCID: roc, Column: col, Row: row, Value: val}
}

func TestMapSortsByAddress(t *testing.T) {
	groups := []event.Event{
		{Pixels: []event.Pixel{px(1, 0, 0, 1), px(0, 2, 0, 1)}},
		{Pixels: []event.Pixel{px(0, 0, 0, 1)}},
	}
	out := Map(groups, 0)
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3", len(out))
	}
	if out[0].ROCID != 0 || out[0].Column != 0 {
		t.Fatalf("out[0] = %+v, want roc=0 col=0 first", out[0])
	}
	if out[2].ROCID != 1 {
		t.Fatalf("out[2].ROCID = %d, want 1 (sorted last)", out[2].ROCID)
	}
}

func TestMapNoSortPreservesOrder(t *testing.T) {
	groups := []event.Event{
		{Pixels: []event.Pixel{px(1, 0, 0, 1)}},
		{Pixels: []event.Pixel{px(0, 0, 0, 1)}},
	}
	out := Map(groups, NOSORT)
	if out[0].ROCID != 1 || out[1].ROCID != 0 {
		t.Fatalf("out = %+v, want input order preserved", out)
	}
}

func TestMapCheckOrderFlagsMismatch(t *testing.T) {
	groups := []event.Event{
		{Pixels: []event.Pixel{px(0, 0, 0, 5), px(0, 0, 5, 6)}},
	}
	out := Map(groups, CHECK_ORDER|NOSORT)
	if out[0].Value != 5 {
		t.Fatalf("out[0].Value = %d, want 5 (in-order, unchanged)", out[0].Value)
	}
	if out[1].Value != -1 {
		t.Fatalf("out[1].Value = %d, want -1 (expected row=1, got row=5)", out[1].Value)
	}
}

func TestDacScanBucketsByValue(t *testing.T) {
	dac := DacStep{Min: 0, Max: 2, Step: 1} // 3 steps: 0,1,2
	groups := []event.Event{
		{Pixels: []event.Pixel{px(0, 0, 0, 1)}}, // dac=0
		{Pixels: []event.Pixel{px(0, 0, 0, 2)}}, // dac=1
		{Pixels: []event.Pixel{px(0, 0, 0, 3)}}, // dac=2
		{Pixels: []event.Pixel{px(0, 0, 0, 4)}}, // round 2, dac=0
	}
	buckets, err := DacScan(groups, dac, 0)
	if err != nil {
		t.Fatalf("DacScan: %v", err)
	}
	if len(buckets) != 3 {
		t.Fatalf("len(buckets) = %d, want 3", len(buckets))
	}
	if buckets[0].DAC != 0 || len(buckets[0].Pixels) != 2 {
		t.Fatalf("buckets[0] = %+v, want DAC=0 with 2 pixels (both rounds)", buckets[0])
	}
	if buckets[2].DAC != 2 || len(buckets[2].Pixels) != 1 {
		t.Fatalf("buckets[2] = %+v, want DAC=2 with 1 pixel", buckets[2])
	}
}

func TestDacDacScanShape(t *testing.T) {
	dac1 := DacStep{Min: 0, Max: 1, Step: 1} // 2 outer steps
	dac2 := DacStep{Min: 0, Max: 2, Step: 1} // 3 inner steps
	groups := make([]event.Event, 6)
	for i := range groups {
		groups[i] = event.Event{Pixels: []event.Pixel{px(0, 0, 0, int16(i))}}
	}
	out, err := DacDacScan(groups, dac1, dac2, 0)
	if err != nil {
		t.Fatalf("DacDacScan: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
	if len(out[0].Inner) != 3 || len(out[1].Inner) != 3 {
		t.Fatalf("inner lengths = %d/%d, want 3/3", len(out[0].Inner), len(out[1].Inner))
	}
	// group 0 -> dac1=0,dac2=0 ; group 3 -> dac1=1,dac2=0
	if out[0].Inner[0].Pixels[0].Value != 0 {
		t.Fatalf("out[0].Inner[0] = %+v, want first group's pixel", out[0].Inner[0])
	}
	if out[1].Inner[0].Pixels[0].Value != 3 {
		t.Fatalf("out[1].Inner[0] = %+v, want fourth group's pixel", out[1].Inner[0])
	}
}

func TestThresholdMapRisingEdge(t *testing.T) {
	// boundary-style scenario: hit count 0 for dac in [0,1], 10 for dac in [2,3].
	dac := DacStep{Min: 0, Max: 3, Step: 1}
	groups := []event.Event{
		{Pixels: []event.Pixel{px(0, 0, 0, 0)}},
		{Pixels: []event.Pixel{px(0, 0, 0, 0)}},
		{Pixels: []event.Pixel{px(0, 0, 0, 10)}},
		{Pixels: []event.Pixel{px(0, 0, 0, 10)}},
	}
	out, err := ThresholdMap(groups, dac, 10, 50, RISING_EDGE)
	if err != nil {
		t.Fatalf("ThresholdMap: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0].Value != 2 {
		t.Fatalf("DAC = %d, want 2 (closest approach, rising)", out[0].Value)
	}
}

func TestThresholdMapFalling(t *testing.T) {
	dac := DacStep{Min: 0, Max: 3, Step: 1}
	groups := []event.Event{
		{Pixels: []event.Pixel{px(0, 0, 0, 10)}},
		{Pixels: []event.Pixel{px(0, 0, 0, 10)}},
		{Pixels: []event.Pixel{px(0, 0, 0, 0)}},
		{Pixels: []event.Pixel{px(0, 0, 0, 0)}},
	}
	out, err := ThresholdMap(groups, dac, 10, 50, 0) // falling (no RISING_EDGE)
	if err != nil {
		t.Fatalf("ThresholdMap: %v", err)
	}
	if out[0].Value != 2 {
		t.Fatalf("DAC = %d, want 2 (closest approach, falling)", out[0].Value)
	}
}

func TestThresholdMapRisingAndFallingConverge(t *testing.T) {
	// boundary scenario: hit count 0 for dac in [0,99], 10 for dac in
	// [100,255]; nTriggers=20, threshold=50% -> 10. Both RISING_EDGE and
	// falling must find the same closest-approach crossing at DAC=100.
	dac := DacStep{Min: 0, Max: 255, Step: 1}
	groups := make([]event.Event, 256)
	for i := range groups {
		v := int16(0)
		if i >= 100 {
			v = 10
		}
		groups[i] = event.Event{Pixels: []event.Pixel{px(0, 0, 0, v)}}
	}

	rising, err := ThresholdMap(groups, dac, 20, 50, RISING_EDGE)
	if err != nil {
		t.Fatalf("ThresholdMap rising: %v", err)
	}
	if len(rising) != 1 || rising[0].Value != 100 {
		t.Fatalf("rising DAC = %+v, want 100", rising)
	}

	falling, err := ThresholdMap(groups, dac, 20, 50, 0)
	if err != nil {
		t.Fatalf("ThresholdMap falling: %v", err)
	}
	if len(falling) != 1 || falling[0].Value != 100 {
		t.Fatalf("falling DAC = %+v, want 100", falling)
	}
}

func TestDacScanInvalidStep(t *testing.T) {
	if _, err := DacScan(nil, DacStep{Min: 0, Max: 0, Step: 0}, 0); err == nil {
		t.Fatal("DacScan: want error for zero-step sweep")
	}
}
