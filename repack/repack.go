// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package repack implements the Repacker (C8): it re-indexes the
// condensed-event groups produced by package reduce into the shape a
// caller actually asked for, whether that is a flat pixel map, a 1-D or
// 2-D DAC scan, or a 1-D/2-D threshold map extracted from an efficiency
// scan.
package repack // import "github.com/psi-pxar/pxar/repack"

import (
	"fmt"
	"math"
	"sort"

	"github.com/psi-pxar/pxar/event"
	"github.com/psi-pxar/pxar/loop"
)

// Flags is an alias of loop.Flags: the Loop Expander and the Repacker
// share one bit-flags word end to end.
type Flags = loop.Flags

const (
	CHECK_ORDER = loop.CHECK_ORDER
	NOSORT      = loop.NOSORT
	RISING_EDGE = loop.RISING_EDGE
)

const pixelsPerColumn = 80

// Map concatenates the pixel lists of every condensed group, in order.
// If flags has CHECK_ORDER, pixels are checked against the expected
// column-major raster order (row inner, wrapping to the next column at
// row==80); a mismatched pixel is still emitted, with its Value forced
// to -1. Unless flags has NOSORT, the result is sorted by
// (ROCID, Column, Row).
func Map(groups []event.Event, flags Flags) []event.Pixel {
	var out []event.Pixel
	for _, g := range groups {
		out = append(out, g.Pixels...)
	}

	if flags&CHECK_ORDER != 0 {
		checkRasterOrder(out)
	}
	if flags&NOSORT == 0 {
		sortByAddress(out)
	}
	return out
}

func checkRasterOrder(pixels []event.Pixel) {
	var col, row uint8
	for i := range pixels {
		if pixels[i].Column != col || pixels[i].Row != row {
			pixels[i].Value = -1
		}
		row++
		if row == pixelsPerColumn {
			row = 0
			col++
		}
	}
}

func sortByAddress(pixels []event.Pixel) {
	sort.SliceStable(pixels, func(i, j int) bool {
		a, b := pixels[i], pixels[j]
		if a.ROCID != b.ROCID {
			return a.ROCID < b.ROCID
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Row < b.Row
	})
}

// DacStep describes one arm of a DAC sweep: the register is driven from
// Min to Max in increments of Step.
type DacStep struct {
	Min, Max, Step uint32
}

// steps returns the number of distinct values in the sweep, or 0 if the
// sweep is malformed (zero step, or max below min).
func (d DacStep) steps() int {
	if d.Step == 0 || d.Max < d.Min {
		return 0
	}
	return int((d.Max-d.Min)/d.Step) + 1
}

func (d DacStep) value(i int) uint32 { return d.Min + uint32(i)*d.Step }

// DacBucket is one point of a 1-D DAC scan: the register value it was
// taken at, and the pixel list measured there.
type DacBucket struct {
	DAC    uint32
	Pixels []event.Pixel
}

// DacScan re-indexes groups, produced by sweeping register dac from
// dac.Min to dac.Max in steps of dac.Step, possibly across several
// repeated sweep rounds, into one bucket per distinct DAC value, with
// every round's pixels for that value concatenated in round order.
//
// Each bucket's pixels are sorted by (ROCID, Column, Row) unless flags
// has NOSORT.
func DacScan(groups []event.Event, dac DacStep, flags Flags) ([]DacBucket, error) {
	n := dac.steps()
	if n <= 0 {
		return nil, fmt.Errorf("pxar: repack: invalid DAC sweep %+v", dac)
	}

	buckets := make([]DacBucket, n)
	for i := range buckets {
		buckets[i].DAC = dac.value(i)
	}
	for i, g := range groups {
		idx := i % n
		buckets[idx].Pixels = append(buckets[idx].Pixels, g.Pixels...)
	}

	if flags&NOSORT == 0 {
		for i := range buckets {
			sortByAddress(buckets[i].Pixels)
		}
	}
	return buckets, nil
}

// Dac1Bucket is one outer point of a 2-D DAC×DAC scan.
type Dac1Bucket struct {
	DAC1  uint32
	Inner []DacBucket
}

// DacDacScan re-indexes groups produced by sweeping dac1 as the outer,
// slow-varying register and dac2 as the inner register (dac2's counter
// resets on every dac1 step) into a [dac1][dac2] nested bucket shape.
func DacDacScan(groups []event.Event, dac1, dac2 DacStep, flags Flags) ([]Dac1Bucket, error) {
	n1, n2 := dac1.steps(), dac2.steps()
	if n1 <= 0 || n2 <= 0 {
		return nil, fmt.Errorf("pxar: repack: invalid DAC×DAC sweep %+v x %+v", dac1, dac2)
	}

	outer := make([]Dac1Bucket, n1)
	for i := range outer {
		outer[i].DAC1 = dac1.value(i)
		outer[i].Inner = make([]DacBucket, n2)
		for j := range outer[i].Inner {
			outer[i].Inner[j].DAC = dac2.value(j)
		}
	}

	for i, g := range groups {
		i1 := (i / n2) % n1
		i2 := i % n2
		outer[i1].Inner[i2].Pixels = append(outer[i1].Inner[i2].Pixels, g.Pixels...)
	}

	if flags&NOSORT == 0 {
		for i := range outer {
			for j := range outer[i].Inner {
				sortByAddress(outer[i].Inner[j].Pixels)
			}
		}
	}
	return outer, nil
}

type pixelAddr struct {
	roc, col, row uint8
}

// thresholdState tracks one pixel's closest-approach-to-threshold search
// across the DAC values visited, in scan direction order.
type thresholdState struct {
	lastEff int16
	lastDAC uint32
	bestDAC uint32
	bestΔ   float64
}

// thresholdCross walks buckets in scan direction order, low-to-high DAC
// for RISING_EDGE and high-to-low otherwise, per spec.md's own
// documented flag semantics, and for every pixel address it sees, keeps
// the DAC value whose measured efficiency is closest to threshold.
//
// For a rising search the crossing is credited to the bucket where the
// efficiency has just risen (the walk's current bucket); for a falling
// search, walking from the high-DAC end, it is credited to the bucket
// the walk is leaving when the efficiency changes (the walk's previous
// bucket), so both directions land on the same DAC for a single, clean
// step in the data.
//
// A pixel's first occurrence only seeds its last-efficiency baseline; it
// is not itself a candidate, so a flat response before the real
// crossing never wins by tie-breaking against an unset best.
func thresholdCross(buckets []DacBucket, threshold float64, rising bool) map[pixelAddr]uint32 {
	order := buckets
	if !rising {
		order = make([]DacBucket, len(buckets))
		for i, b := range buckets {
			order[len(buckets)-1-i] = b
		}
	}

	states := make(map[pixelAddr]*thresholdState)
	for _, b := range order {
		for _, px := range b.Pixels {
			key := pixelAddr{px.ROCID, px.Column, px.Row}
			st, ok := states[key]
			if !ok {
				states[key] = &thresholdState{
					lastEff: px.Value,
					lastDAC: b.DAC,
					bestDAC: b.DAC,
					bestΔ:   math.Inf(1),
				}
				continue
			}

			if rising {
				if px.Value > st.lastEff {
					if d := math.Abs(float64(px.Value) - threshold); d < st.bestΔ {
						st.bestΔ, st.bestDAC = d, b.DAC
					}
				}
			} else if px.Value != st.lastEff {
				if d := math.Abs(float64(st.lastEff) - threshold); d < st.bestΔ {
					st.bestΔ, st.bestDAC = d, st.lastDAC
				}
			}
			st.lastEff, st.lastDAC = px.Value, b.DAC
		}
	}

	out := make(map[pixelAddr]uint32, len(states))
	for k, st := range states {
		out[k] = st.bestDAC
	}
	return out
}

// Threshold returns the ⌈nTriggers·level/100⌉ hit-count target a
// threshold search aims for.
func Threshold(nTriggers int, levelPercent float64) float64 {
	return math.Ceil(float64(nTriggers) * levelPercent / 100)
}

// ThresholdMap runs a 1-D efficiency DAC scan over groups and, for each
// pixel, finds the DAC value whose measured efficiency is closest to
// threshold, searching in the direction flags.RISING_EDGE selects.
// Unless flags has NOSORT, the result is sorted by (DAC value, ROCID,
// Column, Row).
func ThresholdMap(groups []event.Event, dac DacStep, nTriggers int, levelPercent float64, flags Flags) ([]event.Pixel, error) {
	buckets, err := DacScan(groups, dac, flags|NOSORT) // sort only the final result
	if err != nil {
		return nil, err
	}

	threshold := Threshold(nTriggers, levelPercent)
	rising := flags&RISING_EDGE != 0
	byAddr := thresholdCross(buckets, threshold, rising)

	out := make([]event.Pixel, 0, len(byAddr))
	for addr, dacVal := range byAddr {
		out = append(out, event.Pixel{ROCID: addr.roc, Column: addr.col, Row: addr.row, Value: int16(dacVal)})
	}

	if flags&NOSORT == 0 {
		sortByDACThenAddress(out)
	}
	return out, nil
}

func sortByDACThenAddress(pixels []event.Pixel) {
	sort.SliceStable(pixels, func(i, j int) bool {
		a, b := pixels[i], pixels[j]
		if a.Value != b.Value {
			return a.Value < b.Value
		}
		if a.ROCID != b.ROCID {
			return a.ROCID < b.ROCID
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Row < b.Row
	})
}

// Dac1ThresholdBucket is one dac2 bucket of a 2-D threshold scan: the
// outer DAC value it was taken at, and the per-pixel closest-approach
// DAC1 values found within it.
type Dac1ThresholdBucket struct {
	DAC2   uint32
	Pixels []event.Pixel
}

// ThresholdDacScan is the 2-D analogue of ThresholdMap: groups are
// produced by sweeping dac1 (searched for the threshold crossing) inside
// dac2 (the bucketing dimension); each dac2 bucket runs its own
// independent per-pixel closest-approach search over dac1.
func ThresholdDacScan(groups []event.Event, dac1, dac2 DacStep, nTriggers int, levelPercent float64, flags Flags) ([]Dac1ThresholdBucket, error) {
	outer, err := DacDacScan(groups, dac2, dac1, flags|NOSORT)
	if err != nil {
		return nil, err
	}

	threshold := Threshold(nTriggers, levelPercent)
	rising := flags&RISING_EDGE != 0

	out := make([]Dac1ThresholdBucket, len(outer))
	for i, o := range outer {
		byAddr := thresholdCross(o.Inner, threshold, rising)
		pixels := make([]event.Pixel, 0, len(byAddr))
		for addr, dacVal := range byAddr {
			pixels = append(pixels, event.Pixel{ROCID: addr.roc, Column: addr.col, Row: addr.row, Value: int16(dacVal)})
		}
		if flags&NOSORT == 0 {
			sortByDACThenAddress(pixels)
		}
		out[i] = Dac1ThresholdBucket{DAC2: o.DAC1, Pixels: pixels}
	}
	return out, nil
}
