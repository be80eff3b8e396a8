// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package reduce implements the Event Condenser (C7): it collapses
// contiguous runs of nTriggers raw events into one condensed event per
// sweep point, either by counting hits (efficiency mode) or by running
// Welford's online mean/variance algorithm over pulse heights.
package reduce // import "github.com/psi-pxar/pxar/reduce"

import (
	"fmt"

	"github.com/psi-pxar/pxar/event"
)

// CriticalError reports an input whose length is not a multiple of
// nTriggers: the sweep cannot be split into equal-size trigger groups.
type CriticalError struct {
	Msg string
}

func (e *CriticalError) Error() string { return "pxar: reduce: " + e.Msg }

type pixelAddr struct {
	roc, col, row uint8
}

// welford accumulates a running mean and sample variance per Welford's
// online algorithm: δ = x - μ; μ += δ/k; M2 += δ·(x - μ).
type welford struct {
	k    int
	mean float64
	m2   float64
}

func (w *welford) update(x float64) {
	w.k++
	delta := x - w.mean
	w.mean += delta / float64(w.k)
	w.m2 += delta * (x - w.mean)
}

func (w *welford) variance() float64 {
	if w.k < 2 {
		return 0
	}
	return w.m2 / float64(w.k-1)
}

// CondenseTriggers splits evts into contiguous groups of nTriggers
// events and emits one condensed Event per group. In efficiency mode
// each output pixel's Value is its hit count across the group; otherwise
// Value is the Welford mean and Variance the Welford sample variance of
// its pulse heights.
//
// len(evts) must be a multiple of nTriggers; otherwise CondenseTriggers
// returns a *CriticalError and no output, per the source's "abort with
// critical error and empty output" rule.
func CondenseTriggers(evts []event.Event, nTriggers int, efficiency bool) ([]event.Event, error) {
	if nTriggers <= 0 {
		return nil, &CriticalError{Msg: fmt.Sprintf("invalid nTriggers %d", nTriggers)}
	}
	if len(evts)%nTriggers != 0 {
		return nil, &CriticalError{Msg: fmt.Sprintf(
			"input length %d is not a multiple of nTriggers %d", len(evts), nTriggers)}
	}

	out := make([]event.Event, 0, len(evts)/nTriggers)
	for start := 0; start < len(evts); start += nTriggers {
		out = append(out, condenseGroup(evts[start:start+nTriggers], efficiency))
	}
	return out, nil
}

func condenseGroup(group []event.Event, efficiency bool) event.Event {
	stats := make(map[pixelAddr]*welford)
	var order []pixelAddr

	for _, ev := range group {
		for _, px := range ev.Pixels {
			key := pixelAddr{px.ROCID, px.Column, px.Row}
			w, ok := stats[key]
			if !ok {
				w = &welford{}
				stats[key] = w
				order = append(order, key)
			}
			w.update(float64(px.Value))
		}
	}

	out := event.Event{Pixels: make([]event.Pixel, len(order))}
	for i, key := range order {
		w := stats[key]
		px := event.Pixel{ROCID: key.roc, Column: key.col, Row: key.row}
		if efficiency {
			px.Value = int16(w.k)
		} else {
			px.Value = int16(w.mean)
			px.Variance = w.variance()
		}
		out.Pixels[i] = px
	}
	return out
}
