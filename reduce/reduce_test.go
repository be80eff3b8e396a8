// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package reduce

import (
	"math"
	"testing"

	"github.com/psi-pxar/pxar/event"
)

func px(roc, col, row uint8, val int16) event.Pixel {
	return event.Pixel{ROCID: roc, Column: col, Row: row, Value: val}
}

func TestCondenseTriggersEfficiency(t *testing.T) {
	evts := []event.Event{
		{Pixels: []event.Pixel{px(0, 1, 1, 1)}},
		{Pixels: []event.Pixel{px(0, 1, 1, 1)}},
		{Pixels: nil},
	}
	out, err := CondenseTriggers(evts, 3, true)
	if err != nil {
		t.Fatalf("CondenseTriggers: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if len(out[0].Pixels) != 1 {
		t.Fatalf("len(out[0].Pixels) = %d, want 1", len(out[0].Pixels))
	}
	if out[0].Pixels[0].Value != 2 {
		t.Fatalf("hit count = %d, want 2", out[0].Pixels[0].Value)
	}
}

func TestCondenseTriggersPulseHeight(t *testing.T) {
	evts := []event.Event{
		{Pixels: []event.Pixel{px(0, 1, 1, 10)}},
		{Pixels: []event.Pixel{px(0, 1, 1, 20)}},
		{Pixels: []event.Pixel{px(0, 1, 1, 30)}},
	}
	out, err := CondenseTriggers(evts, 3, false)
	if err != nil {
		t.Fatalf("CondenseTriggers: %v", err)
	}
	got := out[0].Pixels[0]
	if got.Value != 20 {
		t.Fatalf("mean = %d, want 20", got.Value)
	}
	if math.Abs(got.Variance-100) > 1e-9 {
		t.Fatalf("variance = %v, want 100", got.Variance)
	}
}

func TestCondenseTriggersMultipleGroups(t *testing.T) {
	evts := make([]event.Event, 6)
	for i := range evts {
		evts[i] = event.Event{Pixels: []event.Pixel{px(0, 0, 0, int16(i))}}
	}
	out, err := CondenseTriggers(evts, 2, true)
	if err != nil {
		t.Fatalf("CondenseTriggers: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3", len(out))
	}
}

func TestCondenseTriggersNotMultiple(t *testing.T) {
	evts := make([]event.Event, 5)
	_, err := CondenseTriggers(evts, 2, true)
	if err == nil {
		t.Fatal("CondenseTriggers: want critical error for non-multiple length")
	}
	if _, ok := err.(*CriticalError); !ok {
		t.Fatalf("err = %T, want *CriticalError", err)
	}
}

func TestCondenseTriggersPreservesFirstSeenOrder(t *testing.T) {
	evts := []event.Event{
		{Pixels: []event.Pixel{px(0, 5, 5, 1), px(0, 1, 1, 1)}},
	}
	out, err := CondenseTriggers(evts, 1, true)
	if err != nil {
		t.Fatalf("CondenseTriggers: %v", err)
	}
	if out[0].Pixels[0].Column != 5 || out[0].Pixels[1].Column != 1 {
		t.Fatalf("order = %+v, want [col=5, col=1]", out[0].Pixels)
	}
}
