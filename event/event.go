// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package event holds the pxar core's wire-independent event/pixel data
// model: the shape every HAL call hands back to the Loop Expander and
// every downstream reducer/repacker consumes.
package event // import "github.com/psi-pxar/pxar/event"

// Pixel is one hit (or, in threshold/repack contexts, one sample) read
// out from a ROC. Equality between two pixels is defined by their
// (ROCID, Column, Row) address, not by Value/Variance.
type Pixel struct {
	ROCID    uint8
	Column   uint8
	Row      uint8
	Value    int16
	Variance float64
}

// SameAddress reports whether p and o identify the same physical pixel,
// regardless of their Value/Variance.
func (p Pixel) SameAddress(o Pixel) bool {
	return p.ROCID == o.ROCID && p.Column == o.Column && p.Row == o.Row
}

// Event is one trigger's worth of decoded data from the DAQ stream.
type Event struct {
	Header           uint16
	Trailer          uint16
	Pixels           []Pixel
	NumDecoderErrors uint32
}

// Clone returns a deep copy of e, so that repack/reduce stages can own
// their own Pixels slice independently of the buffer the HAL handed back.
func (e Event) Clone() Event {
	out := e
	out.Pixels = append([]Pixel(nil), e.Pixels...)
	return out
}
