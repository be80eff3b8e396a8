// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dict holds the process-wide name->code registries pxar uses to
// translate the human-readable register names a test driver deals with
// (DAC names, TBM register names, DTB delay signals, pattern-generator
// and probe mnemonics, device-type strings) into the numeric ids and
// value ranges the hardware abstraction layer expects.
//
// Every table is an immutable value loaded once at package init and
// looked up case-insensitively. Lookup failure is reported through the
// boolean return value of Lookup, so callers can tell "unknown name"
// apart from "known name, value out of range" (the latter is a job for
// package validate).
package dict // import "github.com/psi-pxar/pxar/dict"

import "strings"

// Entry describes one named register: its numeric id and the maximum
// value it may hold.
type Entry struct {
	Name string
	ID   uint8
	Size uint32 // maximum permitted value (inclusive)
}

// Table is a case-insensitive name->Entry registry.
type Table struct {
	kind    string
	byName  map[string]Entry
	byID    map[uint8]Entry
}

func newTable(kind string, entries []Entry) *Table {
	t := &Table{
		kind:   kind,
		byName: make(map[string]Entry, len(entries)),
		byID:   make(map[uint8]Entry, len(entries)),
	}
	for _, e := range entries {
		t.byName[strings.ToLower(e.Name)] = e
		t.byID[e.ID] = e
	}
	return t
}

// Lookup resolves name to its Entry. The comparison is case-insensitive.
// The second return value is false if name is not registered in t.
func (t *Table) Lookup(name string) (Entry, bool) {
	e, ok := t.byName[strings.ToLower(name)]
	return e, ok
}

// ByID resolves a numeric id back to its Entry, for logging/diagnostics.
func (t *Table) ByID(id uint8) (Entry, bool) {
	e, ok := t.byID[id]
	return e, ok
}

// Kind names the register family this table describes (e.g. "roc-dac").
func (t *Table) Kind() string { return t.kind }

// Clamp bounds v to e's permitted range, reporting whether clamping
// happened so callers can emit the "soft warning" the spec requires.
func (e Entry) Clamp(v uint32) (clamped uint32, wasClamped bool) {
	if v > e.Size {
		return e.Size, true
	}
	return v, false
}
