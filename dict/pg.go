// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dict

import "strings"

// PGMask is a single pattern-generator signal's bit within the 16-bit
// PG command word.
type PGMask struct {
	Name string
	Bit  uint16 // bit position, 0..15
}

var pgSignals = []PGMask{
	{Name: "resetroc", Bit: 0},
	{Name: "cal", Bit: 1},
	{Name: "trg", Bit: 2},
	{Name: "tok", Bit: 3},
	{Name: "sync", Bit: 4},
	{Name: "resettbm", Bit: 5},
	{Name: "calsref", Bit: 6},
}

var pgByName = func() map[string]PGMask {
	m := make(map[string]PGMask, len(pgSignals))
	for _, s := range pgSignals {
		m[strings.ToLower(s.Name)] = s
	}
	return m
}()

// LookupPGSignal resolves a single (not ';'-combined) pattern-generator
// mnemonic to its PGMask.
func LookupPGSignal(name string) (PGMask, bool) {
	m, ok := pgByName[strings.ToLower(strings.TrimSpace(name))]
	return m, ok
}

// CombinePGSignals splits s on ';' and OR-combines every token's bit
// into a single pattern word, as the spec's pattern-generator entries
// allow multiple signals to fire on the same clock. The first unknown
// token is reported via the second (ok) return value being false; the
// token itself is the third return value.
func CombinePGSignals(s string) (word uint16, ok bool, badToken string) {
	for _, tok := range strings.Split(s, ";") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		m, found := LookupPGSignal(tok)
		if !found {
			return 0, false, tok
		}
		word |= 1 << m.Bit
	}
	return word, true, ""
}
