// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validate

import (
	"github.com/psi-pxar/pxar/dict"
	"github.com/psi-pxar/pxar/dut"
)

// PGEntryInput is one caller-supplied pattern-generator program step,
// before signal-name resolution.
type PGEntryInput struct {
	Signal string // ';'-separated list of pattern-generator mnemonics
	Delay  uint8
}

const maxPGEntries = 256

// VerifyPatternGenerator validates a full pattern-generator program and,
// on success, writes d.PGSetup and d.PGSum.
//
// Each entry's Signal is split on ';' and its tokens OR-combined into a
// command word. Any entry other than the last with Delay == 0 is fatal
// (it would stop the PG before the sweep completes). The last entry's
// delay is forced to 0 (the required stop marker) with a warning if the
// caller supplied a non-zero value.
//
// PGSum is the pattern's total cycle length: the sum of (delay+1) over
// every entry but the last, plus 1 for the terminator step itself.
func VerifyPatternGenerator(msg Logger, d *dut.DUT, entries []PGEntryInput) error {
	if len(entries) == 0 {
		return invalid("verifyPatternGenerator", "empty pattern generator program")
	}
	if len(entries) > maxPGEntries {
		return invalid("verifyPatternGenerator", "pattern generator too long: %d entries (max %d)",
			len(entries), maxPGEntries)
	}

	out := make([]dut.PGEntry, len(entries))
	var sum uint32
	last := len(entries) - 1
	for i, e := range entries {
		word, ok, bad := dict.CombinePGSignals(e.Signal)
		if !ok {
			return invalid("verifyPatternGenerator", "unknown pattern generator signal %q", bad)
		}

		delay := e.Delay
		if i == last {
			if delay != 0 {
				msg.Printf("warning: pattern generator: forcing terminator delay %d to 0", delay)
				delay = 0
			}
		} else {
			if delay == 0 {
				return invalid("verifyPatternGenerator",
					"interior pattern generator entry %d has zero delay (would stop the PG early)", i)
			}
			sum += uint32(delay) + 1
		}

		out[i] = dut.PGEntry{Pattern: word, Delay: delay}
	}
	sum++ // terminator step itself

	d.PGSetup = out
	d.PGSum = sum
	return nil
}
