// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validate

import (
	"github.com/psi-pxar/pxar/dict"
	"github.com/psi-pxar/pxar/dut"
)

// DelaySetting is one (name, value) pair from the caller's DTB-delay
// configuration. It is a slice rather than a map so that a caller
// setting the same delay twice is observable (and warned about)
// instead of silently collapsing.
type DelaySetting struct {
	Name  string
	Value uint32
}

// CheckDelays verifies each entry against the DTB-delay dictionary and
// writes it into d.SigDelays. A name set more than once overwrites the
// earlier value, with a warning.
func CheckDelays(msg Logger, d *dut.DUT, entries []DelaySetting) error {
	staged := make(map[uint8]uint8, len(entries))
	for _, e := range entries {
		id, clamped, err := VerifyRegister(msg, dict.DTBDelay, e.Name, e.Value)
		if err != nil {
			return err
		}
		_, dupStaged := staged[id]
		_, dupOld := d.SigDelays[id]
		if dupStaged || dupOld {
			msg.Printf("warning: delay %q set more than once, overwriting", e.Name)
		}
		staged[id] = uint8(clamped)
	}
	for id, v := range staged {
		d.SigDelays[id] = v
	}
	return nil
}
