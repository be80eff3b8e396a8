// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package validate implements the pxar core's Configuration Validator
// (C3), which writes a dut.DUT's configuration. Every exported function
// here either mutates the DUT on success or returns an
// *InvalidConfigError and leaves the DUT untouched.
//
// Soft, auto-corrected problems (value clamping, PG terminator fix-ups,
// duplicate register overwrites, trim clamping) are logged through the
// caller-supplied *log.Logger and never turn into an error, following
// the taxonomy in the core spec's error-handling design. No function
// here swaps sweep bounds given as min > max.
package validate // import "github.com/psi-pxar/pxar/validate"

import (
	"fmt"

	"github.com/psi-pxar/pxar/dict"
)

// InvalidConfigError reports a fatal, unrecoverable configuration
// problem: duplicate pixels, out-of-range coordinates, an unknown
// register name, a pattern generator that is too long or has an
// interior zero delay, insufficient power limits, and the like.
type InvalidConfigError struct {
	Op  string // the validating operation that failed, e.g. "verifyRegister"
	Msg string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("pxar: invalid config in %s: %s", e.Op, e.Msg)
}

func invalid(op, format string, args ...interface{}) error {
	return &InvalidConfigError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Logger is the minimal logging surface validate needs; *log.Logger
// satisfies it, matching every teacher package's msg *log.Logger field.
type Logger interface {
	Printf(format string, args ...interface{})
}

// VerifyRegister resolves name in tbl, clamps value to the register's
// permitted size (warning via msg on overflow), and returns its
// numeric id and the clamped value. An unknown name is an
// InvalidConfigError.
func VerifyRegister(msg Logger, tbl *dict.Table, name string, value uint32) (id uint8, clamped uint32, err error) {
	e, ok := tbl.Lookup(name)
	if !ok {
		return 0, 0, invalid("verifyRegister", "unknown %s register %q", tbl.Kind(), name)
	}
	clamped, wasClamped := e.Clamp(value)
	if wasClamped {
		msg.Printf("warning: %s register %q: value %d exceeds max %d, clamped",
			tbl.Kind(), name, value, e.Size)
	}
	return e.ID, clamped, nil
}
