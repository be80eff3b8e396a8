// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validate

import "github.com/psi-pxar/pxar/dut"

var powerDefaults = map[string]float64{
	"va": 2.5,
	"vd": 3.0,
	"ia": 3.0,
	"id": 3.0,
}

// CheckPower validates the caller-supplied power-supply limits
// (recognised keys: va, vd, ia, id). Negative values are fatal. Values
// at or above their default are clamped down to the default, with a
// warning. Any value below 0.01 after processing is fatal (it would
// starve the DUT).
func CheckPower(msg Logger, d *dut.DUT, settings map[string]float64) error {
	limits := powerDefaults
	va, vd, ia, id := limits["va"], limits["vd"], limits["ia"], limits["id"]

	apply := func(key string, cur *float64) error {
		v, ok := settings[key]
		if !ok {
			return nil
		}
		if v < 0 {
			return invalid("checkPower", "negative %s limit: %v", key, v)
		}
		def := powerDefaults[key]
		if v >= def {
			msg.Printf("warning: %s limit %v exceeds default %v, clamped", key, v, def)
			v = def
		}
		if v < 0.01 {
			return invalid("checkPower", "%s limit %v too low (<0.01)", key, v)
		}
		*cur = v
		return nil
	}

	if err := apply("va", &va); err != nil {
		return err
	}
	if err := apply("vd", &vd); err != nil {
		return err
	}
	if err := apply("ia", &ia); err != nil {
		return err
	}
	if err := apply("id", &id); err != nil {
		return err
	}

	d.VA, d.VD, d.IA, d.ID = va, vd, ia, id
	return nil
}
