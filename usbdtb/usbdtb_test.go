// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package usbdtb

import "testing"

func TestAppendDACMapOrdersByID(t *testing.T) {
	buf := appendDACMap([]byte{0xaa}, map[uint8]uint16{5: 0x0102, 1: 0x0304})
	want := []byte{0xaa, 2, 1, 0x03, 0x04, 5, 0x01, 0x02}
	if len(buf) != len(want) {
		t.Fatalf("len(buf) = %d, want %d (buf=%v)", len(buf), len(want), buf)
	}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("buf[%d] = 0x%02x, want 0x%02x (buf=%v)", i, buf[i], want[i], buf)
		}
	}
}

func TestAppendDACMapEmpty(t *testing.T) {
	buf := appendDACMap([]byte{0xaa}, nil)
	if len(buf) != 2 || buf[0] != 0xaa || buf[1] != 0 {
		t.Fatalf("buf = %v, want [0xaa 0]", buf)
	}
}

func TestBoolByte(t *testing.T) {
	if boolByte(true) != 1 {
		t.Fatal("boolByte(true) != 1")
	}
	if boolByte(false) != 0 {
		t.Fatal("boolByte(false) != 0")
	}
}
