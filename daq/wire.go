// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/psi-pxar/pxar/event"
	"github.com/psi-pxar/pxar/internal/crc16"
)

// Raw event framing on the DTB source buffer:
//
//	u8  header marker (eventHeader)
//	u16 event header word
//	u16 event trailer word
//	u16 pixel count
//	pixel count * (u8 rocID, u8 col, u8 row, i16 value)
//	u8  trailer marker (eventTrailer)
//	u16 CRC-16/XMODEM over everything from the header marker to the
//	    trailer marker, inclusive
const (
	eventHeader  = 0xe0
	eventTrailer = 0xe1
)

// encodeEvent appends the wire encoding of ev to buf and returns the
// result. Used by tests and by fake HAL.DAQ implementations to build
// realistic raw buffers.
func encodeEvent(buf []byte, ev event.Event) []byte {
	start := len(buf)
	buf = append(buf, eventHeader)
	buf = appendU16(buf, ev.Header)
	buf = appendU16(buf, ev.Trailer)
	buf = appendU16(buf, uint16(len(ev.Pixels)))
	for _, px := range ev.Pixels {
		buf = append(buf, px.ROCID, px.Column, px.Row)
		buf = appendU16(buf, uint16(px.Value))
	}
	buf = append(buf, eventTrailer)

	h := crc16.New(nil)
	h.Write(buf[start:])
	return appendU16(buf, h.Sum16())
}

func appendU16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

// rawDecoder decodes raw event frames out of a byte buffer, tracking a
// single sticky error the way dif.Decoder does.
type rawDecoder struct {
	buf []byte
	pos int
	err error
}

func newRawDecoder(buf []byte) *rawDecoder {
	return &rawDecoder{buf: buf}
}

// next decodes one raw event frame, returning its undecoded bytes
// (header marker through trailer marker, CRC stripped and verified) and
// advancing past it. io.EOF is returned once the buffer is exhausted.
func (d *rawDecoder) next() ([]byte, error) {
	if d.err != nil {
		return nil, d.err
	}
	if d.pos >= len(d.buf) {
		return nil, io.EOF
	}

	start := d.pos
	v := d.readU8()
	if d.err != nil {
		return nil, d.err
	}
	if v != eventHeader {
		d.err = fmt.Errorf("pxar: daq: invalid event header marker (got=0x%x)", v)
		return nil, d.err
	}

	d.skip(2 + 2) // header word, trailer word
	n := d.readU16()
	if d.err != nil {
		return nil, d.err
	}
	d.skip(int(n) * 5)

	trailerPos := d.pos
	tv := d.readU8()
	if d.err != nil {
		return nil, d.err
	}
	if tv != eventTrailer {
		d.err = fmt.Errorf("pxar: daq: invalid event trailer marker (got=0x%x)", tv)
		return nil, d.err
	}
	_ = trailerPos

	frame := d.buf[start:d.pos]
	recvCRC := d.readU16()
	if d.err != nil {
		return nil, d.err
	}

	h := crc16.New(nil)
	h.Write(frame)
	if got := h.Sum16(); got != recvCRC {
		d.err = fmt.Errorf("pxar: daq: inconsistent CRC: recv=0x%04x comp=0x%04x", recvCRC, got)
		return nil, d.err
	}

	return frame, nil
}

// decodeEvent decodes a frame previously returned by next into an
// event.Event.
func decodeEvent(frame []byte) (event.Event, error) {
	d := &rawDecoder{buf: frame}

	v := d.readU8()
	if v != eventHeader {
		return event.Event{}, fmt.Errorf("pxar: daq: invalid event header marker (got=0x%x)", v)
	}
	hdr := d.readU16()
	trl := d.readU16()
	n := d.readU16()
	if d.err != nil {
		return event.Event{}, d.err
	}

	ev := event.Event{Header: hdr, Trailer: trl, Pixels: make([]event.Pixel, n)}
	for i := range ev.Pixels {
		roc := d.readU8()
		col := d.readU8()
		row := d.readU8()
		val := d.readU16()
		if d.err != nil {
			return event.Event{}, d.err
		}
		ev.Pixels[i] = event.Pixel{ROCID: roc, Column: col, Row: row, Value: int16(val)}
	}

	tv := d.readU8()
	if d.err != nil {
		return event.Event{}, d.err
	}
	if tv != eventTrailer {
		ev.NumDecoderErrors++
	}
	return ev, nil
}

func (d *rawDecoder) readU8() uint8 {
	if d.err != nil {
		return 0
	}
	if d.pos >= len(d.buf) {
		d.err = io.ErrUnexpectedEOF
		return 0
	}
	v := d.buf[d.pos]
	d.pos++
	return v
}

func (d *rawDecoder) readU16() uint16 {
	if d.err != nil {
		return 0
	}
	if d.pos+2 > len(d.buf) {
		d.err = io.ErrUnexpectedEOF
		return 0
	}
	v := binary.BigEndian.Uint16(d.buf[d.pos : d.pos+2])
	d.pos += 2
	return v
}

func (d *rawDecoder) skip(n int) {
	if d.err != nil {
		return
	}
	if d.pos+n > len(d.buf) {
		d.err = io.ErrUnexpectedEOF
		return
	}
	d.pos += n
}
