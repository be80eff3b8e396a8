// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command pxar-daq drives a standalone DAQ Controller acquisition
// session against a USB-attached testboard: it loads a named
// configuration preset, programs the DUT, runs a fixed-length trigger
// session, and writes the drained raw buffer to a run file, with a JSON
// metadata file beside it. It is
// the "alternate path" the DAQ Controller exposes directly, without
// going through the Loop Expander or Repacker.
package main // import "github.com/psi-pxar/pxar/cmd/pxar-daq"

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/gousb"

	"github.com/psi-pxar/pxar/confdb"
	"github.com/psi-pxar/pxar/daq"
	"github.com/psi-pxar/pxar/dut"
	"github.com/psi-pxar/pxar/program"
	"github.com/psi-pxar/pxar/usbdtb"
)

func main() {
	var (
		preset     = flag.String("preset", "", "name of the confdb preset to load")
		confdbName = flag.String("confdb", "pxar", "confdb database name")
		run        = flag.Int("run", -1, "run number")
		ntrig      = flag.Uint("n", 1000, "number of triggers to fire")
		period     = flag.Uint("period", 0, "trigger period, in DTB clock cycles (0: use pg_sum)")
		deserPhase = flag.Uint("deser-phase", 4, "deserializer phase")
		odir       = flag.String("o", ".", "output directory")
	)

	log.SetPrefix("pxar-daq: ")
	log.SetFlags(0)

	flag.Parse()

	switch {
	case *preset == "":
		log.Fatalf("missing -preset")
	case *run < 0:
		log.Fatalf("invalid run number")
	}

	if err := runDAQ(*confdbName, *preset, *run, uint32(*ntrig), uint32(*period), uint8(*deserPhase), *odir); err != nil {
		log.Fatalf("could not run pxar-daq: %+v", err)
	}
}

func runDAQ(confdbName, preset string, run int, ntrig, period uint32, deserPhase uint8, odir string) error {
	cdb, err := confdb.Open(confdbName)
	if err != nil {
		return fmt.Errorf("could not open confdb: %w", err)
	}
	defer cdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := cdb.Load(ctx, preset)
	if err != nil {
		return fmt.Errorf("could not load preset %q: %w", preset, err)
	}

	d := dut.New()
	p.ApplyTo(d)
	d.Initialized = true

	usbctx := gousb.NewContext()
	defer usbctx.Close()

	boards, err := usbdtb.Scan(usbctx)
	if err != nil {
		return fmt.Errorf("could not scan for testboards: %w", err)
	}
	if len(boards) == 0 {
		return fmt.Errorf("no testboard found")
	}

	dev, err := usbctx.OpenDeviceWithVIDPID(boards[0].VendorID, boards[0].ProductID)
	if err != nil {
		return fmt.Errorf("could not open testboard: %w", err)
	}

	msg := log.New(log.Writer(), "pxar-daq: ", 0)

	board, err := usbdtb.Open(dev, msg)
	if err != nil {
		return fmt.Errorf("could not claim testboard: %w", err)
	}
	defer board.Close()

	prog := program.New(board, msg)
	if err := prog.ProgramDUT(d); err != nil {
		return fmt.Errorf("could not program DUT: %w", err)
	}

	ctl := daq.New(board, board, prog, msg)
	if err := ctl.Start(d, deserPhase); err != nil {
		return fmt.Errorf("could not start DAQ session: %w", err)
	}
	defer func() {
		if err := ctl.Stop(d); err != nil {
			log.Printf("could not stop DAQ session cleanly: %+v", err)
		}
	}()

	effPeriod, err := ctl.Trigger(d, ntrig, period)
	if err != nil {
		return fmt.Errorf("could not fire triggers: %w", err)
	}
	msg.Printf("fired %d triggers at period=%d", ntrig, effPeriod)

	var events []byte
	for {
		ok, perFull, err := ctl.Status()
		if err != nil {
			return fmt.Errorf("could not poll DAQ status: %w", err)
		}
		if !ok && perFull == 0 {
			break
		}

		buf, err := ctl.GetBuffer(1 << 20)
		if err != nil {
			return fmt.Errorf("could not drain buffer: %w", err)
		}
		if len(buf) == 0 {
			break
		}
		events = append(events, buf...)
	}

	return writeRun(odir, run, events, ctl.LastDecoderErrors())
}

func writeRun(odir string, run int, raw []byte, decoderErrors uint32) error {
	if err := os.MkdirAll(odir, 0o755); err != nil {
		return fmt.Errorf("could not create output dir %q: %w", odir, err)
	}

	name := filepath.Join(odir, fmt.Sprintf("pxar_run%06d.raw", run))
	if err := os.WriteFile(name, raw, 0o644); err != nil {
		return fmt.Errorf("could not write run file %q: %w", name, err)
	}

	meta := struct {
		Run           int    `json:"run"`
		Bytes         int    `json:"bytes"`
		DecoderErrors uint32 `json:"decoder_errors"`
	}{Run: run, Bytes: len(raw), DecoderErrors: decoderErrors}

	f, err := os.Create(filepath.Join(odir, fmt.Sprintf("pxar_run%06d.json", run)))
	if err != nil {
		return fmt.Errorf("could not create run metadata file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(meta)
}
